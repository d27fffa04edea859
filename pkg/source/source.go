package source

import (
	"context"

	"github.com/DimasIb47/google-trend-notification/pkg/trend"
)

// Payload is what one successful fetch produced: either the raw batchexecute
// response body, or rows already rendered to cell text by a fetcher that
// reads the displayed page. Exactly one of the two is populated.
type Payload struct {
	Raw  string
	Rows []trend.RenderedRow
}

// PageFetcher obtains the trending payload for one region. Implementations
// retry transient failures internally a bounded number of times; a returned
// error means the fetch failed for this cycle and the caller moves on.
type PageFetcher interface {
	Name() string
	FetchPage(ctx context.Context, region string) (*Payload, error)
}
