package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/DimasIb47/google-trend-notification/pkg/trend"
)

const rssURL = "https://trends.google.com/trending/rss"

// RSSFetcher reads the public trending-now RSS feed. It carries less detail
// than the batchexecute payload (no growth, rank order only) but needs no
// session state, which makes it a useful fallback fetch mode.
type RSSFetcher struct {
	client      *http.Client
	parser      *gofeed.Parser
	endpoint    string
	maxAttempts int
	backoff     time.Duration
	log         *slog.Logger
}

// NewRSSFetcher creates an RSS fetcher. timeout bounds each attempt;
// maxAttempts falls back to 3.
func NewRSSFetcher(maxAttempts int, timeout time.Duration) *RSSFetcher {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RSSFetcher{
		client:      &http.Client{Timeout: timeout},
		parser:      gofeed.NewParser(),
		endpoint:    rssURL,
		maxAttempts: maxAttempts,
		backoff:     2 * time.Second,
		log:         slog.Default(),
	}
}

func (f *RSSFetcher) Name() string { return "rss" }

// FetchPage reads the region's feed, retrying transient failures with
// doubling backoff before giving up on the cycle.
func (f *RSSFetcher) FetchPage(ctx context.Context, region string) (*Payload, error) {
	delay := f.backoff
	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		feed, err := f.fetch(ctx, region)
		if err == nil {
			return &Payload{Rows: rowsFromFeed(feed, time.Now())}, nil
		}
		lastErr = err
		f.log.Warn("trends rss attempt failed",
			"region", region, "attempt", attempt, "error", err)

		if attempt < f.maxAttempts {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}
	}
	return nil, fmt.Errorf("fetch trends rss for %s: %w", region, lastErr)
}

func (f *RSSFetcher) fetch(ctx context.Context, region string) (*gofeed.Feed, error) {
	feedURL := f.endpoint + "?geo=" + url.QueryEscape(region)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create rss request: %w", err)
	}
	req.Header.Set("User-Agent", "trendnotify/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed status %d", resp.StatusCode)
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// rowsFromFeed maps feed entries onto rendered rows: the item title, the
// ht:approx_traffic extension as the volume cell, and a relative age
// synthesized from the publish date as the time cell.
func rowsFromFeed(feed *gofeed.Feed, now time.Time) []trend.RenderedRow {
	rows := make([]trend.RenderedRow, 0, len(feed.Items))
	for _, item := range feed.Items {
		row := trend.RenderedRow{TitleText: item.Title}
		if ht, ok := item.Extensions["ht"]; ok {
			if traffic := ht["approx_traffic"]; len(traffic) > 0 {
				row.VolumeText = traffic[0].Value
			}
		}
		if item.PublishedParsed != nil {
			row.TimeText = relativeAge(now.Sub(*item.PublishedParsed))
		}
		rows = append(rows, row)
	}
	return rows
}

func relativeAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Hour:
		m := int(d.Minutes())
		if m <= 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", m)
	case d < 24*time.Hour:
		h := int(d.Hours())
		if h == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", h)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}
