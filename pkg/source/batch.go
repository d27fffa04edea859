package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	batchURL = "https://trends.google.com/_/TrendsUi/data/batchexecute"
	batchRPC = "i0OFE"
)

// BatchFetcher pulls the trending-now payload from the batchexecute endpoint
// the Google Trends page itself calls. The response is the framed envelope
// format that trend.ParsePayload understands.
type BatchFetcher struct {
	client      *http.Client
	endpoint    string
	language    string
	category    int
	hours       int
	maxAttempts int
	backoff     time.Duration
	log         *slog.Logger
}

// NewBatchFetcher creates a batchexecute fetcher for the given category and
// hours window. timeout bounds each attempt; maxAttempts falls back to 3.
func NewBatchFetcher(language string, category, hours, maxAttempts int, timeout time.Duration) *BatchFetcher {
	if language == "" {
		language = "en"
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BatchFetcher{
		client:      &http.Client{Timeout: timeout},
		endpoint:    batchURL,
		language:    language,
		category:    category,
		hours:       hours,
		maxAttempts: maxAttempts,
		backoff:     2 * time.Second,
		log:         slog.Default(),
	}
}

func (f *BatchFetcher) Name() string { return "batchexecute" }

// FetchPage posts the RPC request for one region, retrying transient
// failures with doubling backoff before giving up on the cycle.
func (f *BatchFetcher) FetchPage(ctx context.Context, region string) (*Payload, error) {
	form, err := f.buildForm(region)
	if err != nil {
		return nil, err
	}

	delay := f.backoff
	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		raw, err := f.post(ctx, form)
		if err == nil {
			return &Payload{Raw: raw}, nil
		}
		lastErr = err
		f.log.Warn("trends fetch attempt failed",
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
	return nil, fmt.Errorf("fetch trends for %s: %w", region, lastErr)
}

// buildForm encodes the doubly-nested f.req parameter: an envelope naming
// the RPC, wrapping a JSON-encoded argument list with the region, category,
// language and hours window.
func (f *BatchFetcher) buildForm(region string) (url.Values, error) {
	args, err := json.Marshal([]any{nil, nil, region, f.category, f.language, f.hours, 1})
	if err != nil {
		return nil, fmt.Errorf("marshal rpc args: %w", err)
	}
	envelope, err := json.Marshal([]any{[]any{[]any{batchRPC, string(args), nil, "generic"}}})
	if err != nil {
		return nil, fmt.Errorf("marshal rpc envelope: %w", err)
	}
	return url.Values{"f.req": {string(envelope)}}, nil
}

func (f *BatchFetcher) post(ctx context.Context, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create trends request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	req.Header.Set("User-Agent", "trendnotify/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post trends request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("trends endpoint status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read trends response: %w", err)
	}
	return string(body), nil
}
