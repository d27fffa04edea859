package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/DimasIb47/google-trend-notification/pkg/trend"
)

// Sender delivers one formatted message to a single destination. Senders do
// not retry; the retry policy lives in the Notifier.
type Sender interface {
	Name() string
	Send(ctx context.Context, rec *trend.Record) error
	SendTest(ctx context.Context) error
}

// StatusError is an HTTP delivery failure with enough detail for the retry
// loop to classify it.
type StatusError struct {
	Code       int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("status %d (retry after %s)", e.Code, e.RetryAfter)
	}
	return fmt.Sprintf("status %d", e.Code)
}

// newStatusError builds a StatusError from a failure response, picking up a
// rate-limit hint from the JSON body (Discord reports retry_after in seconds)
// or the Retry-After header.
func newStatusError(resp *http.Response) *StatusError {
	se := &StatusError{Code: resp.StatusCode}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var hint struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &hint); err == nil && hint.RetryAfter > 0 {
		se.RetryAfter = time.Duration(hint.RetryAfter * float64(time.Second))
		return se
	}
	if header := resp.Header.Get("Retry-After"); header != "" {
		if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
			se.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return se
}

// Notifier fans a trend out to the configured senders, enforcing the
// blocklist and the per-sender retry policy.
type Notifier struct {
	senders     []Sender
	blocklist   *Blocklist
	maxAttempts int
	backoff     time.Duration
	log         *slog.Logger

	// wait is swappable so tests can observe retry timing.
	wait func(ctx context.Context, d time.Duration) error
}

// NewNotifier creates a notifier over the given senders. maxAttempts and
// backoff fall back to 3 and 1s when non-positive.
func NewNotifier(senders []Sender, blocklist *Blocklist, maxAttempts int, backoff time.Duration) *Notifier {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = time.Second
	}
	if blocklist == nil {
		blocklist = NewBlocklist(nil)
	}
	return &Notifier{
		senders:     senders,
		blocklist:   blocklist,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		log:         slog.Default(),
		wait:        sleepCtx,
	}
}

// HasSenders returns true if at least one destination is configured.
func (n *Notifier) HasSenders() bool {
	return len(n.senders) > 0
}

// Send delivers one trend to every sender. True means the record was
// handled: delivered everywhere, or suppressed by the blocklist before any
// HTTP traffic. False means at least one destination exhausted its attempts.
func (n *Notifier) Send(ctx context.Context, rec *trend.Record) bool {
	if keyword, blocked := n.blocklist.Match(rec.Title); blocked {
		n.log.Info("suppressed blocklisted trend",
			"region", rec.Region, "title", rec.Title, "keyword", keyword)
		return true
	}

	handled := true
	for _, sender := range n.senders {
		if !n.deliver(ctx, sender, rec) {
			handled = false
		}
	}
	return handled
}

// deliver runs the bounded retry loop for one sender. A 429 waits the
// advertised interval without growing the backoff, other client errors are
// terminal, and everything else (5xx, timeouts, transport failures) waits
// the current backoff and doubles it.
func (n *Notifier) deliver(ctx context.Context, sender Sender, rec *trend.Record) bool {
	delay := n.backoff
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		err := sender.Send(ctx, rec)
		if err == nil {
			n.log.Info("notification sent",
				"sender", sender.Name(), "region", rec.Region, "title", rec.Title)
			return true
		}

		var se *StatusError
		if errors.As(err, &se) {
			if se.Code == http.StatusTooManyRequests {
				wait := se.RetryAfter
				if wait <= 0 {
					wait = delay
				}
				n.log.Warn("rate limited, waiting",
					"sender", sender.Name(), "wait", wait, "attempt", attempt)
				if n.wait(ctx, wait) != nil {
					return false
				}
				continue
			}
			if se.Code >= 400 && se.Code < 500 {
				n.log.Error("notification rejected",
					"sender", sender.Name(), "status", se.Code, "title", rec.Title)
				return false
			}
		}

		n.log.Warn("notification attempt failed",
			"sender", sender.Name(), "attempt", attempt, "error", err)
		if attempt < n.maxAttempts {
			if n.wait(ctx, delay) != nil {
				return false
			}
			delay *= 2
		}
	}

	n.log.Error("notification attempts exhausted",
		"sender", sender.Name(), "region", rec.Region, "title", rec.Title)
	return false
}

// SendTest posts a verification message through every sender and joins any
// failures.
func (n *Notifier) SendTest(ctx context.Context) error {
	var errs []error
	for _, sender := range n.senders {
		if err := sender.SendTest(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sender.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
