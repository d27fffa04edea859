package scheduler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DimasIb47/google-trend-notification/internal/store"
	"github.com/DimasIb47/google-trend-notification/pkg/alert"
	"github.com/DimasIb47/google-trend-notification/pkg/source"
	"github.com/DimasIb47/google-trend-notification/pkg/trend"
)

type fakeFetcher struct {
	payloads map[string]*source.Payload
	err      error
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) FetchPage(_ context.Context, region string) (*source.Payload, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.payloads[region], nil
}

type sinkRecorder struct {
	mu       sync.Mutex
	outcomes []PollOutcome
}

func (r *sinkRecorder) RecordPoll(outcome PollOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *sinkRecorder) byRegion(region string) (PollOutcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.outcomes {
		if o.Region == region {
			return o, true
		}
	}
	return PollOutcome{}, false
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "trends.db"), 48*time.Hour)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunCycleTwoRegions(t *testing.T) {
	deliveries := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deliveries++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	st := newTestStore(t)
	notifier := alert.NewNotifier(
		[]alert.Sender{alert.NewDiscord(srv.URL, 6, "")},
		alert.NewBlocklist(nil), 3, time.Second)
	resolver := trend.NewDateKeyResolver("UTC")

	fetcher := &fakeFetcher{payloads: map[string]*source.Payload{
		"US": {Rows: []trend.RenderedRow{
			{
				TitleText:  "Hollow Knight Silksong\nSearch term",
				VolumeText: "500K+\n+1,900%",
				TimeText:   "2 hours ago",
			},
		}},
		"GB": {Rows: []trend.RenderedRow{
			{
				TitleText:  "Elden Ring DLC",
				VolumeText: "200K+",
				TimeText:   "2 hours ago",
			},
		}},
	}}

	sink := &sinkRecorder{}
	sched := New(st, fetcher, notifier, resolver, sink, []string{"US", "GB"}, 0, 0, 0)

	ctx := context.Background()

	// GB's trend is already claimed today, so its cycle must not append or
	// notify again.
	dateKey := resolver.ResolveDateKey("2 hours ago", "GB")
	result, err := st.TryClaim(ctx, "GB", dateKey, trend.Normalize("Elden Ring DLC"))
	if err != nil || result != store.Claimed {
		t.Fatalf("pre-claim = (%v, %v), want (Claimed, nil)", result, err)
	}

	sched.RunCycle(ctx, "US")
	sched.RunCycle(ctx, "GB")

	events, err := st.RecentEvents(ctx, "", 50)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want exactly 1 append", len(events))
	}
	if events[0].Title != "Hollow Knight Silksong" || events[0].Region != "US" {
		t.Errorf("event = %s/%s, want US/Hollow Knight Silksong",
			events[0].Region, events[0].Title)
	}
	if deliveries != 1 {
		t.Errorf("deliveries = %d, want exactly 1", deliveries)
	}

	for _, region := range []string{"US", "GB"} {
		outcome, ok := sink.byRegion(region)
		if !ok {
			t.Fatalf("no outcome reported for %s", region)
		}
		if !outcome.Success {
			t.Errorf("%s outcome.Success = false, want true", region)
		}
		if outcome.TrendsSeen != 1 {
			t.Errorf("%s trends seen = %d, want 1", region, outcome.TrendsSeen)
		}
		if outcome.CompletedAt.IsZero() {
			t.Errorf("%s outcome missing completion time", region)
		}
	}
	if us, _ := sink.byRegion("US"); us.TrendsNew != 1 {
		t.Errorf("US trends new = %d, want 1", us.TrendsNew)
	}
	if gb, _ := sink.byRegion("GB"); gb.TrendsNew != 0 {
		t.Errorf("GB trends new = %d, want 0", gb.TrendsNew)
	}
}

func TestRunCycleDuplicateWithinCycle(t *testing.T) {
	deliveries := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deliveries++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	st := newTestStore(t)
	notifier := alert.NewNotifier(
		[]alert.Sender{alert.NewDiscord(srv.URL, 6, "")},
		alert.NewBlocklist(nil), 3, time.Second)

	// The same topic rendered twice with different spacing normalizes to one
	// title, so only the first row wins the claim.
	fetcher := &fakeFetcher{payloads: map[string]*source.Payload{
		"US": {Rows: []trend.RenderedRow{
			{TitleText: "GTA 6", VolumeText: "1M+", TimeText: "3 hours ago"},
			{TitleText: "GTA  6", VolumeText: "1M+", TimeText: "3 hours ago"},
		}},
	}}

	sink := &sinkRecorder{}
	sched := New(st, fetcher, notifier, trend.NewDateKeyResolver("UTC"), sink,
		[]string{"US"}, 0, 0, 0)

	outcome := sched.RunCycle(context.Background(), "US")

	if outcome.TrendsSeen != 2 || outcome.TrendsNew != 1 {
		t.Errorf("outcome seen/new = %d/%d, want 2/1",
			outcome.TrendsSeen, outcome.TrendsNew)
	}

	events, err := st.RecentEvents(context.Background(), "US", 50)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("events = %d, want 1", len(events))
	}
	if deliveries != 1 {
		t.Errorf("deliveries = %d, want 1", deliveries)
	}
}

func TestRunCycleFetchFailure(t *testing.T) {
	st := newTestStore(t)
	fetcher := &fakeFetcher{err: errors.New("endpoint unreachable")}
	sink := &sinkRecorder{}
	sched := New(st, fetcher, alert.NewNotifier(nil, nil, 0, 0),
		trend.NewDateKeyResolver("UTC"), sink, []string{"US"}, 0, 0, 0)

	outcome := sched.RunCycle(context.Background(), "US")

	if outcome.Success {
		t.Error("outcome.Success = true, want false on fetch failure")
	}
	if outcome.Error == "" {
		t.Error("outcome.Error empty, want fetch error message")
	}

	events, err := st.RecentEvents(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events = %d, want 0", len(events))
	}
	if _, ok := sink.byRegion("US"); !ok {
		t.Error("failed cycle did not report an outcome")
	}
}

func TestJitterStaysWithinBounds(t *testing.T) {
	sched := New(newTestStore(t), &fakeFetcher{}, nil, trend.NewDateKeyResolver("UTC"),
		nil, nil, 60*time.Second, 120*time.Second, 0)

	for i := 0; i < 200; i++ {
		d := sched.jitter()
		if d < 60*time.Second || d > 120*time.Second {
			t.Fatalf("jitter = %v, want within [60s, 120s]", d)
		}
	}
}
