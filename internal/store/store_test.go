package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DimasIb47/google-trend-notification/pkg/trend"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "trends.db"), 48*time.Hour)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(region, title string, rank int) *trend.Record {
	return &trend.Record{
		Title:           title,
		NormalizedTitle: trend.Normalize(title),
		Rank:            rank,
		SearchVolume:    "500K+",
		GrowthPercent:   "+1,200%",
		StartedTime:     "2 hours ago",
		Status:          trend.StatusActive,
		Region:          region,
		RelatedQueries:  []string{"first query", "second query"},
	}
}

func TestTryClaimOncePerTriple(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.TryClaim(ctx, "US", "2025-06-15", "hollow knight silksong")
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if res != Claimed {
		t.Fatalf("first claim = %v, want Claimed", res)
	}

	for i := 0; i < 3; i++ {
		res, err = s.TryClaim(ctx, "US", "2025-06-15", "hollow knight silksong")
		if err != nil {
			t.Fatalf("repeat claim: %v", err)
		}
		if res != AlreadyExists {
			t.Errorf("repeat claim %d = %v, want AlreadyExists", i, res)
		}
	}

	// A different date key or region is a fresh triple.
	if res, err := s.TryClaim(ctx, "US", "2025-06-16", "hollow knight silksong"); err != nil || res != Claimed {
		t.Errorf("next-day claim = %v, %v, want Claimed", res, err)
	}
	if res, err := s.TryClaim(ctx, "GB", "2025-06-15", "hollow knight silksong"); err != nil || res != Claimed {
		t.Errorf("other-region claim = %v, %v, want Claimed", res, err)
	}
}

func TestTryClaimConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const callers = 8
	results := make(chan ClaimResult, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.TryClaim(ctx, "ID", "2025-06-15", "contested topic")
			if err != nil {
				t.Errorf("concurrent claim: %v", err)
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	claimed := 0
	for res := range results {
		if res == Claimed {
			claimed++
		}
	}
	if claimed != 1 {
		t.Errorf("%d concurrent claims won, want exactly 1", claimed)
	}
}

func TestSweepExpiredFreesTriple(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if res, err := s.TryClaim(ctx, "US", "2025-06-15", "expiring topic"); err != nil || res != Claimed {
		t.Fatalf("initial claim = %v, %v", res, err)
	}

	n, err := s.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("early sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("early sweep removed %d entries, want 0", n)
	}

	// Move the store clock past the 48h TTL.
	s.now = func() time.Time { return time.Now().Add(49 * time.Hour) }

	n, err = s.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("sweep removed %d entries, want 1", n)
	}

	if res, err := s.TryClaim(ctx, "US", "2025-06-15", "expiring topic"); err != nil || res != Claimed {
		t.Errorf("post-sweep claim = %v, %v, want Claimed", res, err)
	}
}

func TestAppendAndRecentEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	id1, err := s.AppendEvent(ctx, sampleRecord("US", "First Topic", 1), "", base)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	id2, err := s.AppendEvent(ctx, sampleRecord("US", "Second Topic", 2), "raw-snapshot", base.Add(time.Minute))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if id2 <= id1 {
		t.Errorf("ids not monotonic: %d then %d", id1, id2)
	}
	if _, err := s.AppendEvent(ctx, sampleRecord("US", "Third Topic", 3), "", base.Add(2*time.Minute)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.AppendEvent(ctx, sampleRecord("GB", "Other Market", 1), "", base.Add(3*time.Minute)); err != nil {
		t.Fatalf("append: %v", err)
	}

	events, err := s.RecentEvents(ctx, "US", 10)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d US events, want 3", len(events))
	}
	if events[0].Title != "Third Topic" || events[2].Title != "First Topic" {
		t.Errorf("events out of order: %q ... %q", events[0].Title, events[2].Title)
	}
	if len(events[0].RelatedQueries) != 2 {
		t.Errorf("related queries not restored: %v", events[0].RelatedQueries)
	}
	if !events[2].FetchedAt.Equal(base) {
		t.Errorf("fetched_at round trip = %v, want %v", events[2].FetchedAt, base)
	}

	all, err := s.RecentEvents(ctx, "", 10)
	if err != nil {
		t.Fatalf("recent events all regions: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("got %d events across regions, want 4", len(all))
	}

	limited, err := s.RecentEvents(ctx, "US", 2)
	if err != nil {
		t.Fatalf("recent events limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limit ignored, got %d events", len(limited))
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, title := range []string{"Topic A", "Topic B"} {
		if _, err := s.AppendEvent(ctx, sampleRecord("US", title, i+1), "", now); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if _, err := s.AppendEvent(ctx, sampleRecord("ID", "Topic C", 1), "", now); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.TryClaim(ctx, "US", "2025-06-15", "topic a"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := s.TryClaim(ctx, "ID", "2025-06-15", "topic c"); err != nil {
		t.Fatalf("claim: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalEvents != 3 {
		t.Errorf("total events = %d, want 3", stats.TotalEvents)
	}
	if stats.ActiveDedupeKeys != 2 {
		t.Errorf("active dedupe keys = %d, want 2", stats.ActiveDedupeKeys)
	}
	if stats.EventsByRegion["US"] != 2 || stats.EventsByRegion["ID"] != 1 {
		t.Errorf("events by region = %v", stats.EventsByRegion)
	}
}
