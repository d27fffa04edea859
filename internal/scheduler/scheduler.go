// Package scheduler runs the per-region polling loops and the dedupe sweep,
// driving each fetched trend through the claim-store-notify pipeline.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/DimasIb47/google-trend-notification/internal/store"
	"github.com/DimasIb47/google-trend-notification/pkg/alert"
	"github.com/DimasIb47/google-trend-notification/pkg/source"
	"github.com/DimasIb47/google-trend-notification/pkg/trend"
)

// PollOutcome summarizes one polling cycle for a region. It is transient
// state consumed by the health surface, never persisted.
type PollOutcome struct {
	Region      string    `json:"region"`
	Success     bool      `json:"success"`
	TrendsSeen  int       `json:"trends_seen"`
	TrendsNew   int       `json:"trends_new"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// StatusSink receives the outcome of every poll cycle.
type StatusSink interface {
	RecordPoll(outcome PollOutcome)
}

// Scheduler owns the region poll loops and the periodic dedupe sweep.
type Scheduler struct {
	store    store.Store
	fetcher  source.PageFetcher
	notifier *alert.Notifier
	resolver *trend.DateKeyResolver
	sink     StatusSink
	cron     *cron.Cron
	regions  []string
	pollMin  time.Duration
	pollMax  time.Duration
	sweepInt time.Duration
	log      *slog.Logger
}

// New creates a scheduler. Poll bounds default to 60-120s and the sweep
// interval to one hour when non-positive.
func New(
	st store.Store,
	fetcher source.PageFetcher,
	notifier *alert.Notifier,
	resolver *trend.DateKeyResolver,
	sink StatusSink,
	regions []string,
	pollMin, pollMax, sweepInterval time.Duration,
) *Scheduler {
	if pollMin <= 0 {
		pollMin = 60 * time.Second
	}
	if pollMax <= 0 {
		pollMax = 120 * time.Second
	}
	if pollMax < pollMin {
		pollMax = pollMin
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Hour
	}
	return &Scheduler{
		store:    st,
		fetcher:  fetcher,
		notifier: notifier,
		resolver: resolver,
		sink:     sink,
		cron:     cron.New(),
		regions:  regions,
		pollMin:  pollMin,
		pollMax:  pollMax,
		sweepInt: sweepInterval,
		log:      slog.Default(),
	}
}

// Run starts one poll loop per region plus the sweep job and blocks until
// ctx is cancelled. In-flight cycles finish before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.runSweep(ctx)

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.sweepInt), func() {
		s.runSweep(ctx)
	}); err != nil {
		return fmt.Errorf("schedule dedupe sweep: %w", err)
	}
	s.cron.Start()

	s.log.Info("scheduler running",
		"regions", s.regions, "poll_min", s.pollMin, "poll_max", s.pollMax,
		"sweep_interval", s.sweepInt, "fetcher", s.fetcher.Name())

	var wg sync.WaitGroup
	for _, region := range s.regions {
		wg.Add(1)
		go func(region string) {
			defer wg.Done()
			s.pollRegion(ctx, region)
		}(region)
	}

	<-ctx.Done()
	s.log.Info("scheduler stopping")

	<-s.cron.Stop().Done()
	wg.Wait()

	s.log.Info("scheduler stopped")
	return ctx.Err()
}

// pollRegion cycles fetch-process-sleep until shutdown. The first cycle runs
// immediately; shutdown is observed at the sleep boundary.
func (s *Scheduler) pollRegion(ctx context.Context, region string) {
	s.log.Info("starting poll loop", "region", region)
	for {
		s.RunCycle(ctx, region)

		timer := time.NewTimer(s.jitter())
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("poll loop stopped", "region", region)
			return
		case <-timer.C:
		}
	}
}

// RunCycle executes one fetch-parse-process pass for a region and reports
// the outcome to the status sink.
func (s *Scheduler) RunCycle(ctx context.Context, region string) PollOutcome {
	outcome := PollOutcome{Region: region}

	payload, err := s.fetcher.FetchPage(ctx, region)
	if err != nil {
		outcome.Error = err.Error()
		s.log.Error("trend fetch failed", "region", region, "error", err)
	} else {
		records := recordsFrom(payload, region)
		outcome.Success = true
		outcome.TrendsSeen = len(records)

		for i := range records {
			if s.processRecord(ctx, &records[i]) {
				outcome.TrendsNew++
			}
		}
		s.log.Info("poll completed",
			"region", region, "trends", outcome.TrendsSeen, "new", outcome.TrendsNew)
	}

	outcome.CompletedAt = time.Now().UTC()
	if s.sink != nil {
		s.sink.RecordPoll(outcome)
	}
	return outcome
}

// processRecord runs one record through the dedupe-store-notify pipeline.
// True means the record was claimed as new this cycle. Errors are logged and
// never abort the cycle.
func (s *Scheduler) processRecord(ctx context.Context, rec *trend.Record) bool {
	dateKey := s.resolver.ResolveDateKey(rec.StartedTime, rec.Region)

	result, err := s.store.TryClaim(ctx, rec.Region, dateKey, rec.NormalizedTitle)
	if err != nil {
		s.log.Error("dedupe claim failed",
			"region", rec.Region, "title", rec.Title, "error", err)
		return false
	}
	if result != store.Claimed {
		s.log.Debug("duplicate trend skipped",
			"region", rec.Region, "title", rec.Title, "date_key", dateKey)
		return false
	}

	s.log.Info("new trend detected",
		"region", rec.Region, "title", rec.Title,
		"volume", rec.SearchVolume, "started", rec.StartedTime)

	if _, err := s.store.AppendEvent(ctx, rec, "", time.Now().UTC()); err != nil {
		s.log.Error("store trend event failed", "title", rec.Title, "error", err)
		return true
	}

	if s.notifier != nil && s.notifier.HasSenders() {
		if !s.notifier.Send(ctx, rec) {
			s.log.Warn("notification not delivered",
				"region", rec.Region, "title", rec.Title)
		}
	}
	return true
}

func (s *Scheduler) runSweep(ctx context.Context) {
	removed, err := s.store.SweepExpired(ctx)
	if err != nil {
		s.log.Error("dedupe sweep failed", "error", err)
		return
	}
	if removed > 0 {
		s.log.Info("dedupe sweep removed expired keys", "removed", removed)
	}
}

// jitter draws the inter-cycle sleep uniformly from [pollMin, pollMax] so
// region loops do not line up their requests against the source.
func (s *Scheduler) jitter() time.Duration {
	span := s.pollMax - s.pollMin
	if span <= 0 {
		return s.pollMin
	}
	return s.pollMin + rand.N(span+1)
}

func recordsFrom(payload *source.Payload, region string) []trend.Record {
	if payload == nil {
		return nil
	}
	if payload.Raw != "" {
		return trend.ParsePayload(payload.Raw, region)
	}
	return trend.RecordsFromRows(payload.Rows, region)
}
