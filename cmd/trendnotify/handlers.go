package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/DimasIb47/google-trend-notification/internal/config"
	"github.com/DimasIb47/google-trend-notification/internal/logger"
	"github.com/DimasIb47/google-trend-notification/internal/scheduler"
	"github.com/DimasIb47/google-trend-notification/internal/store"
	"github.com/DimasIb47/google-trend-notification/pkg/alert"
	"github.com/DimasIb47/google-trend-notification/pkg/server"
	"github.com/DimasIb47/google-trend-notification/pkg/source"
	"github.com/DimasIb47/google-trend-notification/pkg/trend"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	return store.New(cfg.Database.Path, cfg.Dedupe.ParseTTL())
}

func buildFetcher(cfg *config.Config) source.PageFetcher {
	if strings.EqualFold(cfg.Fetch.Mode, "rss") {
		return source.NewRSSFetcher(cfg.Fetch.MaxAttempts, cfg.Fetch.ParseTimeout())
	}
	return source.NewBatchFetcher(
		cfg.Fetch.Language,
		cfg.Trends.Category,
		cfg.Trends.Hours,
		cfg.Fetch.MaxAttempts,
		cfg.Fetch.ParseTimeout(),
	)
}

func buildNotifier(cfg *config.Config) *alert.Notifier {
	var senders []alert.Sender

	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		senders = append(senders, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL, cfg.Trends.Category, cfg.Alerts.Discord.Mention))
	}
	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		senders = append(senders, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		senders = append(senders, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	blocklist := alert.NewBlocklist(cfg.Alerts.BlockedKeywords)
	return alert.NewNotifier(senders, blocklist, cfg.Alerts.MaxAttempts, cfg.Alerts.ParseBackoff())
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.Init(cfg.Log.Level, cfg.Log.Format)

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	fetcher := buildFetcher(cfg)
	notifier := buildNotifier(cfg)
	tracker := server.NewTracker()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting trend watcher",
		"regions", cfg.Trends.Regions,
		"category", cfg.Trends.Category,
		"hours", cfg.Trends.Hours,
		"source", fetcher.Name(),
		"poll_interval", fmt.Sprintf("%s-%s", cfg.Poll.ParseIntervalMin(), cfg.Poll.ParseIntervalMax()),
	)

	if notifier.HasSenders() {
		if err := notifier.SendTest(ctx); err != nil {
			log.Warn("startup test notification failed", "error", err)
		}
	} else {
		log.Warn("no alert destinations configured, trends will only be stored")
	}

	sched := scheduler.New(
		db,
		fetcher,
		notifier,
		trend.NewDateKeyResolver(cfg.Trends.Timezone),
		tracker,
		cfg.Trends.Regions,
		cfg.Poll.ParseIntervalMin(),
		cfg.Poll.ParseIntervalMax(),
		cfg.Dedupe.ParseSweepInterval(),
	)

	srv := server.New(db, tracker, cfg.Trends.Regions, cfg.Poll.ParseIntervalMin(), cfg.Poll.ParseIntervalMax(), port)

	serverErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe(ctx)
		serverErr <- err
		// A bind failure must also stop the scheduler.
		cancel()
	}()

	schedErr := sched.Run(ctx)

	if err := <-serverErr; err != nil {
		return fmt.Errorf("health server: %w", err)
	}
	if schedErr != nil && !errors.Is(schedErr, context.Canceled) {
		return fmt.Errorf("scheduler: %w", schedErr)
	}

	log.Info("shutdown complete")
	return nil
}

func runTrends(jsonOutput bool, region string, limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	events, err := db.RecentEvents(context.Background(), strings.ToUpper(strings.TrimSpace(region)), limit)
	if err != nil {
		return fmt.Errorf("list trends: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}

	if len(events) == 0 {
		fmt.Println("no trend events stored yet (start the daemon with: trendnotify run)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tREGION\tTITLE\tVOLUME\tSTATUS\tFETCHED")
	for _, e := range events {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.Rank, e.Region, e.Title, e.SearchVolume, e.Status, e.FetchedAt.UTC().Format(time.RFC3339))
	}
	return w.Flush()
}

func runStats(jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	stats, err := db.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Printf("total events:       %d\n", stats.TotalEvents)
	fmt.Printf("active dedupe keys: %d\n", stats.ActiveDedupeKeys)
	if len(stats.EventsByRegion) > 0 {
		regions := make([]string, 0, len(stats.EventsByRegion))
		for r := range stats.EventsByRegion {
			regions = append(regions, r)
		}
		sort.Strings(regions)
		fmt.Println("events by region:")
		for _, r := range regions {
			fmt.Printf("  %s: %d\n", r, stats.EventsByRegion[r])
		}
	}
	return nil
}

func runSweep() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	removed, err := db.SweepExpired(context.Background())
	if err != nil {
		return fmt.Errorf("sweep dedupe entries: %w", err)
	}

	fmt.Printf("removed %d expired dedupe entries\n", removed)
	return nil
}

func runTest() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	notifier := buildNotifier(cfg)
	if !notifier.HasSenders() {
		return errors.New("no alert destinations configured (set DISCORD_WEBHOOK_URL or enable one in config.yaml)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := notifier.SendTest(ctx); err != nil {
		return fmt.Errorf("test notification: %w", err)
	}

	fmt.Println("test notification delivered")
	return nil
}
