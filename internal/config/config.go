package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Poll     PollConfig     `yaml:"poll"`
	Trends   TrendsConfig   `yaml:"trends"`
	Dedupe   DedupeConfig   `yaml:"dedupe"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// PollConfig bounds the randomized per-region polling interval.
type PollConfig struct {
	IntervalMin string `yaml:"interval_min"`
	IntervalMax string `yaml:"interval_max"`
}

// ParseIntervalMin returns the lower poll bound as time.Duration.
func (p PollConfig) ParseIntervalMin() time.Duration {
	d, err := time.ParseDuration(p.IntervalMin)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// ParseIntervalMax returns the upper poll bound as time.Duration.
func (p PollConfig) ParseIntervalMax() time.Duration {
	d, err := time.ParseDuration(p.IntervalMax)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// TrendsConfig selects what to watch on Google Trends.
type TrendsConfig struct {
	Regions  []string `yaml:"regions"`
	Category int      `yaml:"category"`
	Hours    int      `yaml:"hours"`
	Timezone string   `yaml:"timezone"`
}

// DedupeConfig controls how long claimed trends stay suppressed.
type DedupeConfig struct {
	TTL           string `yaml:"ttl"`
	SweepInterval string `yaml:"sweep_interval"`
}

// ParseTTL returns the dedupe-entry lifetime.
func (d DedupeConfig) ParseTTL() time.Duration {
	v, err := time.ParseDuration(d.TTL)
	if err != nil {
		return 48 * time.Hour
	}
	return v
}

// ParseSweepInterval returns how often expired entries are removed.
func (d DedupeConfig) ParseSweepInterval() time.Duration {
	v, err := time.ParseDuration(d.SweepInterval)
	if err != nil {
		return time.Hour
	}
	return v
}

// FetchConfig selects and tunes the page fetcher.
type FetchConfig struct {
	Mode        string `yaml:"mode"` // "http" (batchexecute) or "rss"
	Language    string `yaml:"language"`
	Timeout     string `yaml:"timeout"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// ParseTimeout returns the per-attempt fetch timeout.
func (f FetchConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(f.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// AlertsConfig configures notification destinations and the retry policy.
type AlertsConfig struct {
	Discord         DiscordConfig `yaml:"discord"`
	Slack           SlackConfig   `yaml:"slack"`
	Webhook         WebhookConfig `yaml:"webhook"`
	MaxAttempts     int           `yaml:"max_attempts"`
	Backoff         string        `yaml:"backoff"`
	BlockedKeywords []string      `yaml:"blocked_keywords"`
}

// ParseBackoff returns the initial delivery-retry backoff.
func (a AlertsConfig) ParseBackoff() time.Duration {
	d, err := time.ParseDuration(a.Backoff)
	if err != nil {
		return time.Second
	}
	return d
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
	Mention    string `yaml:"mention"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the health/stats HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LogConfig configures process logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./data/trends.db"},
		Poll: PollConfig{
			IntervalMin: "60s",
			IntervalMax: "120s",
		},
		Trends: TrendsConfig{
			Regions:  []string{"US", "GB", "ID"},
			Category: 6,
			Hours:    24,
			Timezone: "Asia/Jakarta",
		},
		Dedupe: DedupeConfig{
			TTL:           "48h",
			SweepInterval: "1h",
		},
		Fetch: FetchConfig{
			Mode:        "http",
			Language:    "en",
			Timeout:     "30s",
			MaxAttempts: 3,
		},
		Alerts: AlertsConfig{
			MaxAttempts: 3,
			Backoff:     "1s",
		},
		Server: ServerConfig{Port: 8080},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.Trends.Regions = normalizeRegions(cfg.Trends.Regions)
	if len(cfg.Trends.Regions) == 0 {
		return nil, fmt.Errorf("config %s: no regions to monitor", path)
	}
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
// Setting a webhook URL also enables that destination.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRENDS_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("TRENDS_REGIONS"); v != "" {
		cfg.Trends.Regions = strings.Split(v, ",")
	}
	if v := os.Getenv("TRENDS_TIMEZONE"); v != "" {
		cfg.Trends.Timezone = v
	}
	if v := os.Getenv("TRENDS_HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := os.Getenv("DISCORD_MENTION"); v != "" {
		cfg.Alerts.Discord.Mention = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("ALERT_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Webhook.URL = v
		cfg.Alerts.Webhook.Enabled = true
	}
	if v := os.Getenv("ALERT_WEBHOOK_SECRET"); v != "" {
		cfg.Alerts.Webhook.Secret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// normalizeRegions uppercases region codes and drops blanks.
func normalizeRegions(regions []string) []string {
	out := make([]string, 0, len(regions))
	for _, r := range regions {
		r = strings.ToUpper(strings.TrimSpace(r))
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}
