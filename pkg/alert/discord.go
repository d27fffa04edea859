package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DimasIb47/google-trend-notification/pkg/trend"
)

// geoDisplay maps region codes to a country name and flag for the watched
// markets. Unknown regions fall back to the raw code and a globe.
var geoDisplay = map[string][2]string{
	"US": {"United States", "🇺🇸"},
	"GB": {"United Kingdom", "🇬🇧"},
	"ID": {"Indonesia", "🇮🇩"},
}

// categoryNames labels the Google Trends category IDs this service is
// normally pointed at.
var categoryNames = map[int]string{
	6: "Games",
}

// Discord sends trend notifications via Discord webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
	category   int
	mention    string
}

// NewDiscord creates a Discord sender. mention, when non-empty, is prepended
// to the message content (e.g. "<@123456>" or "@here").
func NewDiscord(webhookURL string, category int, mention string) *Discord {
	return &Discord{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
		category:   category,
		mention:    mention,
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, rec *trend.Record) error {
	return d.post(ctx, d.buildMessage(rec))
}

// SendTest posts a plain verification message so a misconfigured webhook
// fails at startup instead of on the first trend.
func (d *Discord) SendTest(ctx context.Context) error {
	return d.post(ctx, map[string]any{
		"content": "🧪 **Test Message**\n\nGoogle Trends notification service is online.\n\n✅ Webhook connection verified.",
	})
}

// buildMessage renders the content preview (what the notification bar shows)
// plus a rich embed.
func (d *Discord) buildMessage(rec *trend.Record) map[string]any {
	display, ok := geoDisplay[rec.Region]
	if !ok {
		display = [2]string{rec.Region, "🌐"}
	}
	countryName, flag := display[0], display[1]

	active := rec.Status == trend.StatusActive
	statusEmoji, statusText := "🟢", "TRENDING"
	if !active {
		statusEmoji, statusText = "⚫", "Ended"
	}

	volumeStr := rec.SearchVolume
	if rec.GrowthPercent != "" {
		volumeStr += " " + rec.GrowthPercent
	}
	preview := fmt.Sprintf("🔥 **%s**\n📊 %s | ⏰ %s\n%s %s | %s %s",
		rec.Title, volumeStr, rec.StartedTime, statusEmoji, statusText, flag, rec.Region)
	if d.mention != "" {
		preview = d.mention + "\n" + preview
	}

	var lines []string
	if rec.SearchVolume != "" {
		vol := rec.SearchVolume
		if rec.GrowthPercent != "" {
			vol += fmt.Sprintf(" (%s)", rec.GrowthPercent)
		}
		lines = append(lines, "📊 **Volume:** "+vol)
	}
	if rec.StartedTime != "" {
		lines = append(lines, "⏰ **Started:** "+rec.StartedTime)
	}
	if rec.Duration != "" {
		lines = append(lines, "⏱️ **Duration:** "+rec.Duration)
	}
	lines = append(lines, fmt.Sprintf("%s **Status:** %s", statusEmoji, statusText))
	if len(rec.RelatedQueries) > 0 {
		limit := 3
		if len(rec.RelatedQueries) < limit {
			limit = len(rec.RelatedQueries)
		}
		lines = append(lines, "🔗 **Related:** "+strings.Join(rec.RelatedQueries[:limit], ", "))
	}

	color := 0xFF6B35
	if !active {
		color = 0x6B7280
	}

	embed := map[string]any{
		"title":       fmt.Sprintf("🔥 %s", rec.Title),
		"description": strings.Join(lines, "\n"),
		"color":       color,
		"fields": []map[string]any{
			{"name": "📍 Region", "value": fmt.Sprintf("%s %s", flag, countryName), "inline": true},
			{"name": "🏆 Rank", "value": fmt.Sprintf("#%d", rec.Rank), "inline": true},
			{"name": "🎮 Category", "value": d.categoryLabel(), "inline": true},
		},
		"footer": map[string]any{
			"text": "Google Trends Alert • De-duplicated per day",
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       fmt.Sprintf("https://trends.google.com/trending?geo=%s&category=%d", rec.Region, d.category),
	}

	return map[string]any{
		"content": preview,
		"embeds":  []map[string]any{embed},
	}
}

func (d *Discord) categoryLabel() string {
	if name, ok := categoryNames[d.category]; ok {
		return name
	}
	return strconv.Itoa(d.category)
}

func (d *Discord) post(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook: %w", newStatusError(resp))
	}
	return nil
}
