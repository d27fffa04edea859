package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/DimasIb47/google-trend-notification/pkg/trend"
)

// Slack sends trend notifications via Slack incoming webhook.
type Slack struct {
	client     *http.Client
	webhookURL string
}

// NewSlack creates a Slack sender.
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, rec *trend.Record) error {
	statusText := "TRENDING"
	if rec.Status != trend.StatusActive {
		statusText = "Ended"
	}

	var details []string
	if rec.SearchVolume != "" {
		vol := rec.SearchVolume
		if rec.GrowthPercent != "" {
			vol += fmt.Sprintf(" (%s)", rec.GrowthPercent)
		}
		details = append(details, "*Volume:* "+vol)
	}
	if rec.StartedTime != "" {
		details = append(details, "*Started:* "+rec.StartedTime)
	}
	details = append(details, "*Status:* "+statusText)

	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type": "plain_text",
				"text": fmt.Sprintf("🔥 %s", rec.Title),
			},
		},
		{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Region:* %s | *Rank:* #%d\n%s",
					rec.Region, rec.Rank, strings.Join(details, "\n")),
			},
		},
	}

	if len(rec.RelatedQueries) > 0 {
		blocks = append(blocks, map[string]any{
			"type": "context",
			"elements": []map[string]any{
				{
					"type": "mrkdwn",
					"text": "Related: " + strings.Join(rec.RelatedQueries, ", "),
				},
			},
		})
	}

	return s.post(ctx, map[string]any{"blocks": blocks})
}

func (s *Slack) SendTest(ctx context.Context) error {
	return s.post(ctx, map[string]any{
		"text": "🧪 Google Trends notification service is online.",
	})
}

func (s *Slack) post(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook: %w", newStatusError(resp))
	}
	return nil
}
