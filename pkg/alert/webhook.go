package alert

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/DimasIb47/google-trend-notification/pkg/trend"
)

// Webhook sends trend notifications to a generic HTTP endpoint as JSON.
type Webhook struct {
	client *http.Client
	url    string
	secret string
}

// NewWebhook creates a generic webhook sender. When secret is non-empty each
// request carries an HMAC-SHA256 signature of the body.
func NewWebhook(url, secret string) *Webhook {
	return &Webhook{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
		secret: secret,
	}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, rec *trend.Record) error {
	return w.post(ctx, map[string]any{
		"event": "trend.new",
		"sent":  time.Now().UTC().Format(time.RFC3339),
		"trend": rec,
	})
}

func (w *Webhook) SendTest(ctx context.Context) error {
	return w.post(ctx, map[string]any{
		"event": "test",
		"sent":  time.Now().UTC().Format(time.RFC3339),
	})
}

func (w *Webhook) post(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "trendnotify/1.0")

	// HMAC signature for receiver-side verification.
	if w.secret != "" {
		mac := hmac.New(sha256.New, []byte(w.secret))
		mac.Write(body)
		sig := hex.EncodeToString(mac.Sum(nil))
		req.Header.Set("X-Signature-256", "sha256="+sig)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: %w", newStatusError(resp))
	}
	return nil
}
