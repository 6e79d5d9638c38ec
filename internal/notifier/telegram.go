// Package notifier reports run outcomes to operators over Telegram.
// Reporting is optional and best-effort: a notification failure never
// changes the run's outcome.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/KevanReatha/flight-price-tracker/internal/pipeline"
)

const defaultAPIBase = "https://api.telegram.org"

// Telegram sends messages via the Telegram Bot API.
type Telegram struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
	logger   *logrus.Logger
}

// NewTelegram creates a notifier. Returns nil when no token is configured,
// and callers treat a nil notifier as "reporting disabled".
func NewTelegram(botToken, chatID string, logger *logrus.Logger) *Telegram {
	if botToken == "" || chatID == "" {
		return nil
	}
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// Report formats and sends the run report.
func (t *Telegram) Report(ctx context.Context, report pipeline.Report) {
	if t == nil {
		return
	}

	prefix := "✅"
	if report.Failed() {
		prefix = "❌"
	} else if report.Outcome == pipeline.OutcomeSkipped {
		prefix = "⏭"
	}

	// Summaries carry raw error text; it must be escaped or Telegram
	// rejects the HTML-parsed message.
	text := fmt.Sprintf("%s <b>flight-price-tracker: %s</b>\n\n%s", prefix, report.Outcome, html.EscapeString(report.Summary()))
	if err := t.send(ctx, text); err != nil {
		t.logger.Warnf("Failed to send run report: %v", err)
	}
}

func (t *Telegram) send(ctx context.Context, text string) error {
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	payload, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram API status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
