package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/KevanReatha/flight-price-tracker/internal/pipeline"
)

func TestNewTelegramDisabledWithoutCredentials(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	if tg := NewTelegram("", "", logger); tg != nil {
		t.Error("Expected nil notifier without a token")
	}
	if tg := NewTelegram("token", "", logger); tg != nil {
		t.Error("Expected nil notifier without a chat id")
	}

	// A nil notifier must be safe to call - reporting is optional.
	var tg *Telegram
	tg.Report(context.Background(), pipeline.Report{Outcome: pipeline.OutcomeSucceeded})
}

func TestReportEscapesErrorText(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("Decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegram("token", "chat", logger)
	tg.apiBase = srv.URL

	tg.Report(context.Background(), pipeline.Report{
		Outcome:  pipeline.OutcomeFailed,
		Attempts: 1,
		Err:      errors.New(`copy "raw" <stdin> & friends`),
	})

	if got == nil {
		t.Fatal("Expected a sendMessage call")
	}
	if got["parse_mode"] != "HTML" {
		t.Errorf("parse_mode = %q, want HTML", got["parse_mode"])
	}
	text := got["text"]
	if strings.Contains(text, "<stdin>") {
		t.Errorf("Error text not escaped: %q", text)
	}
	if !strings.Contains(text, "&lt;stdin&gt; &amp; friends") {
		t.Errorf("Expected escaped error text, got %q", text)
	}
	// The formatting markup itself must survive escaping.
	if !strings.Contains(text, "<b>") {
		t.Errorf("Expected bold header markup, got %q", text)
	}
}
