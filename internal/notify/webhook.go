package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"taize-events/internal/util"
)

// WebhookNotifier POSTs a JSON message. With a secret set, the body is
// signed in X-Signature as hex HMAC-SHA256.
type WebhookNotifier struct {
	URL    string
	Secret string
	HTTP   *http.Client
	Now    func() time.Time
}

type WebhookPayload struct {
	Event    string   `json:"event"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	SentAt   string   `json:"sent_at"`
}

func (w *WebhookNotifier) Name() string { return "webhook" }

func (w *WebhookNotifier) Notify(ctx context.Context, message string, sev Severity) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	b, err := json.Marshal(WebhookPayload{
		Event:    "events.notification",
		Message:  message,
		Severity: sev,
		SentAt:   util.ISO(now()),
	})
	if err != nil {
		return err
	}
	client := w.HTTP
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.Secret != "" {
		req.Header.Set("X-Signature", util.HMACSHA256Hex(w.Secret, string(b)))
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook http %d", resp.StatusCode)
	}
	return nil
}
