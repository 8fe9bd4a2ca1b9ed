package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"taize-events/internal/config"
	"taize-events/internal/util"
)

type recorder struct {
	msgs []string
	err  error
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) Notify(ctx context.Context, message string, sev Severity) error {
	r.msgs = append(r.msgs, string(sev)+":"+message)
	return r.err
}

func TestWebhookNotifierSignsBody(t *testing.T) {
	var got WebhookPayload
	var sigOK bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		sigOK = r.Header.Get("X-Signature") == util.HMACSHA256Hex("s3cret", string(body))
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := &WebhookNotifier{
		URL:    srv.URL,
		Secret: "s3cret",
		HTTP:   srv.Client(),
		Now:    func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
	if err := n.Notify(context.Background(), "Синхронізовано 3 подій", Success); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if !sigOK {
		t.Fatal("signature mismatch")
	}
	if got.Message != "Синхронізовано 3 подій" || got.Severity != Success || got.SentAt != "2025-01-01T00:00:00Z" {
		t.Fatalf("payload=%+v", got)
	}
}

func TestWebhookNotifierStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := &WebhookNotifier{URL: srv.URL, HTTP: srv.Client()}
	if err := n.Notify(context.Background(), "x", Info); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestMultiDeliversToAll(t *testing.T) {
	a := &recorder{}
	b := &recorder{err: errors.New("down")}
	c := &recorder{}
	m := Multi{a, nil, b, c}

	err := m.Notify(context.Background(), "hello", Warning)
	if err == nil {
		t.Fatal("expected joined error")
	}
	for _, r := range []*recorder{a, b, c} {
		if len(r.msgs) != 1 || r.msgs[0] != "warning:hello" {
			t.Fatalf("msgs=%v", r.msgs)
		}
	}
}

func TestNewFromConfig(t *testing.T) {
	log := zap.NewNop()
	cases := map[string]string{"log": "log", "": "log", "none": "none", "webhook": "webhook"}
	for provider, want := range cases {
		n, err := NewFromConfig(config.NotifyConfig{Provider: provider, WebhookURL: "http://x"}, log)
		if err != nil {
			t.Fatalf("%q: %v", provider, err)
		}
		if n.Name() != want {
			t.Fatalf("%q: name=%q want=%q", provider, n.Name(), want)
		}
	}
	if _, err := NewFromConfig(config.NotifyConfig{Provider: "pigeon"}, log); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
