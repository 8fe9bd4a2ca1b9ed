package tgbot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taize-events/internal/models"
	"taize-events/internal/notify"
	"taize-events/internal/syncer"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests int
	fail     bool
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return tgbotapi.Message{}, errors.New("telegram down")
	}
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

type fakeSyncer struct {
	calls  int
	status models.SyncStatus
	err    error
}

func (f *fakeSyncer) Sync(ctx context.Context, trigger syncer.Trigger) (syncer.Result, error) {
	f.calls++
	return syncer.Result{RunID: "run-1", Trigger: trigger}, f.err
}

func (f *fakeSyncer) Status(ctx context.Context) models.SyncStatus { return f.status }

type fixedEvents []models.Event

func (e fixedEvents) Events() []models.Event { return e }

func newTestBot(s *fakeSyncer, events fixedEvents) (*Bot, *fakeSender) {
	snd := &fakeSender{}
	b := newBot(snd, map[int64]bool{1: true}, s, events, nil)
	b.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.Local) }
	return b, snd
}

func msg(from int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{From: &tgbotapi.User{ID: from}, Chat: &tgbotapi.Chat{ID: from}, Text: text}
}

func TestNonAdminIsRejected(t *testing.T) {
	s := &fakeSyncer{}
	b, snd := newTestBot(s, nil)

	if err := b.handleMessage(context.Background(), msg(42, "/sync")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if s.calls != 0 {
		t.Fatalf("sync calls=%d want=0", s.calls)
	}
	if len(snd.sent) != 1 || snd.sent[0].ChatID != 42 || snd.sent[0].Text != "Доступ заборонено." {
		t.Fatalf("sent=%+v", snd.sent)
	}
}

func TestSyncCommandRunsManualSync(t *testing.T) {
	s := &fakeSyncer{}
	b, snd := newTestBot(s, nil)

	if err := b.handleMessage(context.Background(), msg(1, "/sync")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if s.calls != 1 {
		t.Fatalf("sync calls=%d want=1", s.calls)
	}
	if len(snd.sent) != 1 || !strings.Contains(snd.sent[0].Text, "Синхронізація") {
		t.Fatalf("sent=%+v", snd.sent)
	}
}

func TestSyncFailureIsNotAHandlerError(t *testing.T) {
	s := &fakeSyncer{err: syncer.ErrEmptyImport}
	b, _ := newTestBot(s, nil)

	if err := b.handleMessage(context.Background(), msg(1, "/sync")); err != nil {
		t.Fatalf("handle: %v", err)
	}
}

func TestStatusCommand(t *testing.T) {
	s := &fakeSyncer{status: models.SyncStatus{
		LastSyncHuman: "Ще не синхронізовано",
		SheetsEnabled: true,
		EventCount:    7,
		Cache:         models.CacheStatus{Summary: "Кеш порожній"},
	}}
	b, snd := newTestBot(s, nil)

	if err := b.handleMessage(context.Background(), msg(1, "/status")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	txt := snd.sent[0].Text
	for _, want := range []string{"Ще не синхронізовано", "Подій: 7", "увімкнено", "Кеш порожній"} {
		if !strings.Contains(txt, want) {
			t.Fatalf("status text %q missing %q", txt, want)
		}
	}
}

func TestStatsCommand(t *testing.T) {
	events := fixedEvents{
		{ID: 1, Title: "A", Date: "2025-01-10T10:00", Location: "Київ", Lat: 50, Lng: 30, Photos: []string{"https://x/1.jpg"}},
		{ID: 2, Title: "B", Date: "2025-09-10T10:00", Location: "Київ", Lat: 50, Lng: 30},
	}
	b, snd := newTestBot(&fakeSyncer{}, events)

	if err := b.handleMessage(context.Background(), msg(1, "/stats")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	txt := snd.sent[0].Text
	for _, want := range []string{"Всього подій: 2", "Минулі події: 1", "Майбутні події: 1", "Київ: 2"} {
		if !strings.Contains(txt, want) {
			t.Fatalf("stats text %q missing %q", txt, want)
		}
	}
}

func TestUnknownCommandShowsMenu(t *testing.T) {
	b, snd := newTestBot(&fakeSyncer{}, nil)

	if err := b.handleMessage(context.Background(), msg(1, "/start")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(snd.sent) != 1 {
		t.Fatalf("sent=%d want=1", len(snd.sent))
	}
	kb, ok := snd.sent[0].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(kb.InlineKeyboard) != 2 {
		t.Fatalf("markup=%#v", snd.sent[0].ReplyMarkup)
	}
}

func TestCallbackIsAcknowledged(t *testing.T) {
	s := &fakeSyncer{}
	b, snd := newTestBot(s, nil)
	q := &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: 1},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 99}},
		Data:    "a:sync",
	}

	if err := b.handleCallback(context.Background(), q); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if snd.requests != 1 {
		t.Fatalf("acks=%d want=1", snd.requests)
	}
	if s.calls != 1 {
		t.Fatalf("sync calls=%d want=1", s.calls)
	}
	if snd.sent[0].ChatID != 99 {
		t.Fatalf("chat=%d want=99", snd.sent[0].ChatID)
	}
}

func TestNotifyReachesEveryAdmin(t *testing.T) {
	snd := &fakeSender{}
	b := newBot(snd, map[int64]bool{1: true, 2: true}, &fakeSyncer{}, fixedEvents{}, nil)

	if err := b.Notify(context.Background(), "Синхронізовано 3 подій з Google Sheets", notify.Success); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(snd.sent) != 2 {
		t.Fatalf("sent=%d want=2", len(snd.sent))
	}
	for _, m := range snd.sent {
		if !strings.HasPrefix(m.Text, "✅ ") {
			t.Fatalf("text=%q", m.Text)
		}
	}
}

func TestNotifyReportsSendError(t *testing.T) {
	snd := &fakeSender{fail: true}
	b := newBot(snd, map[int64]bool{1: true}, &fakeSyncer{}, fixedEvents{}, nil)

	if err := b.Notify(context.Background(), "x", notify.Error); err == nil {
		t.Fatal("expected error")
	}
}

func TestUnattachedBotAnswersNotReady(t *testing.T) {
	snd := &fakeSender{}
	b := newBot(snd, map[int64]bool{1: true}, nil, fixedEvents{}, nil)

	if err := b.handleMessage(context.Background(), msg(1, "/sync")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(snd.sent) != 1 || !strings.Contains(snd.sent[0].Text, "не готова") {
		t.Fatalf("sent=%+v", snd.sent)
	}
}
