package tgbot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"taize-events/internal/config"
	"taize-events/internal/export"
	"taize-events/internal/models"
	"taize-events/internal/notify"
	"taize-events/internal/syncer"
)

// Sender is the part of the Bot API the bot writes through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Syncer interface {
	Sync(ctx context.Context, trigger syncer.Trigger) (syncer.Result, error)
	Status(ctx context.Context) models.SyncStatus
}

type Events interface {
	Events() []models.Event
}

// Bot is the admin channel: it answers /sync, /status and /stats and relays
// sync notifications to the admin chats.
type Bot struct {
	api    *tgbotapi.BotAPI
	send   Sender
	admins map[int64]bool
	sync   Syncer
	events Events
	log    *zap.Logger
	now    func() time.Time
}

// New connects to the Bot API. The bot is a notifier for the syncer it
// drives, so the syncer is attached afterwards with Attach.
func New(cfg config.TelegramConfig, events Events, log *zap.Logger) (*Bot, error) {
	b, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	b.Debug = false
	bot := newBot(b, cfg.AdminIDs, nil, events, log)
	bot.api = b
	return bot, nil
}

// Attach sets the syncer behind /sync and /status. Call it before Run.
func (b *Bot) Attach(s Syncer) {
	b.sync = s
}

func newBot(send Sender, admins map[int64]bool, s Syncer, events Events, log *zap.Logger) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{
		send:   send,
		admins: admins,
		sync:   s,
		events: events,
		log:    log.Named("tgbot"),
		now:    time.Now,
	}
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd := <-updates:
			if upd.Message != nil {
				if err := b.handleMessage(ctx, upd.Message); err != nil {
					b.log.Warn("handle message", zap.Error(err))
				}
			} else if upd.CallbackQuery != nil {
				if err := b.handleCallback(ctx, upd.CallbackQuery); err != nil {
					b.log.Warn("handle callback", zap.Error(err))
				}
			}
		}
	}
}

func (b *Bot) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.send.Send(msg)
	return err
}

func (b *Bot) isAdmin(tgID int64) bool {
	return b.admins[tgID]
}

// ---------- notify.Notifier ----------

func (b *Bot) Name() string { return "telegram" }

var severityIcon = map[notify.Severity]string{
	notify.Success: "✅",
	notify.Info:    "ℹ️",
	notify.Warning: "⚠️",
	notify.Error:   "❌",
}

// Notify sends the message to every admin chat.
func (b *Bot) Notify(ctx context.Context, message string, sev notify.Severity) error {
	text := message
	if icon, ok := severityIcon[sev]; ok {
		text = icon + " " + message
	}
	var firstErr error
	for id := range b.admins {
		if err := b.SendText(id, text); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("telegram chat %d: %w", id, err)
		}
	}
	return firstErr
}

// ---------- Message handling ----------

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) error {
	if m.From == nil {
		return nil
	}
	tgID := m.From.ID
	chatID := m.Chat.ID
	txt := strings.TrimSpace(m.Text)

	if !b.isAdmin(tgID) {
		return b.SendText(chatID, "Доступ заборонено.")
	}
	if b.sync == nil {
		return b.SendText(chatID, "Синхронізація ще не готова.")
	}

	switch {
	case strings.HasPrefix(txt, "/sync"):
		return b.runSync(ctx, chatID)
	case strings.HasPrefix(txt, "/status"):
		return b.showStatus(ctx, chatID)
	case strings.HasPrefix(txt, "/stats"):
		return b.showStats(chatID)
	default:
		return b.showMenu(chatID)
	}
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	// ack
	_, _ = b.send.Request(tgbotapi.NewCallback(q.ID, ""))

	chatID := q.From.ID
	if q.Message != nil && q.Message.Chat != nil {
		chatID = q.Message.Chat.ID
	}
	if !b.isAdmin(q.From.ID) {
		return b.SendText(chatID, "Доступ заборонено.")
	}
	if b.sync == nil {
		return b.SendText(chatID, "Синхронізація ще не готова.")
	}
	switch q.Data {
	case "a:sync":
		return b.runSync(ctx, chatID)
	case "a:status":
		return b.showStatus(ctx, chatID)
	case "a:stats":
		return b.showStats(chatID)
	}
	return nil
}

func (b *Bot) showMenu(chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "🕊️ Панель адміністратора подій Тезе")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Синхронізувати", "a:sync"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Статус", "a:status"),
			tgbotapi.NewInlineKeyboardButtonData("📈 Статистика", "a:stats"),
		),
	)
	_, err := b.send.Send(msg)
	return err
}

// runSync starts a manual sync; its outcome reaches the chat through Notify.
func (b *Bot) runSync(ctx context.Context, chatID int64) error {
	if err := b.SendText(chatID, "🔄 Синхронізація з Google Sheets..."); err != nil {
		return err
	}
	res, err := b.sync.Sync(ctx, syncer.Manual)
	if err != nil {
		b.log.Info("manual sync from telegram failed", zap.Int64("chat", chatID), zap.Error(err))
		return nil
	}
	b.log.Info("manual sync from telegram", zap.Int64("chat", chatID), zap.String("run_id", res.RunID))
	return nil
}

func (b *Bot) showStatus(ctx context.Context, chatID int64) error {
	return b.SendText(chatID, FormatStatus(b.sync.Status(ctx)))
}

func (b *Bot) showStats(chatID int64) error {
	st := export.Statistics(b.events.Events(), b.now())
	return b.SendText(chatID, FormatStats(st))
}

func FormatStatus(st models.SyncStatus) string {
	sheets := "вимкнено"
	if st.SheetsEnabled {
		sheets = "увімкнено"
	}
	next := "—"
	if st.NextSync != nil {
		next = st.NextSync.Local().Format("02.01.2006 15:04")
	}
	var sb strings.Builder
	sb.WriteString("📊 Статус синхронізації\n")
	fmt.Fprintf(&sb, "Остання: %s\n", st.LastSyncHuman)
	fmt.Fprintf(&sb, "Наступна: %s\n", next)
	fmt.Fprintf(&sb, "Подій: %d\n", st.EventCount)
	fmt.Fprintf(&sb, "Google Sheets: %s\n", sheets)
	fmt.Fprintf(&sb, "Кеш: %s", st.Cache.Summary)
	return sb.String()
}

func FormatStats(st export.Stats) string {
	var sb strings.Builder
	sb.WriteString("📈 Статистика подій\n")
	fmt.Fprintf(&sb, "Всього подій: %d\n", st.Total)
	fmt.Fprintf(&sb, "Минулі події: %d\n", st.Past)
	fmt.Fprintf(&sb, "Майбутні події: %d\n", st.Future)
	fmt.Fprintf(&sb, "Події поточного року: %d\n", st.CurrentYear)
	fmt.Fprintf(&sb, "Події з фотографіями: %d", st.WithPhotos)
	for _, c := range st.Locations {
		fmt.Fprintf(&sb, "\n• %s: %d", c.Label, c.Count)
	}
	return sb.String()
}
