package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"taize-events/internal/metrics"
	"taize-events/internal/models"
	"taize-events/internal/notify"
	"taize-events/internal/seed"
	"taize-events/internal/sheets"
	"taize-events/internal/state"
	"taize-events/internal/store"
	"taize-events/internal/util"
)

type Trigger string

const (
	Manual   Trigger = "manual"
	Periodic Trigger = "periodic"
	Startup  Trigger = "startup"
)

const DefaultInterval = 6 * time.Hour

// ErrEmptyImport means the sheet gave nothing usable; the local collection
// was left alone.
var ErrEmptyImport = errors.New("sheets import returned no events")

const (
	msgSynced      = "Синхронізовано %d подій з Google Sheets"
	msgSheetsEmpty = "Google Sheets таблиця порожня або недоступна"
	msgSyncFailed  = "Помилка синхронізації з Google Sheets"
	msgDisabled    = "Google Sheets інтеграція вимкнена"
	msgEnabled     = "Google Sheets інтеграція увімкнена"
	msgCorrupt     = "Помилка завантаження даних. Використовуються приклади."
	msgNeverSynced = "Ще не синхронізовано"
)

// Importer is the part of the sheets importer the synchronizer drives.
type Importer interface {
	Import(ctx context.Context) ([]models.Event, error)
	Enabled() bool
	SetEnabled(on bool)
	CacheStatus(ctx context.Context) models.CacheStatus
}

type Deps struct {
	Store    *store.Store
	Importer Importer
	State    *state.State
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Clock    func() time.Time
	Interval time.Duration
	// Defaults supplies the fallback collection; seed.Defaults when nil.
	Defaults func(now time.Time) []models.Event
}

type Result struct {
	RunID   string    `json:"run_id"`
	Trigger Trigger   `json:"trigger"`
	Count   int       `json:"count"`
	Dropped int       `json:"dropped"`
	At      time.Time `json:"at"`
	Shared  bool      `json:"shared"`
}

type BootResult struct {
	Mode      string `json:"mode"`   // cold, warm, corrupt
	Source    string `json:"source"` // sheets, defaults, store
	Count     int    `json:"count"`
	Dropped   int    `json:"dropped"`
	StaleSync bool   `json:"stale_sync"`
}

// Syncer decides when to pull from the sheet and reconciles the result with
// the local store by full replacement.
type Syncer struct {
	d Deps

	group   singleflight.Group
	syncing atomic.Bool

	mu      sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	baseCtx context.Context
	cancel  context.CancelFunc
	bg      sync.WaitGroup
}

func New(d Deps) *Syncer {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Interval <= 0 {
		d.Interval = DefaultInterval
	}
	if d.Defaults == nil {
		d.Defaults = seed.Defaults
	}
	d.Logger = d.Logger.Named("syncer")
	ctx, cancel := context.WithCancel(context.Background())
	return &Syncer{d: d, baseCtx: ctx, cancel: cancel}
}

// Bootstrap fills the state from the local store, falling back to the sheet
// and then to the built-in defaults.
func (s *Syncer) Bootstrap(ctx context.Context) (BootResult, error) {
	log := s.d.Logger
	now := s.d.Clock()

	events, err := s.d.Store.Load(ctx)
	var perr *store.PersistenceError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return s.coldStart(ctx)

	case errors.As(err, &perr):
		log.Error("local store unreadable, using defaults", zap.Error(err))
		defaults := s.d.Defaults(now)
		s.notify(ctx, msgCorrupt, notify.Error)
		if serr := s.d.Store.Save(ctx, defaults); serr != nil {
			log.Error("save defaults", zap.Error(serr))
		}
		dropped := s.d.State.Replace(defaults, "bootstrap")
		s.d.Metrics.SetStored(s.d.State.Len())
		return BootResult{Mode: "corrupt", Source: "defaults", Count: s.d.State.Len(), Dropped: dropped}, nil

	case err != nil:
		return BootResult{}, err
	}

	dropped := s.d.State.Replace(events, "bootstrap")
	if dropped > 0 {
		log.Warn("incomplete records dropped", zap.Int("dropped", dropped))
	}
	s.d.Metrics.SetStored(s.d.State.Len())
	res := BootResult{Mode: "warm", Source: "store", Count: s.d.State.Len(), Dropped: dropped}

	last, ok, lerr := s.d.Store.LastSync(ctx)
	if lerr != nil {
		log.Warn("read last sync", zap.Error(lerr))
	}
	if !ok || now.Sub(last) > s.d.Interval {
		res.StaleSync = true
		s.bg.Add(1)
		go func() {
			defer s.bg.Done()
			_, _ = s.Sync(s.baseCtx, Startup)
		}()
	}
	log.Info("bootstrap",
		zap.String("mode", res.Mode),
		zap.Int("events", res.Count),
		zap.Bool("stale_sync", res.StaleSync))
	return res, nil
}

func (s *Syncer) coldStart(ctx context.Context) (BootResult, error) {
	log := s.d.Logger
	now := s.d.Clock()
	res := BootResult{Mode: "cold"}

	var events []models.Event
	if s.d.Importer != nil && s.d.Importer.Enabled() {
		imported, err := s.d.Importer.Import(ctx)
		if err != nil {
			log.Warn("first load from sheets failed", zap.Error(err))
		}
		events, res.Dropped = models.FilterComplete(imported)
	}

	if len(events) > 0 {
		res.Source = "sheets"
		if err := s.d.Store.SetLastSync(ctx, now); err != nil {
			log.Warn("set last sync", zap.Error(err))
		}
	} else {
		res.Source = "defaults"
		events = s.d.Defaults(now)
	}

	if err := s.d.Store.Save(ctx, events); err != nil {
		log.Error("save initial collection", zap.Error(err))
	}
	s.d.State.Replace(events, "bootstrap")
	s.d.Metrics.SetStored(s.d.State.Len())
	res.Count = s.d.State.Len()
	log.Info("bootstrap", zap.String("mode", res.Mode), zap.String("source", res.Source), zap.Int("events", res.Count))
	return res, nil
}

// Sync pulls the sheet and replaces the local collection. Calls that
// arrive while a sync is running wait for it and share its result.
func (s *Syncer) Sync(ctx context.Context, trigger Trigger) (Result, error) {
	v, err, shared := s.group.Do("sync", func() (any, error) {
		return s.run(ctx, trigger)
	})
	res, _ := v.(Result)
	res.Shared = shared
	return res, err
}

func (s *Syncer) run(ctx context.Context, trigger Trigger) (Result, error) {
	s.syncing.Store(true)
	defer s.syncing.Store(false)

	start := s.d.Clock()
	res := Result{RunID: uuid.NewString(), Trigger: trigger, At: start}
	log := s.d.Logger.With(zap.String("run_id", res.RunID), zap.String("trigger", string(trigger)))

	fail := func(err error, label string) (Result, error) {
		s.d.Metrics.ObserveSync(string(trigger), label, s.d.Clock().Sub(start))
		log.Warn("sync failed", zap.Error(err))
		if trigger == Manual {
			switch {
			case errors.Is(err, ErrEmptyImport):
				s.notify(ctx, msgSheetsEmpty, notify.Warning)
			case errors.Is(err, sheets.ErrDisabled):
				s.notify(ctx, msgDisabled, notify.Warning)
			default:
				s.notify(ctx, msgSyncFailed, notify.Error)
			}
		}
		return res, err
	}

	if s.d.Importer == nil {
		return fail(ErrEmptyImport, "empty")
	}
	imported, err := s.d.Importer.Import(ctx)
	if err != nil {
		return fail(fmt.Errorf("import: %w", err), "error")
	}
	events, dropped := models.FilterComplete(imported)
	res.Dropped = dropped
	if len(events) == 0 {
		return fail(ErrEmptyImport, "empty")
	}

	if err := s.d.Store.Backup(ctx, s.prior(ctx)); err != nil {
		return fail(fmt.Errorf("backup: %w", err), "error")
	}
	if err := s.d.Store.Save(ctx, events); err != nil {
		return fail(fmt.Errorf("persist: %w", err), "error")
	}
	if err := s.d.Store.SetLastSync(ctx, s.d.Clock()); err != nil {
		log.Error("set last sync", zap.Error(err))
	}
	s.d.State.Replace(events, "sync:"+string(trigger))

	res.Count = len(events)
	s.d.Metrics.ObserveSync(string(trigger), "ok", s.d.Clock().Sub(start))
	s.d.Metrics.SetStored(res.Count)
	log.Info("sync done", zap.Int("events", res.Count), zap.Int("dropped", dropped))

	sev := notify.Info
	if trigger == Manual {
		sev = notify.Success
	}
	s.notify(ctx, fmt.Sprintf(msgSynced, res.Count), sev)
	return res, nil
}

// prior is the collection a sync is about to overwrite. The store is read
// first since the state may not be bootstrapped yet.
func (s *Syncer) prior(ctx context.Context) []models.Event {
	events, err := s.d.Store.Load(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.d.Logger.Warn("read collection for backup", zap.Error(err))
		}
		return s.d.State.Events()
	}
	return events
}

func (s *Syncer) notify(ctx context.Context, msg string, sev notify.Severity) {
	if err := s.d.Notifier.Notify(ctx, msg, sev); err != nil {
		s.d.Logger.Warn("notify failed", zap.String("notifier", s.d.Notifier.Name()), zap.Error(err))
	}
}

// Start schedules the periodic sync. Calling it again is a no-op.
func (s *Syncer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}
	c := cron.New()
	id, err := c.AddFunc("@every "+s.d.Interval.String(), func() {
		_, _ = s.Sync(s.baseCtx, Periodic)
	})
	if err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.entry = id
	s.d.Logger.Info("periodic sync started", zap.Duration("interval", s.d.Interval))
	return nil
}

// Stop halts the periodic sync and waits for running syncs. Safe to call
// without Start.
func (s *Syncer) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		s.d.Logger.Info("periodic sync stopped")
	}
	s.bg.Wait()
}

// Close stops the scheduler and cancels in-flight periodic and startup runs.
func (s *Syncer) Close() {
	s.cancel()
	s.Stop()
}

func (s *Syncer) Status(ctx context.Context) models.SyncStatus {
	st := models.SyncStatus{
		LastSyncHuman: msgNeverSynced,
		Interval:      s.d.Interval.String(),
		EventCount:    s.d.State.Len(),
		Syncing:       s.syncing.Load(),
	}
	if last, ok, err := s.d.Store.LastSync(ctx); err == nil && ok {
		st.LastSync = &last
		st.LastSyncHuman = util.SinceHuman(s.d.Clock().Sub(last))
	}
	if s.d.Importer != nil {
		st.SheetsEnabled = s.d.Importer.Enabled()
		st.Cache = s.d.Importer.CacheStatus(ctx)
	}

	s.mu.Lock()
	if s.cron != nil {
		st.Periodic = true
		if next := s.cron.Entry(s.entry).Next; !next.IsZero() {
			st.NextSync = &next
		}
	}
	s.mu.Unlock()
	return st
}

// ToggleSheets flips the importer switch, persists it and reports the new
// value.
func (s *Syncer) ToggleSheets(ctx context.Context) (bool, error) {
	if s.d.Importer == nil {
		return false, errors.New("sheets importer not configured")
	}
	on := !s.d.Importer.Enabled()
	if err := s.d.Store.SetSheetsEnabled(ctx, on); err != nil {
		return !on, err
	}
	s.d.Importer.SetEnabled(on)
	if on {
		s.notify(ctx, msgEnabled, notify.Success)
	} else {
		s.notify(ctx, msgDisabled, notify.Warning)
	}
	return on, nil
}
