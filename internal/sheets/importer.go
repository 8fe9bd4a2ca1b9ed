package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"taize-events/internal/kv"
	"taize-events/internal/metrics"
	"taize-events/internal/models"
)

const (
	CacheKey        = "sheets:events"
	DefaultCacheTTL = 5 * time.Minute
)

// ErrDisabled is returned by Import while the importer is switched off.
var ErrDisabled = errors.New("sheets importer disabled")

type Options struct {
	SpreadsheetID string
	CacheTTL      time.Duration
	Cache         kv.Store
	Enabled       bool
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
	Now           func() time.Time
}

// Importer turns the remote sheet into events and keeps the last non-empty
// result for CacheTTL.
type Importer struct {
	src           RowSource
	cache         kv.Store
	ttl           time.Duration
	spreadsheetID string
	log           *zap.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
	enabled       atomic.Bool
}

type cacheEntry struct {
	Events    []models.Event `json:"events"`
	FetchedAt time.Time      `json:"fetched_at"`
}

func NewImporter(src RowSource, opts Options) *Importer {
	imp := &Importer{
		src:           src,
		cache:         opts.Cache,
		ttl:           opts.CacheTTL,
		spreadsheetID: opts.SpreadsheetID,
		log:           opts.Logger,
		metrics:       opts.Metrics,
		now:           opts.Now,
	}
	if imp.cache == nil {
		imp.cache = kv.NewMemoryStore()
	}
	if imp.ttl <= 0 {
		imp.ttl = DefaultCacheTTL
	}
	if imp.log == nil {
		imp.log = zap.NewNop()
	}
	if imp.now == nil {
		imp.now = time.Now
	}
	imp.enabled.Store(opts.Enabled)
	return imp
}

func (i *Importer) Enabled() bool { return i.enabled.Load() }

func (i *Importer) SetEnabled(on bool) { i.enabled.Store(on) }

// Import returns the sheet's events, from cache when fresh. Batch failures
// come back as *RemoteFetchError; bad rows are logged and skipped.
func (i *Importer) Import(ctx context.Context) ([]models.Event, error) {
	if !i.Enabled() {
		return []models.Event{}, ErrDisabled
	}
	if entry, ok := i.cached(ctx); ok {
		i.metrics.CacheHit()
		i.log.Debug("sheets cache hit", zap.Int("events", len(entry.Events)))
		return entry.Events, nil
	}

	events, err := i.fetch(ctx)
	if err != nil {
		i.metrics.Fetch("error")
		i.log.Error("sheets fetch failed", zap.Error(err))
		return []models.Event{}, err
	}
	if len(events) == 0 {
		i.metrics.Fetch("empty")
		i.log.Warn("sheets returned no events")
		return events, nil
	}
	i.metrics.Fetch("ok")
	i.store(ctx, events)
	i.log.Info("sheets events loaded", zap.Int("events", len(events)))
	return events, nil
}

// LoadEvents is Import with failures folded into an empty result.
func (i *Importer) LoadEvents(ctx context.Context) []models.Event {
	events, err := i.Import(ctx)
	if err != nil {
		return []models.Event{}
	}
	return events
}

// ForceLoadEvents drops the cache and loads again.
func (i *Importer) ForceLoadEvents(ctx context.Context) []models.Event {
	if err := i.ClearCache(ctx); err != nil {
		i.log.Warn("sheets cache clear failed", zap.Error(err))
	}
	return i.LoadEvents(ctx)
}

func (i *Importer) ClearCache(ctx context.Context) error {
	return i.cache.Delete(ctx, CacheKey)
}

func (i *Importer) CacheStatus(ctx context.Context) models.CacheStatus {
	entry, ok := i.readEntry(ctx)
	if !ok {
		return models.CacheStatus{Summary: "Кеш порожній"}
	}
	age := i.now().Sub(entry.FetchedAt)
	remaining := i.ttl - age
	st := models.CacheStatus{Cached: true, Age: age, Remaining: remaining}
	if remaining > 0 {
		st.Summary = "Кеш дійсний ще " + strconv.Itoa(int(remaining/time.Minute)) + " хв."
	} else {
		st.Summary = "Кеш застарілий"
	}
	return st
}

// TestConnection fetches the sheet once, bypassing the cache.
func (i *Importer) TestConnection(ctx context.Context) error {
	_, err := i.src.FetchRows(ctx)
	return err
}

func (i *Importer) SheetURL() string {
	return "https://docs.google.com/spreadsheets/d/" + i.spreadsheetID + "/edit"
}

func (i *Importer) FormatEventForSheet(ev models.Event) string {
	return FormatEventForSheet(ev, i.now())
}

func (i *Importer) fetch(ctx context.Context) ([]models.Event, error) {
	rows, err := i.src.FetchRows(ctx)
	if err != nil {
		var rerr *RemoteFetchError
		if !errors.As(err, &rerr) {
			err = &RemoteFetchError{Source: "sheets", Err: err}
		}
		return nil, err
	}

	now := i.now()
	events := make([]models.Event, 0, len(rows))
	for idx, row := range rows {
		if row == nil {
			continue
		}
		// row 1 is the header
		rowNumber := idx + 2
		ev, err := ParseRow(row, rowNumber, now)
		if err != nil {
			i.metrics.RowSkipped()
			i.log.Warn("sheets row skipped", zap.Int("row", rowNumber), zap.Error(err))
			continue
		}
		if ev == nil {
			continue
		}
		events = append(events, *ev)
	}
	return events, nil
}

func (i *Importer) cached(ctx context.Context) (cacheEntry, bool) {
	entry, ok := i.readEntry(ctx)
	if !ok || !i.now().Before(entry.FetchedAt.Add(i.ttl)) {
		return cacheEntry{}, false
	}
	return entry, true
}

func (i *Importer) readEntry(ctx context.Context) (cacheEntry, bool) {
	raw, ok, err := i.cache.Get(ctx, CacheKey)
	if err != nil {
		i.log.Warn("sheets cache read failed", zap.Error(err))
		return cacheEntry{}, false
	}
	if !ok {
		return cacheEntry{}, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		i.log.Warn("sheets cache entry unreadable", zap.Error(err))
		return cacheEntry{}, false
	}
	return entry, true
}

func (i *Importer) store(ctx context.Context, events []models.Event) {
	raw, err := json.Marshal(cacheEntry{Events: events, FetchedAt: i.now()})
	if err != nil {
		i.log.Warn("sheets cache encode failed", zap.Error(err))
		return
	}
	if err := i.cache.Set(ctx, CacheKey, raw, i.ttl); err != nil {
		i.log.Warn("sheets cache write failed", zap.Error(err))
	}
}
