package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"taize-events/internal/kv"
	"taize-events/internal/models"
)

// Keys under which the collection and its bookkeeping live.
const (
	KeyEvents        = "events"
	KeyMetadata      = "metadata"
	KeyLastSync      = "last_auto_sync"
	KeyBackup        = "events_backup"
	KeyDraft         = "form_draft"
	KeySheetsEnabled = "sheets_enabled"
)

// DraftTTL is how long an autosaved form stays restorable.
const DraftTTL = 24 * time.Hour

// ErrNotFound means nothing was ever saved under the key.
var ErrNotFound = errors.New("store: not found")

// PersistenceError wraps a read or write failure of the local store,
// including stored data that no longer decodes.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type Store struct {
	kv  kv.Store
	now func() time.Time
}

func New(backend kv.Store) *Store {
	return &Store{kv: backend, now: time.Now}
}

func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) getJSON(ctx context.Context, key string, out any) error {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return &PersistenceError{Op: "read", Key: key, Err: err}
	}
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &PersistenceError{Op: "decode", Key: key, Err: err}
	}
	return nil
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return &PersistenceError{Op: "encode", Key: key, Err: err}
	}
	if err := s.kv.Set(ctx, key, raw, 0); err != nil {
		return &PersistenceError{Op: "write", Key: key, Err: err}
	}
	return nil
}

func (s *Store) del(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, key); err != nil {
		return &PersistenceError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// Load returns the saved collection as stored. ErrNotFound marks a cold
// start; a *PersistenceError means the data is unreadable and the caller
// should fall back to defaults.
func (s *Store) Load(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	if err := s.getJSON(ctx, KeyEvents, &events); err != nil {
		return nil, err
	}
	if events == nil {
		events = []models.Event{}
	}
	return events, nil
}

// Save overwrites the collection and then the metadata record. If the
// metadata write fails the previous collection is put back.
func (s *Store) Save(ctx context.Context, events []models.Event) error {
	if events == nil {
		events = []models.Event{}
	}
	prev, had, err := s.kv.Get(ctx, KeyEvents)
	if err != nil {
		return &PersistenceError{Op: "read", Key: KeyEvents, Err: err}
	}
	if err := s.setJSON(ctx, KeyEvents, events); err != nil {
		return err
	}
	meta := models.Metadata{
		Version:     models.Version,
		LastUpdated: s.now().UTC().Format(time.RFC3339),
	}
	if err := s.setJSON(ctx, KeyMetadata, meta); err != nil {
		var rerr error
		if had {
			rerr = s.kv.Set(ctx, KeyEvents, prev, 0)
		} else {
			rerr = s.kv.Delete(ctx, KeyEvents)
		}
		if rerr != nil {
			return errors.Join(err, &PersistenceError{Op: "rollback", Key: KeyEvents, Err: rerr})
		}
		return err
	}
	return nil
}

func (s *Store) Metadata(ctx context.Context) (models.Metadata, error) {
	var m models.Metadata
	err := s.getJSON(ctx, KeyMetadata, &m)
	return m, err
}

// Clear removes the collection, its metadata and any draft.
func (s *Store) Clear(ctx context.Context) error {
	for _, key := range []string{KeyEvents, KeyMetadata, KeyDraft} {
		if err := s.del(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Backup snapshots a collection into the single backup slot.
func (s *Store) Backup(ctx context.Context, events []models.Event) error {
	if events == nil {
		events = []models.Event{}
	}
	return s.setJSON(ctx, KeyBackup, events)
}

func (s *Store) LoadBackup(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	if err := s.getJSON(ctx, KeyBackup, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// LastSync returns the time of the last successful sync. ok is false when
// no sync ever succeeded.
func (s *Store) LastSync(ctx context.Context) (time.Time, bool, error) {
	raw, ok, err := s.kv.Get(ctx, KeyLastSync)
	if err != nil {
		return time.Time{}, false, &PersistenceError{Op: "read", Key: KeyLastSync, Err: err}
	}
	if !ok {
		return time.Time{}, false, nil
	}
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, false, &PersistenceError{Op: "decode", Key: KeyLastSync, Err: err}
	}
	return time.UnixMilli(ms), true, nil
}

func (s *Store) SetLastSync(ctx context.Context, t time.Time) error {
	raw := []byte(strconv.FormatInt(t.UnixMilli(), 10))
	if err := s.kv.Set(ctx, KeyLastSync, raw, 0); err != nil {
		return &PersistenceError{Op: "write", Key: KeyLastSync, Err: err}
	}
	return nil
}

func (s *Store) SaveDraft(ctx context.Context, fields map[string]string) error {
	d := models.Draft{
		Fields:    fields,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}
	return s.setJSON(ctx, KeyDraft, d)
}

// LoadDraft returns the autosaved form. Drafts older than DraftTTL, or
// ones that no longer decode, are deleted and reported as ErrNotFound.
func (s *Store) LoadDraft(ctx context.Context) (models.Draft, error) {
	var d models.Draft
	err := s.getJSON(ctx, KeyDraft, &d)
	var perr *PersistenceError
	if errors.As(err, &perr) && perr.Op == "decode" {
		_ = s.del(ctx, KeyDraft)
		return models.Draft{}, ErrNotFound
	}
	if err != nil {
		return models.Draft{}, err
	}
	saved, terr := time.Parse(time.RFC3339, d.Timestamp)
	if terr != nil || s.now().Sub(saved) >= DraftTTL {
		if err := s.del(ctx, KeyDraft); err != nil {
			return models.Draft{}, err
		}
		return models.Draft{}, ErrNotFound
	}
	return d, nil
}

func (s *Store) ClearDraft(ctx context.Context) error {
	return s.del(ctx, KeyDraft)
}

// SheetsEnabled reports the persisted importer toggle; def applies when it
// was never set.
func (s *Store) SheetsEnabled(ctx context.Context, def bool) (bool, error) {
	var on bool
	err := s.getJSON(ctx, KeySheetsEnabled, &on)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return on, nil
}

func (s *Store) SetSheetsEnabled(ctx context.Context, on bool) error {
	return s.setJSON(ctx, KeySheetsEnabled, on)
}

// Raw returns the stored bytes of a key, for comparisons and diagnostics.
func (s *Store) Raw(ctx context.Context, key string) ([]byte, bool, error) {
	return s.kv.Get(ctx, key)
}
