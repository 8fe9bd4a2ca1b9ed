package syncer

import (
	"context"

	"go.uber.org/zap"

	"taize-events/internal/models"
)

// Local edits go through the syncer too, so the state and the store are
// written in one place.

func (s *Syncer) persist(ctx context.Context) error {
	events := s.d.State.Events()
	if err := s.d.Store.Save(ctx, events); err != nil {
		return err
	}
	s.d.Metrics.SetStored(len(events))
	return nil
}

func (s *Syncer) AddEvent(ctx context.Context, ev models.Event) error {
	s.d.State.Add(ev)
	return s.persist(ctx)
}

// DeleteEvent reports whether a record with id existed.
func (s *Syncer) DeleteEvent(ctx context.Context, id int64) (bool, error) {
	if !s.d.State.Delete(id) {
		return false, nil
	}
	return true, s.persist(ctx)
}

// ReplaceAll installs an imported collection, keeping the old one in the
// backup slot. It returns how many records were dropped as incomplete.
func (s *Syncer) ReplaceAll(ctx context.Context, events []models.Event, reason string) (int, error) {
	if err := s.d.Store.Backup(ctx, s.d.State.Events()); err != nil {
		return 0, err
	}
	dropped := s.d.State.Replace(events, reason)
	if dropped > 0 {
		s.d.Logger.Warn("incomplete records dropped", zap.String("reason", reason), zap.Int("dropped", dropped))
	}
	return dropped, s.persist(ctx)
}

// ClearAll wipes the collection, its metadata and the draft.
func (s *Syncer) ClearAll(ctx context.Context) error {
	if err := s.d.Store.Clear(ctx); err != nil {
		return err
	}
	s.d.State.Replace(nil, "clear")
	s.d.Metrics.SetStored(0)
	s.d.Logger.Info("all data cleared")
	return nil
}

// RestoreBackup swaps the collection saved before the last replacement
// back in. The current collection becomes the new backup.
func (s *Syncer) RestoreBackup(ctx context.Context) (int, error) {
	backup, err := s.d.Store.LoadBackup(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := s.ReplaceAll(ctx, backup, "restore"); err != nil {
		return 0, err
	}
	return s.d.State.Len(), nil
}
