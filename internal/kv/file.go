package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_.:-]+$`)

// FileStore keeps one file per key under Dir. Values that expire get a
// "<key>.meta" sidecar holding the deadline; the value file is written first
// so the sidecar never points at a missing body.
type FileStore struct {
	Dir string
	now func() time.Time
}

type fileMeta struct {
	Expires time.Time `json:"expires"`
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("file store dir is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileStore{Dir: dir, now: time.Now}, nil
}

func (s *FileStore) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.Dir, key+".json"), nil
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	_ = ctx
	p, err := s.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	metaRaw, err := os.ReadFile(p + ".meta")
	if err == nil {
		var m fileMeta
		if json.Unmarshal(metaRaw, &m) == nil && !m.Expires.IsZero() && !s.now().Before(m.Expires) {
			_ = s.Delete(ctx, key)
			return nil, false, nil
		}
	}
	return data, true, nil
}

func (s *FileStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_ = ctx
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := writeAtomic(p, value); err != nil {
		return err
	}
	if ttl <= 0 {
		if err := os.Remove(p + ".meta"); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	meta, err := json.Marshal(fileMeta{Expires: s.now().Add(ttl)})
	if err != nil {
		return err
	}
	return writeAtomic(p+".meta", meta)
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	p, err := s.path(key)
	if err != nil {
		return err
	}
	for _, f := range []string{p, p + ".meta"} {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// writeAtomic writes to a temp file in the same directory and renames it
// over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".kv-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// WithClock replaces the time source used for expiry checks.
func (s *FileStore) WithClock(now func() time.Time) *FileStore {
	s.now = now
	return s
}
