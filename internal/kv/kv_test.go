package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func testStores(t *testing.T, clk *fakeClock) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	return map[string]Store{
		"memory": NewMemoryStore().WithClock(clk.Now),
		"file":   fs.WithClock(clk.Now),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	for name, s := range testStores(t, clk) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, found, err := s.Get(ctx, "events"); err != nil || found {
				t.Fatalf("empty get found=%v err=%v", found, err)
			}
			if err := s.Set(ctx, "events", []byte(`[1,2]`), 0); err != nil {
				t.Fatalf("set: %v", err)
			}
			got, found, err := s.Get(ctx, "events")
			if err != nil || !found || string(got) != `[1,2]` {
				t.Fatalf("get=%q found=%v err=%v", got, found, err)
			}
			if err := s.Set(ctx, "events", []byte(`[3]`), 0); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, _, _ = s.Get(ctx, "events")
			if string(got) != `[3]` {
				t.Fatalf("after overwrite=%q", got)
			}
			if err := s.Delete(ctx, "events"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, found, _ := s.Get(ctx, "events"); found {
				t.Fatal("value still present after delete")
			}
			if err := s.Delete(ctx, "events"); err != nil {
				t.Fatalf("second delete: %v", err)
			}
		})
	}
}

func TestStoreTTL(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	for name, s := range testStores(t, clk) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Set(ctx, "cache", []byte("x"), time.Minute); err != nil {
				t.Fatalf("set: %v", err)
			}
			clk.t = clk.t.Add(59 * time.Second)
			if _, found, _ := s.Get(ctx, "cache"); !found {
				t.Fatal("expired too early")
			}
			clk.t = clk.t.Add(time.Second)
			if _, found, _ := s.Get(ctx, "cache"); found {
				t.Fatal("value should expire at ttl")
			}
		})
	}
}

func TestFileStoreRejectsPathKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(context.Background(), "../escape", []byte("x"), 0); err == nil {
		t.Fatal("expected invalid key error")
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(context.Background(), "metadata", []byte(`{}`), 0); err != nil {
		t.Fatal(err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, ".kv-*.tmp"))
	if len(matches) != 0 {
		t.Fatalf("temp files left: %v", matches)
	}
	info, err := os.Stat(filepath.Join(dir, "metadata.json"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("perm=%v want=0600", info.Mode().Perm())
	}
}

func TestMemoryGetKeepsRewriteOfExpiredKey(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	rewrite := false
	var s *MemoryStore
	s = NewMemoryStore().WithClock(func() time.Time {
		if rewrite {
			// lands between the expiry check and the delete
			rewrite = false
			_ = s.Set(ctx, "k", []byte("fresh"), 0)
		}
		return now
	})
	if err := s.Set(ctx, "k", []byte("old"), time.Minute); err != nil {
		t.Fatal(err)
	}
	now = base.Add(2 * time.Minute)
	rewrite = true

	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("expired value returned")
	}
	v, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(v) != "fresh" {
		t.Fatalf("got=%q ok=%v err=%v want=fresh", v, ok, err)
	}
}
