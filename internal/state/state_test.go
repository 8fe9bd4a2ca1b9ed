package state

import (
	"sync"
	"testing"
	"time"

	"taize-events/internal/models"
)

func ev(id int64, date string) models.Event {
	return models.Event{ID: id, Title: "t", Date: date, Location: "l", Lat: 49, Lng: 24}
}

func TestReplaceFiltersIncomplete(t *testing.T) {
	s := New()
	in := []models.Event{
		ev(1, "2025-01-01T10:00"),
		{ID: 2, Title: "no coords", Date: "2025-01-01T10:00", Location: "l"},
		{ID: 3, Date: "2025-01-01T10:00", Location: "l", Lat: 49, Lng: 24},
		ev(4, "2025-02-01T10:00"),
	}
	dropped := s.Replace(in, "test")
	if dropped != 2 || s.Len() != 2 {
		t.Fatalf("dropped=%d len=%d", dropped, s.Len())
	}
	got := s.Events()
	if got[0].ID != 1 || got[1].ID != 4 {
		t.Fatalf("events=%v", got)
	}
}

func TestSubscribeAndCancel(t *testing.T) {
	s := New()
	var mu sync.Mutex
	var seen []Change
	cancel := s.Subscribe(func(c Change) {
		mu.Lock()
		seen = append(seen, c)
		mu.Unlock()
	})

	s.Replace([]models.Event{ev(1, "2025-01-01T10:00")}, "sync")
	s.Add(ev(2, "2025-01-02T10:00"))
	s.Delete(1)
	s.Delete(42)
	cancel()
	cancel()
	s.Add(ev(3, "2025-01-03T10:00"))

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("changes=%d want=3: %+v", len(seen), seen)
	}
	if seen[0].Kind != KindReplaced || seen[0].Reason != "sync" || seen[0].Count != 1 {
		t.Fatalf("first=%+v", seen[0])
	}
	if seen[1].Kind != KindAdded || seen[2].Kind != KindDeleted || seen[2].Count != 1 {
		t.Fatalf("changes=%+v", seen)
	}
}

func TestFindLastWins(t *testing.T) {
	s := New()
	a := ev(7, "2025-01-01T10:00")
	b := ev(7, "2025-03-01T10:00")
	s.Replace([]models.Event{a, b}, "")

	got, ok := s.Find(7)
	if !ok || got.Date != b.Date {
		t.Fatalf("find=%v ok=%v", got, ok)
	}
	if _, ok := s.Find(8); ok {
		t.Fatal("found missing id")
	}
}

func TestPastFuture(t *testing.T) {
	s := New()
	s.Replace([]models.Event{
		ev(1, "2025-01-10T10:00"),
		ev(2, "2025-06-10T10:00"),
		ev(3, "2025-02-10T10:00"),
		ev(4, "2025-05-10T10:00"),
		ev(5, "колись"),
	}, "")
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.Local)

	past := s.Past(now)
	if len(past) != 2 || past[0].ID != 3 || past[1].ID != 1 {
		t.Fatalf("past=%v", past)
	}
	future := s.Future(now)
	if len(future) != 2 || future[0].ID != 4 || future[1].ID != 2 {
		t.Fatalf("future=%v", future)
	}
}

func TestShowSection(t *testing.T) {
	s := New()
	if s.Section() != SectionMap {
		t.Fatalf("initial section=%q", s.Section())
	}
	if err := s.ShowSection(SectionStats); err != nil || s.Section() != SectionStats {
		t.Fatalf("err=%v section=%q", err, s.Section())
	}
	if err := s.ShowSection("settings"); err == nil {
		t.Fatal("expected error for unknown section")
	}
}
