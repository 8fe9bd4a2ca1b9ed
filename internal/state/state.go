package state

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"taize-events/internal/models"
	"taize-events/internal/util"
)

// Sections the viewer can show.
const (
	SectionMap    = "map"
	SectionPast   = "past"
	SectionFuture = "future"
	SectionAdmin  = "admin"
	SectionStats  = "stats"
)

// Change kinds delivered to subscribers.
const (
	KindReplaced = "collection_replaced"
	KindAdded    = "event_added"
	KindDeleted  = "event_deleted"
	KindSection  = "section_changed"
)

type Change struct {
	Kind    string    `json:"kind"`
	Reason  string    `json:"reason,omitempty"`
	Count   int       `json:"count"`
	Section string    `json:"section,omitempty"`
	At      time.Time `json:"at"`
}

// State is the in-process event collection shared by the synchronizer,
// the HTTP handlers and the bot.
type State struct {
	mu      sync.RWMutex
	events  []models.Event
	section string

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Change)

	now func() time.Time
}

func New() *State {
	return &State{
		events:  []models.Event{},
		section: SectionMap,
		subs:    map[int]func(Change){},
		now:     time.Now,
	}
}

func (s *State) WithClock(now func() time.Time) *State {
	s.now = now
	return s
}

// Subscribe registers fn for every change. fn runs on the goroutine that
// made the change and must not block.
func (s *State) Subscribe(fn func(Change)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *State) emit(c Change) {
	c.At = s.now()
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

// Events returns a copy of the collection.
func (s *State) Events() []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Replace swaps in a new collection, dropping incomplete records, and
// returns how many were dropped.
func (s *State) Replace(events []models.Event, reason string) int {
	kept, dropped := models.FilterComplete(events)
	s.mu.Lock()
	s.events = kept
	n := len(kept)
	s.mu.Unlock()

	s.emit(Change{Kind: KindReplaced, Reason: reason, Count: n})
	return dropped
}

func (s *State) Add(ev models.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	n := len(s.events)
	s.mu.Unlock()

	s.emit(Change{Kind: KindAdded, Count: n})
}

// Delete removes every record with id and reports whether any existed.
func (s *State) Delete(id int64) bool {
	s.mu.Lock()
	kept := s.events[:0:0]
	for _, ev := range s.events {
		if ev.ID != id {
			kept = append(kept, ev)
		}
	}
	removed := len(kept) != len(s.events)
	s.events = kept
	n := len(kept)
	s.mu.Unlock()

	if removed {
		s.emit(Change{Kind: KindDeleted, Count: n})
	}
	return removed
}

// Find returns the record with id. Ids are not unique; the last one wins.
func (s *State) Find(id int64) (models.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].ID == id {
			return s.events[i], true
		}
	}
	return models.Event{}, false
}

func (s *State) Section() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.section
}

func (s *State) ShowSection(name string) error {
	switch name {
	case SectionMap, SectionPast, SectionFuture, SectionAdmin, SectionStats:
	default:
		return fmt.Errorf("unknown section: %q", name)
	}
	s.mu.Lock()
	s.section = name
	n := len(s.events)
	s.mu.Unlock()

	s.emit(Change{Kind: KindSection, Section: name, Count: n})
	return nil
}

// Past returns events dated before now, most recent first.
func (s *State) Past(now time.Time) []models.Event {
	return s.split(now, true)
}

// Future returns events dated at or after now, soonest first.
func (s *State) Future(now time.Time) []models.Event {
	return s.split(now, false)
}

func (s *State) split(now time.Time, past bool) []models.Event {
	type dated struct {
		ev models.Event
		at time.Time
	}
	var picked []dated
	for _, ev := range s.Events() {
		at, ok := util.ParseEventDate(ev.Date)
		if !ok {
			continue
		}
		if at.Before(now) == past {
			picked = append(picked, dated{ev, at})
		}
	}
	sort.SliceStable(picked, func(i, j int) bool {
		if past {
			return picked[i].at.After(picked[j].at)
		}
		return picked[i].at.Before(picked[j].at)
	})

	out := make([]models.Event, len(picked))
	for i, d := range picked {
		out[i] = d.ev
	}
	return out
}
