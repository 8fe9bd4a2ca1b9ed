package sheets

import (
	"errors"
	"strings"
	"testing"
	"time"

	"taize-events/internal/models"
)

var parseNow = time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

func TestParseRowFull(t *testing.T) {
	row := Row{
		42.0, "Молитва Тезе", "Date(2025,2,14,19,0,0)", "Львів", 49.8397, "24.0297",
		"Коротко", "Довгий опис", "https://example.org/p.pdf",
		"https://a/1.jpg, ,https://a/2.jpg ", "2025-01-01T00:00:00Z", "Заплановано",
	}
	ev, err := ParseRow(row, 5, parseNow)
	if err != nil || ev == nil {
		t.Fatalf("ev=%v err=%v", ev, err)
	}
	want := models.Event{
		ID: 42, Title: "Молитва Тезе", Date: "2025-03-14T19:00", Location: "Львів",
		Lat: 49.8397, Lng: 24.0297, Description: "Коротко", FullDescription: "Довгий опис",
		ProgramLink: "https://example.org/p.pdf", Photos: []string{"https://a/1.jpg", "https://a/2.jpg"},
		CreatedAt: "2025-01-01T00:00:00Z", Status: "Заплановано", Source: models.SourceSheets,
	}
	if ev.ID != want.ID || ev.Title != want.Title || ev.Date != want.Date || ev.Lat != want.Lat ||
		ev.Lng != want.Lng || ev.FullDescription != want.FullDescription || ev.Status != want.Status ||
		ev.Source != want.Source || strings.Join(ev.Photos, "|") != strings.Join(want.Photos, "|") {
		t.Fatalf("got  %+v\nwant %+v", *ev, want)
	}
}

func TestParseRowDefaults(t *testing.T) {
	row := Row{nil, "Зустріч", nil, "Київ", "n/a", nil, "Опис"}
	ev, err := ParseRow(row, 7, parseNow)
	if err != nil || ev == nil {
		t.Fatalf("ev=%v err=%v", ev, err)
	}
	if ev.ID != parseNow.UnixMilli()+7 {
		t.Fatalf("id=%d", ev.ID)
	}
	if ev.Lat != 0 || ev.Lng != 0 {
		t.Fatalf("coords=%v,%v want 0,0", ev.Lat, ev.Lng)
	}
	if ev.FullDescription != "Опис" {
		t.Fatalf("fullDescription=%q", ev.FullDescription)
	}
	if ev.Status != StatusDone || ev.CreatedAt != "2025-02-01T12:00:00Z" {
		t.Fatalf("status=%q createdAt=%q", ev.Status, ev.CreatedAt)
	}
	if ev.Photos == nil || len(ev.Photos) != 0 {
		t.Fatalf("photos=%#v want empty", ev.Photos)
	}
}

func TestParseRowEmptyTitle(t *testing.T) {
	for _, row := range []Row{{1.0, ""}, {1.0, "   "}, {1.0}, {}} {
		ev, err := ParseRow(row, 3, parseNow)
		if ev != nil || err != nil {
			t.Fatalf("row %v: ev=%v err=%v", row, ev, err)
		}
	}
}

func TestParseRowRejectsOddCells(t *testing.T) {
	cases := []Row{
		{1.0, map[string]any{"x": 1}},
		{"not-an-id", "Назва"},
	}
	for _, row := range cases {
		_, err := ParseRow(row, 9, parseNow)
		var perr *RowParseError
		if !errors.As(err, &perr) || perr.Row != 9 {
			t.Fatalf("row %v: err=%v want *RowParseError", row, err)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"", ""},
		{"Date(2025,0,15,19,30,0)", "2025-01-15T19:30"},
		{"Date(2025,11,31)", "2025-12-31T00:00"},
		{time.Date(2025, 3, 1, 18, 0, 0, 0, time.Local), "2025-03-01T18:00"},
		{45658.75, "2025-01-01T18:00"},
		{"2025-05-10 18:00", "2025-05-10T18:00"},
		{"10.05.2025", "2025-05-10T00:00"},
		{"скоро буде", "скоро буде"},
	}
	for _, tc := range cases {
		if got := NormalizeDate(tc.in); got != tc.want {
			t.Fatalf("NormalizeDate(%v)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestFormatEventForSheet(t *testing.T) {
	ev := models.Event{
		ID: 7, Title: "Т", Date: "2025-03-01T10:00", Location: "Л", Lat: 49.5, Lng: 24,
		Description: "d", FullDescription: "f", Photos: []string{"u1", "u2"},
	}
	got := FormatEventForSheet(ev, parseNow)
	want := "7\tТ\t2025-03-01T10:00\tЛ\t49.5\t24\td\tf\t\tu1, u2\t2025-02-01T12:00\tЗаплановано"
	if got != want {
		t.Fatalf("got=%q\nwant=%q", got, want)
	}
}
