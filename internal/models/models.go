package models

import "time"

// Version is written into the store metadata and into export documents.
const Version = "1.0.0"

// SourceSheets marks records that came from the spreadsheet importer.
const SourceSheets = "sheets"

type Event struct {
	ID              int64    `json:"id" yaml:"id"`
	Title           string   `json:"title" yaml:"title"`
	Date            string   `json:"date" yaml:"date"` // YYYY-MM-DDTHH:MM, local
	Location        string   `json:"location" yaml:"location"`
	Lat             float64  `json:"lat" yaml:"lat"`
	Lng             float64  `json:"lng" yaml:"lng"`
	Description     string   `json:"description" yaml:"description"`
	FullDescription string   `json:"fullDescription,omitempty" yaml:"full_description"`
	ProgramLink     string   `json:"programLink,omitempty" yaml:"program_link"`
	Photos          []string `json:"photos" yaml:"photos"`
	CreatedAt       string   `json:"createdAt,omitempty" yaml:"created_at"`
	Source          string   `json:"source,omitempty" yaml:"source"`
	Status          string   `json:"status,omitempty" yaml:"status"` // "Заплановано"/"Завершено", advisory
}

// Complete reports whether the record carries every field the collection
// requires: id, title, date, location, lat and lng.
func (e Event) Complete() bool {
	return e.ID != 0 && e.Title != "" && e.Date != "" &&
		e.Location != "" && e.Lat != 0 && e.Lng != 0
}

// FilterComplete returns the complete records in their original order and
// the number of records that were dropped.
func FilterComplete(events []Event) ([]Event, int) {
	kept := make([]Event, 0, len(events))
	for _, ev := range events {
		if ev.Complete() {
			kept = append(kept, ev)
		}
	}
	return kept, len(events) - len(kept)
}

// Metadata is stored next to the collection on every save.
type Metadata struct {
	Version     string `json:"version"`
	LastUpdated string `json:"lastUpdated"`
}

type ExportMetadata struct {
	ExportDate  string `json:"exportDate"`
	Version     string `json:"version"`
	TotalEvents int    `json:"totalEvents"`
}

// ExportDocument is the import/export file format.
type ExportDocument struct {
	Events   []Event        `json:"events"`
	Metadata ExportMetadata `json:"metadata"`
}

// Draft is an autosaved, not yet submitted editor form.
type Draft struct {
	Fields    map[string]string `json:"fields"`
	Timestamp string            `json:"timestamp"`
}

type CacheStatus struct {
	Cached    bool          `json:"cached"`
	Age       time.Duration `json:"age"`
	Remaining time.Duration `json:"remaining"`
	Summary   string        `json:"summary"`
}

type SyncStatus struct {
	LastSync      *time.Time  `json:"last_sync,omitempty"`
	LastSyncHuman string      `json:"last_sync_human"`
	NextSync      *time.Time  `json:"next_sync,omitempty"`
	Interval      string      `json:"interval"`
	Periodic      bool        `json:"periodic"`
	Syncing       bool        `json:"syncing"`
	SheetsEnabled bool        `json:"sheets_enabled"`
	EventCount    int         `json:"event_count"`
	Cache         CacheStatus `json:"cache"`
}
