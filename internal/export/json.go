package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"taize-events/internal/models"
	"taize-events/internal/util"
)

const msgBadFormat = "Неправильний формат файлу"

// ImportFormatError rejects an import file before anything is changed.
type ImportFormatError struct {
	Reason string
	Err    error
}

func (e *ImportFormatError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *ImportFormatError) Unwrap() error { return e.Err }

func BuildExport(events []models.Event, now time.Time) models.ExportDocument {
	if events == nil {
		events = []models.Event{}
	}
	return models.ExportDocument{
		Events: events,
		Metadata: models.ExportMetadata{
			ExportDate:  util.ISO(now),
			Version:     models.Version,
			TotalEvents: len(events),
		},
	}
}

func WriteJSON(w io.Writer, doc models.ExportDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}

// FileName is the suggested download name for an export made at now.
func FileName(prefix, ext string, now time.Time) string {
	return fmt.Sprintf("%s-%s.%s", prefix, now.UTC().Format("2006-01-02"), ext)
}

// ParseImport reads an export document. The events field must be present
// and an array; metadata is optional and returned when present.
func ParseImport(r io.Reader) ([]models.Event, *models.ExportMetadata, error) {
	var raw struct {
		Events   json.RawMessage        `json:"events"`
		Metadata *models.ExportMetadata `json:"metadata"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, nil, &ImportFormatError{Reason: msgBadFormat, Err: err}
	}
	if len(raw.Events) == 0 || raw.Events[0] != '[' {
		return nil, nil, &ImportFormatError{Reason: msgBadFormat}
	}
	var events []models.Event
	if err := json.Unmarshal(raw.Events, &events); err != nil {
		return nil, nil, &ImportFormatError{Reason: msgBadFormat, Err: err}
	}
	for i := range events {
		if events[i].Photos == nil {
			events[i].Photos = []string{}
		}
	}
	return events, raw.Metadata, nil
}
