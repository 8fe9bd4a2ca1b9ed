package sheets

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"taize-events/internal/models"
	"taize-events/internal/util"
)

// Column positions of the event sheet.
const (
	colID = iota
	colTitle
	colDate
	colLocation
	colLat
	colLng
	colDescription
	colFullDescription
	colProgramLink
	colPhotos
	colCreatedAt
	colStatus
)

const (
	StatusDone    = "Завершено"
	StatusPlanned = "Заплановано"
)

// RowParseError is one malformed spreadsheet row. The batch goes on
// without it.
type RowParseError struct {
	Row int
	Err error
}

func (e *RowParseError) Error() string {
	return fmt.Sprintf("sheet row %d: %v", e.Row, e.Err)
}

func (e *RowParseError) Unwrap() error { return e.Err }

// ParseRow maps one data row to an event. A row with an empty title is not
// an event and yields nil, nil.
func ParseRow(cells Row, rowNumber int, now time.Time) (ev *models.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			ev = nil
			err = &RowParseError{Row: rowNumber, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	for i, c := range cells {
		if !knownCell(c) {
			return nil, &RowParseError{Row: rowNumber, Err: fmt.Errorf("column %d: unexpected %T", i, c)}
		}
	}

	title := strings.TrimSpace(get(cells, colTitle))
	if title == "" {
		return nil, nil
	}

	id := now.UnixMilli() + int64(rowNumber)
	if raw := cell(cells, colID); !isBlank(raw) {
		id, err = cellInt(raw)
		if err != nil {
			return nil, &RowParseError{Row: rowNumber, Err: fmt.Errorf("id: %w", err)}
		}
	}

	out := &models.Event{
		ID:              id,
		Title:           title,
		Date:            NormalizeDate(cell(cells, colDate)),
		Location:        strings.TrimSpace(get(cells, colLocation)),
		Lat:             cellFloat(cell(cells, colLat)),
		Lng:             cellFloat(cell(cells, colLng)),
		Description:     get(cells, colDescription),
		FullDescription: get(cells, colFullDescription),
		ProgramLink:     strings.TrimSpace(get(cells, colProgramLink)),
		Photos:          splitPhotos(get(cells, colPhotos)),
		CreatedAt:       get(cells, colCreatedAt),
		Status:          get(cells, colStatus),
		Source:          models.SourceSheets,
	}
	if out.FullDescription == "" {
		out.FullDescription = out.Description
	}
	if out.CreatedAt == "" {
		out.CreatedAt = util.ISO(now)
	}
	if out.Status == "" {
		out.Status = StatusDone
	}
	return out, nil
}

var gvizDateRe = regexp.MustCompile(`^Date\((\d+),(\d+),(\d+)(?:,(\d+))?(?:,(\d+))?(?:,(\d+))?\)$`)

// spreadsheet serial day zero
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// NormalizeDate turns a date cell into the minute layout in local time.
// Strings that do not parse are returned unchanged.
func NormalizeDate(v any) string {
	switch d := v.(type) {
	case nil:
		return ""
	case time.Time:
		return util.MinuteISO(d.Local())
	case float64:
		if d <= 0 {
			return ""
		}
		secs := int64(math.Round(d * 86400))
		wall := serialEpoch.Add(time.Duration(secs) * time.Second)
		local := time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), 0, 0, time.Local)
		return util.MinuteISO(local)
	case string:
		s := strings.TrimSpace(d)
		if s == "" {
			return ""
		}
		if m := gvizDateRe.FindStringSubmatch(s); m != nil {
			n := make([]int, 6)
			for i := range n {
				n[i], _ = strconv.Atoi(m[i+1])
			}
			t := time.Date(n[0], time.Month(n[1]+1), n[2], n[3], n[4], n[5], 0, time.Local)
			return util.MinuteISO(t)
		}
		if t, ok := util.ParseEventDate(s); ok {
			return util.MinuteISO(t.Local())
		}
		return d
	default:
		return fmt.Sprint(v)
	}
}

// FormatEventForSheet renders an event as one tab separated sheet row,
// ready to paste under the header.
func FormatEventForSheet(ev models.Event, now time.Time) string {
	photos := ev.Photos
	if photos == nil {
		photos = []string{}
	}
	return strings.Join([]string{
		strconv.FormatInt(ev.ID, 10),
		ev.Title,
		ev.Date,
		ev.Location,
		strconv.FormatFloat(ev.Lat, 'f', -1, 64),
		strconv.FormatFloat(ev.Lng, 'f', -1, 64),
		ev.Description,
		ev.FullDescription,
		ev.ProgramLink,
		strings.Join(photos, ", "),
		now.UTC().Format(util.MinuteLayout),
		StatusPlanned,
	}, "\t")
}

// ---------- helpers ----------

func knownCell(c Cell) bool {
	switch c.(type) {
	case nil, string, float64, bool, int, int64, time.Time:
		return true
	default:
		return false
	}
}

func cell(row Row, idx int) Cell {
	if idx < 0 || idx >= len(row) {
		return nil
	}
	return row[idx]
}

func isBlank(c Cell) bool {
	if c == nil {
		return true
	}
	s, ok := c.(string)
	return ok && strings.TrimSpace(s) == ""
}

func get(row Row, idx int) string {
	switch v := cell(row, idx).(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return util.MinuteISO(v)
	default:
		return fmt.Sprint(v)
	}
}

func cellInt(c Cell) (int64, error) {
	switch v := c.(type) {
	case float64:
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("unexpected %T", c)
	}
}

// cellFloat reads a coordinate; anything non-numeric is 0.
func cellFloat(c Cell) float64 {
	switch v := c.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(v, ",", ".")), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	default:
		return 0
	}
}

func splitPhotos(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
