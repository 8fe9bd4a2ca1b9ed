package export

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"taize-events/internal/models"
	"taize-events/internal/util"
)

// EventDuration is the assumed length of an event; records carry only a
// start time.
const EventDuration = 2 * time.Hour

// WriteICS renders the collection as a VCALENDAR feed. Records whose date
// does not parse are left out.
func WriteICS(w io.Writer, events []models.Event, calName string, now time.Time) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//taize-events//events feed//UK")
	if calName != "" {
		cal.SetXWRCalName(calName)
	}

	for _, ev := range events {
		start, ok := util.ParseEventDate(ev.Date)
		if !ok {
			continue
		}
		ve := cal.AddEvent(fmt.Sprintf("event-%d@taize-events", ev.ID))
		ve.SetDtStampTime(now)
		ve.SetStartAt(start)
		ve.SetEndAt(start.Add(EventDuration))
		ve.SetSummary(ev.Title)
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		desc := ev.FullDescription
		if desc == "" {
			desc = ev.Description
		}
		if desc != "" {
			ve.SetDescription(desc)
		}
		if ev.ProgramLink != "" {
			ve.SetURL(ev.ProgramLink)
		}
		if ev.Lat != 0 || ev.Lng != 0 {
			ve.SetProperty(ical.ComponentPropertyGeo, fmt.Sprintf("%.6f;%.6f", ev.Lat, ev.Lng))
		}
		if created, err := time.Parse(time.RFC3339, ev.CreatedAt); err == nil {
			ve.SetCreatedTime(created)
		}
	}
	return cal.SerializeTo(w)
}
