package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"taize-events/internal/models"
	"taize-events/internal/util"
)

const unknownLocation = "Не вказано"

var monthsUK = [...]string{
	"січень", "лютий", "березень", "квітень", "травень", "червень",
	"липень", "серпень", "вересень", "жовтень", "листопад", "грудень",
}

// Count is one labelled tally; slices of Count keep first-seen order.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type Stats struct {
	Total         int     `json:"total"`
	Past          int     `json:"past"`
	Future        int     `json:"future"`
	CurrentYear   int     `json:"current_year"`
	WithPhotos    int     `json:"with_photos"`
	WithPrograms  int     `json:"with_programs"`
	AveragePhotos float64 `json:"average_photos"`
	Locations     []Count `json:"locations"`
	Months        []Count `json:"months"`
}

// MonthLabel renders a date as "<month> <year> р.".
func MonthLabel(t time.Time) string {
	return monthsUK[t.Month()-1] + " " + strconv.Itoa(t.Year()) + " р."
}

// Statistics tallies the collection against now. Records whose date does
// not parse count as future and fall under the unknown month.
func Statistics(events []models.Event, now time.Time) Stats {
	st := Stats{Total: len(events), Locations: []Count{}, Months: []Count{}}
	locIdx := map[string]int{}
	monIdx := map[string]int{}
	bump := func(list *[]Count, idx map[string]int, label string) {
		if i, ok := idx[label]; ok {
			(*list)[i].Count++
			return
		}
		idx[label] = len(*list)
		*list = append(*list, Count{Label: label, Count: 1})
	}

	totalPhotos := 0
	for _, ev := range events {
		at, ok := util.ParseEventDate(ev.Date)
		if ok && at.Before(now) {
			st.Past++
		} else {
			st.Future++
		}
		if ok && at.Year() == now.Year() {
			st.CurrentYear++
		}
		if len(ev.Photos) > 0 {
			st.WithPhotos++
			totalPhotos += len(ev.Photos)
		}
		if ev.ProgramLink != "" {
			st.WithPrograms++
		}

		loc := ev.Location
		if loc == "" {
			loc = unknownLocation
		}
		bump(&st.Locations, locIdx, loc)

		month := unknownLocation
		if ok {
			month = MonthLabel(at)
		}
		bump(&st.Months, monIdx, month)
	}
	if st.WithPhotos > 0 {
		avg := float64(totalPhotos) / float64(st.WithPhotos)
		st.AveragePhotos, _ = strconv.ParseFloat(strconv.FormatFloat(avg, 'f', 1, 64), 64)
	}
	return st
}

// WriteStatisticsCSV writes the title line and three sections: totals,
// per location and per month.
func WriteStatisticsCSV(w io.Writer, st Stats) error {
	cw := csv.NewWriter(w)
	avg := "0"
	if st.WithPhotos > 0 {
		avg = strconv.FormatFloat(st.AveragePhotos, 'f', 1, 64)
	}
	rows := [][]string{
		{"Статистика подій спільноти Тезе"},
		{""},
		{"Загальна статистика"},
		{"Показник", "Значення"},
		{"Всього подій", strconv.Itoa(st.Total)},
		{"Минулі події", strconv.Itoa(st.Past)},
		{"Майбутні події", strconv.Itoa(st.Future)},
		{"Події поточного року", strconv.Itoa(st.CurrentYear)},
		{"Події з фотографіями", strconv.Itoa(st.WithPhotos)},
		{"Події з програмами", strconv.Itoa(st.WithPrograms)},
		{"Середня кількість фото", avg},
		{""},
		{"Розподіл по локаціях"},
		{"Локація", "Кількість подій"},
	}
	for _, c := range st.Locations {
		rows = append(rows, []string{c.Label, strconv.Itoa(c.Count)})
	}
	rows = append(rows, []string{""}, []string{"Місячний розподіл"}, []string{"Місяць", "Кількість подій"})
	for _, c := range st.Months {
		rows = append(rows, []string{c.Label, strconv.Itoa(c.Count)})
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
