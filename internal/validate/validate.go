package validate

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"taize-events/internal/models"
	"taize-events/internal/util"
)

// Editor field ids.
const (
	FieldTitle           = "event-title"
	FieldDate            = "event-date"
	FieldLocation        = "event-location"
	FieldLat             = "event-lat"
	FieldLng             = "event-lng"
	FieldDescription     = "event-description"
	FieldFullDescription = "event-full-description"
	FieldProgramLink     = "event-program-link"
	FieldPhotos          = "event-photos"
)

const (
	msgRequired     = "Це поле обов'язкове для заповнення"
	msgPattern      = "Недопустимі символи в полі"
	msgNumber       = "Введіть коректне число"
	msgURL          = "Введіть коректний URL"
	msgBadDate      = "Некоректна дата"
	msgDateTooOld   = "Дата не може бути більше року тому"
	msgDateTooFar   = "Дата здається занадто далекою в майбутньому"
	msgInvalidValue = "Некоректне значення"
)

var eventTextRe = regexp.MustCompile(`^[\p{L}\p{N}_\s\-.,!?()'’ʼ:"«»]+$`)

// Rule is the declared rule set for one field. Tags are go-playground
// validator tags applied to the trimmed string value.
type Rule struct {
	Required bool
	Tags     string
	Number   bool
	Min, Max float64
	URL      bool
	Custom   func(value string, now time.Time) string
}

// Rules returns the editor rule table.
func Rules() map[string]Rule {
	return map[string]Rule{
		FieldTitle:           {Required: true, Tags: "min=3,max=100,eventtext"},
		FieldDate:            {Required: true, Custom: dateRule},
		FieldLocation:        {Required: true, Tags: "min=3,max=200"},
		FieldLat:             {Required: true, Number: true, Min: 44, Max: 52},
		FieldLng:             {Required: true, Number: true, Min: 22, Max: 40},
		FieldDescription:     {Required: true, Tags: "min=10,max=500"},
		FieldFullDescription: {Tags: "max=2000"},
		FieldProgramLink:     {URL: true},
	}
}

type Result struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidationError carries the first message of every failing field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type Validator struct {
	v     *validator.Validate
	rules map[string]Rule
	now   func() time.Time
}

func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("eventtext", func(fl validator.FieldLevel) bool {
		return eventTextRe.MatchString(fl.Field().String())
	})
	return &Validator{v: v, rules: Rules(), now: time.Now}
}

// WithClock replaces the "now" used by the date rule.
func (val *Validator) WithClock(now func() time.Time) *Validator {
	val.now = now
	return val
}

// ValidateField checks one value against its declared rules. Unknown field
// ids have no rules and are always valid.
func (val *Validator) ValidateField(fieldID, value string) Result {
	rule, ok := val.rules[fieldID]
	if !ok {
		return Result{Valid: true}
	}
	if msg := val.check(rule, strings.TrimSpace(value)); msg != "" {
		return Result{Valid: false, Error: msg}
	}
	return Result{Valid: true}
}

func (val *Validator) check(rule Rule, value string) string {
	if value == "" {
		if rule.Required {
			return msgRequired
		}
		return ""
	}

	if rule.Tags != "" {
		if err := val.v.Var(value, rule.Tags); err != nil {
			return tagMessage(err)
		}
	}

	if rule.Number {
		num, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return msgNumber
		}
		bounds := fmt.Sprintf("gte=%s,lte=%s", formatNum(rule.Min), formatNum(rule.Max))
		if err := val.v.Var(num, bounds); err != nil {
			return tagMessage(err)
		}
	}

	if rule.URL {
		if err := val.v.Var(value, "url"); err != nil {
			return msgURL
		}
	}

	if rule.Custom != nil {
		if msg := rule.Custom(value, val.now()); msg != "" {
			return msg
		}
	}
	return ""
}

func tagMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return msgInvalidValue
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("Мінімальна довжина: %s символів", fe.Param())
	case "max":
		return fmt.Sprintf("Максимальна довжина: %s символів", fe.Param())
	case "gte":
		return fmt.Sprintf("Значення має бути не менше %s", fe.Param())
	case "lte":
		return fmt.Sprintf("Значення має бути не більше %s", fe.Param())
	case "eventtext":
		return msgPattern
	case "url":
		return msgURL
	default:
		return msgInvalidValue
	}
}

// dateRule rejects unparsable dates and dates more than a calendar year away
// from today in either direction.
func dateRule(value string, now time.Time) string {
	selected, ok := util.ParseEventDate(value)
	if !ok {
		return msgBadDate
	}
	y, m, d := now.Date()
	oneYearAgo := time.Date(y-1, m, d, 0, 0, 0, 0, now.Location())
	if selected.Before(oneYearAgo) {
		return msgDateTooOld
	}
	oneYearForward := time.Date(y+1, m, d, 0, 0, 0, 0, now.Location())
	if selected.After(oneYearForward) {
		return msgDateTooFar
	}
	return ""
}

// ValidateForm reports whether every declared field passes. Missing values
// count as empty.
func (val *Validator) ValidateForm(values map[string]string) bool {
	return len(val.ValidateFormErrors(values)) == 0
}

// ValidateFormErrors returns the first error message per failing field.
func (val *Validator) ValidateFormErrors(values map[string]string) map[string]string {
	errs := map[string]string{}
	for id := range val.rules {
		if r := val.ValidateField(id, values[id]); !r.Valid {
			errs[id] = r.Error
		}
	}
	return errs
}

// ValidateEvent runs the editor rules over an assembled record.
func (val *Validator) ValidateEvent(ev models.Event) error {
	errs := val.ValidateFormErrors(EventToForm(ev))
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// EventToForm renders a record as editor field values. Zero coordinates
// render as empty so the required rule catches them.
func EventToForm(ev models.Event) map[string]string {
	return map[string]string{
		FieldTitle:           ev.Title,
		FieldDate:            ev.Date,
		FieldLocation:        ev.Location,
		FieldLat:             formatCoord(ev.Lat),
		FieldLng:             formatCoord(ev.Lng),
		FieldDescription:     ev.Description,
		FieldFullDescription: ev.FullDescription,
		FieldProgramLink:     ev.ProgramLink,
		FieldPhotos:          strings.Join(ev.Photos, ", "),
	}
}

// BuildEvent validates a submitted form and turns it into a new record.
func (val *Validator) BuildEvent(values map[string]string) (models.Event, error) {
	if errs := val.ValidateFormErrors(values); len(errs) > 0 {
		return models.Event{}, &ValidationError{Fields: errs}
	}
	now := val.now()
	trim := func(k string) string { return strings.TrimSpace(values[k]) }

	lat, _ := strconv.ParseFloat(trim(FieldLat), 64)
	lng, _ := strconv.ParseFloat(trim(FieldLng), 64)
	date := trim(FieldDate)
	if t, ok := util.ParseEventDate(date); ok {
		date = util.MinuteISO(t)
	}

	ev := models.Event{
		ID:              now.UnixMilli(),
		Title:           trim(FieldTitle),
		Date:            date,
		Location:        trim(FieldLocation),
		Lat:             lat,
		Lng:             lng,
		Description:     trim(FieldDescription),
		FullDescription: trim(FieldFullDescription),
		ProgramLink:     trim(FieldProgramLink),
		Photos:          val.ParsePhotos(values[FieldPhotos]),
		CreatedAt:       util.ISO(now),
	}
	if ev.FullDescription == "" {
		ev.FullDescription = ev.Description
	}
	return ev, nil
}

// ParsePhotos splits a comma separated list and keeps well-formed URLs in
// their original order.
func (val *Validator) ParsePhotos(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if val.v.Var(p, "url") != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

func formatCoord(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
