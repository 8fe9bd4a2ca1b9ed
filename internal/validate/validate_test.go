package validate

import (
	"errors"
	"strings"
	"testing"
	"time"

	"taize-events/internal/models"
)

func fixedNow() time.Time {
	return time.Date(2025, time.June, 15, 12, 0, 0, 0, time.Local)
}

func newTestValidator() *Validator {
	return New().WithClock(fixedNow)
}

func validForm() map[string]string {
	return map[string]string{
		FieldTitle:       "Молитва Тезе у Львові",
		FieldDate:        "2025-09-10T19:00",
		FieldLocation:    "Львів",
		FieldLat:         "49.8397",
		FieldLng:         "24.0297",
		FieldDescription: "Вечірня молитва зі співами Тезе",
	}
}

func TestValidateFieldMessages(t *testing.T) {
	v := newTestValidator()

	cases := []struct {
		field, value, want string
	}{
		{FieldTitle, "", "Це поле обов'язкове для заповнення"},
		{FieldTitle, "   ", "Це поле обов'язкове для заповнення"},
		{FieldTitle, "ab", "Мінімальна довжина: 3 символів"},
		{FieldTitle, strings.Repeat("а", 101), "Максимальна довжина: 100 символів"},
		{FieldTitle, "Молитва <script>", "Недопустимі символи в полі"},
		{FieldLat, "abc", "Введіть коректне число"},
		{FieldLat, "60", "Значення має бути не більше 52"},
		{FieldLat, "40.5", "Значення має бути не менше 44"},
		{FieldLng, "41", "Значення має бути не більше 40"},
		{FieldProgramLink, "not a url", "Введіть коректний URL"},
		{FieldDate, "вчора", "Некоректна дата"},
		{FieldDate, "2020-01-01", "Дата не може бути більше року тому"},
		{FieldDate, "2030-01-01", "Дата здається занадто далекою в майбутньому"},
		{FieldDescription, "коротко", "Мінімальна довжина: 10 символів"},
	}
	for _, tc := range cases {
		got := v.ValidateField(tc.field, tc.value)
		if got.Valid {
			t.Fatalf("%s=%q: expected invalid", tc.field, tc.value)
		}
		if got.Error != tc.want {
			t.Fatalf("%s=%q: error=%q want=%q", tc.field, tc.value, got.Error, tc.want)
		}
	}
}

func TestValidateFieldAccepts(t *testing.T) {
	v := newTestValidator()

	ok := map[string]string{
		FieldTitle:           "Зустріч (молодь), Київ!",
		FieldLat:             "44",
		FieldLng:             "40",
		FieldDate:            "2024-06-15",
		FieldFullDescription: "",
		FieldProgramLink:     "https://example.org/program.pdf",
		"unknown-field":      "anything at all",
	}
	for field, value := range ok {
		if r := v.ValidateField(field, value); !r.Valid {
			t.Fatalf("%s=%q: unexpected error %q", field, value, r.Error)
		}
	}
}

func TestValidateForm(t *testing.T) {
	v := newTestValidator()

	form := validForm()
	if !v.ValidateForm(form) {
		t.Fatalf("valid form rejected: %v", v.ValidateFormErrors(form))
	}

	delete(form, FieldLocation)
	form[FieldLat] = "60"
	errs := v.ValidateFormErrors(form)
	if v.ValidateForm(form) {
		t.Fatal("invalid form accepted")
	}
	if len(errs) != 2 || errs[FieldLocation] == "" || errs[FieldLat] == "" {
		t.Fatalf("errors=%v", errs)
	}
}

func TestValidateEventCoordinates(t *testing.T) {
	v := newTestValidator()

	ev := models.Event{
		ID:          1,
		Title:       "Молитва Тезе",
		Date:        "2025-09-10T19:00",
		Location:    "Тернопіль",
		Lat:         50.0,
		Lng:         30.0,
		Description: "Спільна молитва зі співами",
	}
	if err := v.ValidateEvent(ev); err != nil {
		t.Fatalf("validate (50,30): %v", err)
	}

	ev.Lat = 60.0
	err := v.ValidateEvent(ev)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err=%v want *ValidationError", err)
	}
	if _, ok := verr.Fields[FieldLat]; !ok || len(verr.Fields) != 1 {
		t.Fatalf("fields=%v want only %s", verr.Fields, FieldLat)
	}
}

func TestBuildEvent(t *testing.T) {
	v := newTestValidator()

	form := validForm()
	form[FieldPhotos] = "https://a.example/1.jpg, , not-a-url,https://a.example/2.jpg"
	ev, err := v.BuildEvent(form)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if ev.ID != fixedNow().UnixMilli() {
		t.Fatalf("id=%d", ev.ID)
	}
	if ev.FullDescription != ev.Description {
		t.Fatalf("fullDescription=%q want description", ev.FullDescription)
	}
	if len(ev.Photos) != 2 || ev.Photos[0] != "https://a.example/1.jpg" || ev.Photos[1] != "https://a.example/2.jpg" {
		t.Fatalf("photos=%v", ev.Photos)
	}
	if ev.Lat != 49.8397 || ev.Lng != 24.0297 {
		t.Fatalf("coords=%v,%v", ev.Lat, ev.Lng)
	}
	if !ev.Complete() {
		t.Fatal("built event is incomplete")
	}

	form[FieldTitle] = ""
	if _, err := v.BuildEvent(form); err == nil {
		t.Fatal("expected error for empty title")
	}
}
