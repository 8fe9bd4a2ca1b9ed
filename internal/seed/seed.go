package seed

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"taize-events/internal/models"
)

//go:embed seed.yaml
var defaultYAML []byte

// Parse decodes a YAML list of events. Records without an id get
// base+index.
func Parse(data []byte, base int64) ([]models.Event, error) {
	var events []models.Event
	if err := yaml.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	for i := range events {
		if events[i].ID == 0 {
			events[i].ID = base + int64(i)
		}
		if events[i].Photos == nil {
			events[i].Photos = []string{}
		}
	}
	return events, nil
}

// Defaults returns the built-in example events with ids derived from now.
func Defaults(now time.Time) []models.Event {
	events, err := Parse(defaultYAML, now.UnixMilli())
	if err != nil {
		panic(err)
	}
	return events
}
