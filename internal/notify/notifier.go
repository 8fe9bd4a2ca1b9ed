package notify

import (
	"context"
	"errors"
)

type Severity string

const (
	Success Severity = "success"
	Info    Severity = "info"
	Warning Severity = "warning"
	Error   Severity = "error"
)

// Notifier delivers a user-facing message. Delivery failures are returned
// to the caller, who decides whether they matter.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, message string, sev Severity) error
}

// Multi fans a message out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Notify(ctx context.Context, message string, sev Severity) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, message, sev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every message.
type Nop struct{}

func (Nop) Name() string { return "none" }

func (Nop) Notify(context.Context, string, Severity) error { return nil }
