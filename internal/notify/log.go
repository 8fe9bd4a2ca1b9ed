package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes messages to the service log at a level matching the
// severity.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notify")}
}

func (l *LogNotifier) Name() string { return "log" }

func (l *LogNotifier) Notify(ctx context.Context, message string, sev Severity) error {
	f := zap.String("severity", string(sev))
	switch sev {
	case Error:
		l.log.Error(message, f)
	case Warning:
		l.log.Warn(message, f)
	default:
		l.log.Info(message, f)
	}
	return nil
}
