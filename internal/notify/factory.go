package notify

import (
	"fmt"

	"go.uber.org/zap"

	"taize-events/internal/config"
)

func NewFromConfig(cfg config.NotifyConfig, log *zap.Logger) (Notifier, error) {
	switch cfg.Provider {
	case "log", "":
		return NewLogNotifier(log), nil
	case "webhook":
		return &WebhookNotifier{URL: cfg.WebhookURL, Secret: cfg.WebhookSecret}, nil
	case "none":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown notify provider: %s", cfg.Provider)
	}
}
