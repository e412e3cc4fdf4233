// Package notify provides Notifier implementations: structured-log,
// outbound-webhook, no-op and an in-memory mock for tests.
package notify

import (
	"fmt"

	"github.com/artpar/subgate/ports"
	"github.com/rs/zerolog"
)

// Config selects and configures the notifier implementation.
type Config struct {
	Mode       string // "log", "webhook", "none"
	WebhookURL string
	Secret     string // HMAC signing secret for webhook payloads
}

// New creates a notifier from config.
func New(cfg Config, logger zerolog.Logger) (ports.Notifier, error) {
	switch cfg.Mode {
	case "log", "":
		return NewLogNotifier(logger), nil
	case "webhook":
		if cfg.WebhookURL == "" {
			return nil, fmt.Errorf("webhook notifier requires a URL")
		}
		return NewWebhookNotifier(cfg.WebhookURL, cfg.Secret, logger), nil
	case "none":
		return NewNoopNotifier(), nil
	default:
		return nil, fmt.Errorf("unknown notifier mode: %s", cfg.Mode)
	}
}
