package notify

import (
	"context"

	"github.com/artpar/subgate/ports"
	"github.com/rs/zerolog"
)

// LogNotifier writes notifications to the structured log. Useful when no
// outbound delivery channel is configured; operators tail the log instead.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notifier").Logger()}
}

// ThresholdCrossed logs a usage warning.
func (n *LogNotifier) ThresholdCrossed(ctx context.Context, notice ports.ThresholdNotice) error {
	n.logger.Warn().
		Str("owner_id", notice.OwnerID).
		Str("component", notice.ComponentID).
		Int64("used", notice.Used).
		Int64("limit", notice.Limit).
		Int("boundary_pct", notice.Boundary).
		Msg("usage threshold crossed")
	return nil
}

// StateChanged logs a subscription status change.
func (n *LogNotifier) StateChanged(ctx context.Context, notice ports.StateNotice) error {
	n.logger.Info().
		Str("owner_id", notice.OwnerID).
		Str("subscription_id", notice.SubscriptionID).
		Str("old_status", string(notice.OldStatus)).
		Str("new_status", string(notice.NewStatus)).
		Msg("subscription state changed")
	return nil
}

// PeriodReport logs the prior-period usage summary.
func (n *LogNotifier) PeriodReport(ctx context.Context, notice ports.ReportNotice) error {
	ev := n.logger.Info().
		Str("owner_id", notice.OwnerID).
		Str("subscription_id", notice.SubscriptionID).
		Time("period_start", notice.PeriodStart).
		Time("period_end", notice.PeriodEnd)
	for comp, total := range notice.Totals {
		ev = ev.Int64("usage_"+comp, total)
	}
	ev.Msg("period usage report")
	return nil
}

// Ensure interface compliance.
var _ ports.Notifier = (*LogNotifier)(nil)
