package notify

import (
	"context"

	"github.com/artpar/subgate/ports"
)

// NoopNotifier is a no-op notifier for when notifications are disabled.
type NoopNotifier struct{}

// NewNoopNotifier creates a new no-op notifier.
func NewNoopNotifier() *NoopNotifier {
	return &NoopNotifier{}
}

// ThresholdCrossed does nothing.
func (NoopNotifier) ThresholdCrossed(ctx context.Context, n ports.ThresholdNotice) error {
	return nil
}

// StateChanged does nothing.
func (NoopNotifier) StateChanged(ctx context.Context, n ports.StateNotice) error {
	return nil
}

// PeriodReport does nothing.
func (NoopNotifier) PeriodReport(ctx context.Context, n ports.ReportNotice) error {
	return nil
}

// Ensure interface compliance.
var _ ports.Notifier = NoopNotifier{}
