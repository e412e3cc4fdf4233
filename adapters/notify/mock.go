package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/artpar/subgate/ports"
)

// Mock is a notifier for testing. It stores notifications in memory
// instead of delivering them.
type Mock struct {
	mu         sync.Mutex
	Thresholds []ports.ThresholdNotice
	States     []ports.StateNotice
	Reports    []ports.ReportNotice

	// Optional: fail if set
	ShouldFail bool
	FailError  error
}

// NewMock creates a new mock notifier.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) fail() error {
	if !m.ShouldFail {
		return nil
	}
	if m.FailError != nil {
		return m.FailError
	}
	return fmt.Errorf("mock notifier failure")
}

// ThresholdCrossed stores the notice.
func (m *Mock) ThresholdCrossed(ctx context.Context, n ports.ThresholdNotice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	m.Thresholds = append(m.Thresholds, n)
	return nil
}

// StateChanged stores the notice.
func (m *Mock) StateChanged(ctx context.Context, n ports.StateNotice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	m.States = append(m.States, n)
	return nil
}

// PeriodReport stores the notice.
func (m *Mock) PeriodReport(ctx context.Context, n ports.ReportNotice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	m.Reports = append(m.Reports, n)
	return nil
}

// ThresholdCount returns how many threshold notices were recorded.
func (m *Mock) ThresholdCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Thresholds)
}

// StateCount returns how many state notices were recorded.
func (m *Mock) StateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.States)
}

// Clear removes all recorded notices.
func (m *Mock) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Thresholds = nil
	m.States = nil
	m.Reports = nil
}

// Ensure interface compliance.
var _ ports.Notifier = (*Mock)(nil)
