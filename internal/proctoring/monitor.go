package proctoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/classward/attempt-engine/internal/events"
	"github.com/classward/attempt-engine/internal/models"
	"github.com/classward/attempt-engine/internal/utils"
)

// ErrUnknownEventType is returned for signal types the monitor does not
// recognize.
var ErrUnknownEventType = fmt.Errorf("unknown proctor event type")

// Monitor counts anti-cheat signals per attempt and forwards each one to
// the event broker. Signals never alter attempt state; the count is
// attached to the archived record when the attempt completes.
type Monitor struct {
	publisher events.EventPublisher
	logger    utils.Logger

	mu       sync.Mutex
	warnings map[string]int
}

func NewMonitor(publisher events.EventPublisher, logger utils.Logger) *Monitor {
	if publisher == nil {
		publisher = events.NopEventPublisher{}
	}
	if logger == nil {
		logger = utils.NewDefaultLogger()
	}
	return &Monitor{
		publisher: publisher,
		logger:    logger,
		warnings:  make(map[string]int),
	}
}

// Report records one signal for an attempt and publishes it with the
// running warning count. The publish is best-effort; a broker failure
// never loses the count.
func (m *Monitor) Report(ctx context.Context, signal models.ProctorEvent) (int, error) {
	if !models.ValidProctorEventType(signal.Type) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownEventType, signal.Type)
	}

	if signal.ID == "" {
		signal.ID = uuid.NewString()
	}
	if signal.OccurredAt.IsZero() {
		signal.OccurredAt = time.Now()
	}

	m.mu.Lock()
	m.warnings[signal.AttemptID]++
	count := m.warnings[signal.AttemptID]
	m.mu.Unlock()

	m.logger.Warn("Proctor signal recorded",
		"attempt_id", signal.AttemptID,
		"event_type", signal.Type,
		"warning_count", count)

	if err := m.publisher.PublishAttemptEvent(ctx, events.NewProctorWarningEvent(signal, count)); err != nil {
		m.logger.LogError(err, "Failed to publish proctor warning", "attempt_id", signal.AttemptID)
	}

	return count, nil
}

// WarningCount returns the number of signals recorded for an attempt.
func (m *Monitor) WarningCount(attemptID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warnings[attemptID]
}

// Forget drops an attempt's count once the attempt has been archived or
// abandoned.
func (m *Monitor) Forget(attemptID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.warnings, attemptID)
}
