package proctoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classward/attempt-engine/internal/events"
	"github.com/classward/attempt-engine/internal/models"
	"github.com/classward/attempt-engine/internal/utils"
)

func newTestMonitor() (*Monitor, *events.MockEventPublisher) {
	logger := utils.NewDevelopmentLogger()
	publisher := events.NewMockEventPublisher(utils.ToSlogLogger(logger))
	return NewMonitor(publisher, logger), publisher
}

func TestMonitor_CountsPerAttempt(t *testing.T) {
	monitor, _ := newTestMonitor()
	ctx := context.Background()

	count, err := monitor.Report(ctx, models.ProctorEvent{
		AttemptID: "att-1", StudentID: "student-1", Type: models.EventTabSwitch,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = monitor.Report(ctx, models.ProctorEvent{
		AttemptID: "att-1", StudentID: "student-1", Type: models.EventWindowBlur,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Counts are per attempt.
	count, err = monitor.Report(ctx, models.ProctorEvent{
		AttemptID: "att-2", StudentID: "student-2", Type: models.EventCopyPaste,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Equal(t, 2, monitor.WarningCount("att-1"))
	assert.Equal(t, 1, monitor.WarningCount("att-2"))
}

func TestMonitor_PublishesWarningEvents(t *testing.T) {
	monitor, publisher := newTestMonitor()

	_, err := monitor.Report(context.Background(), models.ProctorEvent{
		AttemptID:  "att-1",
		StudentID:  "student-1",
		Type:       models.EventFullscreenExit,
		QuestionID: "q-3",
	})
	require.NoError(t, err)

	published := publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventProctorWarning, published[0].Type)

	payload, ok := published[0].Data.(events.ProctorWarningEvent)
	require.True(t, ok)
	assert.Equal(t, "att-1", payload.AttemptID)
	assert.Equal(t, models.EventFullscreenExit, payload.EventType)
	assert.Equal(t, 1, payload.WarningCount)
	assert.Equal(t, "q-3", payload.QuestionID)
	assert.NotEmpty(t, published[0].ID)
}

func TestMonitor_RejectsUnknownType(t *testing.T) {
	monitor, publisher := newTestMonitor()

	_, err := monitor.Report(context.Background(), models.ProctorEvent{
		AttemptID: "att-1", Type: models.ProctorEventType("telepathy"),
	})
	assert.ErrorIs(t, err, ErrUnknownEventType)
	assert.Empty(t, publisher.GetPublishedEvents())
	assert.Equal(t, 0, monitor.WarningCount("att-1"))
}

func TestMonitor_Forget(t *testing.T) {
	monitor, _ := newTestMonitor()

	_, err := monitor.Report(context.Background(), models.ProctorEvent{
		AttemptID: "att-1", Type: models.EventRightClick,
	})
	require.NoError(t, err)

	monitor.Forget("att-1")
	assert.Equal(t, 0, monitor.WarningCount("att-1"))
}
