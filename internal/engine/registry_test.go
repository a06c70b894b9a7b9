package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classward/attempt-engine/internal/utils"
)

func newTestRegistry(fc *fakeCoordinator) *Registry {
	return NewRegistry(Deps{
		Coordinator: fc,
		Logger:      utils.NewDevelopmentLogger(),
		Tick:        time.Hour,
	})
}

func TestRegistry_OwnershipCheck(t *testing.T) {
	registry := newTestRegistry(newFakeCoordinator(twoSectionTest()))
	t.Cleanup(registry.CloseAll)

	controller, err := registry.StartAttempt(context.Background(), "t-1", "student-1")
	require.NoError(t, err)

	got, err := registry.Get(controller.AttemptID(), "student-1")
	require.NoError(t, err)
	assert.Same(t, controller, got)

	_, err = registry.Get(controller.AttemptID(), "student-2")
	assert.ErrorIs(t, err, ErrAttemptAccessDenied)

	_, err = registry.Get("no-such-attempt", "student-1")
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestRegistry_AbandonEvicts(t *testing.T) {
	registry := newTestRegistry(newFakeCoordinator(twoSectionTest()))
	t.Cleanup(registry.CloseAll)

	controller, err := registry.StartAttempt(context.Background(), "t-1", "student-1")
	require.NoError(t, err)
	require.Equal(t, 1, registry.Len())

	require.NoError(t, registry.Abandon(controller.AttemptID(), "student-1"))
	assert.Equal(t, 0, registry.Len())

	_, err = registry.Get(controller.AttemptID(), "student-1")
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestRegistry_AbandonRunsCleanupHook(t *testing.T) {
	fc := newFakeCoordinator(twoSectionTest())
	released := make(chan string, 1)

	registry := NewRegistry(Deps{
		Coordinator: fc,
		Logger:      utils.NewDevelopmentLogger(),
		Tick:        time.Hour,
		OnAbandoned: func(attemptID string) {
			released <- attemptID
		},
	})
	t.Cleanup(registry.CloseAll)

	controller, err := registry.StartAttempt(context.Background(), "t-1", "student-1")
	require.NoError(t, err)

	require.NoError(t, registry.Abandon(controller.AttemptID(), "student-1"))

	select {
	case attemptID := <-released:
		assert.Equal(t, controller.AttemptID(), attemptID)
	case <-time.After(time.Second):
		t.Fatal("abandon hook never ran")
	}
}

func TestRegistry_CompletionEvictsAndRunsHook(t *testing.T) {
	fc := newFakeCoordinator(twoSectionTest())
	hooked := make(chan CompletedAttempt, 1)

	registry := NewRegistry(Deps{
		Coordinator: fc,
		Logger:      utils.NewDevelopmentLogger(),
		Tick:        time.Hour,
		OnCompleted: func(completed CompletedAttempt) {
			hooked <- completed
		},
	})
	t.Cleanup(registry.CloseAll)

	controller, err := registry.StartAttempt(context.Background(), "t-1", "student-1")
	require.NoError(t, err)

	require.NoError(t, controller.Answer("q-1", AnswerInput{Selected: "A"}))
	require.NoError(t, controller.SubmitTest())

	select {
	case completed := <-hooked:
		assert.Equal(t, controller.AttemptID(), completed.View.AttemptID)
		assert.Len(t, completed.Answers, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("completion hook never ran")
	}

	assert.Eventually(t, func() bool {
		return registry.Len() == 0
	}, time.Second, 5*time.Millisecond)
}
