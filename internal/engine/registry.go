package engine

import (
	"context"
	"sync"

	"github.com/classward/attempt-engine/internal/utils"
)

// Registry holds every live attempt controller, keyed by attempt ID. It
// enforces ownership: only the student who started an attempt may operate
// on it. Completed and abandoned attempts are evicted.
type Registry struct {
	mu          sync.RWMutex
	controllers map[string]*Controller

	deps   Deps
	logger utils.Logger
}

// NewRegistry builds a registry whose controllers share deps. The
// registry chains its own eviction onto any completion hook in deps.
func NewRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = utils.NewDefaultLogger()
	}
	r := &Registry{
		controllers: make(map[string]*Controller),
		deps:        deps,
		logger:      deps.Logger,
	}

	userHook := deps.OnCompleted
	r.deps.OnCompleted = func(completed CompletedAttempt) {
		if userHook != nil {
			userHook(completed)
		}
		r.Remove(completed.View.AttemptID)
	}
	return r
}

// StartAttempt starts a new attempt for a student and registers its
// controller.
func (r *Registry) StartAttempt(ctx context.Context, testID, studentID string) (*Controller, error) {
	controller, err := Start(ctx, testID, studentID, r.deps)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.controllers[controller.AttemptID()] = controller
	r.mu.Unlock()

	return controller, nil
}

// Get returns the controller for an attempt, checking that studentID owns
// it. Unknown attempts and foreign attempts are indistinguishable to the
// caller apart from the error.
func (r *Registry) Get(attemptID, studentID string) (*Controller, error) {
	r.mu.RLock()
	controller, ok := r.controllers[attemptID]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrAttemptNotFound
	}
	if controller.StudentID() != studentID {
		return nil, ErrAttemptAccessDenied
	}
	return controller, nil
}

// Abandon ends an attempt and evicts its controller. The abandon hook
// releases per-attempt resources held outside the engine (warning
// counters, recorders).
func (r *Registry) Abandon(attemptID, studentID string) error {
	controller, err := r.Get(attemptID, studentID)
	if err != nil {
		return err
	}
	if err := controller.Abandon(); err != nil {
		return err
	}
	r.Remove(attemptID)
	if r.deps.OnAbandoned != nil {
		r.deps.OnAbandoned(attemptID)
	}
	return nil
}

// Remove drops a controller from the registry and stops its event loop.
// Safe to call for attempts that were already removed.
func (r *Registry) Remove(attemptID string) {
	r.mu.Lock()
	controller, ok := r.controllers[attemptID]
	delete(r.controllers, attemptID)
	r.mu.Unlock()

	if ok {
		controller.Close()
		r.logger.Debug("Attempt controller removed", "attempt_id", attemptID)
	}
}

// Len reports the number of live attempts, for the health endpoint.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.controllers)
}

// CloseAll stops every live controller. Called on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for attemptID, controller := range r.controllers {
		controller.Close()
		delete(r.controllers, attemptID)
	}
}
