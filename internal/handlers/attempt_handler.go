package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classward/attempt-engine/internal/cache"
	"github.com/classward/attempt-engine/internal/engine"
	"github.com/classward/attempt-engine/internal/events"
	"github.com/classward/attempt-engine/internal/models"
	"github.com/classward/attempt-engine/internal/proctoring"
	"github.com/classward/attempt-engine/internal/utils"
)

// AttemptHandler exposes the attempt lifecycle over HTTP. Every route
// resolves the caller's controller through the registry, which enforces
// ownership.
type AttemptHandler struct {
	BaseHandler
	registry  *engine.Registry
	snapshots *cache.SnapshotStore
	monitor   *proctoring.Monitor
	publisher events.EventPublisher
	validator *utils.Validator
}

func NewAttemptHandler(
	registry *engine.Registry,
	snapshots *cache.SnapshotStore,
	monitor *proctoring.Monitor,
	publisher events.EventPublisher,
	validator *utils.Validator,
	logger utils.Logger,
) *AttemptHandler {
	if publisher == nil {
		publisher = events.NopEventPublisher{}
	}
	return &AttemptHandler{
		BaseHandler: NewBaseHandler(logger),
		registry:    registry,
		snapshots:   snapshots,
		monitor:     monitor,
		publisher:   publisher,
		validator:   validator,
	}
}

// ===== REQUEST STRUCTURES =====

type StartAttemptRequest struct {
	TestID string `json:"test_id" validate:"required"`
}

type SubmitAnswerRequest struct {
	QuestionID string `json:"question_id" validate:"required"`
	Selected   string `json:"selected,omitempty"`
	Text       string `json:"text,omitempty"`
}

type NavigateRequest struct {
	Direction string `json:"direction" validate:"required,nav_direction"`
}

type ProctorEventRequest struct {
	Type       string `json:"type" validate:"required,proctor_event"`
	QuestionID string `json:"question_id,omitempty"`
	TimeOffset int    `json:"time_offset" validate:"min=0"`
}

// ===== ROUTES =====

// StartAttempt requests a new attempt from the grading service and
// activates its first section.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	var req StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request payload", Details: err.Error()})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleEngineError(c, err)
		return
	}

	studentID := CurrentStudentID(c)
	h.LogRequest(c, "Starting attempt", "test_id", req.TestID)

	controller, err := h.registry.StartAttempt(c.Request.Context(), req.TestID, studentID)
	if err != nil {
		h.handleEngineError(c, err)
		return
	}

	view, err := controller.State()
	if err != nil {
		h.handleEngineError(c, err)
		return
	}

	started := events.NewAttemptStartedEvent(view.AttemptID, view.TestID, studentID, view.TotalSections, view.StartedAt)
	if err := h.publisher.PublishAttemptEvent(c.Request.Context(), started); err != nil {
		h.LogError(c, err, "Failed to publish attempt started event")
	}

	c.JSON(http.StatusCreated, view)
}

// GetAttempt returns the live view, falling back to the redis snapshot
// when the controller is gone (restart, eviction).
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}

	controller, err := h.registry.Get(attemptID, CurrentStudentID(c))
	if err != nil {
		if errors.Is(err, engine.ErrAttemptNotFound) && h.snapshots != nil {
			h.getSnapshot(c, attemptID)
			return
		}
		h.handleEngineError(c, err)
		return
	}

	view, err := controller.State()
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *AttemptHandler) getSnapshot(c *gin.Context, attemptID string) {
	view, err := h.snapshots.Load(c.Request.Context(), attemptID)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			c.JSON(http.StatusNotFound, ErrorResponse{Message: "Attempt not found"})
			return
		}
		h.handleEngineError(c, err)
		return
	}
	if view.StudentID != CurrentStudentID(c) {
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "Attempt belongs to another student"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// SubmitAnswer validates and records an answer for the active section.
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	controller := h.controllerFor(c)
	if controller == nil {
		return
	}

	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request payload", Details: err.Error()})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleEngineError(c, err)
		return
	}

	input := engine.AnswerInput{Selected: req.Selected, Text: req.Text}
	if err := controller.Answer(req.QuestionID, input); err != nil {
		h.handleEngineError(c, err)
		return
	}

	h.respondWithState(c, controller)
}

// Navigate moves the question cursor within the active section.
func (h *AttemptHandler) Navigate(c *gin.Context) {
	controller := h.controllerFor(c)
	if controller == nil {
		return
	}

	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request payload", Details: err.Error()})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleEngineError(c, err)
		return
	}

	if err := controller.Navigate(req.Direction); err != nil {
		h.handleEngineError(c, err)
		return
	}
	h.respondWithState(c, controller)
}

// AdvanceSection submits the completed section and opens the next one.
func (h *AttemptHandler) AdvanceSection(c *gin.Context) {
	controller := h.controllerFor(c)
	if controller == nil {
		return
	}

	if err := controller.AdvanceSection(); err != nil {
		h.handleEngineError(c, err)
		return
	}
	h.respondWithState(c, controller)
}

// SubmitTest ends the attempt early, submitting every remaining section.
func (h *AttemptHandler) SubmitTest(c *gin.Context) {
	controller := h.controllerFor(c)
	if controller == nil {
		return
	}

	h.LogRequest(c, "Submitting test", "attempt_id", controller.AttemptID())

	if err := controller.SubmitTest(); err != nil {
		h.handleEngineError(c, err)
		return
	}
	h.respondWithState(c, controller)
}

// RetrySubmission re-dispatches failed section submissions.
func (h *AttemptHandler) RetrySubmission(c *gin.Context) {
	controller := h.controllerFor(c)
	if controller == nil {
		return
	}

	if err := controller.RetrySubmission(); err != nil {
		h.handleEngineError(c, err)
		return
	}
	h.respondWithState(c, controller)
}

// Abandon ends the attempt without submitting.
func (h *AttemptHandler) Abandon(c *gin.Context) {
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}

	h.LogRequest(c, "Abandoning attempt", "attempt_id", attemptID)

	controller, err := h.registry.Get(attemptID, CurrentStudentID(c))
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	testID := controller.TestID()

	if err := h.registry.Abandon(attemptID, CurrentStudentID(c)); err != nil {
		h.handleEngineError(c, err)
		return
	}

	abandoned := events.NewAttemptAbandonedEvent(attemptID, testID, CurrentStudentID(c))
	if err := h.publisher.PublishAttemptEvent(c.Request.Context(), abandoned); err != nil {
		h.LogError(c, err, "Failed to publish attempt abandoned event")
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Attempt abandoned"})
}

// GetTimeRemaining returns the active section's countdown.
func (h *AttemptHandler) GetTimeRemaining(c *gin.Context) {
	controller := h.controllerFor(c)
	if controller == nil {
		return
	}

	view, err := controller.State()
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"attempt_id":        view.AttemptID,
		"section_index":     view.SectionIndex,
		"remaining_seconds": view.RemainingSeconds,
		"status":            view.Status,
	})
}

// ReviewSection returns a read-only view of a submitted section.
func (h *AttemptHandler) ReviewSection(c *gin.Context) {
	controller := h.controllerFor(c)
	if controller == nil {
		return
	}

	index := ParseIntParam(c, "index")
	if index < 0 {
		return
	}

	section, err := controller.ReviewSection(index)
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, section)
}

// ReportProctorEvent records an anti-cheat signal. Signals never change
// attempt state.
func (h *AttemptHandler) ReportProctorEvent(c *gin.Context) {
	controller := h.controllerFor(c)
	if controller == nil {
		return
	}

	var req ProctorEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request payload", Details: err.Error()})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleEngineError(c, err)
		return
	}

	count, err := h.monitor.Report(c.Request.Context(), models.ProctorEvent{
		AttemptID:  controller.AttemptID(),
		StudentID:  controller.StudentID(),
		Type:       models.ProctorEventType(req.Type),
		QuestionID: req.QuestionID,
		TimeOffset: req.TimeOffset,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Unknown proctor event type"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"warning_count": count})
}

// ===== HELPERS =====

func (h *AttemptHandler) controllerFor(c *gin.Context) *engine.Controller {
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return nil
	}

	controller, err := h.registry.Get(attemptID, CurrentStudentID(c))
	if err != nil {
		h.handleEngineError(c, err)
		return nil
	}
	return controller
}

func (h *AttemptHandler) respondWithState(c *gin.Context, controller *engine.Controller) {
	view, err := controller.State()
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
