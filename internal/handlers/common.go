package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/classward/attempt-engine/internal/audio"
	"github.com/classward/attempt-engine/internal/engine"
	apperrors "github.com/classward/attempt-engine/internal/errors"
	"github.com/classward/attempt-engine/internal/remote"
	"github.com/classward/attempt-engine/internal/utils"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides common logging functionality for all handlers
type BaseHandler struct {
	logger utils.Logger
}

// NewBaseHandler creates a new base handler with logging capability
func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{
		logger: logger,
	}
}

// LogRequest logs incoming HTTP requests with context information
func (h *BaseHandler) LogRequest(c *gin.Context, message string, additionalFields ...interface{}) {
	fields := []interface{}{
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"remote_addr", c.ClientIP(),
		"request_id", c.GetHeader("X-Request-ID"),
		"student_id", CurrentStudentID(c),
	}
	fields = append(fields, additionalFields...)
	h.logger.Info(message, fields...)
}

// LogError logs error details with context information
func (h *BaseHandler) LogError(c *gin.Context, err error, message string, additionalFields ...interface{}) {
	fields := []interface{}{
		"request_id", c.GetHeader("X-Request-ID"),
		"student_id", CurrentStudentID(c),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}
	fields = append(fields, additionalFields...)
	h.logger.LogError(err, message, fields...)
}

// CurrentStudentID returns the authenticated student's id set by the auth
// middleware, or "" when unauthenticated.
func CurrentStudentID(c *gin.Context) string {
	if studentID, exists := c.Get("user_id"); exists {
		if s, ok := studentID.(string); ok {
			return s
		}
	}
	return ""
}

// ParseStringIDParam extracts a non-empty path parameter or writes a 400.
func ParseStringIDParam(c *gin.Context, param string) string {
	idStr := strings.TrimSpace(c.Param(param))
	if idStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID cannot be empty",
		})
	}
	return idStr
}

// ParseIntParam extracts an integer path parameter or writes a 400 and
// returns -1.
func ParseIntParam(c *gin.Context, param string) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.Param(param)))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "must be an integer",
		})
		return -1
	}
	return n
}

// handleEngineError maps domain errors onto HTTP status codes.
func (h *BaseHandler) handleEngineError(c *gin.Context, err error) {
	var verrs apperrors.ValidationErrors
	var startErr *engine.StartError

	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Validation failed", Details: verrs})

	case errors.Is(err, engine.ErrAttemptNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Attempt not found"})
	case errors.Is(err, engine.ErrAttemptAccessDenied):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "Attempt belongs to another student"})

	case errors.Is(err, engine.ErrOutOfScopeAnswer):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Question is not part of the active section", Code: "out_of_scope"})
	case errors.Is(err, engine.ErrInvalidAnswer):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Answer does not match the question type", Code: "invalid_answer"})
	case errors.Is(err, engine.ErrSectionNotComplete):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Every question must be answered before advancing", Code: "section_incomplete"})
	case errors.Is(err, engine.ErrAlreadySubmitting):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Submission is already in progress", Code: "already_submitting"})
	case errors.Is(err, engine.ErrReviewNotAllowed):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Only submitted sections can be reviewed", Code: "review_not_allowed"})
	case errors.Is(err, engine.ErrNothingToRetry):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "No failed submissions to retry", Code: "nothing_to_retry"})
	case errors.Is(err, engine.ErrAttemptNotActive), errors.Is(err, engine.ErrAttemptEnded):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Attempt is no longer active", Code: "attempt_ended"})

	case errors.Is(err, audio.ErrRecorderBusy):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Another recording is in progress", Code: "recorder_busy"})
	case errors.Is(err, audio.ErrNoActiveRecording), errors.Is(err, audio.ErrRecordingMismatch):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "No matching recording in progress"})
	case errors.Is(err, audio.ErrClipTooLong):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Recording exceeded the allowed length", Code: "clip_too_long"})

	case errors.As(err, &startErr):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Attempt refused", Details: startErr.Reason, Code: "start_rejected"})
	case errors.Is(err, remote.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "Grading service rejected the engine credential"})
	case remote.IsSubmissionFailed(err):
		c.JSON(http.StatusBadGateway, ErrorResponse{Message: "Submission failed after retries; answers are preserved", Code: "submission_failed"})
	case remote.IsRetryable(err):
		c.JSON(http.StatusBadGateway, ErrorResponse{Message: "Grading service unreachable"})

	default:
		h.LogError(c, err, "Unhandled engine error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
	}
}
