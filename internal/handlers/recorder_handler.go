package handlers

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/classward/attempt-engine/internal/audio"
	"github.com/classward/attempt-engine/internal/cache"
	"github.com/classward/attempt-engine/internal/engine"
	"github.com/classward/attempt-engine/internal/models"
	"github.com/classward/attempt-engine/internal/speech"
	"github.com/classward/attempt-engine/internal/utils"
)

const clipTTL = 24 * time.Hour

// RecorderHandler owns one exclusive recorder per attempt. Stopping a
// recording transcribes the clip, scores it against the expected
// transcript, and records the result as the question's answer.
type RecorderHandler struct {
	BaseHandler
	registry    *engine.Registry
	transcriber audio.Transcriber
	speech      *speech.Validator
	clips       cache.CacheService

	mu        sync.Mutex
	recorders map[string]*audio.Recorder
}

func NewRecorderHandler(
	registry *engine.Registry,
	transcriber audio.Transcriber,
	clips cache.CacheService,
	logger utils.Logger,
) *RecorderHandler {
	return &RecorderHandler{
		BaseHandler: NewBaseHandler(logger),
		registry:    registry,
		transcriber: transcriber,
		speech:      speech.NewValidator(),
		clips:       clips,
		recorders:   make(map[string]*audio.Recorder),
	}
}

// StartRecording acquires the attempt's recorder for a speech question.
func (h *RecorderHandler) StartRecording(c *gin.Context) {
	controller, question, ok := h.speechQuestion(c)
	if !ok {
		return
	}

	recorder := h.recorderFor(controller.AttemptID())
	if err := recorder.Start(question.ID, question.MaxRecordSeconds); err != nil {
		h.handleEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question_id":        question.ID,
		"max_record_seconds": question.MaxRecordSeconds,
	})
}

// StopRecording closes the session with the uploaded clip, transcribes
// it, scores the transcript, and stores the answer. A transcription
// failure releases the device but keeps the question answerable.
func (h *RecorderHandler) StopRecording(c *gin.Context) {
	controller, question, ok := h.speechQuestion(c)
	if !ok {
		return
	}

	clipBytes, err := readClip(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid audio payload", Details: err.Error()})
		return
	}

	recorder := h.recorderFor(controller.AttemptID())
	if len(clipBytes) > 0 {
		if err := recorder.Append(question.ID, clipBytes); err != nil {
			h.handleEngineError(c, err)
			return
		}
	}

	clip, err := recorder.Stop(question.ID)
	if err != nil {
		h.handleEngineError(c, err)
		return
	}

	transcript, err := h.transcriber.Transcribe(c.Request.Context(), question.ID+".webm", clip.Data)
	if err != nil {
		h.LogError(c, err, "Transcription failed", "question_id", question.ID)
		c.JSON(http.StatusBadGateway, ErrorResponse{Message: "Transcription failed; record again", Code: "transcription_failed"})
		return
	}

	validation := h.speech.Compare(question.ExpectedTranscript, transcript)
	blobRef := h.storeClip(c, controller.AttemptID(), clip)

	input := engine.AnswerInput{
		Transcript:   transcript,
		AudioBlobRef: blobRef,
		Validation:   &validation,
	}
	if err := controller.Answer(question.ID, input); err != nil {
		h.handleEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question_id":    question.ID,
		"transcript":     transcript,
		"audio_blob_ref": blobRef,
		"validation":     validation,
	})
}

// AbortRecording discards the attempt's open session, if any.
func (h *RecorderHandler) AbortRecording(c *gin.Context) {
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}
	if _, err := h.registry.Get(attemptID, CurrentStudentID(c)); err != nil {
		h.handleEngineError(c, err)
		return
	}

	h.recorderFor(attemptID).Abort()
	c.JSON(http.StatusOK, SuccessResponse{Message: "Recording discarded"})
}

// ===== HELPERS =====

func (h *RecorderHandler) speechQuestion(c *gin.Context) (*engine.Controller, models.Question, bool) {
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return nil, models.Question{}, false
	}
	questionID := ParseStringIDParam(c, "question_id")
	if questionID == "" {
		return nil, models.Question{}, false
	}

	controller, err := h.registry.Get(attemptID, CurrentStudentID(c))
	if err != nil {
		h.handleEngineError(c, err)
		return nil, models.Question{}, false
	}

	question, found := controller.QuestionByID(questionID)
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Question not found"})
		return nil, models.Question{}, false
	}
	if question.Type != models.SpeechResponse {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Question does not take a spoken answer"})
		return nil, models.Question{}, false
	}
	return controller, question, true
}

func (h *RecorderHandler) recorderFor(attemptID string) *audio.Recorder {
	h.mu.Lock()
	defer h.mu.Unlock()
	recorder, ok := h.recorders[attemptID]
	if !ok {
		recorder = audio.NewRecorder(h.logger.With("attempt_id", attemptID))
		h.recorders[attemptID] = recorder
	}
	return recorder
}

// Forget drops an attempt's recorder once the attempt ends.
func (h *RecorderHandler) Forget(attemptID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.recorders, attemptID)
}

func (h *RecorderHandler) storeClip(c *gin.Context, attemptID string, clip audio.Clip) string {
	blobRef := uuid.NewString()
	if h.clips == nil {
		return blobRef
	}

	key := fmt.Sprintf("attempt:clip:%s:%s", attemptID, blobRef)
	if err := h.clips.Set(c.Request.Context(), key, clip.Data, clipTTL); err != nil {
		h.LogError(c, err, "Failed to store audio clip", "question_id", clip.QuestionID)
	}
	return blobRef
}

func readClip(c *gin.Context) ([]byte, error) {
	if file, _, err := c.Request.FormFile("audio"); err == nil {
		defer file.Close()
		return io.ReadAll(file)
	}
	return c.GetRawData()
}
