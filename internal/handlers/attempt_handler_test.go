package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classward/attempt-engine/internal/config"
	"github.com/classward/attempt-engine/internal/engine"
	"github.com/classward/attempt-engine/internal/events"
	"github.com/classward/attempt-engine/internal/models"
	"github.com/classward/attempt-engine/internal/proctoring"
	"github.com/classward/attempt-engine/internal/remote"
	"github.com/classward/attempt-engine/internal/utils"
)

// ===== TEST FIXTURES =====

type stubCoordinator struct {
	test models.TestDefinition
}

func (s *stubCoordinator) StartAttempt(ctx context.Context, testID string) (*remote.StartResult, error) {
	return &remote.StartResult{AttemptID: "att-1", Test: s.test}, nil
}

func (s *stubCoordinator) FetchSectionQuestions(ctx context.Context, testID, sectionID string) ([]models.Question, error) {
	return nil, fmt.Errorf("unexpected fetch")
}

func (s *stubCoordinator) SubmitSection(ctx context.Context, attemptID, sectionID string, answers []remote.AnswerPayload) (*remote.SectionResult, error) {
	score := 1.0
	return &remote.SectionResult{SectionID: sectionID, Score: &score}, nil
}

func (s *stubCoordinator) SubmitTest(ctx context.Context, attemptID string) (*remote.FinalResult, error) {
	return &remote.FinalResult{TotalScore: 1, TotalQuestions: 2}, nil
}

type stubTranscriber struct {
	transcript string
}

func (s *stubTranscriber) Transcribe(ctx context.Context, filename string, clip []byte) (string, error) {
	return s.transcript, nil
}

func speechTest() models.TestDefinition {
	return models.TestDefinition{
		ID: "t-1",
		Sections: []models.Section{
			{
				ID:               "s-1",
				Name:             "Speaking",
				TimeLimitSeconds: 120,
				Questions: []models.Question{
					{ID: "q-1", Type: models.MultipleChoice, Options: map[string]string{"A": "yes", "B": "no"}},
					{
						ID:                 "q-2",
						Type:               models.SpeechResponse,
						ExpectedTranscript: "the quick brown fox",
						MaxRecordSeconds:   30,
					},
				},
			},
		},
	}
}

type testEnv struct {
	router    *gin.Engine
	publisher *events.MockEventPublisher
}

func newTestEnv(t *testing.T, test models.TestDefinition) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := utils.NewDevelopmentLogger()
	validator := utils.NewValidator()
	publisher := events.NewMockEventPublisher(utils.ToSlogLogger(logger))
	monitor := proctoring.NewMonitor(publisher, logger)

	registry := engine.NewRegistry(engine.Deps{
		Coordinator: &stubCoordinator{test: test},
		Logger:      logger,
		Tick:        time.Hour,
	})
	t.Cleanup(registry.CloseAll)

	attemptHandler := NewAttemptHandler(registry, nil, monitor, publisher, validator, logger)
	recorderHandler := NewRecorderHandler(registry, &stubTranscriber{transcript: "the quick fox"}, nil, logger)
	cfg := &config.Config{}

	router := gin.New()
	manager := NewHandlerManager(attemptHandler, recorderHandler, nil, registry, cfg, logger)
	manager.SetupRoutes(router)

	return &testEnv{router: router, publisher: publisher}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Student-ID", "student-1")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) models.AttemptView {
	t.Helper()
	var view models.AttemptView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	return view
}

// ===== TESTS =====

func TestAttemptRoutes_StartAndAnswer(t *testing.T) {
	env := newTestEnv(t, speechTest())

	w := env.do(t, http.MethodPost, "/api/v1/attempts/start", gin.H{"test_id": "t-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	view := decodeView(t, w)
	assert.Equal(t, "att-1", view.AttemptID)
	assert.Equal(t, models.AttemptSectionActive, view.Status)
	assert.Equal(t, 1, view.TotalSections)
	assert.Equal(t, 120, view.RemainingSeconds)

	// Started event reached the broker.
	published := env.publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventAttemptStarted, published[0].Type)

	w = env.do(t, http.MethodPost, "/api/v1/attempts/att-1/answer", gin.H{
		"question_id": "q-1",
		"selected":    "A",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decodeView(t, w).AnsweredCount)
}

func TestAttemptRoutes_RequiresIdentity(t *testing.T) {
	env := newTestEnv(t, speechTest())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attempts/start", bytes.NewReader([]byte(`{"test_id":"t-1"}`)))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAttemptRoutes_ForeignAttemptIsHidden(t *testing.T) {
	env := newTestEnv(t, speechTest())

	w := env.do(t, http.MethodPost, "/api/v1/attempts/start", gin.H{"test_id": "t-1"})
	require.Equal(t, http.StatusCreated, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attempts/att-1", nil)
	req.Header.Set("X-Student-ID", "intruder")
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestAttemptRoutes_InvalidAnswerRejected(t *testing.T) {
	env := newTestEnv(t, speechTest())
	env.do(t, http.MethodPost, "/api/v1/attempts/start", gin.H{"test_id": "t-1"})

	w := env.do(t, http.MethodPost, "/api/v1/attempts/att-1/answer", gin.H{
		"question_id": "q-1",
		"selected":    "Z",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/attempts/att-1/answer", gin.H{
		"question_id": "missing",
		"text":        "x",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttemptRoutes_AdvanceBlockedUntilComplete(t *testing.T) {
	env := newTestEnv(t, speechTest())
	env.do(t, http.MethodPost, "/api/v1/attempts/start", gin.H{"test_id": "t-1"})

	w := env.do(t, http.MethodPost, "/api/v1/attempts/att-1/advance", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAttemptRoutes_RecordingFlow(t *testing.T) {
	env := newTestEnv(t, speechTest())
	env.do(t, http.MethodPost, "/api/v1/attempts/start", gin.H{"test_id": "t-1"})

	w := env.do(t, http.MethodPost, "/api/v1/attempts/att-1/recordings/q-2/start", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Device is exclusive while recording.
	w = env.do(t, http.MethodPost, "/api/v1/attempts/att-1/recordings/q-2/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attempts/att-1/recordings/q-2/stop", bytes.NewReader([]byte("fake-audio-bytes")))
	req.Header.Set("X-Student-ID", "student-1")
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var result struct {
		Transcript   string                  `json:"transcript"`
		AudioBlobRef string                  `json:"audio_blob_ref"`
		Validation   models.SpeechValidation `json:"validation"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.Equal(t, "the quick fox", result.Transcript)
	assert.NotEmpty(t, result.AudioBlobRef)
	assert.InDelta(t, 0.5, result.Validation.SimilarityScore, 0.01)
	assert.Contains(t, result.Validation.MissingWords, "brown")

	// The transcript landed as the question's answer.
	w = env.do(t, http.MethodGet, "/api/v1/attempts/att-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decodeView(t, w).AnsweredCount)
}

func TestAttemptRoutes_RecordingOnWrongQuestionType(t *testing.T) {
	env := newTestEnv(t, speechTest())
	env.do(t, http.MethodPost, "/api/v1/attempts/start", gin.H{"test_id": "t-1"})

	w := env.do(t, http.MethodPost, "/api/v1/attempts/att-1/recordings/q-1/start", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttemptRoutes_ProctorEvents(t *testing.T) {
	env := newTestEnv(t, speechTest())
	env.do(t, http.MethodPost, "/api/v1/attempts/start", gin.H{"test_id": "t-1"})

	w := env.do(t, http.MethodPost, "/api/v1/attempts/att-1/proctor-events", gin.H{
		"type":        "tab_switch",
		"time_offset": 42,
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var result struct {
		WarningCount int `json:"warning_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 1, result.WarningCount)

	w = env.do(t, http.MethodPost, "/api/v1/attempts/att-1/proctor-events", gin.H{
		"type": "telepathy",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttemptRoutes_TimeRemaining(t *testing.T) {
	env := newTestEnv(t, speechTest())
	env.do(t, http.MethodPost, "/api/v1/attempts/start", gin.H{"test_id": "t-1"})

	w := env.do(t, http.MethodGet, "/api/v1/attempts/att-1/time-remaining", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var result struct {
		RemainingSeconds int `json:"remaining_seconds"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 120, result.RemainingSeconds)
}

func TestAttemptRoutes_Abandon(t *testing.T) {
	env := newTestEnv(t, speechTest())
	env.do(t, http.MethodPost, "/api/v1/attempts/start", gin.H{"test_id": "t-1"})

	w := env.do(t, http.MethodPost, "/api/v1/attempts/att-1/abandon", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Gone from the registry afterwards.
	w = env.do(t, http.MethodGet, "/api/v1/attempts/att-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var sawAbandoned bool
	for _, event := range env.publisher.GetPublishedEvents() {
		if event.Type == events.EventAttemptAbandoned {
			sawAbandoned = true
		}
	}
	assert.True(t, sawAbandoned)
}
