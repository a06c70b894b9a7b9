package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/classward/attempt-engine/internal/models"
	"github.com/classward/attempt-engine/internal/utils"
)

// Coordinator is the engine's view of the remote grading collaborator.
// Implementations must treat SubmitSection as idempotent keyed by
// (attempt_id, section_id).
type Coordinator interface {
	StartAttempt(ctx context.Context, testID string) (*StartResult, error)
	FetchSectionQuestions(ctx context.Context, testID, sectionID string) ([]models.Question, error)
	SubmitSection(ctx context.Context, attemptID, sectionID string, answers []AnswerPayload) (*SectionResult, error)
	SubmitTest(ctx context.Context, attemptID string) (*FinalResult, error)
}

type StartResult struct {
	AttemptID string                `json:"attempt_id"`
	Test      models.TestDefinition `json:"test"`
}

type AnswerPayload struct {
	QuestionID string `json:"question_id"`
	Value      string `json:"value"`
}

type SectionResult struct {
	SectionID string   `json:"section_id"`
	Score     *float64 `json:"section_score,omitempty"`
}

type FinalResult struct {
	TotalScore     float64 `json:"total_score"`
	TotalQuestions int     `json:"total_questions"`
}

// Client talks JSON over HTTPS to the grading collaborator with bounded
// exponential backoff on transient failures. 401/403 and other 4xx
// responses are definitive and never retried.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	backoff    func(attempt int) time.Duration
	logger     utils.Logger
}

type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries bounds the retry count for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

// WithBackoff overrides the retry delay schedule.
func WithBackoff(fn func(attempt int) time.Duration) ClientOption {
	return func(c *Client) { c.backoff = fn }
}

func NewClient(baseURL string, logger utils.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		maxRetries: 3,
		backoff:    defaultBackoff,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultBackoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * 500 * time.Millisecond
}

// WithToken returns a copy of the client bound to a bearer credential.
// The token is opaque to the engine and attached to every request.
func (c *Client) WithToken(token string) *Client {
	bound := *c
	bound.token = token
	return &bound
}

func (c *Client) StartAttempt(ctx context.Context, testID string) (*StartResult, error) {
	body := map[string]string{"test_id": testID}

	var result StartResult
	err := c.doWithRetry(ctx, "start_attempt", func() error {
		return c.postJSON(ctx, "/attempts/start", body, &result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) FetchSectionQuestions(ctx context.Context, testID, sectionID string) ([]models.Question, error) {
	body := map[string]string{"test_id": testID, "section_id": sectionID}

	var result struct {
		Questions []models.Question `json:"questions"`
	}
	err := c.doWithRetry(ctx, "fetch_section_questions", func() error {
		return c.postJSON(ctx, "/sections/questions", body, &result)
	})
	if err != nil {
		return nil, err
	}
	return result.Questions, nil
}

func (c *Client) SubmitSection(ctx context.Context, attemptID, sectionID string, answers []AnswerPayload) (*SectionResult, error) {
	body := map[string]any{
		"attempt_id": attemptID,
		"section_id": sectionID,
		"answers":    answers,
	}

	var result SectionResult
	err := c.doWithRetry(ctx, "submit_section", func() error {
		return c.postJSON(ctx, "/sections/submit", body, &result)
	})
	if err != nil {
		return nil, c.asSubmissionFailure("submit_section", err)
	}
	result.SectionID = sectionID
	return &result, nil
}

func (c *Client) SubmitTest(ctx context.Context, attemptID string) (*FinalResult, error) {
	body := map[string]string{"attempt_id": attemptID}

	var result FinalResult
	err := c.doWithRetry(ctx, "submit_test", func() error {
		return c.postJSON(ctx, "/attempts/submit", body, &result)
	})
	if err != nil {
		return nil, c.asSubmissionFailure("submit_test", err)
	}
	return &result, nil
}

// Transcribe posts an audio clip to the collaborator's transcription
// endpoint as multipart form data and returns the transcript.
func (c *Client) Transcribe(ctx context.Context, filename string, clip []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(clip); err != nil {
		return "", fmt.Errorf("failed to write audio part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &NetworkError{Op: "transcribe", Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus("transcribe", resp); err != nil {
		return "", err
	}

	var result struct {
		Transcript string `json:"transcript"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &NetworkError{Op: "transcribe", Err: err}
	}
	return result.Transcript, nil
}

// ===== TRANSPORT HELPERS =====

func (c *Client) postJSON(ctx context.Context, path string, body, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: path, Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(path, resp); err != nil {
		return err
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		// Request landed but the response was lost mid-read; the caller
		// may retry because submission endpoints are idempotent.
		return &NetworkError{Op: path, Err: err}
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func classifyStatus(op string, resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthenticated
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &RemoteRejectionError{Op: op, StatusCode: resp.StatusCode, Reason: readReason(resp.Body)}
	default:
		return &NetworkError{Op: op, Err: fmt.Errorf("server returned %d", resp.StatusCode)}
	}
}

func readReason(body io.Reader) string {
	var payload struct {
		Message string `json:"message"`
		Reason  string `json:"reason"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 4096)).Decode(&payload); err != nil {
		return "request rejected"
	}
	if payload.Reason != "" {
		return payload.Reason
	}
	if payload.Message != "" {
		return payload.Message
	}
	return "request rejected"
}

func (c *Client) doWithRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &NetworkError{Op: op, Err: ctx.Err()}
			case <-time.After(c.backoff(attempt - 1)):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}

		c.logger.Warn("Retrying collaborator call",
			"op", op,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"error", lastErr)
	}
	return lastErr
}

// asSubmissionFailure wraps exhausted transient failures so the controller
// can keep the attempt alive for a manual retry. Definitive refusals pass
// through unchanged.
func (c *Client) asSubmissionFailure(op string, err error) error {
	if errors.Is(err, ErrUnauthenticated) || IsRejection(err) {
		return err
	}
	if IsRetryable(err) {
		return &SubmissionFailedError{Op: op, Attempts: c.maxRetries, Err: err}
	}
	return err
}
