package engine

import (
	"github.com/classward/attempt-engine/internal/models"
	"github.com/classward/attempt-engine/internal/remote"
)

// All attempt state lives behind a single event loop. UI-driven commands,
// timer timeouts, and async task completions are all delivered as events
// so no two transitions ever execute concurrently.

type eventKind int

const (
	evAnswer eventKind = iota
	evNavigate
	evAdvance
	evSubmitTest
	evReview
	evRetry
	evAbandon
	evState

	// time-driven
	evTimeout

	// async task completions
	evSectionResult
	evFinalResult
)

// AnswerInput is the raw captured value for a question before it is
// validated against the question's type.
type AnswerInput struct {
	Selected     string
	Text         string
	Transcript   string
	AudioBlobRef string
	Validation   *models.SpeechValidation
}

type eventReply struct {
	view    models.AttemptView
	section models.SectionView
	err     error
}

type event struct {
	kind eventKind

	// command payloads
	questionID   string
	input        AnswerInput
	direction    string
	sectionIndex int

	// timeout guard: a stale timer firing into a replaced section is
	// dropped by generation mismatch
	timerGen int

	// async completions
	sectionID     string
	sectionResult *remote.SectionResult
	finalResult   *remote.FinalResult
	taskErr       error

	reply chan eventReply
}
