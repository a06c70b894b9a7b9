package models

import "time"

type AttemptStatus string

const (
	AttemptNotStarted      AttemptStatus = "NotStarted"
	AttemptSectionActive   AttemptStatus = "SectionActive"
	AttemptSectionComplete AttemptStatus = "SectionComplete"
	AttemptSubmitting      AttemptStatus = "Submitting"
	AttemptCompleted       AttemptStatus = "Completed"
	AttemptAbandoned       AttemptStatus = "Abandoned"
)

// Terminal reports whether no further transitions are possible.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptCompleted || s == AttemptAbandoned
}

// AttemptView is a read-only snapshot of an in-progress attempt, shaped
// for the HTTP surface and the snapshot store. The controller owns the
// live state; views are copies.
type AttemptView struct {
	AttemptID        string        `json:"attempt_id"`
	TestID           string        `json:"test_id"`
	StudentID        string        `json:"student_id"`
	Status           AttemptStatus `json:"status"`
	SectionIndex     int           `json:"current_section_index"`
	QuestionIndex    int           `json:"current_question_index"`
	TotalSections    int           `json:"total_sections"`
	RemainingSeconds int           `json:"remaining_seconds"`
	SubmittedSection []string      `json:"submitted_sections"`
	AnsweredCount    int           `json:"answered_count"`
	PendingSections  []string      `json:"pending_sections,omitempty"`
	LastError        string        `json:"last_error,omitempty"`
	TotalScore       *float64      `json:"total_score,omitempty"`
	TotalQuestions   *int          `json:"total_questions,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
}

// SectionView is the read-only shape returned by backward review of an
// already-submitted section.
type SectionView struct {
	SectionID string            `json:"section_id"`
	Name      string            `json:"name"`
	Questions []Question        `json:"questions"`
	Answers   map[string]Answer `json:"answers"`
	Score     *float64          `json:"score,omitempty"`
	Submitted bool              `json:"submitted"`
}
