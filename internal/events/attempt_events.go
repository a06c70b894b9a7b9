package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/classward/attempt-engine/internal/models"
)

// EventType names the published attempt event kinds.
type EventType string

const (
	// Attempt lifecycle
	EventAttemptStarted   EventType = "attempt.started"
	EventAttemptCompleted EventType = "attempt.completed"
	EventAttemptAbandoned EventType = "attempt.abandoned"
	EventSectionTimedOut  EventType = "attempt.section_timed_out"

	// Proctoring
	EventProctorWarning EventType = "proctor.warning"
)

const eventSource = "attempt-engine"

// AttemptEvent is the envelope for every published event.
type AttemptEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Event payloads

type AttemptStartedEvent struct {
	AttemptID string    `json:"attempt_id"`
	TestID    string    `json:"test_id"`
	StudentID string    `json:"student_id"`
	Sections  int       `json:"sections"`
	StartedAt time.Time `json:"started_at"`
}

type AttemptCompletedEvent struct {
	AttemptID      string    `json:"attempt_id"`
	TestID         string    `json:"test_id"`
	StudentID      string    `json:"student_id"`
	TotalScore     float64   `json:"total_score"`
	TotalQuestions int       `json:"total_questions"`
	CompletedAt    time.Time `json:"completed_at"`
}

type AttemptAbandonedEvent struct {
	AttemptID   string    `json:"attempt_id"`
	TestID      string    `json:"test_id"`
	StudentID   string    `json:"student_id"`
	AbandonedAt time.Time `json:"abandoned_at"`
}

type SectionTimedOutEvent struct {
	AttemptID  string    `json:"attempt_id"`
	SectionID  string    `json:"section_id"`
	StudentID  string    `json:"student_id"`
	TimedOutAt time.Time `json:"timed_out_at"`
}

type ProctorWarningEvent struct {
	AttemptID    string                  `json:"attempt_id"`
	StudentID    string                  `json:"student_id"`
	EventType    models.ProctorEventType `json:"event_type"`
	WarningCount int                     `json:"warning_count"`
	QuestionID   string                  `json:"question_id,omitempty"`
	TimeOffset   int                     `json:"time_offset"`
	OccurredAt   time.Time               `json:"occurred_at"`
}

// Event factory functions

func NewAttemptStartedEvent(attemptID, testID, studentID string, sections int, startedAt time.Time) *AttemptEvent {
	return newEvent(EventAttemptStarted, AttemptStartedEvent{
		AttemptID: attemptID,
		TestID:    testID,
		StudentID: studentID,
		Sections:  sections,
		StartedAt: startedAt,
	})
}

func NewAttemptCompletedEvent(attemptID, testID, studentID string, totalScore float64, totalQuestions int, completedAt time.Time) *AttemptEvent {
	return newEvent(EventAttemptCompleted, AttemptCompletedEvent{
		AttemptID:      attemptID,
		TestID:         testID,
		StudentID:      studentID,
		TotalScore:     totalScore,
		TotalQuestions: totalQuestions,
		CompletedAt:    completedAt,
	})
}

func NewAttemptAbandonedEvent(attemptID, testID, studentID string) *AttemptEvent {
	return newEvent(EventAttemptAbandoned, AttemptAbandonedEvent{
		AttemptID:   attemptID,
		TestID:      testID,
		StudentID:   studentID,
		AbandonedAt: time.Now(),
	})
}

func NewSectionTimedOutEvent(attemptID, sectionID, studentID string) *AttemptEvent {
	return newEvent(EventSectionTimedOut, SectionTimedOutEvent{
		AttemptID:  attemptID,
		SectionID:  sectionID,
		StudentID:  studentID,
		TimedOutAt: time.Now(),
	})
}

func NewProctorWarningEvent(proctorEvent models.ProctorEvent, warningCount int) *AttemptEvent {
	return newEvent(EventProctorWarning, ProctorWarningEvent{
		AttemptID:    proctorEvent.AttemptID,
		StudentID:    proctorEvent.StudentID,
		EventType:    proctorEvent.Type,
		WarningCount: warningCount,
		QuestionID:   proctorEvent.QuestionID,
		TimeOffset:   proctorEvent.TimeOffset,
		OccurredAt:   proctorEvent.OccurredAt,
	})
}

func newEvent(eventType EventType, data interface{}) *AttemptEvent {
	return &AttemptEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    eventSource,
		Version:   "1.0",
		Data:      data,
	}
}
