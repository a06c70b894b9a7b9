package models

import (
	"time"

	"gorm.io/datatypes"
)

// AttemptRecord is the archived summary of a completed attempt. The live
// attempt is discarded once the collaborator acknowledges completion; the
// record is what dashboards and exports read afterwards.
type AttemptRecord struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	AttemptID string `json:"attempt_id" gorm:"not null;size:64;uniqueIndex"`
	TestID    string `json:"test_id" gorm:"not null;size:64;index"`
	StudentID string `json:"student_id" gorm:"not null;size:64;index"`

	TotalScore     float64 `json:"total_score"`
	TotalQuestions int     `json:"total_questions"`

	// Per-section answers as posted to the grader, keyed by section id.
	Answers       datatypes.JSON `json:"answers" gorm:"type:jsonb"`
	SectionScores datatypes.JSON `json:"section_scores" gorm:"type:jsonb"`

	WarningCount int `json:"warning_count"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (AttemptRecord) TableName() string {
	return "attempt_records"
}
