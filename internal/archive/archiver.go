package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/classward/attempt-engine/internal/engine"
	"github.com/classward/attempt-engine/internal/events"
	"github.com/classward/attempt-engine/internal/models"
	"github.com/classward/attempt-engine/internal/repositories"
	"github.com/classward/attempt-engine/internal/utils"
)

// WarningCounter exposes the proctoring count for an attempt being
// archived.
type WarningCounter interface {
	WarningCount(attemptID string) int
	Forget(attemptID string)
}

// Archiver turns a completed attempt into a durable record and announces
// the completion. It runs as the engine's completion hook, off the event
// loop.
type Archiver struct {
	repo      repositories.ArchiveRepository
	warnings  WarningCounter
	publisher events.EventPublisher
	logger    utils.Logger
}

func NewArchiver(repo repositories.ArchiveRepository, warnings WarningCounter, publisher events.EventPublisher, logger utils.Logger) *Archiver {
	if publisher == nil {
		publisher = events.NopEventPublisher{}
	}
	if logger == nil {
		logger = utils.NewDefaultLogger()
	}
	return &Archiver{
		repo:      repo,
		warnings:  warnings,
		publisher: publisher,
		logger:    logger,
	}
}

// Archive persists the record and publishes the completion event. Safe to
// call twice for the same attempt; the insert is idempotent.
func (a *Archiver) Archive(ctx context.Context, completed engine.CompletedAttempt) error {
	record, err := buildRecord(completed)
	if err != nil {
		return err
	}

	if a.warnings != nil {
		record.WarningCount = a.warnings.WarningCount(completed.View.AttemptID)
	}

	if a.repo != nil {
		if err := a.repo.Save(ctx, record); err != nil {
			return fmt.Errorf("failed to archive attempt %s: %w", completed.View.AttemptID, err)
		}
	}

	event := events.NewAttemptCompletedEvent(
		completed.View.AttemptID,
		completed.View.TestID,
		completed.View.StudentID,
		completed.Result.TotalScore,
		completed.Result.TotalQuestions,
		completed.CompletedAt,
	)
	if err := a.publisher.PublishAttemptEvent(ctx, event); err != nil {
		a.logger.LogError(err, "Failed to publish completion event", "attempt_id", completed.View.AttemptID)
	}

	if a.warnings != nil {
		a.warnings.Forget(completed.View.AttemptID)
	}

	a.logger.Info("Attempt archived",
		"attempt_id", completed.View.AttemptID,
		"total_score", completed.Result.TotalScore)
	return nil
}

// Hook adapts Archive to the engine's completion callback signature.
func (a *Archiver) Hook() func(engine.CompletedAttempt) {
	return func(completed engine.CompletedAttempt) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.Archive(ctx, completed); err != nil {
			a.logger.LogError(err, "Failed to archive completed attempt", "attempt_id", completed.View.AttemptID)
		}
	}
}

func buildRecord(completed engine.CompletedAttempt) (*models.AttemptRecord, error) {
	answers, err := json.Marshal(completed.Answers)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal archived answers: %w", err)
	}
	scores, err := json.Marshal(completed.SectionScores)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal section scores: %w", err)
	}

	return &models.AttemptRecord{
		AttemptID:      completed.View.AttemptID,
		TestID:         completed.View.TestID,
		StudentID:      completed.View.StudentID,
		TotalScore:     completed.Result.TotalScore,
		TotalQuestions: completed.Result.TotalQuestions,
		Answers:        datatypes.JSON(answers),
		SectionScores:  datatypes.JSON(scores),
		StartedAt:      completed.StartedAt,
		CompletedAt:    completed.CompletedAt,
	}, nil
}
