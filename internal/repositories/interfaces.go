package repositories

import (
	"context"
	"time"

	"github.com/classward/attempt-engine/internal/models"
)

// RecordFilters narrows archive queries. Zero values mean "no filter".
type RecordFilters struct {
	TestID    string
	StudentID string
	From      time.Time
	To        time.Time

	Limit  int
	Offset int
}

// ArchiveRepository persists completed attempt records. Records are
// write-once; the engine never updates them after archiving.
type ArchiveRepository interface {
	Save(ctx context.Context, record *models.AttemptRecord) error
	GetByAttemptID(ctx context.Context, attemptID string) (*models.AttemptRecord, error)
	List(ctx context.Context, filters RecordFilters) ([]*models.AttemptRecord, int64, error)
	GetByStudent(ctx context.Context, studentID string) ([]*models.AttemptRecord, error)
}
