package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/classward/attempt-engine/internal/models"
	"github.com/classward/attempt-engine/internal/repositories"
)

// ErrRecordNotFound is returned when no archive row matches.
var ErrRecordNotFound = errors.New("attempt record not found")

type ArchivePostgreSQL struct {
	db *gorm.DB
}

func NewArchivePostgreSQL(db *gorm.DB) repositories.ArchiveRepository {
	return &ArchivePostgreSQL{db: db}
}

// Save inserts the record. A duplicate attempt id is a no-op so the
// completion hook stays idempotent across restarts.
func (a *ArchivePostgreSQL) Save(ctx context.Context, record *models.AttemptRecord) error {
	return a.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}},
			DoNothing: true,
		}).
		Create(record).Error
}

func (a *ArchivePostgreSQL) GetByAttemptID(ctx context.Context, attemptID string) (*models.AttemptRecord, error) {
	var record models.AttemptRecord
	if err := a.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (a *ArchivePostgreSQL) List(ctx context.Context, filters repositories.RecordFilters) ([]*models.AttemptRecord, int64, error) {
	var records []*models.AttemptRecord
	var total int64

	query := a.db.WithContext(ctx).Model(&models.AttemptRecord{})
	query = applyRecordFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Order("completed_at DESC").Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func (a *ArchivePostgreSQL) GetByStudent(ctx context.Context, studentID string) ([]*models.AttemptRecord, error) {
	var records []*models.AttemptRecord
	if err := a.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("completed_at DESC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func applyRecordFilters(query *gorm.DB, filters repositories.RecordFilters) *gorm.DB {
	if filters.TestID != "" {
		query = query.Where("test_id = ?", filters.TestID)
	}
	if filters.StudentID != "" {
		query = query.Where("student_id = ?", filters.StudentID)
	}
	if !filters.From.IsZero() {
		query = query.Where("completed_at >= ?", filters.From)
	}
	if !filters.To.IsZero() {
		query = query.Where("completed_at <= ?", filters.To)
	}
	return query
}
