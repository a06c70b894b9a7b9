package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/classward/attempt-engine/internal/models"
	"github.com/classward/attempt-engine/internal/repositories"
	"github.com/classward/attempt-engine/internal/utils"
)

type fakeArchiveRepo struct {
	records []*models.AttemptRecord
}

func (f *fakeArchiveRepo) Save(ctx context.Context, record *models.AttemptRecord) error {
	f.records = append(f.records, record)
	return nil
}

func (f *fakeArchiveRepo) GetByAttemptID(ctx context.Context, attemptID string) (*models.AttemptRecord, error) {
	for _, record := range f.records {
		if record.AttemptID == attemptID {
			return record, nil
		}
	}
	return nil, context.Canceled
}

func (f *fakeArchiveRepo) List(ctx context.Context, filters repositories.RecordFilters) ([]*models.AttemptRecord, int64, error) {
	var out []*models.AttemptRecord
	for _, record := range f.records {
		if filters.TestID != "" && record.TestID != filters.TestID {
			continue
		}
		if filters.StudentID != "" && record.StudentID != filters.StudentID {
			continue
		}
		out = append(out, record)
	}
	return out, int64(len(out)), nil
}

func (f *fakeArchiveRepo) GetByStudent(ctx context.Context, studentID string) ([]*models.AttemptRecord, error) {
	return nil, nil
}

func seedRecords() *fakeArchiveRepo {
	startedAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return &fakeArchiveRepo{records: []*models.AttemptRecord{
		{
			AttemptID: "att-1", TestID: "t-1", StudentID: "student-1",
			TotalScore: 17.5, TotalQuestions: 20, WarningCount: 2,
			StartedAt: startedAt, CompletedAt: startedAt.Add(40 * time.Minute),
		},
		{
			AttemptID: "att-2", TestID: "t-2", StudentID: "student-2",
			TotalScore: 9, TotalQuestions: 10,
			StartedAt: startedAt, CompletedAt: startedAt.Add(25 * time.Minute),
		},
	}}
}

func TestResultsExporter_Excel(t *testing.T) {
	exporter := NewResultsExporter(seedRecords(), utils.NewDevelopmentLogger())

	data, err := exporter.ExportResultsToExcel(context.Background(), repositories.RecordFilters{})
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Attempt ID", rows[0][0])
	assert.Equal(t, "att-1", rows[1][0])
	assert.Equal(t, "17.5", rows[1][3])
	assert.Equal(t, "2", rows[1][5])
	assert.Equal(t, "att-2", rows[2][0])
}

func TestResultsExporter_ExcelFiltered(t *testing.T) {
	exporter := NewResultsExporter(seedRecords(), utils.NewDevelopmentLogger())

	data, err := exporter.ExportResultsToExcel(context.Background(), repositories.RecordFilters{TestID: "t-2"})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "att-2", rows[1][0])
}

func TestResultsExporter_CSV(t *testing.T) {
	exporter := NewResultsExporter(seedRecords(), utils.NewDevelopmentLogger())

	data, err := exporter.ExportResultsToCSV(context.Background(), repositories.RecordFilters{})
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, resultHeaders, rows[0])
	assert.Equal(t, "att-1", rows[1][0])
	assert.Equal(t, "student-2", rows[2][2])
	assert.Equal(t, "2026-03-10 09:40:00", rows[1][7])
}
