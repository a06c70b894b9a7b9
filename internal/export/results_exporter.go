package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/classward/attempt-engine/internal/models"
	"github.com/classward/attempt-engine/internal/repositories"
	"github.com/classward/attempt-engine/internal/utils"
)

// ResultsExporter renders archived attempt records as spreadsheet files
// for teachers.
type ResultsExporter struct {
	repo   repositories.ArchiveRepository
	logger utils.Logger
}

func NewResultsExporter(repo repositories.ArchiveRepository, logger utils.Logger) *ResultsExporter {
	if logger == nil {
		logger = utils.NewDefaultLogger()
	}
	return &ResultsExporter{
		repo:   repo,
		logger: logger,
	}
}

var resultHeaders = []string{
	"Attempt ID", "Test ID", "Student ID", "Total Score", "Total Questions",
	"Warnings", "Started At", "Completed At",
}

// ExportResultsToExcel renders matching records into an xlsx workbook.
func (e *ResultsExporter) ExportResultsToExcel(ctx context.Context, filters repositories.RecordFilters) ([]byte, error) {
	records, _, err := e.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt records: %w", err)
	}

	f := excelize.NewFile()
	sheetName := "Results"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for i, header := range resultHeaders {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, record := range records {
		row := recordToRow(record)
		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	e.logger.Info("Results exported", "format", "xlsx", "rows", len(records))
	return buf.Bytes(), nil
}

// ExportResultsToCSV renders matching records as CSV.
func (e *ResultsExporter) ExportResultsToCSV(ctx context.Context, filters repositories.RecordFilters) ([]byte, error) {
	records, _, err := e.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt records: %w", err)
	}

	var buf strings.Builder
	writer := csv.NewWriter(&buf)

	if err := writer.Write(resultHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, record := range records {
		row := recordToRow(record)
		cells := make([]string, len(row))
		for i, value := range row {
			cells[i] = fmt.Sprint(value)
		}
		if err := writer.Write(cells); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	e.logger.Info("Results exported", "format", "csv", "rows", len(records))
	return []byte(buf.String()), nil
}

func recordToRow(record *models.AttemptRecord) []interface{} {
	return []interface{}{
		record.AttemptID,
		record.TestID,
		record.StudentID,
		record.TotalScore,
		record.TotalQuestions,
		record.WarningCount,
		record.StartedAt.Format("2006-01-02 15:04:05"),
		record.CompletedAt.Format("2006-01-02 15:04:05"),
	}
}
