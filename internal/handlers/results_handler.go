package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/classward/attempt-engine/internal/export"
	"github.com/classward/attempt-engine/internal/repositories"
	"github.com/classward/attempt-engine/internal/utils"
)

// ResultsHandler serves archived results and spreadsheet exports.
type ResultsHandler struct {
	BaseHandler
	repo     repositories.ArchiveRepository
	exporter *export.ResultsExporter
}

func NewResultsHandler(repo repositories.ArchiveRepository, exporter *export.ResultsExporter, logger utils.Logger) *ResultsHandler {
	return &ResultsHandler{
		BaseHandler: NewBaseHandler(logger),
		repo:        repo,
		exporter:    exporter,
	}
}

// archiveConfigured rejects the request with a 503 when the service runs
// without a results archive, instead of dereferencing a nil repository.
func (h *ResultsHandler) archiveConfigured(c *gin.Context) bool {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Message: "Results archive is not configured",
			Code:    "archive_unavailable",
		})
		return false
	}
	return true
}

// ListResults returns archived records, filterable by test and student.
func (h *ResultsHandler) ListResults(c *gin.Context) {
	if !h.archiveConfigured(c) {
		return
	}
	filters := filtersFromQuery(c)

	records, total, err := h.repo.List(c.Request.Context(), filters)
	if err != nil {
		h.handleEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   total,
	})
}

// ExportResults streams the matching records as a spreadsheet.
// ?format=csv switches from the default xlsx.
func (h *ResultsHandler) ExportResults(c *gin.Context) {
	if !h.archiveConfigured(c) {
		return
	}
	filters := filtersFromQuery(c)

	h.LogRequest(c, "Exporting results", "test_id", filters.TestID)

	if c.DefaultQuery("format", "xlsx") == "csv" {
		data, err := h.exporter.ExportResultsToCSV(c.Request.Context(), filters)
		if err != nil {
			h.handleEngineError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="results.csv"`)
		c.Data(http.StatusOK, "text/csv", data)
		return
	}

	data, err := h.exporter.ExportResultsToExcel(c.Request.Context(), filters)
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="results.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func filtersFromQuery(c *gin.Context) repositories.RecordFilters {
	filters := repositories.RecordFilters{
		TestID:    c.Query("test_id"),
		StudentID: c.Query("student_id"),
	}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filters.From = t
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filters.To = t
		}
	}
	return filters
}
