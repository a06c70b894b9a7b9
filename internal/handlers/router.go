package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/classward/attempt-engine/internal/config"
	"github.com/classward/attempt-engine/internal/engine"
	"github.com/classward/attempt-engine/internal/utils"
)

type HandlerManager struct {
	attemptHandler  *AttemptHandler
	recorderHandler *RecorderHandler
	resultsHandler  *ResultsHandler

	registry *engine.Registry
	cfg      *config.Config
	logger   utils.Logger
}

func NewHandlerManager(
	attemptHandler *AttemptHandler,
	recorderHandler *RecorderHandler,
	resultsHandler *ResultsHandler,
	registry *engine.Registry,
	cfg *config.Config,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler:  attemptHandler,
		recorderHandler: recorderHandler,
		resultsHandler:  resultsHandler,
		registry:        registry,
		cfg:             cfg,
		logger:          logger,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":        "healthy",
			"service":       "attempt-engine",
			"live_attempts": hm.registry.Len(),
		})
	})

	v1 := router.Group("/api/v1")
	v1.Use(AuthMiddleware(hm.cfg, hm.logger))
	{
		attempts := v1.Group("/attempts")
		{
			attempts.POST("/start", hm.attemptHandler.StartAttempt)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.GET("/:id/time-remaining", hm.attemptHandler.GetTimeRemaining)
			attempts.POST("/:id/answer", hm.attemptHandler.SubmitAnswer)
			attempts.POST("/:id/navigate", hm.attemptHandler.Navigate)
			attempts.POST("/:id/advance", hm.attemptHandler.AdvanceSection)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitTest)
			attempts.POST("/:id/retry", hm.attemptHandler.RetrySubmission)
			attempts.POST("/:id/abandon", hm.attemptHandler.Abandon)
			attempts.GET("/:id/sections/:index", hm.attemptHandler.ReviewSection)
			attempts.POST("/:id/proctor-events", hm.attemptHandler.ReportProctorEvent)

			// Speech recording
			attempts.POST("/:id/recordings/:question_id/start", hm.recorderHandler.StartRecording)
			attempts.POST("/:id/recordings/:question_id/stop", hm.recorderHandler.StopRecording)
			attempts.POST("/:id/recordings/abort", hm.recorderHandler.AbortRecording)
		}

		results := v1.Group("/results")
		{
			results.GET("", hm.resultsHandler.ListResults)
			results.GET("/export", hm.resultsHandler.ExportResults)
		}
	}
}
