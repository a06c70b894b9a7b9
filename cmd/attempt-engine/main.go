package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/classward/attempt-engine/internal/archive"
	"github.com/classward/attempt-engine/internal/audio"
	"github.com/classward/attempt-engine/internal/cache"
	"github.com/classward/attempt-engine/internal/config"
	"github.com/classward/attempt-engine/internal/engine"
	"github.com/classward/attempt-engine/internal/events"
	"github.com/classward/attempt-engine/internal/export"
	"github.com/classward/attempt-engine/internal/handlers"
	"github.com/classward/attempt-engine/internal/proctoring"
	"github.com/classward/attempt-engine/internal/remote"
	"github.com/classward/attempt-engine/internal/repositories"
	"github.com/classward/attempt-engine/internal/repositories/postgres"
	"github.com/classward/attempt-engine/internal/utils"
	"github.com/classward/attempt-engine/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		logger = utils.NewDefaultLogger()
	} else {
		logger = utils.NewDevelopmentLogger()
	}
	logger = logger.With("service", "attempt-engine")

	validator := utils.NewValidator()

	// Grading collaborator client. The engine authenticates with its own
	// service credential; student identity stays with Casdoor.
	coordinator := remote.NewClient(cfg.GradingBaseURL, logger,
		remote.WithMaxRetries(cfg.GradingMaxRetries))
	if cfg.GradingToken != "" {
		coordinator = coordinator.WithToken(cfg.GradingToken)
	}

	// Attempt snapshots and audio clips live in redis when available.
	var cacheService cache.CacheService
	var snapshots *cache.SnapshotStore
	if cfg.RedisURL != "" {
		redisClient, err := pkg.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, attempts will not survive restarts", "error", err)
		} else {
			defer redisClient.Close()
			cacheService = cache.NewRedisCache(redisClient, logger)
			snapshots = cache.NewSnapshotStore(cacheService)
		}
	}

	// Event broker for proctor signals and attempt lifecycle events.
	var publisher events.EventPublisher = events.NopEventPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := events.NewKafkaEventPublisher(events.PublisherConfig{
			KafkaBrokers: cfg.KafkaBrokers,
			TopicName:    cfg.ProctorTopic,
			Logger:       utils.ToSlogLogger(logger),
		})
		if err != nil {
			logger.LogError(err, "Failed to create Kafka publisher, events disabled")
		} else {
			publisher = kafkaPublisher
			defer publisher.Close()
		}
	}

	// Completed attempts are archived to postgres when configured.
	var archiveRepo repositories.ArchiveRepository
	if cfg.DatabaseURL != "" {
		db, err := pkg.InitDatabase(cfg)
		if err != nil {
			logger.LogError(err, "Failed to connect to database, archiving disabled")
		} else {
			archiveRepo = postgres.NewArchivePostgreSQL(db)
		}
	}

	monitor := proctoring.NewMonitor(publisher, logger)
	archiver := archive.NewArchiver(archiveRepo, monitor, publisher, logger)

	var recorderHandler *handlers.RecorderHandler
	archiveHook := archiver.Hook()

	registry := engine.NewRegistry(engine.Deps{
		Coordinator: coordinator,
		Snapshots:   snapshotsOrNil(snapshots),
		Logger:      logger,
		OnCompleted: func(completed engine.CompletedAttempt) {
			archiveHook(completed)
			if recorderHandler != nil {
				recorderHandler.Forget(completed.View.AttemptID)
			}
		},
		OnAbandoned: func(attemptID string) {
			monitor.Forget(attemptID)
			if recorderHandler != nil {
				recorderHandler.Forget(attemptID)
			}
		},
		OnSectionTimeout: func(attemptID, sectionID, studentID string) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			event := events.NewSectionTimedOutEvent(attemptID, sectionID, studentID)
			if err := publisher.PublishAttemptEvent(ctx, event); err != nil {
				logger.LogError(err, "Failed to publish section timeout event", "attempt_id", attemptID)
			}
		},
	})

	var transcriber audio.Transcriber = coordinator
	if cfg.TranscriberKind == "whisper" {
		transcriber = audio.NewWhisperTranscriber(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.WhisperModel, logger)
	}

	attemptHandler := handlers.NewAttemptHandler(registry, snapshots, monitor, publisher, validator, logger)
	recorderHandler = handlers.NewRecorderHandler(registry, transcriber, cacheService, logger)
	resultsHandler := handlers.NewResultsHandler(archiveRepo, export.NewResultsExporter(archiveRepo, logger), logger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))

	handlerManager := handlers.NewHandlerManager(attemptHandler, recorderHandler, resultsHandler, registry, cfg, logger)
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.LogError(err, "Server failed")
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.LogError(err, "Graceful shutdown failed")
	}
	registry.CloseAll()
}

// snapshotsOrNil keeps the registry's interface field truly nil when
// redis is absent, so the engine skips snapshotting entirely.
func snapshotsOrNil(snapshots *cache.SnapshotStore) engine.SnapshotStore {
	if snapshots == nil {
		return nil
	}
	return snapshots
}
