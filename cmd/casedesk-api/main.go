package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"casedesk/internal/api"
	"casedesk/internal/api/handlers"
	"casedesk/internal/auth"
	"casedesk/internal/config"
	"casedesk/internal/db"
	"casedesk/internal/health"
	"casedesk/internal/logger"
	"casedesk/internal/repository"
	"casedesk/internal/scheduler"
	"casedesk/internal/service"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load and validate configuration first (before logger)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logger with configuration
	logger.Init(cfg.Logger)

	logger.Info().
		Str("environment", cfg.Logger.Environment).
		Str("log_level", cfg.Logger.Level).
		Msg("configuration loaded successfully")

	// Run migrations before connecting to database
	logger.Info().Msg("running database migrations")
	if err := db.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Initialize database
	ctx := context.Background()
	database, err := db.NewDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	logger.Info().Msg("database connected successfully")

	// Initialize repositories
	caseRepo := repository.NewCaseRepository(database.Pool)
	commRepo := repository.NewCommunicationRepository(database.Pool)
	auditRepo := repository.NewAuditRepository(database.Pool)

	// Initialize services
	matchService, err := service.NewMatchService(caseRepo, caseRepo, cfg.Matching)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize match service")
	}
	assignmentService := service.NewAssignmentService(commRepo, matchService, cfg.Matching.AutoAssignThreshold)

	// Initialize handlers
	matchHandler := handlers.NewMatchHandler(matchService)
	commHandler := handlers.NewCommunicationHandler(commRepo, assignmentService, auditRepo)

	// Initialize and start the assignment sweep (feature-flagged)
	if cfg.Scheduler.EnableSweep {
		sweep := scheduler.NewScheduler(commRepo, assignmentService, cfg.Scheduler)
		if err := sweep.Start(); err != nil {
			logger.Fatal().Err(err).Msg("failed to start scheduler")
		}
		defer sweep.Stop()
	}

	// Set up Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(api.RequestIDMiddleware())
	router.Use(api.LoggingMiddleware())
	router.Use(api.CORSMiddleware(cfg.CORS))
	router.Use(api.ErrorHandlerMiddleware())

	// Health check endpoint
	router.GET("/health", health.Handler(database, cfg.Database.HealthTimeout))

	// API routes
	v1 := router.Group("/api/v1")
	v1.Use(auth.APIKeyMiddleware(cfg))
	{
		v1.POST("/match/resolve", matchHandler.Resolve)

		communications := v1.Group("/communications")
		{
			communications.POST("", commHandler.Create)
			communications.GET("", commHandler.List)
			communications.GET("/:id", commHandler.Get)
			communications.POST("/:id/assign", commHandler.Assign)
			communications.POST("/:id/new-case", commHandler.NewCase)
			communications.POST("/:id/process", commHandler.Process)
			communications.GET("/:id/audit", commHandler.Audit)
		}
	}

	srv := &http.Server{
		Addr:    cfg.GetBindAddress(),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	// Give outstanding requests a configured timeout to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")
}
