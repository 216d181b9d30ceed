package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/api"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/config"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/email"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/extraction"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/report"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/repository"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/service"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/storage"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/synthesis"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/validation"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/webhook"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/worker"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/pkg/database"
	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/pkg/utils"
)

func main() {
	// Local development overrides; missing .env is fine
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting invoice accelerator",
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	for _, dir := range []string{cfg.Storage.BaseDir, cfg.Storage.RejectedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatal("Failed to create storage directory",
				zap.String("dir", dir), zap.Error(err))
		}
	}

	// Repositories
	invoiceRepo := repository.NewInvoiceRepository(db.DB, logger)
	exceptionRepo := repository.NewExceptionRepository(db.DB, logger)
	reviewRepo := repository.NewReviewRepository(db.DB, logger)
	auditRepo := repository.NewAuditRepository(db.DB, logger)
	intakeRepo := repository.NewIntakeRepository(db.DB, logger)

	// Pipeline components
	store := storage.NewLocalDocumentStore(cfg.Storage.BaseDir, logger)
	rejectedStore := storage.NewLocalDocumentStore(cfg.Storage.RejectedDir, logger)
	extractor := extraction.NewExtractor(cfg.Extraction.ConfidenceThresholds, cfg.Extraction.MaxTextChars, logger)

	engine, err := validation.NewEngine(cfg.Validation, logger)
	if err != nil {
		logger.Fatal("Failed to initialize validation engine", zap.Error(err))
	}

	var synthesizer service.FieldSynthesizer
	if cfg.Synthesis.Enabled && cfg.Synthesis.APIKey != "" {
		synthesizer = synthesis.NewSynthesizer(synthesis.Config{
			APIKey:      cfg.Synthesis.APIKey,
			BaseURL:     cfg.Synthesis.BaseURL,
			Model:       cfg.Synthesis.Model,
			Temperature: cfg.Synthesis.Temperature,
			MaxTokens:   cfg.Synthesis.MaxTokens,
			Timeout:     cfg.Synthesis.Timeout,
		}, logger)
	} else {
		logger.Warn("Synthesis disabled, low-confidence fields go straight to validation")
	}

	pipeline := service.NewPipelineService(
		extractor, synthesizer, engine, db,
		invoiceRepo, exceptionRepo, auditRepo, logger,
	)
	reviewService := service.NewReviewService(db, exceptionRepo, reviewRepo, auditRepo, logger)

	// Email intake
	graphClient := email.NewGraphClient(email.GraphConfig{
		TenantID:     cfg.Graph.TenantID,
		ClientID:     cfg.Graph.ClientID,
		ClientSecret: cfg.Graph.ClientSecret,
		UserEmail:    cfg.Graph.UserEmail,
		Timeout:      cfg.Graph.APITimeout,
	}, logger)
	intakeService := email.NewIntakeService(graphClient, store, rejectedStore, intakeRepo, logger)

	// Background pipeline worker
	poller := worker.NewIntakePoller(
		intakeRepo, pipeline,
		cfg.Worker.PollInterval,
		cfg.Worker.BatchSize,
		cfg.Worker.ProcessTimeout,
		logger,
	)
	if err := poller.Start(context.Background()); err != nil {
		logger.Fatal("Failed to start intake poller", zap.Error(err))
	}
	defer poller.Stop()

	// HTTP surface
	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware())

	apiHandler := api.NewHandler(
		exceptionRepo, invoiceRepo, reviewService,
		store, report.NewExceptionExporter(logger), logger,
	)
	apiHandler.RegisterRoutes(router)

	webhookVerifier := webhook.NewVerifier(cfg.Graph.WebhookSecret, cfg.Graph.WebhookSecret, logger)
	webhookHandler := webhook.NewHandler(webhookVerifier, intakeService, logger)
	// Graph sends subscription validation on GET and notifications on POST
	router.GET(cfg.Server.WebhookPath, webhookHandler.Handle)
	router.POST(cfg.Server.WebhookPath, webhookHandler.Handle)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// corsMiddleware adds CORS headers for the review dashboard
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
