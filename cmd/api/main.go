package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-progress-api/internal/config"
	"github.com/noah-isme/gema-progress-api/internal/database"
	"github.com/noah-isme/gema-progress-api/internal/handler"
	"github.com/noah-isme/gema-progress-api/internal/middleware"
	"github.com/noah-isme/gema-progress-api/internal/repository"
	"github.com/noah-isme/gema-progress-api/internal/router"
	"github.com/noah-isme/gema-progress-api/internal/service"
	cloud "github.com/noah-isme/gema-progress-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to access database handle: %v", err)
	}
	defer sqlDB.Close()

	healthChecks := map[string]handler.Pinger{"database": sqlDB}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		healthChecks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	} else {
		logger.Warn().Msg("redis url not configured, standing cache disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	} else {
		logger.Warn().Msg("nats url not configured, decision events disabled")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	store := repository.NewStore(db)
	locks := service.NewLearnerLocks()
	cache := service.NewStandingCache(redisClient, cfg.StandingCacheTTL, logger)
	aggregator := service.NewScoreAggregator(store, locks, cache, logger)
	publisher := service.NewNATSDecisionPublisher(natsConn, cfg.DecisionSubject)
	auditService := service.NewAuditService(store.AuditLogs(), logger)

	submissionService := service.NewSubmissionService(store, locks, cache, validate, cfg.UploadMaxFiles, logger)
	reviewService := service.NewReviewService(store, aggregator, locks, cache, publisher, logger)
	standingService := service.NewStandingService(store, cache, logger)

	deps := router.Dependencies{
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, validate, logger),
		ReviewHandler:     handler.NewReviewHandler(reviewService, aggregator, validate, logger),
		StandingHandler:   handler.NewStandingHandler(standingService, logger),
		AuditHandler:      handler.NewAuditHandler(auditService, logger),
		HealthChecks:      healthChecks,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	}

	storageCfg := cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}
	if storageCfg.Enabled() {
		storage, err := cloud.New(storageCfg, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		uploadService := service.NewUploadService(storage, auditService, cfg.UploadMaxSizeMB, cfg.UploadMaxFiles, logger)
		deps.UploadHandler = handler.NewUploadHandler(uploadService, logger)
	} else {
		logger.Warn().Msg("cloudinary credentials not configured, uploads disabled")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB*cfg.UploadMaxFiles + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
		AccessLog:    cfg.AccessLog,
	})
	router.Register(app, cfg, deps)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
