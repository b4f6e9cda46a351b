package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"fraudservice/internal/config"
	"fraudservice/internal/handler"
	"fraudservice/internal/inference"
	"fraudservice/internal/loader"
	"fraudservice/internal/metrics"
	"fraudservice/internal/repository"
	"fraudservice/internal/service"
)

func main() {
	// Initialize logger
	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := logConfig.Build()
	defer logger.Sync()

	logger.Info("Starting up server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Models are loaded before anything listens; a bad artifact stops startup.
	registry, err := inference.LoadRegistry(ctx, cfg.TabularModelPath, cfg.NeuralModelPath, cfg.InputSize)
	if err != nil {
		logger.Fatal("Failed to load models", zap.Error(err))
	}
	logger.Info("Models loaded",
		zap.Int("feature_count", registry.FeatureCount()),
		zap.Int("input_size", registry.InputSize()))

	// Initialize database connection
	db, err := sqlx.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("driver", cfg.DatabaseDriver), zap.Error(err))
	}
	defer db.Close()

	if cfg.DatabaseDriver == "sqlite" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := repository.Migrate(ctx, db.DB, cfg.DatabaseDriver, logger); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Initialize Redis connection
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("Failed to parse Redis URL", zap.Error(err))
	}

	redisClient := redis.NewClient(opt)
	defer redisClient.Close()

	// Initialize repositories
	sqlRepo := repository.NewSQLRepository(db, logger)
	redisRepo := repository.NewRedisRepository(redisClient, cfg.LookupCacheTTL, logger)

	// Initialize services
	csvLoader := loader.NewCSVLoader(logger)
	rirService := service.NewRIRService(logger)
	geoService := service.NewGeoService(
		sqlRepo,
		redisRepo,
		csvLoader,
		rirService,
		cfg,
		logger,
	)

	if err := geoService.Start(ctx); err != nil {
		logger.Fatal("Failed to start geo service", zap.Error(err))
	}

	summaryService := service.NewSummaryService(csvLoader, geoService, cfg, logger)
	if err := summaryService.Load(ctx); err != nil {
		logger.Error("Failed to build dataset summary", zap.Error(err))
	}

	// Initialize HTTP server
	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		JSONEncoder:  jsoniter.ConfigCompatibleWithStandardLibrary.Marshal,
		JSONDecoder:  jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal,
		ErrorHandler: handler.ErrorHandler(logger),
	})

	// Middleware
	app.Use(recover.New())
	app.Use(metrics.Middleware())
	app.Use(handler.RequestLogger(logger))

	// Initialize and register handlers
	handler.NewHandler(geoService, summaryService, logger).RegisterRoutes(app)
	handler.NewPredictHandler(registry, logger).RegisterRoutes(app)
	app.Get("/metrics", metrics.Handler())

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		if err := app.Listen(cfg.ServerPort); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-sigChan
	logger.Info("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		logger.Error("Error during server shutdown", zap.Error(err))
	}
}
