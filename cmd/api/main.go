package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/scanme-analytics/internal/calendar"
	"github.com/SergeiKhy/scanme-analytics/internal/config"
	"github.com/SergeiKhy/scanme-analytics/internal/geo"
	"github.com/SergeiKhy/scanme-analytics/internal/handler"
	"github.com/SergeiKhy/scanme-analytics/internal/logger"
	"github.com/SergeiKhy/scanme-analytics/internal/middleware"
	"github.com/SergeiKhy/scanme-analytics/internal/repository"
	"github.com/SergeiKhy/scanme-analytics/internal/service"
	"github.com/SergeiKhy/scanme-analytics/internal/useragent"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "scanme-analytics"

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Подключение к БД (postgres)
	db, err := repository.NewPostgresDB(cfg.DB)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	zapLogger.Info("Connected to PostgreSQL")

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err = repository.Migrate(migrateCtx, db)
	cancelMigrate()
	if err != nil {
		zapLogger.Fatal("Failed to apply schema", zap.Error(err))
	}

	// Подключение к Redis
	redis, err := repository.NewRedisClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()
	zapLogger.Info("Connected to Redis")

	// Инициализация репозиториев
	qrRepo := repository.NewQRCodeRepository(db)
	scanRepo := repository.NewScanRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redis)

	// Инициализация сервисов
	cal := calendar.New()
	qrCodeService := service.NewQRCodeService(qrRepo, cacheRepo, cfg.Redis.CacheTTL, zapLogger)
	analyticsService := service.NewAnalyticsService(scanRepo, cal, zapLogger)
	exportService := service.NewExportService(scanRepo, analyticsService, zapLogger)
	userService := service.NewUserService(userRepo)

	// Процессор сканов (Worker Pool)
	recorder := service.NewScanRecorder(scanRepo, useragent.NewClassifier(), nil)
	locator := geo.NewLocator(cfg.Geo.BaseURL, cfg.Geo.Timeout, zapLogger)
	scanProcessor := service.NewScanProcessor(recorder, locator, cfg.Analytics, zapLogger)
	scanProcessor.Start()
	defer scanProcessor.Stop()

	// Middleware
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
	})
	defer rateLimiter.Stop()

	var apiKeyMiddleware gin.HandlerFunc
	if len(cfg.Auth.APIKeys) > 0 {
		apiKeyMiddleware = middleware.RequireAPIKey(cfg.Auth.APIKeys)
		zapLogger.Info("API key authentication enabled", zap.Int("keys_count", len(cfg.Auth.APIKeys)))
	} else {
		zapLogger.Warn("No API keys configured, analytics API is open and timezone preferences are disabled")
	}

	// Настройка роутера
	router := handler.NewRouter(handler.Services{
		QRCodes:   qrCodeService,
		Analytics: analyticsService,
		Exporter:  exportService,
		Users:     userService,
		Processor: scanProcessor,
	}, handler.RouterConfig{
		BaseURL:         cfg.App.BaseURL,
		DefaultTimezone: cfg.App.DefaultTimezone,
		APIKey:          apiKeyMiddleware,
		RateLimiter:     rateLimiter,
		HealthChecks: map[string]handler.Pinger{
			"postgres": db,
			"redis":    redis,
		},
	}, zapLogger)

	// Запуск сервера
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zapLogger.Info("Server starting",
			zap.String("port", cfg.App.Port),
			zap.String("default_timezone", cfg.App.DefaultTimezone),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited", zap.Int("queued_scans", scanProcessor.Stats().BufferUsed))
}
