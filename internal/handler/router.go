package handler

import (
	"github.com/SergeiKhy/scanme-analytics/internal/middleware"
	"github.com/SergeiKhy/scanme-analytics/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Services struct {
	QRCodes   service.QRCodeService
	Analytics service.AnalyticsService
	Exporter  service.ExportService
	Users     service.UserService
	Processor service.ScanProcessor
}

type RouterConfig struct {
	BaseURL         string
	DefaultTimezone string
	// APIKey guards everything under /api/v1 except health. Nil leaves the API open.
	APIKey       gin.HandlerFunc
	RateLimiter  *middleware.RateLimiter
	HealthChecks map[string]Pinger
}

func NewRouter(services Services, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	if cfg.RateLimiter != nil {
		router.Use(cfg.RateLimiter.Middleware())
	}

	health := NewHealthHandler(cfg.HealthChecks)
	redirect := NewRedirectHandler(services.QRCodes, services.Processor, logger)
	qrCodes := NewQRCodeHandler(services.QRCodes, cfg.BaseURL, logger)
	analytics := NewAnalyticsHandler(services.QRCodes, services.Analytics, services.Exporter, services.Users, cfg.DefaultTimezone, logger)
	users := NewUserHandler(services.Users, cfg.DefaultTimezone, logger)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", health.HealthCheck)

		if cfg.APIKey != nil {
			v1.Use(cfg.APIKey)
		}

		v1.POST("/qr-codes", qrCodes.CreateQRCode)
		v1.GET("/qr-codes/:id", qrCodes.GetQRCode)
		v1.DELETE("/qr-codes/:id", qrCodes.DeleteQRCode)

		stats := v1.Group("/analytics/qr-code/:id")
		stats.GET("/scans", analytics.GetScans)
		stats.GET("/summary", analytics.GetSummary)
		stats.GET("/daily-scans", analytics.GetDailyScans)
		stats.GET("/device-breakdown", analytics.GetDeviceBreakdown)
		stats.GET("/browser-breakdown", analytics.GetBrowserBreakdown)
		stats.GET("/os-breakdown", analytics.GetOSBreakdown)
		stats.GET("/export", analytics.ExportScans)

		v1.GET("/users/me/timezone", users.GetTimezone)
		v1.PUT("/users/me/timezone", users.SetTimezone)
	}

	// Scans come from phones, never with an API key.
	router.GET("/r/:id", redirect.Redirect)

	return router
}
