package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/SergeiKhy/scanme-analytics/internal/middleware"
	"github.com/SergeiKhy/scanme-analytics/internal/models"
	"github.com/SergeiKhy/scanme-analytics/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AnalyticsHandler struct {
	qrCodes         service.QRCodeService
	analytics       service.AnalyticsService
	exporter        service.ExportService
	users           service.UserService
	defaultTimezone string
	logger          *zap.Logger
}

func NewAnalyticsHandler(
	qrCodes service.QRCodeService,
	analytics service.AnalyticsService,
	exporter service.ExportService,
	users service.UserService,
	defaultTimezone string,
	logger *zap.Logger,
) *AnalyticsHandler {
	if defaultTimezone == "" {
		defaultTimezone = service.DefaultTimezone
	}
	return &AnalyticsHandler{
		qrCodes:         qrCodes,
		analytics:       analytics,
		exporter:        exporter,
		users:           users,
		defaultTimezone: defaultTimezone,
		logger:          logger,
	}
}

type DailyScansResponse struct {
	QRCodeID  string          `json:"qr_code_id"`
	Timezone  string          `json:"timezone"`
	Interval  models.Interval `json:"interval"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Buckets   []models.Bucket `json:"buckets"`
}

type BreakdownResponse struct {
	QRCodeID  string                  `json:"qr_code_id"`
	Dimension models.Dimension        `json:"dimension"`
	Entries   []models.BreakdownEntry `json:"entries"`
}

// resolveTimezone picks the viewer's zone for this request only: the timezone
// query parameter, then the user's stored preference, then the configured default.
func (h *AnalyticsHandler) resolveTimezone(c *gin.Context) string {
	if tz := c.Query("timezone"); tz != "" {
		return tz
	}

	if userID, ok := middleware.UserIDFromContext(c); ok {
		tz, err := h.users.GetTimezone(c.Request.Context(), userID)
		if err != nil {
			h.logger.Warn("Failed to load user timezone", zap.String("user_id", userID), zap.Error(err))
		} else if tz != "" {
			return tz
		}
	}

	return h.defaultTimezone
}

// requireQRCode checks existence only; deleted and locked codes keep their analytics.
func (h *AnalyticsHandler) requireQRCode(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if err := h.qrCodes.Exists(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err, "Failed to look up QR code")
		return "", false
	}
	return id, true
}

func (h *AnalyticsHandler) resolveQuery(c *gin.Context) (models.AggregateQuery, bool) {
	var raw models.RawScanQuery
	if err := c.ShouldBindQuery(&raw); err != nil {
		badRequest(c, "invalid_request", err)
		return models.AggregateQuery{}, false
	}
	raw.Timezone = h.resolveTimezone(c)

	query, err := h.analytics.ResolveQuery(raw)
	if err != nil {
		respondError(c, h.logger, err, "Failed to resolve query")
		return models.AggregateQuery{}, false
	}
	return query, true
}

// GetScans godoc
// @Summary List scans of a QR code, newest first
// @Tags analytics
// @Produce json
// @Param id path string true "QR code ID"
// @Success 200 {array} models.ScanRecord
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/analytics/qr-code/{id}/scans [get]
func (h *AnalyticsHandler) GetScans(c *gin.Context) {
	id, ok := h.requireQRCode(c)
	if !ok {
		return
	}

	scans, err := h.analytics.ListScans(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list scans")
		return
	}

	c.JSON(http.StatusOK, scans)
}

// GetSummary godoc
// @Summary Total and unique scans of a QR code
// @Tags analytics
// @Produce json
// @Param id path string true "QR code ID"
// @Success 200 {object} models.ScanSummary
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/analytics/qr-code/{id}/summary [get]
func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	id, ok := h.requireQRCode(c)
	if !ok {
		return
	}

	summary, err := h.analytics.Summary(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "Failed to get summary")
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetDailyScans godoc
// @Summary Scan counts bucketed by day, week or month in the viewer's timezone
// @Tags analytics
// @Produce json
// @Param id path string true "QR code ID"
// @Param startDate query string false "Start date: 7d, 2w, 1m, today or a date" default(30d)
// @Param endDate query string false "End date" default(today)
// @Param interval query string false "day, week or month" default(day)
// @Param timezone query string false "IANA timezone"
// @Success 200 {object} DailyScansResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/analytics/qr-code/{id}/daily-scans [get]
func (h *AnalyticsHandler) GetDailyScans(c *gin.Context) {
	id, ok := h.requireQRCode(c)
	if !ok {
		return
	}
	query, ok := h.resolveQuery(c)
	if !ok {
		return
	}

	buckets, err := h.analytics.Aggregate(c.Request.Context(), id, query)
	if err != nil {
		respondError(c, h.logger, err, "Failed to aggregate scans")
		return
	}

	c.JSON(http.StatusOK, DailyScansResponse{
		QRCodeID:  id,
		Timezone:  query.Timezone,
		Interval:  query.Interval,
		StartDate: query.StartDate.Format(timestampLayout),
		EndDate:   query.EndDate.Format(timestampLayout),
		Buckets:   buckets,
	})
}

// timestampLayout keeps the viewer's offset and millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// GetDeviceBreakdown godoc
// @Summary Scan counts per device type
// @Tags analytics
// @Produce json
// @Param id path string true "QR code ID"
// @Success 200 {object} BreakdownResponse
// @Router /api/v1/analytics/qr-code/{id}/device-breakdown [get]
func (h *AnalyticsHandler) GetDeviceBreakdown(c *gin.Context) {
	h.breakdown(c, models.DimensionDevice)
}

// GetBrowserBreakdown godoc
// @Summary Scan counts per browser
// @Tags analytics
// @Produce json
// @Param id path string true "QR code ID"
// @Success 200 {object} BreakdownResponse
// @Router /api/v1/analytics/qr-code/{id}/browser-breakdown [get]
func (h *AnalyticsHandler) GetBrowserBreakdown(c *gin.Context) {
	h.breakdown(c, models.DimensionBrowser)
}

// GetOSBreakdown godoc
// @Summary Scan counts per operating system
// @Tags analytics
// @Produce json
// @Param id path string true "QR code ID"
// @Success 200 {object} BreakdownResponse
// @Router /api/v1/analytics/qr-code/{id}/os-breakdown [get]
func (h *AnalyticsHandler) GetOSBreakdown(c *gin.Context) {
	h.breakdown(c, models.DimensionOS)
}

func (h *AnalyticsHandler) breakdown(c *gin.Context, dimension models.Dimension) {
	id, ok := h.requireQRCode(c)
	if !ok {
		return
	}

	entries, err := h.analytics.BreakdownBy(c.Request.Context(), id, dimension)
	if err != nil {
		respondError(c, h.logger, err, "Failed to build breakdown")
		return
	}

	c.JSON(http.StatusOK, BreakdownResponse{
		QRCodeID:  id,
		Dimension: dimension,
		Entries:   entries,
	})
}

// ExportScans godoc
// @Summary Download scans in a date range as an XLSX workbook
// @Tags analytics
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "QR code ID"
// @Param startDate query string false "Start date" default(30d)
// @Param endDate query string false "End date" default(today)
// @Param timezone query string false "IANA timezone"
// @Success 200 {file} file
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/analytics/qr-code/{id}/export [get]
func (h *AnalyticsHandler) ExportScans(c *gin.Context) {
	id, ok := h.requireQRCode(c)
	if !ok {
		return
	}
	query, ok := h.resolveQuery(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.exporter.Export(c.Request.Context(), id, query, &buf); err != nil {
		respondError(c, h.logger, err, "Failed to export scans")
		return
	}

	filename := fmt.Sprintf("scans-%s-%s.xlsx", id, query.EndDate.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
