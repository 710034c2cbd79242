package handler

import (
	"net/http"

	"github.com/SergeiKhy/scanme-analytics/internal/models"
	"github.com/SergeiKhy/scanme-analytics/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RedirectHandler struct {
	qrCodes   service.QRCodeService
	processor service.ScanProcessor
	logger    *zap.Logger
}

func NewRedirectHandler(qrCodes service.QRCodeService, processor service.ScanProcessor, logger *zap.Logger) *RedirectHandler {
	return &RedirectHandler{
		qrCodes:   qrCodes,
		processor: processor,
		logger:    logger,
	}
}

// Redirect godoc
// @Summary Scan a QR code
// @Description Counts the scan, records analytics asynchronously and redirects to the target URL
// @Tags scans
// @Param id path string true "QR code ID"
// @Success 307
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /r/{id} [get]
func (h *RedirectHandler) Redirect(c *gin.Context) {
	id := c.Param("id")

	qr, err := h.qrCodes.RegisterScan(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "Failed to register scan")
		return
	}

	event := &models.ScanEvent{
		QRCodeID:  qr.ID,
		IPAddress: optional(c.ClientIP()),
		UserAgent: optional(c.Request.UserAgent()),
		Referer:   optional(c.Request.Referer()),
	}
	if err := h.processor.Enqueue(c.Request.Context(), event); err != nil {
		h.logger.Warn("Scan not queued", zap.String("qr_code_id", qr.ID), zap.Error(err))
	}

	c.Redirect(http.StatusTemporaryRedirect, qr.TargetURL)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
