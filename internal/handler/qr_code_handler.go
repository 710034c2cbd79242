package handler

import (
	"net/http"

	"github.com/SergeiKhy/scanme-analytics/internal/middleware"
	"github.com/SergeiKhy/scanme-analytics/internal/models"
	"github.com/SergeiKhy/scanme-analytics/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type QRCodeHandler struct {
	qrCodes service.QRCodeService
	baseURL string
	logger  *zap.Logger
}

func NewQRCodeHandler(qrCodes service.QRCodeService, baseURL string, logger *zap.Logger) *QRCodeHandler {
	return &QRCodeHandler{
		qrCodes: qrCodes,
		baseURL: baseURL,
		logger:  logger,
	}
}

type CreateQRCodeRequest struct {
	Name      string `json:"name" binding:"required"`
	Type      string `json:"type,omitempty"`
	TargetURL string `json:"target_url" binding:"required"`
	Size      string `json:"size,omitempty"`
	MaxScans  int64  `json:"max_scans,omitempty"`
}

type QRCodeResponse struct {
	*models.QRCode
	ScanURL string `json:"scan_url"`
}

func (h *QRCodeHandler) response(qr *models.QRCode) QRCodeResponse {
	return QRCodeResponse{QRCode: qr, ScanURL: h.baseURL + "/r/" + qr.ID}
}

// CreateQRCode godoc
// @Summary Create a QR code
// @Tags qr-codes
// @Accept json
// @Produce json
// @Param request body CreateQRCodeRequest true "QR code"
// @Success 201 {object} QRCodeResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/qr-codes [post]
func (h *QRCodeHandler) CreateQRCode(c *gin.Context) {
	var req CreateQRCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		badRequest(c, "invalid_request", err)
		return
	}

	userID, _ := middleware.UserIDFromContext(c)
	qr, err := h.qrCodes.Create(c.Request.Context(), &models.CreateQRCodeInput{
		UserID:    userID,
		Name:      req.Name,
		Type:      models.QRCodeType(req.Type),
		TargetURL: req.TargetURL,
		Size:      models.QRCodeSize(req.Size),
		MaxScans:  req.MaxScans,
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to create QR code")
		return
	}

	h.logger.Info("QR code created",
		zap.String("qr_code_id", qr.ID),
		zap.String("user_id", userID),
	)
	c.JSON(http.StatusCreated, h.response(qr))
}

// GetQRCode godoc
// @Summary Get a QR code
// @Tags qr-codes
// @Produce json
// @Param id path string true "QR code ID"
// @Success 200 {object} QRCodeResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/qr-codes/{id} [get]
func (h *QRCodeHandler) GetQRCode(c *gin.Context) {
	qr, err := h.qrCodes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err, "Failed to get QR code")
		return
	}

	c.JSON(http.StatusOK, h.response(qr))
}

// DeleteQRCode godoc
// @Summary Delete a QR code
// @Description Marks the code deleted. Its scans stay available to analytics.
// @Tags qr-codes
// @Produce json
// @Param id path string true "QR code ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/qr-codes/{id} [delete]
func (h *QRCodeHandler) DeleteQRCode(c *gin.Context) {
	id := c.Param("id")
	if err := h.qrCodes.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err, "Failed to delete QR code")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "QR code deleted successfully"})
}
