package handler

import (
	"errors"
	"net/http"

	"github.com/SergeiKhy/scanme-analytics/internal/calendar"
	"github.com/SergeiKhy/scanme-analytics/internal/repository"
	"github.com/SergeiKhy/scanme-analytics/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{service.ErrInvalidDateRange, http.StatusBadRequest, "invalid_date_range"},
	{calendar.ErrInvalidDateFormat, http.StatusBadRequest, "invalid_date_format"},
	{calendar.ErrUnknownTimezone, http.StatusBadRequest, "unknown_timezone"},
	{service.ErrInvalidInterval, http.StatusBadRequest, "invalid_interval"},
	{service.ErrInvalidDimension, http.StatusBadRequest, "invalid_dimension"},
	{service.ErrInvalidURL, http.StatusBadRequest, "invalid_url"},
	{service.ErrSpamDomain, http.StatusBadRequest, "spam_domain"},
	{service.ErrInvalidQRCode, http.StatusBadRequest, "invalid_qr_code"},
	{repository.ErrQRCodeNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrQRCodeInactive, http.StatusForbidden, "qr_code_inactive"},
	{repository.ErrScanLimitReached, http.StatusForbidden, "scan_limit_reached"},
}

// respondError maps domain errors to a status; anything unmapped is a 500 with a generic message.
func respondError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			logger.Debug("Request rejected", zap.String("code", m.code), zap.Error(err))
			c.JSON(m.status, ErrorResponse{Error: m.code, Message: err.Error()})
			return
		}
	}

	logger.Error(fallback, zap.Error(err))
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: fallback,
	})
}

func badRequest(c *gin.Context, code string, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: code, Message: err.Error()})
}
