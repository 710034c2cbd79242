package handler

import (
	"net/http"

	"github.com/SergeiKhy/scanme-analytics/internal/middleware"
	"github.com/SergeiKhy/scanme-analytics/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserHandler struct {
	users           service.UserService
	defaultTimezone string
	logger          *zap.Logger
}

func NewUserHandler(users service.UserService, defaultTimezone string, logger *zap.Logger) *UserHandler {
	if defaultTimezone == "" {
		defaultTimezone = service.DefaultTimezone
	}
	return &UserHandler{
		users:           users,
		defaultTimezone: defaultTimezone,
		logger:          logger,
	}
}

type TimezoneRequest struct {
	Timezone string `json:"timezone" binding:"required"`
}

type TimezoneResponse struct {
	Timezone string `json:"timezone"`
	// Source is "user" for a stored preference, "default" otherwise.
	Source string `json:"source"`
}

func (h *UserHandler) requireUser(c *gin.Context) (string, bool) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "user_required",
			Message: "This endpoint requires an API key bound to a user",
		})
		return "", false
	}
	return userID, true
}

// GetTimezone godoc
// @Summary Get the caller's analytics timezone
// @Tags users
// @Produce json
// @Success 200 {object} TimezoneResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/users/me/timezone [get]
func (h *UserHandler) GetTimezone(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	tz, err := h.users.GetTimezone(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to get timezone")
		return
	}

	if tz == "" {
		c.JSON(http.StatusOK, TimezoneResponse{Timezone: h.defaultTimezone, Source: "default"})
		return
	}
	c.JSON(http.StatusOK, TimezoneResponse{Timezone: tz, Source: "user"})
}

// SetTimezone godoc
// @Summary Store the caller's analytics timezone
// @Tags users
// @Accept json
// @Produce json
// @Param request body TimezoneRequest true "IANA timezone"
// @Success 200 {object} TimezoneResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/users/me/timezone [put]
func (h *UserHandler) SetTimezone(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req TimezoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err)
		return
	}

	if err := h.users.SetTimezone(c.Request.Context(), userID, req.Timezone); err != nil {
		respondError(c, h.logger, err, "Failed to set timezone")
		return
	}

	c.JSON(http.StatusOK, TimezoneResponse{Timezone: req.Timezone, Source: "user"})
}
