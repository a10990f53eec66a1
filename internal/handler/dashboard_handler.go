package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartattend/smartattend-api/internal/models"
	appErrors "github.com/smartattend/smartattend-api/pkg/errors"
	"github.com/smartattend/smartattend-api/pkg/response"
)

type dashboardService interface {
	Admin(ctx context.Context, tenantID string) (*models.AdminDashboard, error)
	Member(ctx context.Context, tenantID, userID string) (*models.MemberDashboard, error)
	Platform(ctx context.Context) (*models.PlatformOverview, error)
}

// DashboardHandler serves the aggregated dashboard views.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(svc dashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Admin godoc
// @Summary Admin dashboard
// @Description Organisation-wide counts and today's attendance snapshot
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/admin [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	dashboard, err := h.service.Admin(c.Request.Context(), tenantFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dashboard, nil)
}

// Member godoc
// @Summary Member dashboard
// @Description Personal 30-day summary and recent records for the calling user
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /dashboard/me [get]
func (h *DashboardHandler) Member(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	dashboard, err := h.service.Member(c.Request.Context(), tenantFromContext(c), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dashboard, nil)
}

// Platform godoc
// @Summary Platform dashboard
// @Description Cross-tenant counts for superadmins
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /platform/dashboard [get]
func (h *DashboardHandler) Platform(c *gin.Context) {
	dashboard, err := h.service.Platform(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dashboard, nil)
}
