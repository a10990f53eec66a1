package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/smartattend/smartattend-api/internal/models"
	"github.com/smartattend/smartattend-api/internal/service"
	appErrors "github.com/smartattend/smartattend-api/pkg/errors"
	"github.com/smartattend/smartattend-api/pkg/response"
)

// ApprovalHandler handles the registration approval queue.
type ApprovalHandler struct {
	service *service.ApprovalService
}

// NewApprovalHandler creates a new approval handler.
func NewApprovalHandler(svc *service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{service: svc}
}

// List godoc
// @Summary List approvals
// @Description List registration approvals with pagination and filtering
// @Tags Approvals
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /approvals [get]
func (h *ApprovalHandler) List(c *gin.Context) {
	var filter models.ApprovalFilter
	filter.TenantID = tenantFromContext(c)

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	if status := c.Query("status"); status != "" {
		st := models.ApprovalStatus(status)
		filter.Status = &st
	}
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	approvals, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, approvals, pagination)
}

// Get godoc
// @Summary Get approval
// @Description Get one approval with applicant details
// @Tags Approvals
// @Produce json
// @Param id path string true "Approval ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /approvals/{id} [get]
func (h *ApprovalHandler) Get(c *gin.Context) {
	approval, err := h.service.Get(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, approval, nil)
}

// Decide godoc
// @Summary Decide approval
// @Description Approve or reject a pending registration; decisions are final
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Approval ID"
// @Param payload body service.DecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /approvals/{id}/decision [post]
func (h *ApprovalHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	approval, err := h.service.Decide(c.Request.Context(), tenantFromContext(c), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, approval, nil)
}
