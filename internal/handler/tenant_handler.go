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

// TenantHandler handles organisation management endpoints (superadmin only).
type TenantHandler struct {
	service *service.TenantService
}

// NewTenantHandler creates a new tenant handler.
func NewTenantHandler(svc *service.TenantService) *TenantHandler {
	return &TenantHandler{service: svc}
}

// List godoc
// @Summary List organisations
// @Description List organisations with pagination and filtering
// @Tags Tenants
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param type query string false "Tenant type filter"
// @Param status query string false "Status filter"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /tenants [get]
func (h *TenantHandler) List(c *gin.Context) {
	var filter models.TenantFilter

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	if tenantType := c.Query("type"); tenantType != "" {
		tt := models.TenantType(tenantType)
		filter.Type = &tt
	}
	if status := c.Query("status"); status != "" {
		st := models.TenantStatus(status)
		filter.Status = &st
	}
	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	tenants, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, tenants, pagination)
}

// Get godoc
// @Summary Get organisation
// @Description Get organisation detail
// @Tags Tenants
// @Produce json
// @Param id path string true "Tenant ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tenants/{id} [get]
func (h *TenantHandler) Get(c *gin.Context) {
	tenant, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, tenant, nil)
}

// Create godoc
// @Summary Create organisation
// @Description Provision a new school or corporate organisation
// @Tags Tenants
// @Accept json
// @Produce json
// @Param payload body service.CreateTenantRequest true "Create payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tenants [post]
func (h *TenantHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	tenant, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, tenant)
}

// Update godoc
// @Summary Update organisation
// @Description Update organisation details
// @Tags Tenants
// @Accept json
// @Produce json
// @Param id path string true "Tenant ID"
// @Param payload body service.UpdateTenantRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /tenants/{id} [put]
func (h *TenantHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	tenant, err := h.service.Update(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, tenant, nil)
}

// Suspend godoc
// @Summary Suspend organisation
// @Description Lock an organisation out of the platform
// @Tags Tenants
// @Produce json
// @Param id path string true "Tenant ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tenants/{id}/suspend [post]
func (h *TenantHandler) Suspend(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	tenant, err := h.service.Suspend(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, tenant, nil)
}

// Reactivate godoc
// @Summary Reactivate organisation
// @Description Lift an organisation's suspension
// @Tags Tenants
// @Produce json
// @Param id path string true "Tenant ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tenants/{id}/reactivate [post]
func (h *TenantHandler) Reactivate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	tenant, err := h.service.Reactivate(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, tenant, nil)
}
