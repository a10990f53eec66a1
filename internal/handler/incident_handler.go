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

// IncidentHandler handles incident tracking endpoints. Tenant admins see
// their own incidents; superadmins without a tenant header see platform
// level incidents.
type IncidentHandler struct {
	service *service.IncidentService
}

// NewIncidentHandler creates a new incident handler.
func NewIncidentHandler(svc *service.IncidentService) *IncidentHandler {
	return &IncidentHandler{service: svc}
}

// List godoc
// @Summary List incidents
// @Tags Incidents
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param severity query string false "Severity filter"
// @Param status query string false "Status filter"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Router /incidents [get]
func (h *IncidentHandler) List(c *gin.Context) {
	var filter models.IncidentFilter
	filter.TenantID = tenantFromContext(c)

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	if severity := c.Query("severity"); severity != "" {
		sev := models.IncidentSeverity(severity)
		filter.Severity = &sev
	}
	if status := c.Query("status"); status != "" {
		st := models.IncidentStatus(status)
		filter.Status = &st
	}
	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	incidents, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, incidents, pagination)
}

// Get godoc
// @Summary Get incident
// @Tags Incidents
// @Produce json
// @Param id path string true "Incident ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /incidents/{id} [get]
func (h *IncidentHandler) Get(c *gin.Context) {
	incident, err := h.service.Get(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, incident, nil)
}

// Create godoc
// @Summary Report incident
// @Tags Incidents
// @Accept json
// @Produce json
// @Param payload body service.CreateIncidentRequest true "Create payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /incidents [post]
func (h *IncidentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	incident, err := h.service.Create(c.Request.Context(), tenantFromContext(c), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, incident)
}

// Update godoc
// @Summary Update incident
// @Description Update fields and optionally move status forward, appending a timeline event
// @Tags Incidents
// @Accept json
// @Produce json
// @Param id path string true "Incident ID"
// @Param payload body service.UpdateIncidentRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /incidents/{id} [put]
func (h *IncidentHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	incident, err := h.service.Update(c.Request.Context(), tenantFromContext(c), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, incident, nil)
}

// Timeline godoc
// @Summary Incident timeline
// @Description Append-only event history for an incident
// @Tags Incidents
// @Produce json
// @Param id path string true "Incident ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /incidents/{id}/timeline [get]
func (h *IncidentHandler) Timeline(c *gin.Context) {
	events, err := h.service.Timeline(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, events, nil)
}
