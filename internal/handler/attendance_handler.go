package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smartattend/smartattend-api/internal/service"
	appErrors "github.com/smartattend/smartattend-api/pkg/errors"
	"github.com/smartattend/smartattend-api/pkg/response"
)

// AttendanceHandler handles attendance marking and reads.
type AttendanceHandler struct {
	service *service.AttendanceService
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(svc *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Mark godoc
// @Summary Mark attendance
// @Description Record one member's attendance; re-marking overwrites while the session is open
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.MarkRequest true "Mark payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.MarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	record, err := h.service.Mark(c.Request.Context(), tenantFromContext(c), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// BulkMark godoc
// @Summary Bulk mark attendance
// @Description Record a batch of marks atomically or collecting per-row conflicts
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.BulkMarkRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/attendance/bulk [post]
func (h *AttendanceHandler) BulkMark(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.BulkMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.service.BulkMark(c.Request.Context(), tenantFromContext(c), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// SessionRecords godoc
// @Summary List session marks
// @Tags Attendance
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id}/attendance [get]
func (h *AttendanceHandler) SessionRecords(c *gin.Context) {
	records, err := h.service.SessionRecords(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, nil)
}

// History godoc
// @Summary Member attendance history
// @Tags Attendance
// @Produce json
// @Param id path string true "Member ID"
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Param limit query int false "Max rows"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /members/{id}/attendance [get]
func (h *AttendanceHandler) History(c *gin.Context) {
	from, to := dateRange(c)
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if val, err := strconv.Atoi(raw); err == nil {
			limit = val
		}
	}

	rows, err := h.service.History(c.Request.Context(), tenantFromContext(c), c.Param("id"), from, to, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, rows, nil)
}

// Summary godoc
// @Summary Member attendance summary
// @Description Aggregate a member's marks over a period
// @Tags Attendance
// @Produce json
// @Param id path string true "Member ID"
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /members/{id}/attendance/summary [get]
func (h *AttendanceHandler) Summary(c *gin.Context) {
	from, to := dateRange(c)

	summary, err := h.service.Summary(c.Request.Context(), tenantFromContext(c), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}

func dateRange(c *gin.Context) (*time.Time, *time.Time) {
	var from, to *time.Time
	if raw := c.Query("date_from"); raw != "" {
		if val, err := time.Parse("2006-01-02", raw); err == nil {
			from = &val
		}
	}
	if raw := c.Query("date_to"); raw != "" {
		if val, err := time.Parse("2006-01-02", raw); err == nil {
			to = &val
		}
	}
	return from, to
}
