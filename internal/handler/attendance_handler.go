package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seduc-go/academia-api/internal/service"
	appErrors "github.com/seduc-go/academia-api/pkg/errors"
	"github.com/seduc-go/academia-api/pkg/response"
)

// AttendanceHandler exposes check-in endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
	metrics    *service.MetricsService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService, metrics *service.MetricsService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, metrics: metrics}
}

// CheckIn godoc
// @Summary Record an attendance check-in by cpf
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.CheckInRequest true "Check-in payload"
// @Success 201 {object} response.Envelope
// @Router /attendance/check-in [post]
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	var req service.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.attendance.CheckIn(c.Request.Context(), req)
	if err != nil {
		h.metrics.RecordCheckIn(false)
		response.Error(c, err)
		return
	}
	h.metrics.RecordCheckIn(true)
	response.Created(c, result)
}

// ListToday godoc
// @Summary List today's check-ins, newest first
// @Tags Attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/today [get]
func (h *AttendanceHandler) ListToday(c *gin.Context) {
	records, err := h.attendance.ListToday(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}
