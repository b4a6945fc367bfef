package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/seduc-go/academia-api/internal/models"
	"github.com/seduc-go/academia-api/internal/service"
	appErrors "github.com/seduc-go/academia-api/pkg/errors"
	"github.com/seduc-go/academia-api/pkg/response"
)

// StudentHandler exposes enrollment endpoints.
type StudentHandler struct {
	enrollment *service.EnrollmentService
	metrics    *service.MetricsService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(enrollment *service.EnrollmentService, metrics *service.MetricsService) *StudentHandler {
	return &StudentHandler{enrollment: enrollment, metrics: metrics}
}

func studentFilterFromQuery(c *gin.Context) models.StudentFilter {
	var filter models.StudentFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if m := c.Query("modality"); m != "" {
		modality := models.Modality(m)
		filter.Modality = &modality
	}
	if blocked := c.Query("blocked"); blocked != "" {
		if blocked == "true" {
			v := true
			filter.Blocked = &v
		} else if blocked == "false" {
			v := false
			filter.Blocked = &v
		}
	}
	return filter
}

func slotFromQuery(c *gin.Context) *models.TrainingSlot {
	if c.Query("modality") == "" && c.Query("trainingTime") == "" {
		return nil
	}
	turma := c.Query("turma")
	return &models.TrainingSlot{
		Modality:     models.Modality(c.Query("modality")),
		TrainingDays: models.TrainingDays(c.Query("trainingDays")),
		TrainingTime: c.Query("trainingTime"),
		Turma:        models.Turma(turma),
	}
}

// Roster godoc
// @Summary List active students grouped by training time
// @Tags Students
// @Produce json
// @Param search query string false "Search by name or CPF"
// @Param modality query string false "Filter by modality"
// @Param flat query bool false "Return an ungrouped list instead"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) Roster(c *gin.Context) {
	if c.Query("flat") == "true" {
		students, err := h.enrollment.List(c.Request.Context(), studentFilterFromQuery(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, students, nil)
		return
	}
	groups, err := h.enrollment.Roster(c.Request.Context(), studentFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, nil)
}

// Waitlist godoc
// @Summary List waitlisted students in queue order
// @Tags Students
// @Produce json
// @Param modality query string false "Slot modality"
// @Param trainingDays query string false "Slot weekday pattern"
// @Param trainingTime query string false "Slot time label"
// @Param turma query string false "Slot turma"
// @Success 200 {object} response.Envelope
// @Router /students/waitlist [get]
func (h *StudentHandler) Waitlist(c *gin.Context) {
	entries, err := h.enrollment.Waitlist(c.Request.Context(), slotFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Get godoc
// @Summary Get student detail
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.enrollment.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Enroll godoc
// @Summary Enroll a student into a training slot
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.EnrollStudentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Enroll(c *gin.Context) {
	var req service.EnrollStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.enrollment.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordEnrollment(string(result.Student.Modality), result.Waitlisted)
	response.Created(c, result)
}

// Update godoc
// @Summary Update a student profile or training slot
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.UpdateStudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var req service.UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.enrollment.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Delete godoc
// @Summary Delete a student, promoting the waitlist head if a seat frees
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	result, err := h.enrollment.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Promote godoc
// @Summary Admit the earliest waitlisted student of a slot
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.PromoteRequest true "Slot key"
// @Success 200 {object} response.Envelope
// @Router /students/slots/promote [post]
func (h *StudentHandler) Promote(c *gin.Context) {
	var req service.PromoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.enrollment.Promote(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

type blockRequest struct {
	CPF     string `json:"cpf" binding:"required"`
	Blocked bool   `json:"blocked"`
}

// SetBlocked godoc
// @Summary Toggle the attendance block flag for a cpf
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body blockRequest true "CPF and block flag"
// @Success 200 {object} response.Envelope
// @Router /students/block [patch]
func (h *StudentHandler) SetBlocked(c *gin.Context) {
	var req blockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.enrollment.SetBlocked(c.Request.Context(), req.CPF, req.Blocked)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}
