package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/schoolsuite/sms-core-api/internal/dto"
	"github.com/schoolsuite/sms-core-api/internal/middleware"
	"github.com/schoolsuite/sms-core-api/internal/models"
	"github.com/schoolsuite/sms-core-api/internal/service"
	appErrors "github.com/schoolsuite/sms-core-api/pkg/errors"
	"github.com/schoolsuite/sms-core-api/pkg/response"
)

// StudentHandler exposes student records and the activation lifecycle.
type StudentHandler struct {
	students *service.StudentService
	creation *service.StudentCreationService
}

// NewStudentHandler constructs a student handler.
func NewStudentHandler(students *service.StudentService, creation *service.StudentCreationService) *StudentHandler {
	return &StudentHandler{students: students, creation: creation}
}

// Create godoc
// @Summary Register a student manually
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body dto.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req dto.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student payload"))
		return
	}
	student, err := h.students.Create(c.Request.Context(), req, middleware.ActorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, service.Describe(student))
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param status query string false "Filter by status"
// @Param class_id query string false "Filter by class"
// @Param search query string false "Search name or student number"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	var filter models.StudentFilter
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		parsed := models.StudentStatus(status)
		filter.Status = &parsed
	}
	filter.ClassID = c.Query("class_id")
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	students, total, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, describeAll(students), &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// ListActive godoc
// @Summary List the active reporting bucket
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /students/active [get]
func (h *StudentHandler) ListActive(c *gin.Context) {
	students, err := h.students.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, describeAll(students), nil)
}

// ListInactive godoc
// @Summary List every student that is not active
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /students/inactive [get]
func (h *StudentHandler) ListInactive(c *gin.Context) {
	students, err := h.students.ListInactive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, describeAll(students), nil)
}

func describeAll(students []models.Student) []dto.StudentResponse {
	items := make([]dto.StudentResponse, 0, len(students))
	for i := range students {
		items = append(items, service.Describe(&students[i]))
	}
	return items
}

// Get godoc
// @Summary Get student detail with activation state
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, service.Describe(student), nil)
}

// Update godoc
// @Summary Update a student record
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.UpdateStudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var req dto.UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student payload"))
		return
	}
	student, err := h.students.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, service.Describe(student), nil)
}

// Activate godoc
// @Summary Activate a student once all requirements are met
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/{id}/activate [post]
func (h *StudentHandler) Activate(c *gin.Context) {
	student, err := h.creation.Activate(c.Request.Context(), c.Param("id"), middleware.ActorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, service.Describe(student), nil)
}

// ChangeStatus godoc
// @Summary Change a student's lifecycle status
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body object true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/{id}/status [put]
func (h *StudentHandler) ChangeStatus(c *gin.Context) {
	var payload struct {
		Status models.StudentStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "status required"))
		return
	}
	student, err := h.students.ChangeStatus(c.Request.Context(), c.Param("id"), payload.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, service.Describe(student), nil)
}

// CreateFromApplication godoc
// @Summary Create a student record from an approved application
// @Tags Students
// @Produce json
// @Param id path string true "Application ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admissions/{id}/create-student [post]
func (h *StudentHandler) CreateFromApplication(c *gin.Context) {
	student, err := h.creation.CreateFromApplication(c.Request.Context(), c.Param("id"), middleware.ActorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, service.Describe(student))
}

// BulkCreate godoc
// @Summary Create students from a set of approved applications
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body dto.BulkApplicationsRequest true "Application IDs"
// @Success 200 {object} response.Envelope
// @Router /students/bulk-create [post]
func (h *StudentHandler) BulkCreate(c *gin.Context) {
	var req dto.BulkApplicationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "application ids required"))
		return
	}
	result := h.creation.BulkCreate(c.Request.Context(), req.ApplicationIDs, middleware.ActorID(c))
	response.JSON(c, http.StatusOK, result, nil)
}

// BulkActivate godoc
// @Summary Activate a set of students
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body dto.BulkIDsRequest true "Student IDs"
// @Success 200 {object} response.Envelope
// @Router /students/bulk-activate [post]
func (h *StudentHandler) BulkActivate(c *gin.Context) {
	var req dto.BulkIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "student ids required"))
		return
	}
	result := h.creation.BulkActivate(c.Request.Context(), req.StudentIDs, middleware.ActorID(c))
	response.JSON(c, http.StatusOK, result, nil)
}
