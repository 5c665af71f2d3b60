package handler

import (
	"errors"
	"io"
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

// AdmissionHandler exposes the application review workflow over HTTP.
type AdmissionHandler struct {
	service *service.AdmissionService
}

// NewAdmissionHandler constructs an admission handler.
func NewAdmissionHandler(svc *service.AdmissionService) *AdmissionHandler {
	return &AdmissionHandler{service: svc}
}

// Create godoc
// @Summary Submit an admission application
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body dto.CreateApplicationRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admissions [post]
func (h *AdmissionHandler) Create(c *gin.Context) {
	var req dto.CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid application payload"))
		return
	}
	app, err := h.service.Create(c.Request.Context(), req, middleware.ActorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewApplicationResponse(app))
}

// List godoc
// @Summary List admission applications
// @Tags Admissions
// @Produce json
// @Param status query string false "Comma-separated statuses"
// @Param class_id query string false "Filter by applied class"
// @Param session_id query string false "Filter by session"
// @Param search query string false "Search name or application number"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admissions [get]
func (h *AdmissionHandler) List(c *gin.Context) {
	var filter models.ApplicationFilter
	if statuses := strings.TrimSpace(c.Query("status")); statuses != "" {
		for _, status := range strings.Split(statuses, ",") {
			filter.Status = append(filter.Status, models.ApplicationStatus(strings.TrimSpace(status)))
		}
	}
	filter.ClassID = c.Query("class_id")
	filter.SessionID = c.Query("session_id")
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	apps, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	items := make([]dto.ApplicationResponse, 0, len(apps))
	for i := range apps {
		items = append(items, dto.NewApplicationResponse(&apps[i]))
	}
	response.JSON(c, http.StatusOK, items, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// WaitlistQueue godoc
// @Summary List the waitlist in position order
// @Tags Admissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admissions/waitlist [get]
func (h *AdmissionHandler) WaitlistQueue(c *gin.Context) {
	apps, err := h.service.WaitlistQueue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	items := make([]dto.ApplicationResponse, 0, len(apps))
	for i := range apps {
		items = append(items, dto.NewApplicationResponse(&apps[i]))
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get application detail
// @Tags Admissions
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admissions/{id} [get]
func (h *AdmissionHandler) Get(c *gin.Context) {
	app, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewApplicationResponse(app), nil)
}

// History godoc
// @Summary List review history for an application
// @Tags Admissions
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /admissions/{id}/history [get]
func (h *AdmissionHandler) History(c *gin.Context) {
	logs, err := h.service.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

// SetPaymentReference godoc
// @Summary Record the application fee payment reference
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.PaymentReferenceRequest true "Payment reference"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admissions/{id}/payment-reference [put]
func (h *AdmissionHandler) SetPaymentReference(c *gin.Context) {
	var req dto.PaymentReferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}
	app, err := h.service.SetPaymentReference(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewApplicationResponse(app), nil)
}

// VerifyPayment godoc
// @Summary Mark the application fee as verified
// @Tags Admissions
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admissions/{id}/verify-payment [post]
func (h *AdmissionHandler) VerifyPayment(c *gin.Context) {
	app, err := h.service.VerifyPayment(c.Request.Context(), c.Param("id"), middleware.ActorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewApplicationResponse(app), nil)
}

// StartReview godoc
// @Summary Move an application into review
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.ReviewRequest false "Review notes"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /admissions/{id}/review [post]
func (h *AdmissionHandler) StartReview(c *gin.Context) {
	var req dto.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}
	app, err := h.service.StartReview(c.Request.Context(), c.Param("id"), middleware.ActorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewApplicationResponse(app), nil)
}

// Approve godoc
// @Summary Approve an application
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.DecisionRequest false "Decision notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admissions/{id}/approve [post]
func (h *AdmissionHandler) Approve(c *gin.Context) {
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}
	app, err := h.service.Approve(c.Request.Context(), c.Param("id"), middleware.ActorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewApplicationResponse(app), nil)
}

// Reject godoc
// @Summary Reject an application
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.RejectRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admissions/{id}/reject [post]
func (h *AdmissionHandler) Reject(c *gin.Context) {
	var req dto.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "rejection reason required"))
		return
	}
	app, err := h.service.Reject(c.Request.Context(), c.Param("id"), middleware.ActorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewApplicationResponse(app), nil)
}

// Waitlist godoc
// @Summary Place an application on the waitlist
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.WaitlistRequest false "Waitlist notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admissions/{id}/waitlist [post]
func (h *AdmissionHandler) Waitlist(c *gin.Context) {
	var req dto.WaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid waitlist payload"))
		return
	}
	app, err := h.service.Waitlist(c.Request.Context(), c.Param("id"), middleware.ActorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewApplicationResponse(app), nil)
}

// PromoteFromWaitlist godoc
// @Summary Approve a waitlisted application when capacity opens
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.DecisionRequest false "Decision notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admissions/{id}/promote [post]
func (h *AdmissionHandler) PromoteFromWaitlist(c *gin.Context) {
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}
	app, err := h.service.PromoteFromWaitlist(c.Request.Context(), c.Param("id"), middleware.ActorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewApplicationResponse(app), nil)
}

// Accept godoc
// @Summary Record the guardian's acceptance of an offer
// @Tags Admissions
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admissions/{id}/accept [post]
func (h *AdmissionHandler) Accept(c *gin.Context) {
	app, err := h.service.Accept(c.Request.Context(), c.Param("id"), middleware.ActorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewApplicationResponse(app), nil)
}

// Letter godoc
// @Summary Download the admission letter PDF
// @Tags Admissions
// @Produce application/pdf
// @Param id path string true "Application ID"
// @Success 200 {file} binary
// @Failure 409 {object} response.Envelope
// @Router /admissions/{id}/letter [get]
func (h *AdmissionHandler) Letter(c *gin.Context) {
	pdf, app, err := h.service.RenderLetter(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+app.ApplicationNumber+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
