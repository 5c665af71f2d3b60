package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolsuite/sms-core-api/internal/dto"
	"github.com/schoolsuite/sms-core-api/internal/middleware"
	"github.com/schoolsuite/sms-core-api/internal/service"
	appErrors "github.com/schoolsuite/sms-core-api/pkg/errors"
	"github.com/schoolsuite/sms-core-api/pkg/response"
)

// ImportHandler exposes the CSV bulk import pipeline.
type ImportHandler struct {
	service *service.ImportService
}

// NewImportHandler constructs an import handler.
func NewImportHandler(svc *service.ImportService) *ImportHandler {
	return &ImportHandler{service: svc}
}

// Upload godoc
// @Summary Upload a CSV of students for background import
// @Tags Imports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /imports [post]
func (h *ImportHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "could not read uploaded file"))
		return
	}
	defer file.Close()

	upload, err := h.service.Upload(c.Request.Context(), fileHeader.Filename, file, middleware.ActorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, dto.ImportAcceptedResponse{
		ID:      upload.ID,
		Message: "import queued, poll the status endpoint for progress",
	})
}

// Status godoc
// @Summary Poll import progress
// @Tags Imports
// @Produce json
// @Param id path string true "Upload ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /imports/{id} [get]
func (h *ImportHandler) Status(c *gin.Context) {
	upload, err := h.service.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewImportStatusResponse(upload), nil)
}

// FailureReport godoc
// @Summary Download the failed-row report for an import
// @Tags Imports
// @Produce text/csv
// @Param id path string true "Upload ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /imports/{id}/failures [get]
func (h *ImportHandler) FailureReport(c *gin.Context) {
	data, err := h.service.FailureReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="import_failures_`+c.Param("id")+`.csv"`)
	c.Data(http.StatusOK, "text/csv", data)
}
