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

// PromotionHandler exposes batch class promotion.
type PromotionHandler struct {
	service *service.PromotionService
}

// NewPromotionHandler constructs a promotion handler.
func NewPromotionHandler(svc *service.PromotionService) *PromotionHandler {
	return &PromotionHandler{service: svc}
}

// Promote godoc
// @Summary Queue a batch promotion between classes
// @Tags Promotions
// @Accept json
// @Produce json
// @Param payload body dto.PromoteBatchRequest true "Promotion payload"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /promotions [post]
func (h *PromotionHandler) Promote(c *gin.Context) {
	var req dto.PromoteBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid promotion payload"))
		return
	}
	batch, err := h.service.Promote(c.Request.Context(), req, middleware.ActorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, dto.NewPromotionBatchResponse(batch))
}

// Status godoc
// @Summary Poll promotion batch progress
// @Tags Promotions
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /promotions/{id} [get]
func (h *PromotionHandler) Status(c *gin.Context) {
	batch, err := h.service.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewPromotionBatchResponse(batch), nil)
}

// Logs godoc
// @Summary List per-student outcomes for a promotion batch
// @Tags Promotions
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /promotions/{id}/logs [get]
func (h *PromotionHandler) Logs(c *gin.Context) {
	logs, err := h.service.Logs(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
