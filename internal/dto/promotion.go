package dto

import (
	"time"

	"github.com/schoolsuite/sms-core-api/internal/models"
)

// PromoteBatchRequest queues a class-to-class promotion run.
type PromoteBatchRequest struct {
	StudentIDs  []string `json:"student_ids" validate:"required,min=1"`
	FromClassID string   `json:"from_class_id" validate:"required"`
	ToClassID   string   `json:"to_class_id" validate:"required"`
	SessionID   string   `json:"session_id" validate:"required"`
}

// PromotionBatchResponse is the polling payload for a promotion batch.
type PromotionBatchResponse struct {
	ID           string           `json:"id"`
	Status       models.JobStatus `json:"status"`
	Promoted     int              `json:"promoted"`
	Failed       int              `json:"failed"`
	ErrorMessage string           `json:"error_message,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
}

// NewPromotionBatchResponse maps a batch record onto the polling payload.
func NewPromotionBatchResponse(batch *models.PromotionBatch) PromotionBatchResponse {
	var errMsg string
	if batch.ErrorMessage != nil {
		errMsg = *batch.ErrorMessage
	}
	return PromotionBatchResponse{
		ID:           batch.ID,
		Status:       batch.Status,
		Promoted:     batch.Promoted,
		Failed:       batch.Failed,
		ErrorMessage: errMsg,
		CreatedAt:    batch.CreatedAt,
		StartedAt:    batch.StartedAt,
		CompletedAt:  batch.CompletedAt,
	}
}
