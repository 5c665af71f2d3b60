package dto

import (
	"time"

	"github.com/schoolsuite/sms-core-api/internal/models"
)

// ImportStatusResponse is the polling payload for a bulk upload job.
type ImportStatusResponse struct {
	ID               string           `json:"id"`
	Status           models.JobStatus `json:"status"`
	TotalRecords     int              `json:"total_records"`
	RecordsProcessed int              `json:"records_processed"`
	RecordsCreated   int              `json:"records_created"`
	RecordsFailed    int              `json:"records_failed"`
	ProgressPct      int              `json:"progress_pct"`
	StatusMessage    string           `json:"status_message"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	StartedAt        *time.Time       `json:"started_at,omitempty"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
}

// NewImportStatusResponse maps an upload record onto the polling payload.
func NewImportStatusResponse(upload *models.StudentBulkUpload) ImportStatusResponse {
	var errMsg string
	if upload.ErrorMessage != nil {
		errMsg = *upload.ErrorMessage
	}
	return ImportStatusResponse{
		ID:               upload.ID,
		Status:           upload.Status,
		TotalRecords:     upload.TotalRecords,
		RecordsProcessed: upload.RecordsProcessed,
		RecordsCreated:   upload.RecordsCreated,
		RecordsFailed:    upload.RecordsFailed,
		ProgressPct:      upload.ProgressPct,
		StatusMessage:    upload.StatusMessage,
		ErrorMessage:     errMsg,
		CreatedAt:        upload.CreatedAt,
		StartedAt:        upload.StartedAt,
		CompletedAt:      upload.CompletedAt,
	}
}

// ImportAcceptedResponse acknowledges an accepted upload.
type ImportAcceptedResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}
