package models

import "time"

// JobStatus captures the lifecycle of a pollable background job record.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// StudentBulkUpload tracks one CSV import job. The record doubles as the
// job handle for status polling and as the idempotency guard: a redelivered
// job that finds the record processing or completed exits without work.
type StudentBulkUpload struct {
	ID               string     `db:"id" json:"id"`
	FilePath         string     `db:"file_path" json:"file_path"`
	Status           JobStatus  `db:"status" json:"status"`
	TotalRecords     int        `db:"total_records" json:"total_records"`
	RecordsProcessed int        `db:"records_processed" json:"records_processed"`
	RecordsCreated   int        `db:"records_created" json:"records_created"`
	RecordsFailed    int        `db:"records_failed" json:"records_failed"`
	ProgressPct      int        `db:"progress_pct" json:"progress_pct"`
	StatusMessage    string     `db:"status_message" json:"status_message"`
	ErrorMessage     *string    `db:"error_message" json:"error_message,omitempty"`
	CreatedBy        *string    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	StartedAt        *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// ImportRowError records one skipped CSV row.
type ImportRowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ImportStats aggregates the outcome of one import run.
type ImportStats struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Failed  int `json:"failed"`
}
