package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolsuite/sms-core-api/internal/models"
)

// BulkUploadRepository manages student bulk-upload job records.
type BulkUploadRepository struct {
	db *sqlx.DB
}

// NewBulkUploadRepository constructs a BulkUploadRepository.
func NewBulkUploadRepository(db *sqlx.DB) *BulkUploadRepository {
	return &BulkUploadRepository{db: db}
}

// Create records a newly uploaded file awaiting processing.
func (r *BulkUploadRepository) Create(ctx context.Context, upload *models.StudentBulkUpload) error {
	if upload.ID == "" {
		upload.ID = uuid.NewString()
	}
	upload.Status = models.JobPending
	upload.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO student_bulk_uploads
        (id, file_path, status, total_records, records_processed, records_created,
         records_failed, progress_pct, status_message, error_message, created_by, created_at)
        VALUES (:id, :file_path, :status, :total_records, :records_processed, :records_created,
         :records_failed, :progress_pct, :status_message, :error_message, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, upload); err != nil {
		return fmt.Errorf("insert bulk upload: %w", err)
	}
	return nil
}

// GetByID fetches an upload record.
func (r *BulkUploadRepository) GetByID(ctx context.Context, id string) (*models.StudentBulkUpload, error) {
	var upload models.StudentBulkUpload
	err := r.db.GetContext(ctx, &upload, `SELECT id, file_path, status, total_records,
        records_processed, records_created, records_failed, progress_pct, status_message,
        error_message, created_by, created_at, started_at, completed_at
        FROM student_bulk_uploads WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

// ClaimForProcessing locks the upload row and transitions it to processing.
// Returns false when the job was already claimed or finished, which makes a
// redelivered queue message a no-op.
func (r *BulkUploadRepository) ClaimForProcessing(ctx context.Context, id string) (*models.StudentBulkUpload, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin claim upload: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var upload models.StudentBulkUpload
	err = tx.GetContext(ctx, &upload, `SELECT id, file_path, status, total_records,
        records_processed, records_created, records_failed, progress_pct, status_message,
        error_message, created_by, created_at, started_at, completed_at
        FROM student_bulk_uploads WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, false, err
	}
	if upload.Status != models.JobPending {
		return &upload, false, tx.Commit()
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE student_bulk_uploads SET status = $2, started_at = $3, status_message = $4 WHERE id = $1`,
		id, models.JobProcessing, now, "Processing started"); err != nil {
		return nil, false, fmt.Errorf("claim upload: %w", err)
	}
	upload.Status = models.JobProcessing
	upload.StartedAt = &now
	return &upload, true, tx.Commit()
}

// UpdateProgress writes live counters while the job runs. The status guard
// keeps late writes from touching a record another path already finalized.
func (r *BulkUploadRepository) UpdateProgress(ctx context.Context, id string, processed, created, failed, pct int, message string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE student_bulk_uploads
        SET records_processed = $2, records_created = $3, records_failed = $4,
            progress_pct = $5, status_message = $6
        WHERE id = $1 AND status = $7`,
		id, processed, created, failed, pct, message, models.JobProcessing)
	if err != nil {
		return fmt.Errorf("update upload progress: %w", err)
	}
	return nil
}

// SetTotal records the row count discovered while parsing the file.
func (r *BulkUploadRepository) SetTotal(ctx context.Context, id string, total int) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE student_bulk_uploads SET total_records = $2 WHERE id = $1", id, total)
	if err != nil {
		return fmt.Errorf("set upload total: %w", err)
	}
	return nil
}

// Complete finalizes a successful run with its counters.
func (r *BulkUploadRepository) Complete(ctx context.Context, id string, stats models.ImportStats) error {
	message := fmt.Sprintf("Completed: %d created, %d failed", stats.Created, stats.Failed)
	_, err := r.db.ExecContext(ctx, `UPDATE student_bulk_uploads
        SET status = $2, records_processed = $3, records_created = $4, records_failed = $5,
            progress_pct = 100, status_message = $6, completed_at = $7
        WHERE id = $1`,
		id, models.JobCompleted, stats.Total, stats.Created, stats.Failed, message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("complete upload: %w", err)
	}
	return nil
}

// Fail marks the job failed, truncating long driver errors.
func (r *BulkUploadRepository) Fail(ctx context.Context, id, message string) error {
	if len(message) > 500 {
		message = message[:500]
	}
	_, err := r.db.ExecContext(ctx, `UPDATE student_bulk_uploads
        SET status = $2, error_message = $3, status_message = $4, completed_at = $5
        WHERE id = $1`,
		id, models.JobFailed, message, "Processing failed", time.Now().UTC())
	if err != nil {
		return fmt.Errorf("fail upload: %w", err)
	}
	return nil
}
