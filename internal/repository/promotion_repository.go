package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolsuite/sms-core-api/internal/models"
)

// PromotionRepository manages promotion batches and per-student promotion logs.
type PromotionRepository struct {
	db *sqlx.DB
}

// NewPromotionRepository constructs a PromotionRepository.
func NewPromotionRepository(db *sqlx.DB) *PromotionRepository {
	return &PromotionRepository{db: db}
}

// CreateBatch records a queued promotion batch.
func (r *PromotionRepository) CreateBatch(ctx context.Context, batch *models.PromotionBatch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	batch.Status = models.JobPending
	batch.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO promotion_batches
        (id, payload, status, promoted, failed, error_message, created_by, created_at)
        VALUES (:id, :payload, :status, :promoted, :failed, :error_message, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("insert promotion batch: %w", err)
	}
	return nil
}

// GetBatchByID fetches a promotion batch.
func (r *PromotionRepository) GetBatchByID(ctx context.Context, id string) (*models.PromotionBatch, error) {
	var batch models.PromotionBatch
	err := r.db.GetContext(ctx, &batch, `SELECT id, payload, status, promoted, failed,
        error_message, created_by, created_at, started_at, completed_at
        FROM promotion_batches WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// ClaimBatch transitions a pending batch to processing. Returns false when
// the batch was already claimed, so a redelivered job exits quietly.
func (r *PromotionRepository) ClaimBatch(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE promotion_batches SET status = $2, started_at = $3
         WHERE id = $1 AND status = $4`,
		id, models.JobProcessing, time.Now().UTC(), models.JobPending)
	if err != nil {
		return false, fmt.Errorf("claim promotion batch: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// CompleteBatch records final counts on a finished batch.
func (r *PromotionRepository) CompleteBatch(ctx context.Context, id string, promoted, failed int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE promotion_batches SET status = $2, promoted = $3, failed = $4, completed_at = $5
         WHERE id = $1`,
		id, models.JobCompleted, promoted, failed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("complete promotion batch: %w", err)
	}
	return nil
}

// FailBatch marks a batch as failed with a reason.
func (r *PromotionRepository) FailBatch(ctx context.Context, id, message string) error {
	if len(message) > 500 {
		message = message[:500]
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE promotion_batches SET status = $2, error_message = $3, completed_at = $4
         WHERE id = $1`,
		id, models.JobFailed, message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("fail promotion batch: %w", err)
	}
	return nil
}

// InsertLogTx records a successful promotion within the caller's transaction.
func (r *PromotionRepository) InsertLogTx(ctx context.Context, tx *sqlx.Tx, log *models.PromotionLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	log.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO promotion_logs
        (id, batch_id, student_id, from_class_id, to_class_id, session_id, promoted_by, notes, created_at)
        VALUES (:id, :batch_id, :student_id, :from_class_id, :to_class_id, :session_id, :promoted_by, :notes, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("insert promotion log: %w", err)
	}
	return nil
}

// ListLogsByBatch returns promotion logs for a batch in insertion order.
func (r *PromotionRepository) ListLogsByBatch(ctx context.Context, batchID string) ([]models.PromotionLog, error) {
	logs := []models.PromotionLog{}
	err := r.db.SelectContext(ctx, &logs, `SELECT id, batch_id, student_id, from_class_id,
        to_class_id, session_id, promoted_by, notes, created_at
        FROM promotion_logs WHERE batch_id = $1 ORDER BY created_at ASC`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list promotion logs: %w", err)
	}
	return logs, nil
}
