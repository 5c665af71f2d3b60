package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/schoolsuite/sms-core-api/internal/dto"
	"github.com/schoolsuite/sms-core-api/internal/models"
	appErrors "github.com/schoolsuite/sms-core-api/pkg/errors"
	"github.com/schoolsuite/sms-core-api/pkg/jobs"
)

// promotionChunkSize bounds how many students move inside one transaction,
// keeping row locks short-lived on large batches.
const promotionChunkSize = 20

type promotionStore interface {
	CreateBatch(ctx context.Context, batch *models.PromotionBatch) error
	GetBatchByID(ctx context.Context, id string) (*models.PromotionBatch, error)
	ClaimBatch(ctx context.Context, id string) (bool, error)
	CompleteBatch(ctx context.Context, id string, promoted, failed int) error
	FailBatch(ctx context.Context, id, message string) error
	InsertLogTx(ctx context.Context, tx *sqlx.Tx, log *models.PromotionLog) error
	ListLogsByBatch(ctx context.Context, batchID string) ([]models.PromotionLog, error)
}

type promotionStudentStore interface {
	GetByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Student, error)
	UpdateClassTx(ctx context.Context, tx *sqlx.Tx, id, classID string) error
}

// PromotionService moves students between classes in asynchronous batches.
// Each batch is a pollable record; the worker locks every student row
// before touching it so concurrent edits cannot be lost.
type PromotionService struct {
	batches   promotionStore
	students  promotionStudentStore
	academics academicReader
	tx        txProvider
	queue     jobEnqueuer
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// NewPromotionService wires promotion dependencies.
func NewPromotionService(
	batches promotionStore,
	students promotionStudentStore,
	academics academicReader,
	tx txProvider,
	queue jobEnqueuer,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
) *PromotionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromotionService{
		batches:   batches,
		students:  students,
		academics: academics,
		tx:        tx,
		queue:     queue,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
	}
}

// RegisterHandlers binds the promotion task onto the queue.
func (s *PromotionService) RegisterHandlers(q *jobs.Queue) {
	q.Register(jobs.TaskPromoteBatch, s.HandlePromotion)
}

// Promote validates and queues a promotion batch.
func (s *PromotionService) Promote(ctx context.Context, req dto.PromoteBatchRequest, actorID string) (*models.PromotionBatch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if req.FromClassID == req.ToClassID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "source and target class are the same")
	}
	if _, err := s.academics.GetClassByID(ctx, req.FromClassID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "source class not found")
	}
	if _, err := s.academics.GetClassByID(ctx, req.ToClassID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "target class not found")
	}
	if _, err := s.academics.GetSessionByID(ctx, req.SessionID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "academic session not found")
	}

	batch := &models.PromotionBatch{
		Payload: models.PromotionPayload{
			StudentIDs:  req.StudentIDs,
			FromClassID: req.FromClassID,
			ToClassID:   req.ToClassID,
			SessionID:   req.SessionID,
			PromotedBy:  actorID,
		},
	}
	if actorID != "" {
		batch.CreatedBy = &actorID
	}
	if err := s.batches.CreateBatch(ctx, batch); err != nil {
		return nil, err
	}
	if _, err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobs.TaskPromoteBatch,
		Payload: batch.ID,
	}); err != nil {
		if ferr := s.batches.FailBatch(ctx, batch.ID, "could not enqueue processing"); ferr != nil {
			s.logger.Warn("fail batch after enqueue error", zap.String("batch_id", batch.ID), zap.Error(ferr))
		}
		return nil, fmt.Errorf("enqueue promotion: %w", err)
	}
	s.logger.Info("promotion queued",
		zap.String("batch_id", batch.ID),
		zap.Int("students", len(req.StudentIDs)))
	return batch, nil
}

// Status returns the pollable batch record.
func (s *PromotionService) Status(ctx context.Context, id string) (*models.PromotionBatch, error) {
	batch, err := s.batches.GetBatchByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "promotion batch not found")
		}
		return nil, err
	}
	return batch, nil
}

// Logs returns per-student promotion records for a batch.
func (s *PromotionService) Logs(ctx context.Context, id string) ([]models.PromotionLog, error) {
	return s.batches.ListLogsByBatch(ctx, id)
}

// HandlePromotion processes one queued batch. The claim makes redelivery a
// no-op. One student's failure never blocks the rest of the batch.
func (s *PromotionService) HandlePromotion(ctx context.Context, job jobs.Job) error {
	claimed, err := s.batches.ClaimBatch(ctx, job.Payload)
	if err != nil {
		return fmt.Errorf("claim batch %s: %w", job.Payload, err)
	}
	if !claimed {
		s.logger.Info("promotion batch already claimed", zap.String("batch_id", job.Payload))
		return nil
	}

	batch, err := s.batches.GetBatchByID(ctx, job.Payload)
	if err != nil {
		return fmt.Errorf("load batch %s: %w", job.Payload, err)
	}

	promoted, failed := 0, 0
	ids := batch.Payload.StudentIDs
	for start := 0; start < len(ids); start += promotionChunkSize {
		end := start + promotionChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunkPromoted, chunkFailed := s.promoteChunk(ctx, batch, ids[start:end])
		promoted += chunkPromoted
		failed += chunkFailed
	}

	if err := s.batches.CompleteBatch(ctx, batch.ID, promoted, failed); err != nil {
		return fmt.Errorf("complete batch %s: %w", batch.ID, err)
	}
	s.metrics.CountPromotions("promoted", promoted)
	s.metrics.CountPromotions("failed", failed)
	s.logger.Info("promotion completed",
		zap.String("batch_id", batch.ID),
		zap.Int("promoted", promoted),
		zap.Int("failed", failed))
	return nil
}

// promoteChunk moves up to promotionChunkSize students in one transaction.
// Guard failures skip the student; a database error aborts the chunk and
// counts every student in it as failed.
func (s *PromotionService) promoteChunk(ctx context.Context, batch *models.PromotionBatch, ids []string) (int, int) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.Error("begin promotion chunk", zap.String("batch_id", batch.ID), zap.Error(err))
		return 0, len(ids)
	}
	defer tx.Rollback() //nolint:errcheck

	promoted, failed := 0, 0
	payload := batch.Payload
	for _, id := range ids {
		student, err := s.students.GetByIDForUpdateTx(ctx, tx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				failed++
				s.logger.Warn("promotion skipped, student not found",
					zap.String("batch_id", batch.ID), zap.String("student_id", id))
				continue
			}
			s.logger.Error("promotion chunk aborted",
				zap.String("batch_id", batch.ID), zap.Error(err))
			return 0, len(ids)
		}
		if student.ClassID == nil || *student.ClassID != payload.FromClassID {
			failed++
			s.logger.Warn("promotion skipped, class mismatch",
				zap.String("batch_id", batch.ID),
				zap.String("student_id", id))
			continue
		}
		if err := s.students.UpdateClassTx(ctx, tx, id, payload.ToClassID); err != nil {
			s.logger.Error("promotion chunk aborted",
				zap.String("batch_id", batch.ID), zap.Error(err))
			return 0, len(ids)
		}
		logEntry := &models.PromotionLog{
			BatchID:     batch.ID,
			StudentID:   id,
			FromClassID: payload.FromClassID,
			ToClassID:   payload.ToClassID,
			SessionID:   payload.SessionID,
		}
		if payload.PromotedBy != "" {
			logEntry.PromotedBy = &payload.PromotedBy
		}
		if err := s.batches.InsertLogTx(ctx, tx, logEntry); err != nil {
			s.logger.Error("promotion chunk aborted",
				zap.String("batch_id", batch.ID), zap.Error(err))
			return 0, len(ids)
		}
		promoted++
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("commit promotion chunk",
			zap.String("batch_id", batch.ID), zap.Error(err))
		return 0, len(ids)
	}
	return promoted, failed
}
