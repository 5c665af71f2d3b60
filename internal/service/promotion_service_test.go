package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolsuite/sms-core-api/internal/dto"
	"github.com/schoolsuite/sms-core-api/internal/models"
	appErrors "github.com/schoolsuite/sms-core-api/pkg/errors"
	"github.com/schoolsuite/sms-core-api/pkg/jobs"
)

type promotionStoreStub struct {
	batches   map[string]*models.PromotionBatch
	logs      []models.PromotionLog
	completed map[string][2]int
}

func newPromotionStoreStub(batches ...*models.PromotionBatch) *promotionStoreStub {
	stub := &promotionStoreStub{batches: map[string]*models.PromotionBatch{}, completed: map[string][2]int{}}
	for _, b := range batches {
		stub.batches[b.ID] = b
	}
	return stub
}

func (s *promotionStoreStub) CreateBatch(ctx context.Context, batch *models.PromotionBatch) error {
	batch.ID = "batch-1"
	batch.Status = models.JobPending
	s.batches[batch.ID] = batch
	return nil
}

func (s *promotionStoreStub) GetBatchByID(ctx context.Context, id string) (*models.PromotionBatch, error) {
	batch, ok := s.batches[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *batch
	return &copied, nil
}

func (s *promotionStoreStub) ClaimBatch(ctx context.Context, id string) (bool, error) {
	batch, ok := s.batches[id]
	if !ok || batch.Status != models.JobPending {
		return false, nil
	}
	batch.Status = models.JobProcessing
	return true, nil
}

func (s *promotionStoreStub) CompleteBatch(ctx context.Context, id string, promoted, failed int) error {
	s.batches[id].Status = models.JobCompleted
	s.batches[id].Promoted = promoted
	s.batches[id].Failed = failed
	s.completed[id] = [2]int{promoted, failed}
	return nil
}

func (s *promotionStoreStub) FailBatch(ctx context.Context, id, message string) error {
	s.batches[id].Status = models.JobFailed
	return nil
}

func (s *promotionStoreStub) InsertLogTx(ctx context.Context, tx *sqlx.Tx, log *models.PromotionLog) error {
	s.logs = append(s.logs, *log)
	return nil
}

func (s *promotionStoreStub) ListLogsByBatch(ctx context.Context, batchID string) ([]models.PromotionLog, error) {
	return s.logs, nil
}

type promotionStudentStub struct {
	students map[string]*models.Student
	moved    map[string]string
}

func (s *promotionStudentStub) GetByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Student, error) {
	student, ok := s.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *student
	return &copied, nil
}

func (s *promotionStudentStub) UpdateClassTx(ctx context.Context, tx *sqlx.Tx, id, classID string) error {
	s.students[id].ClassID = &classID
	s.moved[id] = classID
	return nil
}

func activeStudent(id, classID string) *models.Student {
	return &models.Student{ID: id, Status: models.StudentActive, ClassID: strPtr(classID)}
}

func queuedBatch(studentIDs ...string) *models.PromotionBatch {
	return &models.PromotionBatch{
		ID:     "batch-1",
		Status: models.JobPending,
		Payload: models.PromotionPayload{
			StudentIDs:  studentIDs,
			FromClassID: "class-1",
			ToClassID:   "class-2",
			SessionID:   "session-1",
			PromotedBy:  "staff-1",
		},
	}
}

func TestHandlePromotion(t *testing.T) {
	store := newPromotionStoreStub(queuedBatch("s1", "s2", "s3"))
	students := &promotionStudentStub{
		students: map[string]*models.Student{
			"s1": activeStudent("s1", "class-1"),
			"s2": activeStudent("s2", "class-9"), // class mismatch
			"s3": activeStudent("s3", "class-1"),
		},
		moved: map[string]string{},
	}
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewPromotionService(store, students, academicStub{}, tx, &queueStub{}, nil, nil, nil)
	err := svc.HandlePromotion(context.Background(), jobs.Job{Payload: "batch-1"})
	require.NoError(t, err)

	assert.Equal(t, [2]int{2, 1}, store.completed["batch-1"])
	assert.Equal(t, "class-2", students.moved["s1"])
	assert.Equal(t, "class-2", students.moved["s3"])
	assert.NotContains(t, students.moved, "s2")
	require.Len(t, store.logs, 2)
	assert.Equal(t, "batch-1", store.logs[0].BatchID)
	assert.Equal(t, "class-1", store.logs[0].FromClassID)
	assert.Equal(t, "class-2", store.logs[0].ToClassID)
}

func TestHandlePromotionMovesAnyStatusInClass(t *testing.T) {
	store := newPromotionStoreStub(queuedBatch("s1", "s2"))
	students := &promotionStudentStub{
		students: map[string]*models.Student{
			"s1": {ID: "s1", Status: models.StudentSuspended, ClassID: strPtr("class-1")},
			"s2": {ID: "s2", Status: models.StudentInactive, ClassID: strPtr("class-1")},
		},
		moved: map[string]string{},
	}
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewPromotionService(store, students, academicStub{}, tx, &queueStub{}, nil, nil, nil)
	err := svc.HandlePromotion(context.Background(), jobs.Job{Payload: "batch-1"})
	require.NoError(t, err)

	// Class membership alone decides eligibility, status does not.
	assert.Equal(t, [2]int{2, 0}, store.completed["batch-1"])
	assert.Equal(t, "class-2", students.moved["s1"])
	assert.Equal(t, "class-2", students.moved["s2"])
}

func TestHandlePromotionMissingStudent(t *testing.T) {
	store := newPromotionStoreStub(queuedBatch("s1", "ghost"))
	students := &promotionStudentStub{
		students: map[string]*models.Student{"s1": activeStudent("s1", "class-1")},
		moved:    map[string]string{},
	}
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewPromotionService(store, students, academicStub{}, tx, &queueStub{}, nil, nil, nil)
	err := svc.HandlePromotion(context.Background(), jobs.Job{Payload: "batch-1"})
	require.NoError(t, err)
	assert.Equal(t, [2]int{1, 1}, store.completed["batch-1"])
}

func TestHandlePromotionRedeliveryIsNoop(t *testing.T) {
	batch := queuedBatch("s1")
	batch.Status = models.JobProcessing
	store := newPromotionStoreStub(batch)
	tx, _ := newTxProviderMock(t)

	svc := NewPromotionService(store, &promotionStudentStub{moved: map[string]string{}}, academicStub{}, tx, &queueStub{}, nil, nil, nil)
	err := svc.HandlePromotion(context.Background(), jobs.Job{Payload: "batch-1"})
	require.NoError(t, err)
	assert.Empty(t, store.completed)
}

func TestPromoteRejectsSameClass(t *testing.T) {
	tx, _ := newTxProviderMock(t)
	svc := NewPromotionService(newPromotionStoreStub(), &promotionStudentStub{moved: map[string]string{}}, academicStub{}, tx, &queueStub{}, nil, nil, nil)

	_, err := svc.Promote(context.Background(), dto.PromoteBatchRequest{
		StudentIDs:  []string{"s1"},
		FromClassID: "class-1",
		ToClassID:   "class-1",
		SessionID:   "session-1",
	}, "staff-1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestPromoteQueuesBatch(t *testing.T) {
	store := newPromotionStoreStub()
	queue := &queueStub{}
	tx, _ := newTxProviderMock(t)
	svc := NewPromotionService(store, &promotionStudentStub{moved: map[string]string{}}, academicStub{}, tx, queue, nil, nil, nil)

	batch, err := svc.Promote(context.Background(), dto.PromoteBatchRequest{
		StudentIDs:  []string{"s1", "s2"},
		FromClassID: "class-1",
		ToClassID:   "class-2",
		SessionID:   "session-1",
	}, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, batch.Status)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, jobs.TaskPromoteBatch, queue.enqueued[0].Type)
	assert.Equal(t, batch.ID, queue.enqueued[0].Payload)
}
