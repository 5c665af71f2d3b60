package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolsuite/sms-core-api/internal/dto"
	"github.com/schoolsuite/sms-core-api/internal/models"
	appErrors "github.com/schoolsuite/sms-core-api/pkg/errors"
)

type studentStoreStub struct {
	students map[string]*models.Student
	statuses []models.StudentStatus
}

func newStudentStoreStub(students ...*models.Student) *studentStoreStub {
	stub := &studentStoreStub{students: map[string]*models.Student{}}
	for _, s := range students {
		stub.students[s.ID] = s
	}
	return stub
}

func (s *studentStoreStub) Create(ctx context.Context, student *models.Student) error {
	student.ID = "student-new"
	student.StudentNumber = "M20260001"
	s.students[student.ID] = student
	return nil
}

func (s *studentStoreStub) GetByID(ctx context.Context, id string) (*models.Student, error) {
	student, ok := s.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *student
	return &copied, nil
}

func (s *studentStoreStub) GetByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Student, error) {
	return s.GetByID(ctx, id)
}

func (s *studentStoreStub) Update(ctx context.Context, student *models.Student) error {
	s.students[student.ID] = student
	return nil
}

func (s *studentStoreStub) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.StudentStatus) error {
	s.students[id].Status = status
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *studentStoreStub) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	return nil, 0, nil
}

func (s *studentStoreStub) ListActive(ctx context.Context) ([]models.Student, error) {
	return nil, nil
}

func (s *studentStoreStub) ListInactive(ctx context.Context) ([]models.Student, error) {
	return nil, nil
}

func newStudentServiceFixture(t *testing.T, students ...*models.Student) (*StudentService, *studentStoreStub, sqlmock.Sqlmock) {
	t.Helper()
	store := newStudentStoreStub(students...)
	tx, mock := newTxProviderMock(t)
	return NewStudentService(store, academicStub{}, tx, nil, nil, nil), store, mock
}

func TestManualCreateStartsInactive(t *testing.T) {
	svc, store, _ := newStudentServiceFixture(t)

	student, err := svc.Create(context.Background(), dto.CreateStudentRequest{
		Surname:     "Bello",
		FirstName:   "Tunde",
		Gender:      "M",
		DateOfBirth: time.Date(2012, 4, 1, 0, 0, 0, 0, time.UTC),
		ClassID:     strPtr("class-1"),
		SessionID:   strPtr("session-1"),
	}, "staff-1")
	require.NoError(t, err)

	assert.Equal(t, models.StudentInactive, student.Status)
	assert.Equal(t, models.CreationManual, student.CreatedVia)
	assert.Equal(t, "M20260001", student.StudentNumber)
	require.NotNil(t, store.students["student-new"].CreatedBy)
	assert.Equal(t, "staff-1", *student.CreatedBy)
}

func TestManualCreateValidation(t *testing.T) {
	svc, _, _ := newStudentServiceFixture(t)

	_, err := svc.Create(context.Background(), dto.CreateStudentRequest{Surname: "Bello"}, "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestChangeStatusSuspend(t *testing.T) {
	svc, store, mock := newStudentServiceFixture(t, activeStudent("student-1", "class-1"))
	mock.ExpectBegin()
	mock.ExpectCommit()

	student, err := svc.ChangeStatus(context.Background(), "student-1", models.StudentSuspended)
	require.NoError(t, err)
	assert.Equal(t, models.StudentSuspended, student.Status)
	assert.Equal(t, []models.StudentStatus{models.StudentSuspended}, store.statuses)
}

func TestChangeStatusRejectsActivation(t *testing.T) {
	svc, _, _ := newStudentServiceFixture(t, activeStudent("student-1", "class-1"))

	_, err := svc.ChangeStatus(context.Background(), "student-1", models.StudentActive)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestChangeStatusTerminalIsImmutable(t *testing.T) {
	graduated := activeStudent("student-1", "class-1")
	graduated.Status = models.StudentGraduated
	svc, store, mock := newStudentServiceFixture(t, graduated)
	mock.ExpectBegin()

	_, err := svc.ChangeStatus(context.Background(), "student-1", models.StudentSuspended)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))
	assert.Empty(t, store.statuses)
}

func TestChangeStatusSameStatusIsNoop(t *testing.T) {
	suspended := activeStudent("student-1", "class-1")
	suspended.Status = models.StudentSuspended
	svc, store, mock := newStudentServiceFixture(t, suspended)
	mock.ExpectBegin()
	mock.ExpectCommit()

	student, err := svc.ChangeStatus(context.Background(), "student-1", models.StudentSuspended)
	require.NoError(t, err)
	assert.Equal(t, models.StudentSuspended, student.Status)
	assert.Empty(t, store.statuses)
}

func TestDescribeReportsMissingRequirements(t *testing.T) {
	student := &models.Student{
		ID:            "student-1",
		StudentNumber: "M20260001",
		Surname:       "Bello",
		FirstName:     "Tunde",
		Status:        models.StudentInactive,
	}

	resp := Describe(student)
	assert.False(t, resp.ActivationComplete)
	assert.NotEmpty(t, resp.MissingRequirements)
	assert.Less(t, resp.ActivationProgress, 100)
	assert.Equal(t, "Bello Tunde", resp.FullName)
}
