package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/schoolsuite/sms-core-api/internal/activation"
	"github.com/schoolsuite/sms-core-api/internal/dto"
	"github.com/schoolsuite/sms-core-api/internal/models"
	appErrors "github.com/schoolsuite/sms-core-api/pkg/errors"
)

type studentStore interface {
	Create(ctx context.Context, student *models.Student) error
	GetByID(ctx context.Context, id string) (*models.Student, error)
	GetByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Student, error)
	Update(ctx context.Context, student *models.Student) error
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.StudentStatus) error
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	ListActive(ctx context.Context) ([]models.Student, error)
	ListInactive(ctx context.Context) ([]models.Student, error)
}

// StudentService covers manual registration and day-to-day student
// management. Activation itself lives in StudentCreationService; this
// service only ever produces inactive records.
type StudentService struct {
	students  studentStore
	academics academicReader
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// NewStudentService wires student management dependencies.
func NewStudentService(
	students studentStore,
	academics academicReader,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		students:  students,
		academics: academics,
		tx:        tx,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
	}
}

// Create registers a student manually. The record starts inactive even
// when every activation requirement is already present.
func (s *StudentService) Create(ctx context.Context, req dto.CreateStudentRequest, actorID string) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if err := s.checkPlacement(ctx, req.ClassID, req.SessionID); err != nil {
		return nil, err
	}

	student := &models.Student{
		Surname:      req.Surname,
		FirstName:    req.FirstName,
		OtherName:    req.OtherName,
		Gender:       req.Gender,
		DateOfBirth:  req.DateOfBirth,
		Email:        req.Email,
		MobileNumber: req.MobileNumber,
		Address:      req.Address,
		MedicalNotes: req.MedicalNotes,
		Allergies:    req.Allergies,
		GuardianID:   req.GuardianID,
		ClassID:      req.ClassID,
		SessionID:    req.SessionID,
		Status:       models.StudentInactive,
		CreatedVia:   models.CreationManual,
	}
	if actorID != "" {
		student.CreatedBy = &actorID
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, err
	}
	s.metrics.CountStudentCreated(string(models.CreationManual))
	s.logger.Info("student registered",
		zap.String("student_id", student.ID),
		zap.String("student_number", student.StudentNumber))
	return student, nil
}

// Get fetches a single student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.students.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, err
	}
	return student, nil
}

// Update replaces mutable profile fields.
func (s *StudentService) Update(ctx context.Context, id string, req dto.UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if err := s.checkPlacement(ctx, req.ClassID, req.SessionID); err != nil {
		return nil, err
	}
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	student.Surname = req.Surname
	student.FirstName = req.FirstName
	student.OtherName = req.OtherName
	student.Email = req.Email
	student.MobileNumber = req.MobileNumber
	student.Address = req.Address
	student.MedicalNotes = req.MedicalNotes
	student.Allergies = req.Allergies
	student.GuardianID = req.GuardianID
	student.ClassID = req.ClassID
	student.SessionID = req.SessionID

	if err := s.students.Update(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

// List returns students matching the filter.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	return s.students.List(ctx, filter)
}

// ListActive returns the active reporting bucket.
func (s *StudentService) ListActive(ctx context.Context) ([]models.Student, error) {
	return s.students.ListActive(ctx)
}

// ListInactive returns the inactive reporting bucket.
func (s *StudentService) ListInactive(ctx context.Context) ([]models.Student, error) {
	return s.students.ListInactive(ctx)
}

// ChangeStatus moves a student to a terminal or suspended state under a
// row lock. Reactivation is not reachable from here; it goes through the
// activation path with its requirement checks.
func (s *StudentService) ChangeStatus(ctx context.Context, id string, target models.StudentStatus) (*models.Student, error) {
	switch target {
	case models.StudentInactive, models.StudentGraduated, models.StudentWithdrawn, models.StudentSuspended:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("cannot set status %s directly", target))
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin status change: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	student, err := s.students.GetByIDForUpdateTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, err
	}
	if student.Status == target {
		return student, tx.Commit()
	}
	if student.Status == models.StudentGraduated || student.Status == models.StudentWithdrawn {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("student is already %s", student.Status))
	}
	if err := s.students.UpdateStatusTx(ctx, tx, id, target); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit status change: %w", err)
	}
	student.Status = target
	return student, nil
}

// Describe decorates a student with its activation state.
func Describe(student *models.Student) dto.StudentResponse {
	_, missing := activation.Check(student)
	return dto.StudentResponse{
		Student:             *student,
		FullName:            student.FullName(),
		ActivationComplete:  len(missing) == 0,
		MissingRequirements: missing,
		ActivationProgress:  activation.Progress(student),
	}
}

func (s *StudentService) checkPlacement(ctx context.Context, classID, sessionID *string) error {
	if classID != nil {
		if _, err := s.academics.GetClassByID(ctx, *classID); err != nil {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
	}
	if sessionID != nil {
		if _, err := s.academics.GetSessionByID(ctx, *sessionID); err != nil {
			return appErrors.Clone(appErrors.ErrNotFound, "academic session not found")
		}
	}
	return nil
}
