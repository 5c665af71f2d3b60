package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/schoolsuite/sms-core-api/internal/activation"
	"github.com/schoolsuite/sms-core-api/internal/models"
	appErrors "github.com/schoolsuite/sms-core-api/pkg/errors"
	"github.com/schoolsuite/sms-core-api/pkg/jobs"
	"github.com/schoolsuite/sms-core-api/pkg/mail"
)

type applicationLocker interface {
	GetByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.AdmissionApplication, error)
	UpdateTx(ctx context.Context, tx *sqlx.Tx, app *models.AdmissionApplication) error
	AppendReviewLogTx(ctx context.Context, tx *sqlx.Tx, log *models.AdmissionReviewLog) error
}

type studentWriter interface {
	CreateTx(ctx context.Context, tx *sqlx.Tx, student *models.Student) error
	GetByID(ctx context.Context, id string) (*models.Student, error)
	GetByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Student, error)
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.StudentStatus) error
}

type guardianStore interface {
	GetByID(ctx context.Context, id string) (*models.Guardian, error)
	GetByEmailTx(ctx context.Context, tx *sqlx.Tx, email string) (*models.Guardian, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, guardian *models.Guardian) error
	UpdateTx(ctx context.Context, tx *sqlx.Tx, guardian *models.Guardian) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) (string, error)
}

// StudentCreationService converts accepted applications into student
// records. Conversion is atomic: the student insert, guardian get-or-create,
// application link, and audit entry commit or roll back together.
type StudentCreationService struct {
	apps      applicationLocker
	students  studentWriter
	guardians guardianStore
	tx        txProvider
	queue     jobEnqueuer
	mailer    mail.Mailer
	logger    *zap.Logger
	metrics   *MetricsService
}

// NewStudentCreationService wires conversion dependencies.
func NewStudentCreationService(
	apps applicationLocker,
	students studentWriter,
	guardians guardianStore,
	tx txProvider,
	queue jobEnqueuer,
	mailer mail.Mailer,
	logger *zap.Logger,
	metrics *MetricsService,
) *StudentCreationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentCreationService{
		apps:      apps,
		students:  students,
		guardians: guardians,
		tx:        tx,
		queue:     queue,
		mailer:    mailer,
		logger:    logger,
		metrics:   metrics,
	}
}

// CreateFromApplication materializes a student from an approved or accepted
// application. Calling it again for the same application fails with
// ALREADY_CREATED and leaves the first student untouched.
func (s *StudentCreationService) CreateFromApplication(ctx context.Context, applicationID, actorID string) (*models.Student, error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin student creation: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	app, err := s.apps.GetByIDForUpdateTx(ctx, tx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, err
	}
	if app.Status != models.ApplicationApproved && app.Status != models.ApplicationAccepted {
		return nil, appErrors.ErrNotApproved
	}
	if app.StudentID != nil {
		return nil, appErrors.ErrAlreadyCreated
	}

	guardian, err := s.getOrCreateGuardian(ctx, tx, app)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	student := &models.Student{
		ID:            uuid.NewString(),
		StudentNumber: studentNumberFromApplication(app.ApplicationNumber),
		Surname:       app.Surname,
		FirstName:     app.FirstName,
		OtherName:     app.MiddleName,
		Gender:        app.Gender,
		DateOfBirth:   app.DateOfBirth,
		MedicalNotes:  app.MedicalNotes,
		Allergies:     app.Allergies,
		GuardianID:    &guardian.ID,
		ClassID:       app.ClassID,
		SessionID:     app.SessionID,
		Status:        models.StudentInactive,
		CreatedVia:    models.CreationAdmission,
		ApplicationID: &app.ID,
		AdmissionDate: &now,
	}
	if actorID != "" {
		student.CreatedBy = &actorID
	}
	if err := s.students.CreateTx(ctx, tx, student); err != nil {
		return nil, err
	}

	app.StudentID = &student.ID
	if err := s.apps.UpdateTx(ctx, tx, app); err != nil {
		return nil, err
	}
	logEntry := &models.AdmissionReviewLog{
		ApplicationID: app.ID,
		Action:        models.ReviewActionStudentCreated,
		Notes:         fmt.Sprintf("student %s created", student.StudentNumber),
		FromStatus:    app.Status,
		ToStatus:      app.Status,
	}
	if actorID != "" {
		logEntry.ActorID = &actorID
	}
	if err := s.apps.AppendReviewLogTx(ctx, tx, logEntry); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit student creation: %w", err)
	}

	s.metrics.CountStudentCreated(string(models.CreationAdmission))
	s.logger.Info("student created from application",
		zap.String("application_id", app.ID),
		zap.String("student_id", student.ID),
		zap.String("student_number", student.StudentNumber))

	s.enqueueGuardianTasks(guardian)
	return student, nil
}

// Activate flips a student to active after re-checking the structural
// requirements under a row lock. Activating an already active student is a
// no-op rather than an error.
func (s *StudentCreationService) Activate(ctx context.Context, studentID, actorID string) (*models.Student, error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin activation: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	student, err := s.students.GetByIDForUpdateTx(ctx, tx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, err
	}
	if student.Status == models.StudentActive {
		return student, tx.Commit()
	}
	if student.Status != models.StudentInactive {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("cannot activate a %s student", student.Status))
	}
	if _, missing := activation.Check(student); len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrNotActivatable,
			fmt.Sprintf("missing requirements: %s", strings.Join(missing, ", ")))
	}

	if err := s.students.UpdateStatusTx(ctx, tx, student.ID, models.StudentActive); err != nil {
		return nil, err
	}
	if student.ApplicationID != nil {
		logEntry := &models.AdmissionReviewLog{
			ApplicationID: *student.ApplicationID,
			Action:        models.ReviewActionStudentActivated,
			Notes:         fmt.Sprintf("student %s activated", student.StudentNumber),
		}
		if actorID != "" {
			logEntry.ActorID = &actorID
		}
		if err := s.apps.AppendReviewLogTx(ctx, tx, logEntry); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit activation: %w", err)
	}
	student.Status = models.StudentActive
	s.notifyActivation(ctx, student)
	return student, nil
}

// notifyActivation mails the guardian about the activation. Best effort:
// the student is already committed, so a delivery failure is only logged.
func (s *StudentCreationService) notifyActivation(ctx context.Context, student *models.Student) {
	if s.mailer == nil || student.GuardianID == nil {
		return
	}
	guardian, err := s.guardians.GetByID(ctx, *student.GuardianID)
	if err != nil {
		s.logger.Warn("load guardian for activation notice failed",
			zap.String("student_id", student.ID), zap.Error(err))
		return
	}
	if guardian.Email == "" {
		return
	}
	msg := mail.Message{
		Subject: fmt.Sprintf("%s is now an active student", student.FullName()),
		Body: fmt.Sprintf("Dear %s,\n\n%s (%s) has been activated and is now enrolled as an active student.",
			guardian.FullName(), student.FullName(), student.StudentNumber),
		Recipients: []string{guardian.Email},
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn("send activation notice failed",
			zap.String("student_id", student.ID),
			zap.String("guardian_id", guardian.ID), zap.Error(err))
	}
}

// BulkCreate converts many applications, isolating failures per item.
func (s *StudentCreationService) BulkCreate(ctx context.Context, applicationIDs []string, actorID string) models.BatchResult {
	result := models.BatchResult{Total: len(applicationIDs)}
	for _, id := range applicationIDs {
		_, err := s.CreateFromApplication(ctx, id, actorID)
		result.Record(id, err)
	}
	return result
}

// BulkActivate activates many students, isolating failures per item.
func (s *StudentCreationService) BulkActivate(ctx context.Context, studentIDs []string, actorID string) models.BatchResult {
	result := models.BatchResult{Total: len(studentIDs)}
	for _, id := range studentIDs {
		_, err := s.Activate(ctx, id, actorID)
		result.Record(id, err)
	}
	return result
}

// getOrCreateGuardian resolves the application's guardian by email,
// creating the record or backfilling blank contact fields as needed.
func (s *StudentCreationService) getOrCreateGuardian(ctx context.Context, tx *sqlx.Tx, app *models.AdmissionApplication) (*models.Guardian, error) {
	guardian, err := s.guardians.GetByEmailTx(ctx, tx, app.GuardianEmail)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		surname, firstname, other := splitGuardianName(app.GuardianName)
		guardian = &models.Guardian{
			Surname:      surname,
			FirstName:    firstname,
			OtherName:    other,
			Email:        app.GuardianEmail,
			Phone:        app.GuardianPhone,
			Address:      app.GuardianAddress,
			Relationship: app.GuardianRelationship,
		}
		if err := s.guardians.CreateTx(ctx, tx, guardian); err != nil {
			return nil, err
		}
		return guardian, nil
	}

	// Existing guardian: fill blanks only, never overwrite data entered
	// by staff.
	changed := false
	if guardian.Phone == "" && app.GuardianPhone != "" {
		guardian.Phone = app.GuardianPhone
		changed = true
	}
	if guardian.Address == "" && app.GuardianAddress != "" {
		guardian.Address = app.GuardianAddress
		changed = true
	}
	if guardian.Relationship == "" && app.GuardianRelationship != "" {
		guardian.Relationship = app.GuardianRelationship
		changed = true
	}
	if changed {
		if err := s.guardians.UpdateTx(ctx, tx, guardian); err != nil {
			return nil, err
		}
	}
	return guardian, nil
}

// enqueueGuardianTasks schedules the portal account and welcome mail jobs.
// Failures are logged; the committed student is never rolled back for them.
func (s *StudentCreationService) enqueueGuardianTasks(guardian *models.Guardian) {
	if s.queue == nil {
		return
	}
	if guardian.AccountUsername == nil {
		if _, err := s.queue.Enqueue(jobs.Job{
			ID:      uuid.NewString(),
			Type:    jobs.TaskCreateGuardianAccount,
			Payload: guardian.ID,
		}); err != nil {
			s.logger.Warn("enqueue guardian account job failed",
				zap.String("guardian_id", guardian.ID), zap.Error(err))
		}
	}
	if _, err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobs.TaskSendGuardianWelcome,
		Payload: guardian.ID,
	}); err != nil {
		s.logger.Warn("enqueue welcome mail job failed",
			zap.String("guardian_id", guardian.ID), zap.Error(err))
	}
}

// studentNumberFromApplication derives the permanent student number from
// the application number so the two stay visually linked.
func studentNumberFromApplication(applicationNumber string) string {
	return strings.Replace(applicationNumber, "APP-", "STU-", 1)
}

// splitGuardianName breaks a free-text guardian name into stored parts.
// A single token becomes the surname.
func splitGuardianName(name string) (surname, firstname, other string) {
	tokens := strings.Fields(name)
	switch {
	case len(tokens) == 0:
		return "", "", ""
	case len(tokens) == 1:
		return tokens[0], "", ""
	default:
		return tokens[0], tokens[1], strings.Join(tokens[2:], " ")
	}
}
