package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/schoolsuite/sms-core-api/internal/dto"
	"github.com/schoolsuite/sms-core-api/internal/models"
	appErrors "github.com/schoolsuite/sms-core-api/pkg/errors"
	"github.com/schoolsuite/sms-core-api/pkg/export"
	"github.com/schoolsuite/sms-core-api/pkg/mail"
)

type admissionStore interface {
	Create(ctx context.Context, app *models.AdmissionApplication) error
	GetByID(ctx context.Context, id string) (*models.AdmissionApplication, error)
	GetByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.AdmissionApplication, error)
	UpdateTx(ctx context.Context, tx *sqlx.Tx, app *models.AdmissionApplication) error
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.AdmissionApplication, int, error)
	NextWaitlistPositionTx(ctx context.Context, tx *sqlx.Tx) (int, error)
	AppendReviewLogTx(ctx context.Context, tx *sqlx.Tx, log *models.AdmissionReviewLog) error
	ListReviewLogs(ctx context.Context, applicationID string) ([]models.AdmissionReviewLog, error)
	MarkLetterSent(ctx context.Context, id string) error
	ListWaitlisted(ctx context.Context) ([]models.AdmissionApplication, error)
}

type classOccupancyCounter interface {
	CountActiveInClass(ctx context.Context, classID string) (int, error)
}

type academicReader interface {
	GetClassByID(ctx context.Context, id string) (*models.SchoolClass, error)
	GetSessionByID(ctx context.Context, id string) (*models.AcademicSession, error)
}

type letterRenderer interface {
	Render(letter export.AdmissionLetter) ([]byte, error)
}

type letterArchive interface {
	Save(filename string, data []byte) (string, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// AdmissionServiceConfig tunes workflow guards.
type AdmissionServiceConfig struct {
	MaxClassCapacity int
	SchoolName       string
}

// AdmissionService drives the application review workflow. Every status
// change happens under a row lock and commits atomically with its audit
// log entry; mail and letter generation run after commit, best effort.
type AdmissionService struct {
	apps      admissionStore
	students  classOccupancyCounter
	academics academicReader
	letters   letterRenderer
	archive   letterArchive
	mailer    mail.Mailer
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	cfg       AdmissionServiceConfig
}

// NewAdmissionService wires admission workflow dependencies.
func NewAdmissionService(
	apps admissionStore,
	students classOccupancyCounter,
	academics academicReader,
	letters letterRenderer,
	archive letterArchive,
	mailer mail.Mailer,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
	cfg AdmissionServiceConfig,
) *AdmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxClassCapacity <= 0 {
		cfg.MaxClassCapacity = 40
	}
	return &AdmissionService{
		apps:      apps,
		students:  students,
		academics: academics,
		letters:   letters,
		archive:   archive,
		mailer:    mailer,
		tx:        tx,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Create registers a new pending application.
func (s *AdmissionService) Create(ctx context.Context, req dto.CreateApplicationRequest, actorID string) (*models.AdmissionApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if _, err := s.academics.GetClassByID(ctx, req.ClassID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	if _, err := s.academics.GetSessionByID(ctx, req.SessionID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "academic session not found")
	}

	app := &models.AdmissionApplication{
		SessionID:            &req.SessionID,
		ClassID:              &req.ClassID,
		Surname:              req.Surname,
		FirstName:            req.FirstName,
		MiddleName:           req.MiddleName,
		Gender:               req.Gender,
		DateOfBirth:          req.DateOfBirth,
		MedicalNotes:         req.MedicalNotes,
		Allergies:            req.Allergies,
		GuardianName:         req.GuardianName,
		GuardianEmail:        req.GuardianEmail,
		GuardianPhone:        req.GuardianPhone,
		GuardianAddress:      req.GuardianAddress,
		GuardianRelationship: req.GuardianRelationship,
	}
	if actorID != "" {
		app.CreatedBy = &actorID
	}
	if err := s.apps.Create(ctx, app); err != nil {
		return nil, err
	}
	s.logger.Info("application created",
		zap.String("application_id", app.ID),
		zap.String("application_number", app.ApplicationNumber))
	return app, nil
}

// Get fetches a single application.
func (s *AdmissionService) Get(ctx context.Context, id string) (*models.AdmissionApplication, error) {
	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, err
	}
	return app, nil
}

// List returns applications matching the filter.
func (s *AdmissionService) List(ctx context.Context, filter models.ApplicationFilter) ([]models.AdmissionApplication, int, error) {
	return s.apps.List(ctx, filter)
}

// History returns the audit trail for an application, oldest first.
func (s *AdmissionService) History(ctx context.Context, id string) ([]models.AdmissionReviewLog, error) {
	return s.apps.ListReviewLogs(ctx, id)
}

// SetPaymentReference attaches the application-fee payment reference.
// Only the format is checked here; verification is a separate staff action.
func (s *AdmissionService) SetPaymentReference(ctx context.Context, id string, req dto.PaymentReferenceRequest) (*models.AdmissionApplication, error) {
	if !models.ValidPaymentReference(req.Reference) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment reference must be 6 to 20 alphanumeric characters")
	}
	return s.mutate(ctx, id, func(tx *sqlx.Tx, app *models.AdmissionApplication) error {
		if app.Status != models.ApplicationPending && app.Status != models.ApplicationUnderReview {
			return appErrors.Clone(appErrors.ErrConflict, "payment reference can only be set before a decision")
		}
		app.PaymentReference = req.Reference
		app.PaymentAmount = req.Amount
		app.PaymentVerified = false
		app.PaymentVerifiedBy = nil
		app.PaymentVerifiedAt = nil
		return nil
	})
}

// VerifyPayment confirms the payment reference against the bank record.
func (s *AdmissionService) VerifyPayment(ctx context.Context, id, actorID string) (*models.AdmissionApplication, error) {
	return s.mutate(ctx, id, func(tx *sqlx.Tx, app *models.AdmissionApplication) error {
		if app.PaymentReference == "" {
			return appErrors.Clone(appErrors.ErrConflict, "no payment reference to verify")
		}
		if app.PaymentVerified {
			return appErrors.Clone(appErrors.ErrConflict, "payment already verified")
		}
		now := time.Now().UTC()
		app.PaymentVerified = true
		app.PaymentVerifiedBy = &actorID
		app.PaymentVerifiedAt = &now
		return s.apps.AppendReviewLogTx(ctx, tx, &models.AdmissionReviewLog{
			ApplicationID: app.ID,
			ActorID:       &actorID,
			Action:        models.ReviewActionStatusChange,
			Notes:         "payment verified",
			FromStatus:    app.Status,
			ToStatus:      app.Status,
		})
	})
}

// StartReview moves a pending application into review. The application fee
// must be verified first.
func (s *AdmissionService) StartReview(ctx context.Context, id, actorID string, req dto.ReviewRequest) (*models.AdmissionApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return s.mutate(ctx, id, func(tx *sqlx.Tx, app *models.AdmissionApplication) error {
		if app.Status != models.ApplicationPending {
			return appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("cannot start review from status %s", app.Status))
		}
		if !app.PaymentVerified {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "application fee payment is not verified")
		}
		from := app.Status
		now := time.Now().UTC()
		app.Status = models.ApplicationUnderReview
		app.ReviewedBy = &actorID
		app.ReviewedAt = &now
		app.ReviewNotes = req.Notes
		return s.apps.AppendReviewLogTx(ctx, tx, &models.AdmissionReviewLog{
			ApplicationID: app.ID,
			ActorID:       &actorID,
			Action:        models.ReviewActionStatusChange,
			Notes:         req.Notes,
			FromStatus:    from,
			ToStatus:      app.Status,
		})
	})
}

// Approve admits an application under review. The application must carry a
// class and session so the resulting student record can be placed. After
// commit the admission letter is generated and mailed, best effort.
func (s *AdmissionService) Approve(ctx context.Context, id, actorID string, req dto.DecisionRequest) (*models.AdmissionApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	app, err := s.mutate(ctx, id, func(tx *sqlx.Tx, app *models.AdmissionApplication) error {
		if app.Status != models.ApplicationUnderReview {
			return appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("cannot approve from status %s", app.Status))
		}
		if app.ClassID == nil || app.SessionID == nil {
			return appErrors.ErrMissingClassOrSession
		}
		from := app.Status
		now := time.Now().UTC()
		app.Status = models.ApplicationApproved
		app.DecidedBy = &actorID
		app.DecidedAt = &now
		app.DecisionNotes = req.Notes
		return s.apps.AppendReviewLogTx(ctx, tx, &models.AdmissionReviewLog{
			ApplicationID: app.ID,
			ActorID:       &actorID,
			Action:        models.ReviewActionStatusChange,
			Notes:         req.Notes,
			FromStatus:    from,
			ToStatus:      app.Status,
		})
	})
	if err != nil {
		return nil, err
	}
	s.dispatchAdmissionLetter(ctx, app)
	return app, nil
}

// Reject declines an application with a categorized reason.
func (s *AdmissionService) Reject(ctx context.Context, id, actorID string, req dto.RejectRequest) (*models.AdmissionApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if !models.ValidRejectionReason(req.Reason) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown rejection reason")
	}
	app, err := s.mutate(ctx, id, func(tx *sqlx.Tx, app *models.AdmissionApplication) error {
		switch app.Status {
		case models.ApplicationPending, models.ApplicationUnderReview, models.ApplicationWaitlisted:
		default:
			return appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("cannot reject from status %s", app.Status))
		}
		from := app.Status
		now := time.Now().UTC()
		app.Status = models.ApplicationRejected
		app.DecidedBy = &actorID
		app.DecidedAt = &now
		app.DecisionNotes = req.Notes
		app.RejectionReason = req.Reason
		app.WaitlistPosition = nil
		return s.apps.AppendReviewLogTx(ctx, tx, &models.AdmissionReviewLog{
			ApplicationID: app.ID,
			ActorID:       &actorID,
			Action:        models.ReviewActionStatusChange,
			Notes:         fmt.Sprintf("%s: %s", req.Reason, req.Notes),
			FromStatus:    from,
			ToStatus:      app.Status,
		})
	})
	if err != nil {
		return nil, err
	}
	s.dispatchStatusMail(ctx, app,
		fmt.Sprintf("Update on application %s", app.ApplicationNumber),
		fmt.Sprintf("Dear %s,\n\nAfter careful review, the application %s for %s was not successful at this time. "+
			"Please contact the school office for details.\n\n%s",
			app.GuardianName, app.ApplicationNumber, app.FullName(), s.cfg.SchoolName))
	return app, nil
}

// WaitlistQueue returns waitlisted applications in position order.
func (s *AdmissionService) WaitlistQueue(ctx context.Context) ([]models.AdmissionApplication, error) {
	return s.apps.ListWaitlisted(ctx)
}

// Waitlist defers an application under review, assigning the next position
// in the queue.
func (s *AdmissionService) Waitlist(ctx context.Context, id, actorID string, req dto.WaitlistRequest) (*models.AdmissionApplication, error) {
	app, err := s.mutate(ctx, id, func(tx *sqlx.Tx, app *models.AdmissionApplication) error {
		if app.Status != models.ApplicationUnderReview {
			return appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("cannot waitlist from status %s", app.Status))
		}
		position, err := s.apps.NextWaitlistPositionTx(ctx, tx)
		if err != nil {
			return err
		}
		from := app.Status
		app.Status = models.ApplicationWaitlisted
		app.WaitlistPosition = &position
		app.WaitlistNotes = req.Notes
		return s.apps.AppendReviewLogTx(ctx, tx, &models.AdmissionReviewLog{
			ApplicationID: app.ID,
			ActorID:       &actorID,
			Action:        models.ReviewActionWaitlistUpdate,
			Notes:         fmt.Sprintf("waitlisted at position %d", position),
			FromStatus:    from,
			ToStatus:      app.Status,
		})
	})
	if err != nil {
		return nil, err
	}
	position := 0
	if app.WaitlistPosition != nil {
		position = *app.WaitlistPosition
	}
	s.dispatchStatusMail(ctx, app,
		fmt.Sprintf("Application %s waitlisted", app.ApplicationNumber),
		fmt.Sprintf("Dear %s,\n\nThe application %s for %s has been placed on the waitlist at position %d. "+
			"You will be contacted as soon as a place opens up.\n\n%s",
			app.GuardianName, app.ApplicationNumber, app.FullName(), position, s.cfg.SchoolName))
	return app, nil
}

// PromoteFromWaitlist approves a waitlisted application when the target
// class still has capacity.
func (s *AdmissionService) PromoteFromWaitlist(ctx context.Context, id, actorID string, req dto.DecisionRequest) (*models.AdmissionApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	app, err := s.mutate(ctx, id, func(tx *sqlx.Tx, app *models.AdmissionApplication) error {
		if app.Status != models.ApplicationWaitlisted {
			return appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("cannot promote from status %s", app.Status))
		}
		if app.ClassID == nil || app.SessionID == nil {
			return appErrors.ErrMissingClassOrSession
		}
		occupied, err := s.students.CountActiveInClass(ctx, *app.ClassID)
		if err != nil {
			return err
		}
		if occupied >= s.cfg.MaxClassCapacity {
			return appErrors.Clone(appErrors.ErrConflict, "target class is at capacity")
		}
		from := app.Status
		now := time.Now().UTC()
		app.Status = models.ApplicationApproved
		app.DecidedBy = &actorID
		app.DecidedAt = &now
		app.DecisionNotes = req.Notes
		app.WaitlistPosition = nil
		return s.apps.AppendReviewLogTx(ctx, tx, &models.AdmissionReviewLog{
			ApplicationID: app.ID,
			ActorID:       &actorID,
			Action:        models.ReviewActionStatusChange,
			Notes:         req.Notes,
			FromStatus:    from,
			ToStatus:      app.Status,
		})
	})
	if err != nil {
		return nil, err
	}
	s.dispatchAdmissionLetter(ctx, app)
	return app, nil
}

// Accept records the guardian's acceptance of an approved offer.
func (s *AdmissionService) Accept(ctx context.Context, id, actorID string) (*models.AdmissionApplication, error) {
	return s.mutate(ctx, id, func(tx *sqlx.Tx, app *models.AdmissionApplication) error {
		if app.Status != models.ApplicationApproved {
			return appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("cannot accept from status %s", app.Status))
		}
		from := app.Status
		now := time.Now().UTC()
		app.Status = models.ApplicationAccepted
		app.GuardianAccepted = true
		app.GuardianAcceptedAt = &now
		return s.apps.AppendReviewLogTx(ctx, tx, &models.AdmissionReviewLog{
			ApplicationID: app.ID,
			ActorID:       &actorID,
			Action:        models.ReviewActionStatusChange,
			Notes:         "offer accepted by guardian",
			FromStatus:    from,
			ToStatus:      app.Status,
		})
	})
}

// RenderLetter produces the admission letter PDF for an approved or
// accepted application.
func (s *AdmissionService) RenderLetter(ctx context.Context, id string) ([]byte, *models.AdmissionApplication, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if app.Status != models.ApplicationApproved && app.Status != models.ApplicationAccepted {
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "no admission letter before approval")
	}
	data, err := s.renderLetter(ctx, app)
	if err != nil {
		return nil, nil, err
	}
	return data, app, nil
}

// mutate locks the application row, applies fn, and persists the result.
// fn runs inside the transaction and may append audit entries to it.
func (s *AdmissionService) mutate(ctx context.Context, id string, fn func(tx *sqlx.Tx, app *models.AdmissionApplication) error) (*models.AdmissionApplication, error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin application update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	app, err := s.apps.GetByIDForUpdateTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, err
	}
	prevStatus := app.Status
	if err := fn(tx, app); err != nil {
		return nil, err
	}
	if err := s.apps.UpdateTx(ctx, tx, app); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit application update: %w", err)
	}
	if app.Status != prevStatus {
		s.metrics.CountTransition(string(app.Status))
	}
	return app, nil
}

func (s *AdmissionService) renderLetter(ctx context.Context, app *models.AdmissionApplication) ([]byte, error) {
	letter := export.AdmissionLetter{
		SchoolName:        s.cfg.SchoolName,
		ApplicationNumber: app.ApplicationNumber,
		ApplicantName:     app.FullName(),
		GuardianName:      app.GuardianName,
		DecisionDate:      time.Now().UTC(),
	}
	if app.DecidedAt != nil {
		letter.DecisionDate = *app.DecidedAt
	}
	if app.ClassID != nil {
		if class, err := s.academics.GetClassByID(ctx, *app.ClassID); err == nil {
			letter.ClassName = class.Name
		}
	}
	if app.SessionID != nil {
		if session, err := s.academics.GetSessionByID(ctx, *app.SessionID); err == nil {
			letter.SessionName = session.Name
		}
	}
	return s.letters.Render(letter)
}

// dispatchStatusMail notifies the guardian about a decision. Runs after the
// transition committed; failures are logged, never propagated.
func (s *AdmissionService) dispatchStatusMail(ctx context.Context, app *models.AdmissionApplication, subject, body string) {
	if s.mailer == nil || app.GuardianEmail == "" {
		return
	}
	msg := mail.Message{
		Subject:    subject,
		Body:       body,
		Recipients: []string{app.GuardianEmail},
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn("status mail failed",
			zap.String("application_id", app.ID), zap.Error(err))
	}
}

// dispatchAdmissionLetter generates, archives, and mails the offer letter.
// Runs after the approval committed; failures are logged, never propagated.
func (s *AdmissionService) dispatchAdmissionLetter(ctx context.Context, app *models.AdmissionApplication) {
	data, err := s.renderLetter(ctx, app)
	if err != nil {
		s.logger.Warn("admission letter render failed",
			zap.String("application_id", app.ID), zap.Error(err))
		return
	}
	if s.archive != nil {
		if _, err := s.archive.Save(fmt.Sprintf("%s.pdf", app.ApplicationNumber), data); err != nil {
			s.logger.Warn("admission letter archive failed",
				zap.String("application_id", app.ID), zap.Error(err))
		}
	}
	if s.mailer != nil && app.GuardianEmail != "" {
		msg := mail.Message{
			Subject: fmt.Sprintf("Admission offer for %s", app.FullName()),
			Body: fmt.Sprintf("Dear %s,\n\nWe are pleased to inform you that the application %s for %s has been approved. "+
				"Please visit the school office to complete the acceptance process.\n\n%s",
				app.GuardianName, app.ApplicationNumber, app.FullName(), s.cfg.SchoolName),
			Recipients: []string{app.GuardianEmail},
		}
		if err := s.mailer.Send(ctx, msg); err != nil {
			s.logger.Warn("admission mail failed",
				zap.String("application_id", app.ID), zap.Error(err))
			return
		}
	}
	if err := s.apps.MarkLetterSent(ctx, app.ID); err != nil {
		s.logger.Warn("mark letter sent failed",
			zap.String("application_id", app.ID), zap.Error(err))
	}
}
