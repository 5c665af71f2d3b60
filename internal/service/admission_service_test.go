package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolsuite/sms-core-api/internal/dto"
	"github.com/schoolsuite/sms-core-api/internal/models"
	appErrors "github.com/schoolsuite/sms-core-api/pkg/errors"
	"github.com/schoolsuite/sms-core-api/pkg/export"
	"github.com/schoolsuite/sms-core-api/pkg/mail"
)

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type admissionStoreStub struct {
	apps         map[string]*models.AdmissionApplication
	logs         []models.AdmissionReviewLog
	nextWaitlist int
	letterSent   map[string]bool
}

func newAdmissionStoreStub(apps ...*models.AdmissionApplication) *admissionStoreStub {
	stub := &admissionStoreStub{
		apps:         map[string]*models.AdmissionApplication{},
		nextWaitlist: 1,
		letterSent:   map[string]bool{},
	}
	for _, app := range apps {
		stub.apps[app.ID] = app
	}
	return stub
}

func (s *admissionStoreStub) Create(ctx context.Context, app *models.AdmissionApplication) error {
	app.ID = "app-" + app.Surname
	app.ApplicationNumber = "APP-202608-0001"
	app.Status = models.ApplicationPending
	s.apps[app.ID] = app
	return nil
}

func (s *admissionStoreStub) GetByID(ctx context.Context, id string) (*models.AdmissionApplication, error) {
	app, ok := s.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *app
	return &copied, nil
}

func (s *admissionStoreStub) GetByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.AdmissionApplication, error) {
	return s.GetByID(ctx, id)
}

func (s *admissionStoreStub) UpdateTx(ctx context.Context, tx *sqlx.Tx, app *models.AdmissionApplication) error {
	copied := *app
	s.apps[app.ID] = &copied
	return nil
}

func (s *admissionStoreStub) List(ctx context.Context, filter models.ApplicationFilter) ([]models.AdmissionApplication, int, error) {
	return nil, 0, nil
}

func (s *admissionStoreStub) NextWaitlistPositionTx(ctx context.Context, tx *sqlx.Tx) (int, error) {
	return s.nextWaitlist, nil
}

func (s *admissionStoreStub) AppendReviewLogTx(ctx context.Context, tx *sqlx.Tx, log *models.AdmissionReviewLog) error {
	s.logs = append(s.logs, *log)
	return nil
}

func (s *admissionStoreStub) ListReviewLogs(ctx context.Context, applicationID string) ([]models.AdmissionReviewLog, error) {
	return s.logs, nil
}

func (s *admissionStoreStub) MarkLetterSent(ctx context.Context, id string) error {
	s.letterSent[id] = true
	return nil
}

func (s *admissionStoreStub) ListWaitlisted(ctx context.Context) ([]models.AdmissionApplication, error) {
	return nil, nil
}

type occupancyStub struct{ count int }

func (s occupancyStub) CountActiveInClass(ctx context.Context, classID string) (int, error) {
	return s.count, nil
}

type academicStub struct{}

func (academicStub) GetClassByID(ctx context.Context, id string) (*models.SchoolClass, error) {
	return &models.SchoolClass{ID: id, Name: "JSS 1A"}, nil
}

func (academicStub) GetSessionByID(ctx context.Context, id string) (*models.AcademicSession, error) {
	return &models.AcademicSession{ID: id, Name: "2026/2027"}, nil
}

type letterStub struct{ rendered int }

func (s *letterStub) Render(letter export.AdmissionLetter) ([]byte, error) {
	s.rendered++
	return []byte("%PDF"), nil
}

type archiveStub struct{ saved []string }

func (s *archiveStub) Save(filename string, data []byte) (string, error) {
	s.saved = append(s.saved, filename)
	return filename, nil
}

type mailerStub struct{ sent []mail.Message }

func (s *mailerStub) Send(ctx context.Context, msg mail.Message) error {
	s.sent = append(s.sent, msg)
	return nil
}

func strPtr(v string) *string { return &v }

func pendingApplication(id string, verified bool) *models.AdmissionApplication {
	return &models.AdmissionApplication{
		ID:                id,
		ApplicationNumber: "APP-202608-0007",
		Status:            models.ApplicationPending,
		Surname:           "Bello",
		FirstName:         "Kemi",
		GuardianName:      "Tunde Bello",
		GuardianEmail:     "tunde@example.com",
		ClassID:           strPtr("class-1"),
		SessionID:         strPtr("session-1"),
		PaymentReference:  "RRR12345678",
		PaymentVerified:   verified,
	}
}

func newAdmissionFixture(t *testing.T, store *admissionStoreStub, occupied int) (*AdmissionService, sqlmock.Sqlmock, *letterStub, *archiveStub, *mailerStub) {
	tx, mock := newTxProviderMock(t)
	letters := &letterStub{}
	archive := &archiveStub{}
	mailer := &mailerStub{}
	svc := NewAdmissionService(store, occupancyStub{count: occupied}, academicStub{},
		letters, archive, mailer, tx, nil, nil, nil,
		AdmissionServiceConfig{MaxClassCapacity: 40, SchoolName: "Hillcrest College"})
	return svc, mock, letters, archive, mailer
}

func TestAdmissionStartReviewRequiresVerifiedPayment(t *testing.T) {
	store := newAdmissionStoreStub(pendingApplication("app-1", false))
	svc, mock, _, _, _ := newAdmissionFixture(t, store, 0)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.StartReview(context.Background(), "app-1", "staff-1", dto.ReviewRequest{Notes: "checking"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed))
	assert.Equal(t, models.ApplicationPending, store.apps["app-1"].Status)
}

func TestAdmissionStartReview(t *testing.T) {
	store := newAdmissionStoreStub(pendingApplication("app-1", true))
	svc, mock, _, _, _ := newAdmissionFixture(t, store, 0)
	mock.ExpectBegin()
	mock.ExpectCommit()

	app, err := svc.StartReview(context.Background(), "app-1", "staff-1", dto.ReviewRequest{Notes: "documents complete"})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationUnderReview, app.Status)
	require.NotNil(t, app.ReviewedBy)
	assert.Equal(t, "staff-1", *app.ReviewedBy)
	require.Len(t, store.logs, 1)
	assert.Equal(t, models.ApplicationPending, store.logs[0].FromStatus)
	assert.Equal(t, models.ApplicationUnderReview, store.logs[0].ToStatus)
}

func TestAdmissionApproveSendsLetter(t *testing.T) {
	app := pendingApplication("app-1", true)
	app.Status = models.ApplicationUnderReview
	store := newAdmissionStoreStub(app)
	svc, mock, letters, archive, mailer := newAdmissionFixture(t, store, 0)
	mock.ExpectBegin()
	mock.ExpectCommit()

	approved, err := svc.Approve(context.Background(), "app-1", "staff-1", dto.DecisionRequest{Notes: "meets requirements"})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationApproved, approved.Status)
	assert.Equal(t, 1, letters.rendered)
	assert.Equal(t, []string{"APP-202608-0007.pdf"}, archive.saved)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"tunde@example.com"}, mailer.sent[0].Recipients)
	assert.True(t, store.letterSent["app-1"])
}

func TestAdmissionApproveRequiresPlacement(t *testing.T) {
	app := pendingApplication("app-1", true)
	app.Status = models.ApplicationUnderReview
	app.ClassID = nil
	store := newAdmissionStoreStub(app)
	svc, mock, letters, _, _ := newAdmissionFixture(t, store, 0)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Approve(context.Background(), "app-1", "staff-1", dto.DecisionRequest{Notes: "ok"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrMissingClassOrSession))
	assert.Equal(t, 0, letters.rendered)
}

func TestAdmissionApproveWrongStatus(t *testing.T) {
	store := newAdmissionStoreStub(pendingApplication("app-1", true))
	svc, mock, _, _, _ := newAdmissionFixture(t, store, 0)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Approve(context.Background(), "app-1", "staff-1", dto.DecisionRequest{Notes: "ok"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))
}

func TestAdmissionWaitlistAssignsPosition(t *testing.T) {
	app := pendingApplication("app-1", true)
	app.Status = models.ApplicationUnderReview
	store := newAdmissionStoreStub(app)
	store.nextWaitlist = 4
	svc, mock, _, _, _ := newAdmissionFixture(t, store, 0)
	mock.ExpectBegin()
	mock.ExpectCommit()

	waitlisted, err := svc.Waitlist(context.Background(), "app-1", "staff-1", dto.WaitlistRequest{Notes: "class full"})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationWaitlisted, waitlisted.Status)
	require.NotNil(t, waitlisted.WaitlistPosition)
	assert.Equal(t, 4, *waitlisted.WaitlistPosition)
	require.Len(t, store.logs, 1)
	assert.Equal(t, models.ReviewActionWaitlistUpdate, store.logs[0].Action)
}

func TestAdmissionPromoteFromWaitlistCapacityGuard(t *testing.T) {
	app := pendingApplication("app-1", true)
	app.Status = models.ApplicationWaitlisted
	position := 1
	app.WaitlistPosition = &position
	store := newAdmissionStoreStub(app)
	svc, mock, _, _, _ := newAdmissionFixture(t, store, 40)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.PromoteFromWaitlist(context.Background(), "app-1", "staff-1", dto.DecisionRequest{Notes: "slot freed"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))
	assert.Equal(t, models.ApplicationWaitlisted, store.apps["app-1"].Status)
}

func TestAdmissionPromoteFromWaitlist(t *testing.T) {
	app := pendingApplication("app-1", true)
	app.Status = models.ApplicationWaitlisted
	position := 1
	app.WaitlistPosition = &position
	store := newAdmissionStoreStub(app)
	svc, mock, _, _, _ := newAdmissionFixture(t, store, 39)
	mock.ExpectBegin()
	mock.ExpectCommit()

	promoted, err := svc.PromoteFromWaitlist(context.Background(), "app-1", "staff-1", dto.DecisionRequest{Notes: "slot freed"})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationApproved, promoted.Status)
	assert.Nil(t, promoted.WaitlistPosition)
}

func TestAdmissionAccept(t *testing.T) {
	app := pendingApplication("app-1", true)
	app.Status = models.ApplicationApproved
	store := newAdmissionStoreStub(app)
	svc, mock, _, _, _ := newAdmissionFixture(t, store, 0)
	mock.ExpectBegin()
	mock.ExpectCommit()

	accepted, err := svc.Accept(context.Background(), "app-1", "guardian-1")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationAccepted, accepted.Status)
	assert.True(t, accepted.GuardianAccepted)
	require.NotNil(t, accepted.GuardianAcceptedAt)
	assert.WithinDuration(t, time.Now().UTC(), *accepted.GuardianAcceptedAt, time.Minute)
}

func TestAdmissionSetPaymentReferenceFormat(t *testing.T) {
	store := newAdmissionStoreStub(pendingApplication("app-1", false))
	svc, _, _, _, _ := newAdmissionFixture(t, store, 0)

	_, err := svc.SetPaymentReference(context.Background(), "app-1", dto.PaymentReferenceRequest{Reference: "bad ref!"})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestAdmissionVerifyPaymentRequiresReference(t *testing.T) {
	app := pendingApplication("app-1", false)
	app.PaymentReference = ""
	store := newAdmissionStoreStub(app)
	svc, mock, _, _, _ := newAdmissionFixture(t, store, 0)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.VerifyPayment(context.Background(), "app-1", "staff-1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))
}
