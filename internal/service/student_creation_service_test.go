package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolsuite/sms-core-api/internal/models"
	appErrors "github.com/schoolsuite/sms-core-api/pkg/errors"
	"github.com/schoolsuite/sms-core-api/pkg/jobs"
)

type appLockerStub struct {
	apps map[string]*models.AdmissionApplication
	logs []models.AdmissionReviewLog
}

func (s *appLockerStub) GetByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.AdmissionApplication, error) {
	app, ok := s.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *app
	return &copied, nil
}

func (s *appLockerStub) UpdateTx(ctx context.Context, tx *sqlx.Tx, app *models.AdmissionApplication) error {
	copied := *app
	s.apps[app.ID] = &copied
	return nil
}

func (s *appLockerStub) AppendReviewLogTx(ctx context.Context, tx *sqlx.Tx, log *models.AdmissionReviewLog) error {
	s.logs = append(s.logs, *log)
	return nil
}

type studentWriterStub struct {
	students map[string]*models.Student
	created  []*models.Student
}

func newStudentWriterStub(students ...*models.Student) *studentWriterStub {
	stub := &studentWriterStub{students: map[string]*models.Student{}}
	for _, st := range students {
		stub.students[st.ID] = st
	}
	return stub
}

func (s *studentWriterStub) CreateTx(ctx context.Context, tx *sqlx.Tx, student *models.Student) error {
	s.created = append(s.created, student)
	s.students[student.ID] = student
	return nil
}

func (s *studentWriterStub) GetByID(ctx context.Context, id string) (*models.Student, error) {
	student, ok := s.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *student
	return &copied, nil
}

func (s *studentWriterStub) GetByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Student, error) {
	return s.GetByID(ctx, id)
}

func (s *studentWriterStub) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.StudentStatus) error {
	s.students[id].Status = status
	return nil
}

type guardianStoreStub struct {
	byEmail map[string]*models.Guardian
	created []*models.Guardian
	updated []*models.Guardian
}

func (s *guardianStoreStub) GetByID(ctx context.Context, id string) (*models.Guardian, error) {
	for _, guardian := range s.byEmail {
		if guardian.ID == id {
			return guardian, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *guardianStoreStub) GetByEmailTx(ctx context.Context, tx *sqlx.Tx, email string) (*models.Guardian, error) {
	guardian, ok := s.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *guardian
	return &copied, nil
}

func (s *guardianStoreStub) CreateTx(ctx context.Context, tx *sqlx.Tx, guardian *models.Guardian) error {
	guardian.ID = "guardian-new"
	s.created = append(s.created, guardian)
	s.byEmail[guardian.Email] = guardian
	return nil
}

func (s *guardianStoreStub) UpdateTx(ctx context.Context, tx *sqlx.Tx, guardian *models.Guardian) error {
	s.updated = append(s.updated, guardian)
	s.byEmail[guardian.Email] = guardian
	return nil
}

type queueStub struct{ enqueued []jobs.Job }

func (s *queueStub) Enqueue(job jobs.Job) (string, error) {
	s.enqueued = append(s.enqueued, job)
	return job.ID, nil
}

func acceptedApplication() *models.AdmissionApplication {
	return &models.AdmissionApplication{
		ID:                "app-1",
		ApplicationNumber: "APP-202608-0007",
		Status:            models.ApplicationAccepted,
		Surname:           "Bello",
		FirstName:         "Kemi",
		Gender:            "F",
		GuardianName:      "Tunde Adewale Bello",
		GuardianEmail:     "tunde@example.com",
		GuardianPhone:     "08030000000",
		ClassID:           strPtr("class-1"),
		SessionID:         strPtr("session-1"),
	}
}

func TestCreateFromApplication(t *testing.T) {
	apps := &appLockerStub{apps: map[string]*models.AdmissionApplication{"app-1": acceptedApplication()}}
	students := newStudentWriterStub()
	guardians := &guardianStoreStub{byEmail: map[string]*models.Guardian{}}
	queue := &queueStub{}
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewStudentCreationService(apps, students, guardians, tx, queue, nil, nil, nil)
	student, err := svc.CreateFromApplication(context.Background(), "app-1", "staff-1")
	require.NoError(t, err)

	assert.Equal(t, "STU-202608-0007", student.StudentNumber)
	assert.Equal(t, models.StudentInactive, student.Status)
	assert.Equal(t, models.CreationAdmission, student.CreatedVia)
	require.NotNil(t, student.ApplicationID)
	assert.Equal(t, "app-1", *student.ApplicationID)

	require.Len(t, guardians.created, 1)
	assert.Equal(t, "Tunde", guardians.created[0].Surname)
	assert.Equal(t, "Adewale", guardians.created[0].FirstName)
	assert.Equal(t, "Bello", guardians.created[0].OtherName)

	require.NotNil(t, apps.apps["app-1"].StudentID)
	assert.Equal(t, student.ID, *apps.apps["app-1"].StudentID)
	require.Len(t, apps.logs, 1)
	assert.Equal(t, models.ReviewActionStudentCreated, apps.logs[0].Action)

	require.Len(t, queue.enqueued, 2)
	assert.Equal(t, jobs.TaskCreateGuardianAccount, queue.enqueued[0].Type)
	assert.Equal(t, jobs.TaskSendGuardianWelcome, queue.enqueued[1].Type)
}

func TestCreateFromApplicationIdempotent(t *testing.T) {
	app := acceptedApplication()
	app.StudentID = strPtr("student-1")
	apps := &appLockerStub{apps: map[string]*models.AdmissionApplication{"app-1": app}}
	students := newStudentWriterStub()
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	svc := NewStudentCreationService(apps, students, &guardianStoreStub{byEmail: map[string]*models.Guardian{}}, tx, &queueStub{}, nil, nil, nil)
	_, err := svc.CreateFromApplication(context.Background(), "app-1", "staff-1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrAlreadyCreated))
	assert.Empty(t, students.created)
}

func TestCreateFromApplicationRequiresApproval(t *testing.T) {
	app := acceptedApplication()
	app.Status = models.ApplicationPending
	apps := &appLockerStub{apps: map[string]*models.AdmissionApplication{"app-1": app}}
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	svc := NewStudentCreationService(apps, newStudentWriterStub(), &guardianStoreStub{byEmail: map[string]*models.Guardian{}}, tx, &queueStub{}, nil, nil, nil)
	_, err := svc.CreateFromApplication(context.Background(), "app-1", "staff-1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotApproved))
}

func TestCreateFromApplicationReusesGuardian(t *testing.T) {
	apps := &appLockerStub{apps: map[string]*models.AdmissionApplication{"app-1": acceptedApplication()}}
	guardians := &guardianStoreStub{byEmail: map[string]*models.Guardian{
		"tunde@example.com": {ID: "guardian-1", Surname: "Bello", Email: "tunde@example.com"},
	}}
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewStudentCreationService(apps, newStudentWriterStub(), guardians, tx, &queueStub{}, nil, nil, nil)
	student, err := svc.CreateFromApplication(context.Background(), "app-1", "staff-1")
	require.NoError(t, err)

	assert.Empty(t, guardians.created)
	require.NotNil(t, student.GuardianID)
	assert.Equal(t, "guardian-1", *student.GuardianID)
	// Blank phone backfilled from the application.
	require.Len(t, guardians.updated, 1)
	assert.Equal(t, "08030000000", guardians.updated[0].Phone)
}

func TestActivateRequiresCompleteRecord(t *testing.T) {
	students := newStudentWriterStub(&models.Student{
		ID:         "student-1",
		Status:     models.StudentInactive,
		GuardianID: strPtr("guardian-1"),
	})
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	svc := NewStudentCreationService(&appLockerStub{apps: map[string]*models.AdmissionApplication{}}, students, &guardianStoreStub{byEmail: map[string]*models.Guardian{}}, tx, &queueStub{}, nil, nil, nil)
	_, err := svc.Activate(context.Background(), "student-1", "staff-1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotActivatable))
	assert.Equal(t, models.StudentInactive, students.students["student-1"].Status)
}

func TestActivate(t *testing.T) {
	students := newStudentWriterStub(&models.Student{
		ID:         "student-1",
		Status:     models.StudentInactive,
		GuardianID: strPtr("guardian-1"),
		ClassID:    strPtr("class-1"),
		SessionID:  strPtr("session-1"),
	})
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewStudentCreationService(&appLockerStub{apps: map[string]*models.AdmissionApplication{}}, students, &guardianStoreStub{byEmail: map[string]*models.Guardian{}}, tx, &queueStub{}, nil, nil, nil)
	student, err := svc.Activate(context.Background(), "student-1", "staff-1")
	require.NoError(t, err)
	assert.Equal(t, models.StudentActive, student.Status)
	assert.Equal(t, models.StudentActive, students.students["student-1"].Status)
}

func TestActivateNotifiesGuardian(t *testing.T) {
	students := newStudentWriterStub(&models.Student{
		ID:            "student-1",
		StudentNumber: "STU-202608-0007",
		Surname:       "Bello",
		FirstName:     "Tunde",
		Status:        models.StudentInactive,
		GuardianID:    strPtr("guardian-1"),
		ClassID:       strPtr("class-1"),
		SessionID:     strPtr("session-1"),
	})
	guardians := &guardianStoreStub{byEmail: map[string]*models.Guardian{
		"tunde@example.com": {ID: "guardian-1", Surname: "Bello", Email: "tunde@example.com"},
	}}
	mailer := &mailerStub{}
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewStudentCreationService(&appLockerStub{apps: map[string]*models.AdmissionApplication{}}, students, guardians, tx, &queueStub{}, mailer, nil, nil)
	_, err := svc.Activate(context.Background(), "student-1", "staff-1")
	require.NoError(t, err)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"tunde@example.com"}, mailer.sent[0].Recipients)
	assert.Contains(t, mailer.sent[0].Subject, "Bello Tunde")
	assert.Contains(t, mailer.sent[0].Body, "STU-202608-0007")
}

func TestActivateSkipsNoticeWithoutGuardianEmail(t *testing.T) {
	students := newStudentWriterStub(&models.Student{
		ID:         "student-1",
		Status:     models.StudentInactive,
		GuardianID: strPtr("guardian-1"),
		ClassID:    strPtr("class-1"),
		SessionID:  strPtr("session-1"),
	})
	guardians := &guardianStoreStub{byEmail: map[string]*models.Guardian{
		"": {ID: "guardian-1", Surname: "Bello"},
	}}
	mailer := &mailerStub{}
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewStudentCreationService(&appLockerStub{apps: map[string]*models.AdmissionApplication{}}, students, guardians, tx, &queueStub{}, mailer, nil, nil)
	student, err := svc.Activate(context.Background(), "student-1", "staff-1")
	require.NoError(t, err)
	assert.Equal(t, models.StudentActive, student.Status)
	assert.Empty(t, mailer.sent)
}

func TestActivateAlreadyActiveIsNoop(t *testing.T) {
	students := newStudentWriterStub(&models.Student{
		ID:         "student-1",
		Status:     models.StudentActive,
		GuardianID: strPtr("guardian-1"),
		ClassID:    strPtr("class-1"),
		SessionID:  strPtr("session-1"),
	})
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewStudentCreationService(&appLockerStub{apps: map[string]*models.AdmissionApplication{}}, students, &guardianStoreStub{byEmail: map[string]*models.Guardian{}}, tx, &queueStub{}, nil, nil, nil)
	student, err := svc.Activate(context.Background(), "student-1", "staff-1")
	require.NoError(t, err)
	assert.Equal(t, models.StudentActive, student.Status)
}

func TestBulkCreateIsolatesFailures(t *testing.T) {
	good := acceptedApplication()
	bad := acceptedApplication()
	bad.ID = "app-2"
	bad.Status = models.ApplicationPending
	apps := &appLockerStub{apps: map[string]*models.AdmissionApplication{"app-1": good, "app-2": bad}}
	tx, mock := newTxProviderMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()

	svc := NewStudentCreationService(apps, newStudentWriterStub(), &guardianStoreStub{byEmail: map[string]*models.Guardian{}}, tx, &queueStub{}, nil, nil, nil)
	result := svc.BulkCreate(context.Background(), []string{"app-1", "app-2"}, "staff-1")
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "app-2", result.Errors[0].ID)
}

func TestSplitGuardianName(t *testing.T) {
	cases := []struct {
		name      string
		surname   string
		firstname string
		other     string
	}{
		{"Tunde Adewale Bello", "Tunde", "Adewale", "Bello"},
		{"Tunde Bello", "Tunde", "Bello", ""},
		{"Cher", "Cher", "", ""},
		{"", "", "", ""},
		{"  A  B  C  D ", "A", "B", "C D"},
	}
	for _, tc := range cases {
		surname, firstname, other := splitGuardianName(tc.name)
		assert.Equal(t, tc.surname, surname, tc.name)
		assert.Equal(t, tc.firstname, firstname, tc.name)
		assert.Equal(t, tc.other, other, tc.name)
	}
}
