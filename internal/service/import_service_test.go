package service

import (
	"context"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolsuite/sms-core-api/internal/models"
	appErrors "github.com/schoolsuite/sms-core-api/pkg/errors"
	"github.com/schoolsuite/sms-core-api/pkg/jobs"
	"github.com/schoolsuite/sms-core-api/pkg/storage"
)

type uploadStoreStub struct {
	uploads     map[string]*models.StudentBulkUpload
	claims      int
	completed   map[string]models.ImportStats
	failMessage string
}

func newUploadStoreStub(uploads ...*models.StudentBulkUpload) *uploadStoreStub {
	stub := &uploadStoreStub{uploads: map[string]*models.StudentBulkUpload{}, completed: map[string]models.ImportStats{}}
	for _, u := range uploads {
		stub.uploads[u.ID] = u
	}
	return stub
}

func (s *uploadStoreStub) Create(ctx context.Context, upload *models.StudentBulkUpload) error {
	upload.ID = "upload-1"
	upload.Status = models.JobPending
	s.uploads[upload.ID] = upload
	return nil
}

func (s *uploadStoreStub) GetByID(ctx context.Context, id string) (*models.StudentBulkUpload, error) {
	return s.uploads[id], nil
}

func (s *uploadStoreStub) ClaimForProcessing(ctx context.Context, id string) (*models.StudentBulkUpload, bool, error) {
	upload := s.uploads[id]
	if upload.Status != models.JobPending {
		return upload, false, nil
	}
	upload.Status = models.JobProcessing
	s.claims++
	return upload, true, nil
}

func (s *uploadStoreStub) SetTotal(ctx context.Context, id string, total int) error { return nil }

func (s *uploadStoreStub) UpdateProgress(ctx context.Context, id string, processed, created, failed, pct int, message string) error {
	return nil
}

func (s *uploadStoreStub) Complete(ctx context.Context, id string, stats models.ImportStats) error {
	s.uploads[id].Status = models.JobCompleted
	s.completed[id] = stats
	return nil
}

func (s *uploadStoreStub) Fail(ctx context.Context, id, message string) error {
	s.uploads[id].Status = models.JobFailed
	s.failMessage = message
	return nil
}

type studentInserterStub struct {
	existing map[string]bool
	inserted []*models.Student
}

func (s *studentInserterStub) BulkInsertTx(ctx context.Context, tx *sqlx.Tx, students []*models.Student) error {
	s.inserted = append(s.inserted, students...)
	return nil
}

func (s *studentInserterStub) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	return s.existing[number], nil
}

type classResolverStub struct {
	resolved map[string]int
}

func (s *classResolverStub) GetOrCreateClassByName(ctx context.Context, name string) (*models.SchoolClass, error) {
	if s.resolved == nil {
		s.resolved = map[string]int{}
	}
	s.resolved[name]++
	return &models.SchoolClass{ID: "class-" + name, Name: name}, nil
}

func (s *classResolverStub) GetCurrentSession(ctx context.Context) (*models.AcademicSession, error) {
	return &models.AcademicSession{ID: "session-1", Name: "2026/2027", Current: true}, nil
}

type failureSinkStub struct {
	stored map[string][]models.ImportRowError
}

func (s *failureSinkStub) Store(ctx context.Context, uploadID string, rows []models.ImportRowError) error {
	if s.stored == nil {
		s.stored = map[string][]models.ImportRowError{}
	}
	s.stored[uploadID] = rows
	return nil
}

func (s *failureSinkStub) Get(ctx context.Context, uploadID string) ([]models.ImportRowError, error) {
	return s.stored[uploadID], nil
}

func newImportFixture(t *testing.T, csvContent string, cfg ImportServiceConfig) (*ImportService, *uploadStoreStub, *studentInserterStub, *failureSinkStub) {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	_, err = files.SaveStream("students.csv", strings.NewReader(csvContent))
	require.NoError(t, err)

	uploads := newUploadStoreStub(&models.StudentBulkUpload{
		ID:       "upload-1",
		Status:   models.JobPending,
		FilePath: "students.csv",
	})
	students := &studentInserterStub{existing: map[string]bool{}}
	failures := &failureSinkStub{}
	tx, mock := newTxProviderMock(t)
	mock.MatchExpectationsInOrder(false)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewImportService(uploads, students, &classResolverStub{}, failures, files, tx, &queueStub{}, nil, nil, cfg)
	return svc, uploads, students, failures
}

func TestHandleImport(t *testing.T) {
	// BOM-prefixed, semicolon-delimited, mixed-case headers with spaces.
	content := "\xEF\xBB\xBFRegistration Number;Surname;Firstname;Other Names;Parent Number;Current Class;Date Of Birth\n" +
		"REG001;Bello;Tunde;Adewale;08030000001;JSS 1A;2012-04-01\n" +
		"REG002;;Amaka;;;JSS 1A;14/09/2011\n" + // surname missing
		"REG003;Okafor;Chidi;;;JSS 1B;2011-09-14\n" +
		"REG004;Eze;Ngozi;;;JSS 1A;2012-01-30\n" // existing number

	svc, uploads, students, failures := newImportFixture(t, content, ImportServiceConfig{})
	students.existing["REG004"] = true

	err := svc.HandleImport(context.Background(), jobs.Job{Payload: "upload-1"})
	require.NoError(t, err)

	stats := uploads.completed["upload-1"]
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Created)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, models.JobCompleted, uploads.uploads["upload-1"].Status)

	require.Len(t, students.inserted, 2)
	first := students.inserted[0]
	assert.Equal(t, "REG001", first.StudentNumber)
	assert.Equal(t, "Bello", first.Surname)
	assert.Equal(t, "Adewale", first.OtherName)
	assert.Equal(t, "08030000001", first.MobileNumber)
	assert.Equal(t, models.StudentInactive, first.Status)
	assert.Equal(t, models.CreationImport, first.CreatedVia)
	require.NotNil(t, first.ClassID)
	assert.Equal(t, "class-JSS 1A", *first.ClassID)
	require.NotNil(t, first.SessionID)
	assert.Equal(t, "session-1", *first.SessionID)
	assert.Equal(t, 2012, first.DateOfBirth.Year())

	cached := failures.stored["upload-1"]
	require.Len(t, cached, 2)
	assert.Equal(t, 3, cached[0].Row)
	assert.Contains(t, cached[0].Error, "required")
	assert.Equal(t, 5, cached[1].Row)
	assert.Contains(t, cached[1].Error, "already exists")
}

func TestHandleImportRowCapTruncates(t *testing.T) {
	content := "registration_number,surname,firstname\n" +
		"REG001,Bello,Tunde\n" +
		"REG002,Okafor,Chidi\n" +
		"REG003,Eze,Ngozi\n"
	svc, uploads, students, _ := newImportFixture(t, content, ImportServiceConfig{MaxRows: 2})

	err := svc.HandleImport(context.Background(), jobs.Job{Payload: "upload-1"})
	require.NoError(t, err)

	// The cap truncates the file; rows parsed before it still commit.
	assert.Equal(t, models.JobCompleted, uploads.uploads["upload-1"].Status)
	stats := uploads.completed["upload-1"]
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Created)
	assert.Equal(t, 0, stats.Failed)
	require.Len(t, students.inserted, 2)
	assert.Equal(t, "REG002", students.inserted[1].StudentNumber)
}

func TestHandleImportLegacyColumnAliases(t *testing.T) {
	content := "registration_number,surname,firstname,other_name,mobile_number,class\n" +
		"REG001,Bello,Tunde,Adewale,08030000001,JSS 1A\n"
	svc, _, students, _ := newImportFixture(t, content, ImportServiceConfig{})

	err := svc.HandleImport(context.Background(), jobs.Job{Payload: "upload-1"})
	require.NoError(t, err)

	require.Len(t, students.inserted, 1)
	assert.Equal(t, "Adewale", students.inserted[0].OtherName)
	assert.Equal(t, "08030000001", students.inserted[0].MobileNumber)
	require.NotNil(t, students.inserted[0].ClassID)
	assert.Equal(t, "class-JSS 1A", *students.inserted[0].ClassID)
}

func TestHandleImportRedeliveryIsNoop(t *testing.T) {
	svc, uploads, students, _ := newImportFixture(t, "registration_number,surname,firstname\nREG001,Bello,Tunde\n", ImportServiceConfig{})
	uploads.uploads["upload-1"].Status = models.JobProcessing
	uploads.claims = 0

	err := svc.HandleImport(context.Background(), jobs.Job{Payload: "upload-1"})
	require.NoError(t, err)
	assert.Zero(t, uploads.claims)
	assert.Empty(t, students.inserted)
}

func TestHandleImportMissingColumnsFailsRecord(t *testing.T) {
	svc, uploads, _, _ := newImportFixture(t, "surname,firstname\nBello,Tunde\n", ImportServiceConfig{})

	err := svc.HandleImport(context.Background(), jobs.Job{Payload: "upload-1"})
	require.NoError(t, err) // the failure lands on the record, not the queue
	assert.Equal(t, models.JobFailed, uploads.uploads["upload-1"].Status)
	assert.Contains(t, uploads.failMessage, "registration_number")
}

func TestUploadRejectsNonCSV(t *testing.T) {
	svc, _, _, _ := newImportFixture(t, "", ImportServiceConfig{})
	_, err := svc.Upload(context.Background(), "students.xlsx", strings.NewReader(""), "staff-1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestFailureReportRendersCSV(t *testing.T) {
	svc, _, _, failures := newImportFixture(t, "", ImportServiceConfig{})
	require.NoError(t, failures.Store(context.Background(), "upload-1", []models.ImportRowError{
		{Row: 3, Error: "surname is required"},
	}))

	data, err := svc.FailureReport(context.Background(), "upload-1")
	require.NoError(t, err)
	assert.Contains(t, string(data), "surname is required")
}

func TestFailureReportExpired(t *testing.T) {
	svc, _, _, _ := newImportFixture(t, "", ImportServiceConfig{})
	_, err := svc.FailureReport(context.Background(), "upload-9")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestMapImportColumns(t *testing.T) {
	columns, err := mapImportColumns([]string{" Registration Number ", "SURNAME", "Firstname", "Date Of Birth"})
	require.NoError(t, err)
	assert.Equal(t, 0, columns["registration_number"])
	assert.Equal(t, 3, columns["date_of_birth"])

	_, err = mapImportColumns([]string{"surname", "firstname"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registration_number")
}

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, ',', sniffDelimiter("a,b,c"))
	assert.Equal(t, ';', sniffDelimiter("a;b;c"))
	assert.Equal(t, '\t', sniffDelimiter("a\tb\tc"))
	assert.Equal(t, ',', sniffDelimiter("plain"))
}

func TestParseImportDate(t *testing.T) {
	for _, value := range []string{"2012-04-01", "01/04/2012", "01-04-2012"} {
		parsed, err := parseImportDate(value)
		require.NoError(t, err)
		assert.Equal(t, 2012, parsed.Year())
	}
	_, err := parseImportDate("April 1 2012")
	require.Error(t, err)
}
