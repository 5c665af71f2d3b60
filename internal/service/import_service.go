package service

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/schoolsuite/sms-core-api/internal/models"
	appErrors "github.com/schoolsuite/sms-core-api/pkg/errors"
	"github.com/schoolsuite/sms-core-api/pkg/export"
	"github.com/schoolsuite/sms-core-api/pkg/jobs"
)

// Columns every import file must provide. Other columns are optional.
var requiredImportColumns = []string{"registration_number", "surname", "firstname"}

var importDateFormats = []string{"2006-01-02", "02/01/2006", "02-01-2006"}

type uploadStore interface {
	Create(ctx context.Context, upload *models.StudentBulkUpload) error
	GetByID(ctx context.Context, id string) (*models.StudentBulkUpload, error)
	ClaimForProcessing(ctx context.Context, id string) (*models.StudentBulkUpload, bool, error)
	SetTotal(ctx context.Context, id string, total int) error
	UpdateProgress(ctx context.Context, id string, processed, created, failed, pct int, message string) error
	Complete(ctx context.Context, id string, stats models.ImportStats) error
	Fail(ctx context.Context, id, message string) error
}

type studentBatchInserter interface {
	BulkInsertTx(ctx context.Context, tx *sqlx.Tx, students []*models.Student) error
	ExistsByNumber(ctx context.Context, number string) (bool, error)
}

type importClassResolver interface {
	GetOrCreateClassByName(ctx context.Context, name string) (*models.SchoolClass, error)
	GetCurrentSession(ctx context.Context) (*models.AcademicSession, error)
}

type failureSink interface {
	Store(ctx context.Context, uploadID string, rows []models.ImportRowError) error
	Get(ctx context.Context, uploadID string) ([]models.ImportRowError, error)
}

type uploadFileStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

// ImportServiceConfig bounds one import run.
type ImportServiceConfig struct {
	BatchSize        int
	MaxRows          int
	ProgressInterval int
}

// ImportService runs the CSV student import pipeline. The upload record is
// the job handle: clients poll it for progress while a queue worker chews
// through the file in batches.
type ImportService struct {
	uploads  uploadStore
	students studentBatchInserter
	classes  importClassResolver
	failures failureSink
	files    uploadFileStore
	tx       txProvider
	queue    jobEnqueuer
	logger   *zap.Logger
	metrics  *MetricsService
	cfg      ImportServiceConfig
}

// NewImportService wires import pipeline dependencies.
func NewImportService(
	uploads uploadStore,
	students studentBatchInserter,
	classes importClassResolver,
	failures failureSink,
	files uploadFileStore,
	tx txProvider,
	queue jobEnqueuer,
	logger *zap.Logger,
	metrics *MetricsService,
	cfg ImportServiceConfig,
) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 10000
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 100
	}
	return &ImportService{
		uploads:  uploads,
		students: students,
		classes:  classes,
		failures: failures,
		files:    files,
		tx:       tx,
		queue:    queue,
		logger:   logger,
		metrics:  metrics,
		cfg:      cfg,
	}
}

// RegisterHandlers binds the import task onto the queue.
func (s *ImportService) RegisterHandlers(q *jobs.Queue) {
	q.Register(jobs.TaskImportCSV, s.HandleImport)
}

// Upload stores the file, creates the pollable job record, and enqueues
// processing.
func (s *ImportService) Upload(ctx context.Context, filename string, r io.Reader, actorID string) (*models.StudentBulkUpload, error) {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != ".csv" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only .csv files are accepted")
	}
	stored := fmt.Sprintf("%s_%s", uuid.NewString(), filepath.Base(filename))
	path, err := s.files.SaveStream(stored, r)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	upload := &models.StudentBulkUpload{FilePath: path, StatusMessage: "Queued"}
	if actorID != "" {
		upload.CreatedBy = &actorID
	}
	if err := s.uploads.Create(ctx, upload); err != nil {
		return nil, err
	}
	if _, err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobs.TaskImportCSV,
		Payload: upload.ID,
	}); err != nil {
		if ferr := s.uploads.Fail(ctx, upload.ID, "could not enqueue processing"); ferr != nil {
			s.logger.Warn("fail upload after enqueue error", zap.String("upload_id", upload.ID), zap.Error(ferr))
		}
		return nil, fmt.Errorf("enqueue import: %w", err)
	}
	s.logger.Info("import queued", zap.String("upload_id", upload.ID), zap.String("file", path))
	return upload, nil
}

// Status returns the pollable job record.
func (s *ImportService) Status(ctx context.Context, id string) (*models.StudentBulkUpload, error) {
	upload, err := s.uploads.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "upload not found")
	}
	return upload, nil
}

// FailureReport renders the cached failure rows as a CSV download. Returns
// NOT_FOUND once the cache entry has expired.
func (s *ImportService) FailureReport(ctx context.Context, id string) ([]byte, error) {
	rows, err := s.failures.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "failure report expired or not available")
	}
	data := export.Dataset{Headers: []string{"row", "error"}}
	for _, row := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"row":   fmt.Sprintf("%d", row.Row),
			"error": row.Error,
		})
	}
	return export.NewCSVExporter().Render(data)
}

// HandleImport processes one uploaded file. The claim makes redelivery a
// no-op; any error after the claim marks the record failed rather than
// bubbling back to the queue for a blind retry.
func (s *ImportService) HandleImport(ctx context.Context, job jobs.Job) error {
	upload, claimed, err := s.uploads.ClaimForProcessing(ctx, job.Payload)
	if err != nil {
		return fmt.Errorf("claim upload %s: %w", job.Payload, err)
	}
	if !claimed {
		s.logger.Info("upload already claimed",
			zap.String("upload_id", job.Payload),
			zap.String("status", string(upload.Status)))
		return nil
	}

	stats, rowErrors, err := s.process(ctx, upload)
	if err != nil {
		s.logger.Error("import failed", zap.String("upload_id", upload.ID), zap.Error(err))
		if ferr := s.uploads.Fail(ctx, upload.ID, err.Error()); ferr != nil {
			s.logger.Warn("mark upload failed", zap.String("upload_id", upload.ID), zap.Error(ferr))
		}
		return nil
	}

	if len(rowErrors) > 0 {
		if cerr := s.failures.Store(ctx, upload.ID, rowErrors); cerr != nil {
			s.logger.Warn("cache failure rows", zap.String("upload_id", upload.ID), zap.Error(cerr))
		}
	}
	// The row count is only known once the stream is exhausted.
	if terr := s.uploads.SetTotal(ctx, upload.ID, stats.Total); terr != nil {
		s.logger.Warn("set upload total", zap.String("upload_id", upload.ID), zap.Error(terr))
	}
	if err := s.uploads.Complete(ctx, upload.ID, stats); err != nil {
		return fmt.Errorf("complete upload %s: %w", upload.ID, err)
	}
	s.metrics.CountImportRows("created", stats.Created)
	s.metrics.CountImportRows("failed", stats.Failed)
	// The source file is spent once the stats are durable.
	if derr := s.files.Delete(filepath.Base(upload.FilePath)); derr != nil {
		s.logger.Warn("remove processed upload", zap.String("upload_id", upload.ID), zap.Error(derr))
	}
	s.logger.Info("import completed",
		zap.String("upload_id", upload.ID),
		zap.Int("created", stats.Created),
		zap.Int("failed", stats.Failed))
	return nil
}

func (s *ImportService) process(ctx context.Context, upload *models.StudentBulkUpload) (models.ImportStats, []models.ImportRowError, error) {
	var stats models.ImportStats

	file, err := s.files.Open(filepath.Base(upload.FilePath))
	if err != nil {
		return stats, nil, fmt.Errorf("open upload file: %w", err)
	}
	defer file.Close()

	reader, err := newImportReader(file)
	if err != nil {
		return stats, nil, err
	}
	header, err := reader.Read()
	if err != nil {
		return stats, nil, fmt.Errorf("read header: %w", err)
	}
	columns, err := mapImportColumns(header)
	if err != nil {
		return stats, nil, err
	}

	sessionID := s.resolveSessionID(ctx)

	var (
		rowErrors  []models.ImportRowError
		batch      []*models.Student
		classCache = map[string]string{}
		rowNum     = 1 // header consumed
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			stats.Total++
			stats.Failed++
			rowErrors = append(rowErrors, models.ImportRowError{Row: rowNum, Error: err.Error()})
			continue
		}
		if stats.Total >= s.cfg.MaxRows {
			// Soft cutoff: keep everything parsed so far, ignore the rest.
			s.logger.Warn("import row cap reached, truncating file",
				zap.String("upload_id", upload.ID), zap.Int("max_rows", s.cfg.MaxRows))
			break
		}
		stats.Total++

		student, err := s.buildStudent(ctx, record, columns, classCache, sessionID, upload.CreatedBy)
		if err != nil {
			stats.Failed++
			rowErrors = append(rowErrors, models.ImportRowError{Row: rowNum, Error: err.Error()})
		} else {
			batch = append(batch, student)
			if len(batch) >= s.cfg.BatchSize {
				if err := s.flush(ctx, batch); err != nil {
					return stats, rowErrors, err
				}
				stats.Created += len(batch)
				batch = batch[:0]
			}
		}

		if stats.Total%s.cfg.ProgressInterval == 0 {
			s.reportProgress(ctx, upload.ID, stats)
		}
	}

	if len(batch) > 0 {
		if err := s.flush(ctx, batch); err != nil {
			return stats, rowErrors, err
		}
		stats.Created += len(batch)
	}
	return stats, rowErrors, nil
}

// flush inserts one batch in a single short transaction. A constraint
// violation inside the batch aborts the whole import; partial batches are
// never committed.
func (s *ImportService) flush(ctx context.Context, batch []*models.Student) error {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if err := s.students.BulkInsertTx(ctx, tx, batch); err != nil {
		return fmt.Errorf("insert import batch: %w", err)
	}
	return tx.Commit()
}

// reportProgress writes live counters. The percentage is capped below 100
// until Complete runs; total row count is unknown while streaming. Only
// committed rows count as created, rows still in the pending batch may yet
// roll back.
func (s *ImportService) reportProgress(ctx context.Context, uploadID string, stats models.ImportStats) {
	pct := 0
	if s.cfg.MaxRows > 0 {
		pct = stats.Total * 100 / s.cfg.MaxRows
	}
	if pct > 99 {
		pct = 99
	}
	message := fmt.Sprintf("Processed %d rows", stats.Total)
	if err := s.uploads.UpdateProgress(ctx, uploadID,
		stats.Total, stats.Created, stats.Failed, pct, message); err != nil {
		s.logger.Warn("update import progress", zap.String("upload_id", uploadID), zap.Error(err))
	}
}

func (s *ImportService) resolveSessionID(ctx context.Context) *string {
	session, err := s.classes.GetCurrentSession(ctx)
	if err != nil {
		s.logger.Warn("no current session for import", zap.Error(err))
		return nil
	}
	return &session.ID
}

func (s *ImportService) buildStudent(
	ctx context.Context,
	record []string,
	columns map[string]int,
	classCache map[string]string,
	sessionID *string,
	createdBy *string,
) (*models.Student, error) {
	// The first name is the documented column, the rest are aliases seen
	// in files exported from older systems.
	field := func(names ...string) string {
		for _, name := range names {
			idx, ok := columns[name]
			if !ok || idx >= len(record) {
				continue
			}
			if value := strings.TrimSpace(record[idx]); value != "" {
				return value
			}
		}
		return ""
	}

	number := field("registration_number")
	surname := field("surname")
	firstname := field("firstname")
	if number == "" || surname == "" || firstname == "" {
		return nil, errors.New("registration_number, surname, and firstname are required")
	}
	if taken, err := s.students.ExistsByNumber(ctx, number); err != nil {
		return nil, err
	} else if taken {
		return nil, fmt.Errorf("registration number %s already exists", number)
	}

	student := &models.Student{
		StudentNumber: number,
		Surname:       surname,
		FirstName:     firstname,
		OtherName:     field("other_names", "other_name"),
		Gender:        strings.ToUpper(field("gender")),
		Email:         field("email"),
		MobileNumber:  field("parent_number", "mobile_number"),
		Address:       field("address"),
		MedicalNotes:  field("medical_notes"),
		Allergies:     field("allergies"),
		Status:        models.StudentInactive,
		CreatedVia:    models.CreationImport,
		SessionID:     sessionID,
		CreatedBy:     createdBy,
	}

	if dob := field("date_of_birth"); dob != "" {
		parsed, err := parseImportDate(dob)
		if err != nil {
			return nil, err
		}
		student.DateOfBirth = parsed
	}

	if className := field("current_class", "class"); className != "" {
		classID, ok := classCache[className]
		if !ok {
			class, err := s.classes.GetOrCreateClassByName(ctx, className)
			if err != nil {
				return nil, fmt.Errorf("resolve class %q: %w", className, err)
			}
			classID = class.ID
			classCache[className] = classID
		}
		student.ClassID = &classID
	}
	return student, nil
}

// newImportReader strips a UTF-8 BOM and sniffs the delimiter from the
// first line. Exports from spreadsheet tools disagree on both.
func newImportReader(file *os.File) (*csv.Reader, error) {
	buffered := bufio.NewReader(file)
	if bom, err := buffered.Peek(3); err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		if _, err := buffered.Discard(3); err != nil {
			return nil, err
		}
	}

	firstLine, err := buffered.Peek(1024)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("peek header: %w", err)
	}
	if idx := strings.IndexByte(string(firstLine), '\n'); idx >= 0 {
		firstLine = firstLine[:idx]
	}

	reader := csv.NewReader(buffered)
	reader.Comma = sniffDelimiter(string(firstLine))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader, nil
}

func sniffDelimiter(line string) rune {
	best, bestCount := ',', strings.Count(line, ",")
	for _, candidate := range []rune{';', '\t'} {
		if count := strings.Count(line, string(candidate)); count > bestCount {
			best, bestCount = candidate, count
		}
	}
	return best
}

// mapImportColumns normalizes headers (trim, lower, spaces to underscores)
// and checks the required set is present.
func mapImportColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
		if normalized != "" {
			columns[normalized] = i
		}
	}
	var missing []string
	for _, required := range requiredImportColumns {
		if _, ok := columns[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

func parseImportDate(value string) (time.Time, error) {
	for _, format := range importDateFormats {
		if parsed, err := time.Parse(format, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}
