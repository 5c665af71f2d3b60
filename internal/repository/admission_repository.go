package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolsuite/sms-core-api/internal/models"
)

const applicationColumns = `id, application_number, application_date, session_id, class_id,
        guardian_name, guardian_email, guardian_phone, guardian_address, guardian_relationship,
        firstname, middle_name, surname, gender, date_of_birth, medical_notes, allergies,
        status, payment_reference, payment_verified, payment_verified_by, payment_verified_at, payment_amount,
        reviewed_by, reviewed_at, review_notes, decided_by, decided_at, decision_notes, rejection_reason,
        letter_sent, letter_sent_at, guardian_accepted, guardian_accepted_at,
        waitlist_position, waitlist_notes, student_id, created_by, created_at, updated_at`

// AdmissionRepository manages persistence for admission applications and
// their review logs.
type AdmissionRepository struct {
	db *sqlx.DB
}

// NewAdmissionRepository constructs an AdmissionRepository.
func NewAdmissionRepository(db *sqlx.DB) *AdmissionRepository {
	return &AdmissionRepository{db: db}
}

// Create inserts a new application, assigning the next application number
// for the current year-month under a lock so sequences stay gapless under
// serial creation.
func (r *AdmissionRepository) Create(ctx context.Context, app *models.AdmissionApplication) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create application: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if app.ApplicationDate.IsZero() {
		app.ApplicationDate = now
	}
	if app.Status == "" {
		app.Status = models.ApplicationPending
	}
	app.CreatedAt = now
	app.UpdatedAt = now

	if app.ApplicationNumber == "" {
		number, err := nextApplicationNumberTx(ctx, tx, now)
		if err != nil {
			return err
		}
		app.ApplicationNumber = number
	}

	query := fmt.Sprintf(`INSERT INTO admission_applications (%s) VALUES
        (:id, :application_number, :application_date, :session_id, :class_id,
        :guardian_name, :guardian_email, :guardian_phone, :guardian_address, :guardian_relationship,
        :firstname, :middle_name, :surname, :gender, :date_of_birth, :medical_notes, :allergies,
        :status, :payment_reference, :payment_verified, :payment_verified_by, :payment_verified_at, :payment_amount,
        :reviewed_by, :reviewed_at, :review_notes, :decided_by, :decided_at, :decision_notes, :rejection_reason,
        :letter_sent, :letter_sent_at, :guardian_accepted, :guardian_accepted_at,
        :waitlist_position, :waitlist_notes, :student_id, :created_by, :created_at, :updated_at)`, applicationColumns)
	if _, err := tx.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return tx.Commit()
}

// nextApplicationNumberTx computes APP-YYYYMM-NNNN from the highest number
// issued this year-month. The lock serializes concurrent creators.
func nextApplicationNumberTx(ctx context.Context, tx *sqlx.Tx, now time.Time) (string, error) {
	prefix := "APP-" + now.Format("200601")
	var last string
	err := tx.GetContext(ctx, &last,
		`SELECT application_number FROM admission_applications
         WHERE application_number LIKE $1
         ORDER BY application_number DESC LIMIT 1 FOR UPDATE`, prefix+"-%")
	seq := 1
	if err == nil {
		parts := strings.Split(last, "-")
		if n, perr := strconv.Atoi(parts[len(parts)-1]); perr == nil {
			seq = n + 1
		}
	} else if err != sql.ErrNoRows {
		return "", fmt.Errorf("last application number: %w", err)
	}
	return fmt.Sprintf("%s-%04d", prefix, seq), nil
}

// GetByID fetches an application by ID.
func (r *AdmissionRepository) GetByID(ctx context.Context, id string) (*models.AdmissionApplication, error) {
	query := fmt.Sprintf("SELECT %s FROM admission_applications WHERE id = $1", applicationColumns)
	var app models.AdmissionApplication
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// GetByIDForUpdateTx locks and loads an application inside a transaction.
// Transitions read-modify-write under this lock to avoid lost updates.
func (r *AdmissionRepository) GetByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.AdmissionApplication, error) {
	query := fmt.Sprintf("SELECT %s FROM admission_applications WHERE id = $1 FOR UPDATE", applicationColumns)
	var app models.AdmissionApplication
	if err := tx.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// UpdateTx persists all mutable transition fields.
func (r *AdmissionRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, app *models.AdmissionApplication) error {
	app.UpdatedAt = time.Now().UTC()
	const query = `UPDATE admission_applications SET
        session_id = :session_id, class_id = :class_id, status = :status,
        payment_reference = :payment_reference, payment_verified = :payment_verified,
        payment_verified_by = :payment_verified_by, payment_verified_at = :payment_verified_at,
        payment_amount = :payment_amount,
        reviewed_by = :reviewed_by, reviewed_at = :reviewed_at, review_notes = :review_notes,
        decided_by = :decided_by, decided_at = :decided_at, decision_notes = :decision_notes,
        rejection_reason = :rejection_reason,
        letter_sent = :letter_sent, letter_sent_at = :letter_sent_at,
        guardian_accepted = :guardian_accepted, guardian_accepted_at = :guardian_accepted_at,
        waitlist_position = :waitlist_position, waitlist_notes = :waitlist_notes,
        student_id = :student_id, updated_at = :updated_at
        WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	return nil
}

// List returns applications matching the filter with pagination.
func (r *AdmissionRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.AdmissionApplication, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if len(filter.Status) > 0 {
		placeholders := make([]string, 0, len(filter.Status))
		for _, s := range filter.Status {
			args = append(args, s)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		conditions = append(conditions, fmt.Sprintf("session_id = $%d", len(args)))
	}
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(surname) LIKE $%d OR LOWER(firstname) LIKE $%d OR LOWER(application_number) LIKE $%d)",
			len(args), len(args), len(args)))
	}

	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM admission_applications WHERE %s
        ORDER BY application_date DESC, created_at DESC LIMIT %d OFFSET %d`,
		applicationColumns, where, size, offset)

	var apps []models.AdmissionApplication
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM admission_applications WHERE %s", where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return apps, total, nil
}

// NextWaitlistPositionTx returns max(existing)+1 over the currently
// waitlisted population. The advisory lock is held until the caller's
// transaction ends, so concurrent assignments see each other's committed
// positions and stay pairwise distinct.
func (r *AdmissionRepository) NextWaitlistPositionTx(ctx context.Context, tx *sqlx.Tx) (int, error) {
	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext('admission_waitlist_position'))`); err != nil {
		return 0, fmt.Errorf("lock waitlist position: %w", err)
	}
	var max sql.NullInt64
	err := tx.GetContext(ctx, &max,
		`SELECT MAX(waitlist_position) FROM admission_applications WHERE status = $1`,
		models.ApplicationWaitlisted)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("next waitlist position: %w", err)
	}
	if max.Valid {
		return int(max.Int64) + 1, nil
	}
	return 1, nil
}

// AppendReviewLogTx writes an audit entry within the caller's transaction,
// so the log commits atomically with the status change it records.
func (r *AdmissionRepository) AppendReviewLogTx(ctx context.Context, tx *sqlx.Tx, log *models.AdmissionReviewLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO admission_review_logs
        (id, application_id, actor_id, action, notes, from_status, to_status, created_at)
        VALUES (:id, :application_id, :actor_id, :action, :notes, :from_status, :to_status, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("append review log: %w", err)
	}
	return nil
}

// ListReviewLogs returns the audit trail for an application, oldest first.
func (r *AdmissionRepository) ListReviewLogs(ctx context.Context, applicationID string) ([]models.AdmissionReviewLog, error) {
	const query = `SELECT id, application_id, actor_id, action, notes, from_status, to_status, created_at
        FROM admission_review_logs WHERE application_id = $1 ORDER BY created_at ASC`
	var logs []models.AdmissionReviewLog
	if err := r.db.SelectContext(ctx, &logs, query, applicationID); err != nil {
		return nil, fmt.Errorf("list review logs: %w", err)
	}
	return logs, nil
}

// MarkLetterSent flags the admission letter as delivered. Runs outside the
// transition transaction because letter dispatch happens after commit.
func (r *AdmissionRepository) MarkLetterSent(ctx context.Context, id string) error {
	const query = `UPDATE admission_applications
        SET letter_sent = true, letter_sent_at = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark letter sent: %w", err)
	}
	return nil
}

// ListWaitlisted returns waitlisted applications ordered by position.
func (r *AdmissionRepository) ListWaitlisted(ctx context.Context) ([]models.AdmissionApplication, error) {
	query := fmt.Sprintf(`SELECT %s FROM admission_applications
        WHERE status = $1 ORDER BY waitlist_position ASC`, applicationColumns)
	var apps []models.AdmissionApplication
	if err := r.db.SelectContext(ctx, &apps, query, models.ApplicationWaitlisted); err != nil {
		return nil, fmt.Errorf("list waitlisted: %w", err)
	}
	return apps, nil
}
