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

const studentColumns = `id, student_number, surname, firstname, other_name, gender, date_of_birth,
        email, mobile_number, address, medical_notes, allergies,
        guardian_id, class_id, session_id, status, created_via, application_id,
        admission_date, created_by, created_at, updated_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Create inserts a student in its own transaction, generating the student
// number when the caller has not supplied one.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create student: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := r.CreateTx(ctx, tx, student); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateTx inserts a student within the caller's transaction. The student
// number is assigned exactly once, here, based on the creation method.
func (r *StudentRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.Status == "" {
		student.Status = models.StudentInactive
	}
	student.CreatedAt = now
	student.UpdatedAt = now

	if student.StudentNumber == "" {
		number, err := nextStudentNumberTx(ctx, tx, student.CreatedVia, now)
		if err != nil {
			return err
		}
		student.StudentNumber = number
	}

	query := fmt.Sprintf(`INSERT INTO students (%s) VALUES
        (:id, :student_number, :surname, :firstname, :other_name, :gender, :date_of_birth,
        :email, :mobile_number, :address, :medical_notes, :allergies,
        :guardian_id, :class_id, :session_id, :status, :created_via, :application_id,
        :admission_date, :created_by, :created_at, :updated_at)`, studentColumns)
	if _, err := tx.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

// nextStudentNumberTx issues {prefix}{year}{seq:4} per creation method and
// calendar year, locking the highest issued number to serialize sequences.
// Admission-created students derive their number from the application
// number instead and never reach this path.
func nextStudentNumberTx(ctx context.Context, tx *sqlx.Tx, method models.CreationMethod, now time.Time) (string, error) {
	prefix := fmt.Sprintf("%s%d", method.NumberPrefix(), now.Year())
	var last string
	err := tx.GetContext(ctx, &last,
		`SELECT student_number FROM students
         WHERE student_number LIKE $1
         ORDER BY student_number DESC LIMIT 1 FOR UPDATE`, prefix+"%")
	seq := 1
	if err == nil {
		if n, perr := strconv.Atoi(last[len(last)-4:]); perr == nil {
			seq = n + 1
		}
	} else if err != sql.ErrNoRows {
		return "", fmt.Errorf("last student number: %w", err)
	}
	return fmt.Sprintf("%s%04d", prefix, seq), nil
}

// BulkInsertTx inserts a batch of students inside one short transaction
// provided by the caller. Any insert error aborts the whole batch.
func (r *StudentRepository) BulkInsertTx(ctx context.Context, tx *sqlx.Tx, students []*models.Student) error {
	for _, student := range students {
		if err := r.CreateTx(ctx, tx, student); err != nil {
			return err
		}
	}
	return nil
}

// GetByID fetches a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// GetByIDForUpdateTx locks and loads a student row for a read-modify-write.
func (r *StudentRepository) GetByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1 FOR UPDATE", studentColumns)
	var student models.Student
	if err := tx.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// Update persists mutable student fields.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET
        surname = :surname, firstname = :firstname, other_name = :other_name,
        gender = :gender, date_of_birth = :date_of_birth,
        email = :email, mobile_number = :mobile_number, address = :address,
        medical_notes = :medical_notes, allergies = :allergies,
        guardian_id = :guardian_id, class_id = :class_id, session_id = :session_id,
        status = :status, admission_date = :admission_date, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// UpdateStatusTx flips the lifecycle status within the caller's transaction.
func (r *StudentRepository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.StudentStatus) error {
	const query = `UPDATE students SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update student status: %w", err)
	}
	return nil
}

// UpdateClassTx moves a student to another class within the caller's
// transaction. Used by the promotion processor under a row lock.
func (r *StudentRepository) UpdateClassTx(ctx context.Context, tx *sqlx.Tx, id, classID string) error {
	const query = `UPDATE students SET class_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, classID, time.Now().UTC()); err != nil {
		return fmt.Errorf("update student class: %w", err)
	}
	return nil
}

// ExistsByNumber checks whether a student number is already taken.
func (r *StudentRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists,
		"SELECT 1 FROM students WHERE student_number = $1 LIMIT 1", number)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student number: %w", err)
	}
	return true, nil
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(surname) LIKE $%d OR LOWER(firstname) LIKE $%d OR LOWER(student_number) LIKE $%d)",
			len(args), len(args), len(args)))
	}

	where := strings.Join(conditions, " AND ")

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"surname":        "surname",
		"student_number": "student_number",
		"created_at":     "created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "student_number"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM students WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		studentColumns, where, column, order, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM students WHERE %s", where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// ListActive returns students counted as active: status flag set AND all
// three structural requirements present.
func (r *StudentRepository) ListActive(ctx context.Context) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students
        WHERE status = $1 AND guardian_id IS NOT NULL AND class_id IS NOT NULL AND session_id IS NOT NULL
        ORDER BY student_number ASC`, studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, models.StudentActive); err != nil {
		return nil, fmt.Errorf("list active students: %w", err)
	}
	return students, nil
}

// ListInactive returns students in the inactive reporting bucket. The
// filter is OR-of-negations, not the complement of ListActive: a
// graduated or withdrawn record with complete data appears in neither.
func (r *StudentRepository) ListInactive(ctx context.Context) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students
        WHERE status = $1 OR guardian_id IS NULL OR class_id IS NULL OR session_id IS NULL
        ORDER BY student_number ASC`, studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, models.StudentInactive); err != nil {
		return nil, fmt.Errorf("list inactive students: %w", err)
	}
	return students, nil
}

// CountActiveInClass counts active students currently placed in a class.
// The waitlist-promotion capacity guard reads this.
func (r *StudentRepository) CountActiveInClass(ctx context.Context, classID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM students WHERE class_id = $1 AND status = $2",
		classID, models.StudentActive)
	if err != nil {
		return 0, fmt.Errorf("count active in class: %w", err)
	}
	return count, nil
}
