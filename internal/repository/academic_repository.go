package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolsuite/sms-core-api/internal/models"
)

// AcademicRepository reads school classes and academic sessions.
type AcademicRepository struct {
	db *sqlx.DB
}

// NewAcademicRepository constructs an AcademicRepository.
func NewAcademicRepository(db *sqlx.DB) *AcademicRepository {
	return &AcademicRepository{db: db}
}

// GetClassByID fetches a class by ID.
func (r *AcademicRepository) GetClassByID(ctx context.Context, id string) (*models.SchoolClass, error) {
	var class models.SchoolClass
	err := r.db.GetContext(ctx, &class,
		"SELECT id, name, created_at FROM school_classes WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	return &class, nil
}

// GetClassByName fetches a class by its exact name.
func (r *AcademicRepository) GetClassByName(ctx context.Context, name string) (*models.SchoolClass, error) {
	var class models.SchoolClass
	err := r.db.GetContext(ctx, &class,
		"SELECT id, name, created_at FROM school_classes WHERE name = $1", name)
	if err != nil {
		return nil, err
	}
	return &class, nil
}

// GetOrCreateClassByName resolves a class name to a row, creating one when
// missing. Used by the CSV importer where files reference classes by name.
func (r *AcademicRepository) GetOrCreateClassByName(ctx context.Context, name string) (*models.SchoolClass, error) {
	class, err := r.GetClassByName(ctx, name)
	if err == nil {
		return class, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO school_classes (id, name, created_at) VALUES ($1, $2, $3)
         ON CONFLICT (name) DO NOTHING`,
		uuid.NewString(), name, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("create class %q: %w", name, err)
	}
	// A concurrent insert may have won the conflict, re-read by name.
	return r.GetClassByName(ctx, name)
}

// GetSessionByID fetches an academic session by ID.
func (r *AcademicRepository) GetSessionByID(ctx context.Context, id string) (*models.AcademicSession, error) {
	var session models.AcademicSession
	err := r.db.GetContext(ctx, &session,
		"SELECT id, name, current, created_at FROM academic_sessions WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetCurrentSession returns the session flagged as current, if any.
func (r *AcademicRepository) GetCurrentSession(ctx context.Context) (*models.AcademicSession, error) {
	var session models.AcademicSession
	err := r.db.GetContext(ctx, &session,
		"SELECT id, name, current, created_at FROM academic_sessions WHERE current = TRUE LIMIT 1")
	if err != nil {
		return nil, err
	}
	return &session, nil
}
