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

const guardianColumns = `id, surname, firstname, other_name, email, phone, address,
        relationship, photo_path, account_username, account_status, created_at, updated_at`

// GuardianRepository manages persistence for guardians.
type GuardianRepository struct {
	db *sqlx.DB
}

// NewGuardianRepository constructs a GuardianRepository.
func NewGuardianRepository(db *sqlx.DB) *GuardianRepository {
	return &GuardianRepository{db: db}
}

// GetByID fetches a guardian by ID.
func (r *GuardianRepository) GetByID(ctx context.Context, id string) (*models.Guardian, error) {
	query := fmt.Sprintf("SELECT %s FROM guardians WHERE id = $1", guardianColumns)
	var guardian models.Guardian
	if err := r.db.GetContext(ctx, &guardian, query, id); err != nil {
		return nil, err
	}
	return &guardian, nil
}

// GetByEmailTx looks up a guardian by unique email within a transaction.
func (r *GuardianRepository) GetByEmailTx(ctx context.Context, tx *sqlx.Tx, email string) (*models.Guardian, error) {
	query := fmt.Sprintf("SELECT %s FROM guardians WHERE email = $1 FOR UPDATE", guardianColumns)
	var guardian models.Guardian
	if err := tx.GetContext(ctx, &guardian, query, email); err != nil {
		return nil, err
	}
	return &guardian, nil
}

// CreateTx inserts a guardian within the caller's transaction.
func (r *GuardianRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, guardian *models.Guardian) error {
	if guardian.ID == "" {
		guardian.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	guardian.CreatedAt = now
	guardian.UpdatedAt = now
	if guardian.AccountStatus == "" {
		guardian.AccountStatus = models.AccountPending
	}
	query := fmt.Sprintf(`INSERT INTO guardians (%s) VALUES
        (:id, :surname, :firstname, :other_name, :email, :phone, :address,
        :relationship, :photo_path, :account_username, :account_status, :created_at, :updated_at)`, guardianColumns)
	if _, err := tx.NamedExecContext(ctx, query, guardian); err != nil {
		return fmt.Errorf("insert guardian: %w", err)
	}
	return nil
}

// UpdateTx persists contact fields within the caller's transaction. Used
// for backfilling blanks from an application.
func (r *GuardianRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, guardian *models.Guardian) error {
	guardian.UpdatedAt = time.Now().UTC()
	const query = `UPDATE guardians SET
        surname = :surname, firstname = :firstname, other_name = :other_name,
        phone = :phone, address = :address, relationship = :relationship,
        photo_path = :photo_path, updated_at = :updated_at
        WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, guardian); err != nil {
		return fmt.Errorf("update guardian: %w", err)
	}
	return nil
}

// ClaimAccountCreation locks the guardian row and marks account creation as
// processing. Returns false when an account handle already exists or
// another worker claimed the row, making redelivered jobs no-ops.
func (r *GuardianRepository) ClaimAccountCreation(ctx context.Context, id string) (*models.Guardian, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin claim account: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := fmt.Sprintf("SELECT %s FROM guardians WHERE id = $1 FOR UPDATE", guardianColumns)
	var guardian models.Guardian
	if err := tx.GetContext(ctx, &guardian, query, id); err != nil {
		return nil, false, err
	}
	if guardian.AccountUsername != nil || guardian.AccountStatus == models.AccountProcessing || guardian.AccountStatus == models.AccountCompleted {
		return &guardian, false, tx.Commit()
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE guardians SET account_status = $2, updated_at = $3 WHERE id = $1`,
		id, models.AccountProcessing, now); err != nil {
		return nil, false, fmt.Errorf("claim account creation: %w", err)
	}
	guardian.AccountStatus = models.AccountProcessing
	return &guardian, true, tx.Commit()
}

// SetAccount records the created account handle.
func (r *GuardianRepository) SetAccount(ctx context.Context, id, username string) error {
	const query = `UPDATE guardians
        SET account_username = $2, account_status = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, username, models.AccountCompleted, time.Now().UTC()); err != nil {
		return fmt.Errorf("set guardian account: %w", err)
	}
	return nil
}

// SetAccountStatus updates only the account-creation status.
func (r *GuardianRepository) SetAccountStatus(ctx context.Context, id string, status models.AccountStatus) error {
	const query = `UPDATE guardians SET account_status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("set guardian account status: %w", err)
	}
	return nil
}

// ExistsByUsername checks whether an account handle is taken.
func (r *GuardianRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists,
		"SELECT 1 FROM guardians WHERE account_username = $1 LIMIT 1", username)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check account username: %w", err)
	}
	return true, nil
}
