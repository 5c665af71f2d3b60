package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolsuite/sms-core-api/internal/models"
)

func newAdmissionMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAdmissionRepositoryCreateFirstOfMonth(t *testing.T) {
	db, mock, cleanup := newAdmissionMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	prefix := "APP-" + time.Now().UTC().Format("200601")
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT application_number FROM admission_applications").
		WithArgs(prefix + "-%").
		WillReturnRows(sqlmock.NewRows([]string{"application_number"}))
	mock.ExpectExec("INSERT INTO admission_applications").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	app := &models.AdmissionApplication{Surname: "Bello", FirstName: "Kemi"}
	err := repo.Create(context.Background(), app)
	require.NoError(t, err)
	assert.Equal(t, prefix+"-0001", app.ApplicationNumber)
	assert.Equal(t, models.ApplicationPending, app.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepositoryCreateIncrementsSequence(t *testing.T) {
	db, mock, cleanup := newAdmissionMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	prefix := "APP-" + time.Now().UTC().Format("200601")
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT application_number FROM admission_applications").
		WithArgs(prefix + "-%").
		WillReturnRows(sqlmock.NewRows([]string{"application_number"}).
			AddRow(fmt.Sprintf("%s-0012", prefix)))
	mock.ExpectExec("INSERT INTO admission_applications").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	app := &models.AdmissionApplication{Surname: "Bello", FirstName: "Kemi"}
	err := repo.Create(context.Background(), app)
	require.NoError(t, err)
	assert.Equal(t, prefix+"-0013", app.ApplicationNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepositoryNextWaitlistPosition(t *testing.T) {
	db, mock, cleanup := newAdmissionMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT MAX").
		WithArgs(models.ApplicationWaitlisted).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(3))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	pos, err := repo.NextWaitlistPositionTx(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, 4, pos)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepositoryNextWaitlistPositionEmpty(t *testing.T) {
	db, mock, cleanup := newAdmissionMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT MAX").
		WithArgs(models.ApplicationWaitlisted).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	pos, err := repo.NextWaitlistPositionTx(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
