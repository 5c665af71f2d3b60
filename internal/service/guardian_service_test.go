package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolsuite/sms-core-api/internal/models"
	"github.com/schoolsuite/sms-core-api/pkg/jobs"
)

type guardianAccountStub struct {
	guardians map[string]*models.Guardian
	taken     map[string]bool
	claims    int
}

func (s *guardianAccountStub) GetByID(ctx context.Context, id string) (*models.Guardian, error) {
	copied := *s.guardians[id]
	return &copied, nil
}

func (s *guardianAccountStub) ClaimAccountCreation(ctx context.Context, id string) (*models.Guardian, bool, error) {
	guardian := s.guardians[id]
	if guardian.AccountUsername != nil || guardian.AccountStatus != models.AccountPending {
		copied := *guardian
		return &copied, false, nil
	}
	s.claims++
	guardian.AccountStatus = models.AccountProcessing
	copied := *guardian
	return &copied, true, nil
}

func (s *guardianAccountStub) SetAccount(ctx context.Context, id, username string) error {
	s.guardians[id].AccountUsername = &username
	s.guardians[id].AccountStatus = models.AccountCompleted
	s.taken[username] = true
	return nil
}

func (s *guardianAccountStub) SetAccountStatus(ctx context.Context, id string, status models.AccountStatus) error {
	s.guardians[id].AccountStatus = status
	return nil
}

func (s *guardianAccountStub) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.taken[username], nil
}

func newGuardianFixture(guardians ...*models.Guardian) (*GuardianService, *guardianAccountStub, *mailerStub) {
	stub := &guardianAccountStub{guardians: map[string]*models.Guardian{}, taken: map[string]bool{}}
	for _, g := range guardians {
		stub.guardians[g.ID] = g
	}
	mailer := &mailerStub{}
	return NewGuardianService(stub, mailer, "Hillcrest College", nil), stub, mailer
}

func TestHandleCreateAccount(t *testing.T) {
	svc, store, _ := newGuardianFixture(&models.Guardian{
		ID:            "guardian-1",
		Surname:       "Bello",
		FirstName:     "Tunde",
		Email:         "tunde@example.com",
		AccountStatus: models.AccountPending,
	})

	err := svc.HandleCreateAccount(context.Background(), jobs.Job{Payload: "guardian-1"})
	require.NoError(t, err)
	guardian := store.guardians["guardian-1"]
	require.NotNil(t, guardian.AccountUsername)
	assert.Equal(t, "bello.tunde", *guardian.AccountUsername)
	assert.Equal(t, models.AccountCompleted, guardian.AccountStatus)
}

func TestHandleCreateAccountCollision(t *testing.T) {
	svc, store, _ := newGuardianFixture(&models.Guardian{
		ID:            "guardian-2",
		Surname:       "Bello",
		FirstName:     "Tunde",
		Email:         "tunde2@example.com",
		AccountStatus: models.AccountPending,
	})
	store.taken["bello.tunde"] = true

	err := svc.HandleCreateAccount(context.Background(), jobs.Job{Payload: "guardian-2"})
	require.NoError(t, err)
	require.NotNil(t, store.guardians["guardian-2"].AccountUsername)
	assert.Equal(t, "bello.tunde1", *store.guardians["guardian-2"].AccountUsername)
}

func TestHandleCreateAccountRedeliveryIsNoop(t *testing.T) {
	username := "bello.tunde"
	svc, store, _ := newGuardianFixture(&models.Guardian{
		ID:              "guardian-1",
		AccountUsername: &username,
		AccountStatus:   models.AccountCompleted,
	})

	err := svc.HandleCreateAccount(context.Background(), jobs.Job{Payload: "guardian-1"})
	require.NoError(t, err)
	assert.Equal(t, 0, store.claims)
}

func TestHandleCreateAccountFallsBackToEmail(t *testing.T) {
	svc, store, _ := newGuardianFixture(&models.Guardian{
		ID:            "guardian-3",
		Email:         "Mr.Smith+kids@example.com",
		AccountStatus: models.AccountPending,
	})

	err := svc.HandleCreateAccount(context.Background(), jobs.Job{Payload: "guardian-3"})
	require.NoError(t, err)
	require.NotNil(t, store.guardians["guardian-3"].AccountUsername)
	assert.Equal(t, "mr.smithkids", *store.guardians["guardian-3"].AccountUsername)
}

func TestHandleSendWelcome(t *testing.T) {
	username := "bello.tunde"
	svc, _, mailer := newGuardianFixture(&models.Guardian{
		ID:              "guardian-1",
		Surname:         "Bello",
		FirstName:       "Tunde",
		Email:           "tunde@example.com",
		AccountUsername: &username,
	})

	err := svc.HandleSendWelcome(context.Background(), jobs.Job{Payload: "guardian-1"})
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"tunde@example.com"}, mailer.sent[0].Recipients)
	assert.Contains(t, mailer.sent[0].Body, "bello.tunde")
}

func TestSanitizeUsername(t *testing.T) {
	assert.Equal(t, "bello.tunde", sanitizeUsername(" Bello.Tunde "))
	assert.Equal(t, "obrien", sanitizeUsername("O'Brien"))
	assert.Equal(t, "", sanitizeUsername("..."))
}
