package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/schoolsuite/sms-core-api/internal/models"
	"github.com/schoolsuite/sms-core-api/pkg/jobs"
	"github.com/schoolsuite/sms-core-api/pkg/mail"
)

type guardianAccountStore interface {
	GetByID(ctx context.Context, id string) (*models.Guardian, error)
	ClaimAccountCreation(ctx context.Context, id string) (*models.Guardian, bool, error)
	SetAccount(ctx context.Context, id, username string) error
	SetAccountStatus(ctx context.Context, id string, status models.AccountStatus) error
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// GuardianService provisions guardian portal accounts in the background.
// Both handlers are idempotent: a redelivered job finds the work claimed or
// done and exits without side effects.
type GuardianService struct {
	guardians  guardianAccountStore
	mailer     mail.Mailer
	logger     *zap.Logger
	schoolName string
}

// NewGuardianService wires guardian account dependencies.
func NewGuardianService(guardians guardianAccountStore, mailer mail.Mailer, schoolName string, logger *zap.Logger) *GuardianService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuardianService{
		guardians:  guardians,
		mailer:     mailer,
		logger:     logger,
		schoolName: schoolName,
	}
}

// RegisterHandlers binds the guardian tasks onto the queue.
func (s *GuardianService) RegisterHandlers(q *jobs.Queue) {
	q.Register(jobs.TaskCreateGuardianAccount, s.HandleCreateAccount)
	q.Register(jobs.TaskSendGuardianWelcome, s.HandleSendWelcome)
}

// HandleCreateAccount assigns a unique portal username to a guardian. The
// job payload is the guardian ID.
func (s *GuardianService) HandleCreateAccount(ctx context.Context, job jobs.Job) error {
	guardian, claimed, err := s.guardians.ClaimAccountCreation(ctx, job.Payload)
	if err != nil {
		return fmt.Errorf("claim guardian %s: %w", job.Payload, err)
	}
	if !claimed {
		s.logger.Debug("guardian account already handled",
			zap.String("guardian_id", guardian.ID),
			zap.String("account_status", string(guardian.AccountStatus)))
		return nil
	}

	username, err := s.nextUsername(ctx, guardian)
	if err != nil {
		if serr := s.guardians.SetAccountStatus(ctx, guardian.ID, models.AccountFailed); serr != nil {
			s.logger.Warn("mark guardian account failed",
				zap.String("guardian_id", guardian.ID), zap.Error(serr))
		}
		return err
	}
	if err := s.guardians.SetAccount(ctx, guardian.ID, username); err != nil {
		return err
	}
	s.logger.Info("guardian account created",
		zap.String("guardian_id", guardian.ID),
		zap.String("username", username))
	return nil
}

// HandleSendWelcome mails the guardian their portal details. Best effort:
// delivery failure is retried by the queue, not surfaced to any request.
func (s *GuardianService) HandleSendWelcome(ctx context.Context, job jobs.Job) error {
	guardian, err := s.guardians.GetByID(ctx, job.Payload)
	if err != nil {
		return fmt.Errorf("load guardian %s: %w", job.Payload, err)
	}
	if guardian.Email == "" {
		return nil
	}
	username := "(pending)"
	if guardian.AccountUsername != nil {
		username = *guardian.AccountUsername
	}
	msg := mail.Message{
		Subject: fmt.Sprintf("Welcome to the %s guardian portal", s.schoolName),
		Body: fmt.Sprintf("Dear %s,\n\nA guardian portal account has been prepared for you. "+
			"Your username is %s. Use the password reset option on first login.\n\n%s",
			guardian.FullName(), username, s.schoolName),
		Recipients: []string{guardian.Email},
	}
	return s.mailer.Send(ctx, msg)
}

// nextUsername derives surname.firstname, falling back to the email local
// part, and suffixes a counter until the username is free.
func (s *GuardianService) nextUsername(ctx context.Context, guardian *models.Guardian) (string, error) {
	base := sanitizeUsername(guardian.Surname + "." + guardian.FirstName)
	if base == "" || base == "." {
		base = sanitizeUsername(strings.SplitN(guardian.Email, "@", 2)[0])
	}
	if base == "" {
		return "", fmt.Errorf("guardian %s has no usable name or email", guardian.ID)
	}

	candidate := base
	for i := 1; i <= 50; i++ {
		taken, err := s.guardians.ExistsByUsername(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
	return "", fmt.Errorf("no free username for base %q", base)
}

func sanitizeUsername(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), ".")
}
