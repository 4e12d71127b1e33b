package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"complaint-service/internal/account"
	"complaint-service/internal/events"
	"complaint-service/internal/mailer"
	"complaint-service/internal/token"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingIdentifier = errors.New("missing email address or username")
	ErrMissingCredential = errors.New("missing password")
	ErrNoSuchAccount     = errors.New("no account found with this email address or username")
	ErrInvalidCredential = errors.New("invalid password")
	ErrEmailUnverified   = errors.New("email address not verified")

	ErrUsernameExists  = errors.New("username already exists")
	ErrEmailExists     = errors.New("email already exists")
	ErrStudentIDExists = errors.New("student ID already exists")
	ErrCreateFailed    = errors.New("could not create account")

	ErrInvalidLink    = errors.New("invalid or expired link")
	ErrEmailNotFound  = errors.New("no account found with this email address")
	ErrEmailAmbiguous = errors.New("multiple accounts share this email address")
)

type Service struct {
	accounts     *account.Repository
	verifyTokens *token.Generator
	resetTokens  *token.Generator
	sender       mailer.Sender
	producer     events.Producer
	baseURL      string
	logger       *slog.Logger
	now          func() time.Time
}

func NewService(
	accounts *account.Repository,
	verifyTokens *token.Generator,
	resetTokens *token.Generator,
	sender mailer.Sender,
	producer events.Producer,
	baseURL string,
	logger *slog.Logger,
) *Service {
	return &Service{
		accounts:     accounts,
		verifyTokens: verifyTokens,
		resetTokens:  resetTokens,
		sender:       sender,
		producer:     producer,
		baseURL:      strings.TrimRight(baseURL, "/"),
		logger:       logger,
		now:          time.Now,
	}
}

// Login resolves an identifier (username or email) plus password to an
// authenticated identity. Failures are classified in a fixed priority order
// so exactly one message surfaces per attempt.
func (s *Service) Login(ctx context.Context, identifier, password string) (account.Identity, error) {
	if identifier == "" {
		return account.Identity{}, ErrMissingIdentifier
	}
	if password == "" {
		return account.Identity{}, ErrMissingCredential
	}

	username := identifier
	if strings.Contains(identifier, "@") {
		if resolved, ok, err := s.resolveEmail(ctx, identifier); err != nil {
			return account.Identity{}, err
		} else if ok {
			username = resolved
		}
		// No email match: fall through with the literal identifier, which
		// will fail the lookup below with "no such account".
	}

	acct, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return account.Identity{}, ErrNoSuchAccount
		}
		return account.Identity{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return account.Identity{}, ErrInvalidCredential
	}
	if !acct.IsActive {
		// Deactivated accounts cannot sign in.
		return account.Identity{}, ErrInvalidCredential
	}

	profile, err := s.accounts.GetProfileByAccount(ctx, acct.ID)
	if err != nil {
		if !errors.Is(err, account.ErrProfileNotFound) {
			return account.Identity{}, err
		}
		// Accounts created before profiles existed: provision one on first
		// login, pre-verified so they are not locked out.
		profile, err = s.provisionProfile(ctx, acct)
		if err != nil {
			return account.Identity{}, err
		}
	}

	if !profile.EmailVerified {
		return account.Identity{}, ErrEmailUnverified
	}

	acct.LastLogin = s.now()
	if err := s.accounts.Update(ctx, acct); err != nil {
		return account.Identity{}, err
	}

	return account.Identity{Account: acct, Profile: profile}, nil
}

// resolveEmail maps an email identifier to a username. With several accounts
// on the same email it prefers the most-recently-created active account, then
// the most-recently-created overall.
func (s *Service) resolveEmail(ctx context.Context, email string) (string, bool, error) {
	accts, err := s.accounts.GetAllByEmail(ctx, email)
	if err != nil {
		return "", false, err
	}
	if len(accts) == 0 {
		return "", false, nil
	}
	for _, acct := range accts {
		if acct.IsActive {
			return acct.Username, true, nil
		}
	}
	return accts[0].Username, true, nil
}

func (s *Service) provisionProfile(ctx context.Context, acct *account.Account) (*account.Profile, error) {
	role := account.RoleStudent
	if acct.IsSuperuser {
		role = account.RoleAdmin
	}
	profile := &account.Profile{
		AccountID:     acct.ID,
		FullName:      acct.Username,
		Role:          role,
		EmailVerified: true,
	}
	if err := s.accounts.InsertProfile(ctx, profile); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "auto-provisioned profile",
		"username", acct.Username,
		"role", role,
	)
	return profile, nil
}

// Register creates a new Account plus a student Profile. Uniqueness is
// checked up front; a race against a concurrent registration is caught by
// the storage constraints and classified from the violation text.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*account.Account, error) {
	if taken, err := s.accounts.ExistsUsername(ctx, req.Username); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrUsernameExists
	}
	if taken, err := s.accounts.ExistsEmail(ctx, req.Email); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrEmailExists
	}
	if req.StudentID != "" {
		if taken, err := s.accounts.ExistsStudentID(ctx, req.StudentID); err != nil {
			return nil, err
		} else if taken {
			return nil, ErrStudentIDExists
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	acct := &account.Account{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    s.now(),
	}
	if err := s.accounts.Insert(ctx, acct); err != nil {
		return nil, classifyCreateError(err)
	}

	profile := &account.Profile{
		AccountID:     acct.ID,
		FullName:      req.FullName,
		Role:          account.RoleStudent,
		StudentID:     req.StudentID,
		EmailVerified: false,
	}
	if err := s.accounts.InsertProfile(ctx, profile); err != nil {
		return nil, classifyCreateError(err)
	}

	// Delivery failures must not undo a successful registration; the user
	// can request another link via password reset support channels.
	if err := s.sendVerificationEmail(ctx, acct, profile.FullName); err != nil {
		s.logger.ErrorContext(ctx, "failed to send verification email",
			"username", acct.Username,
			"error", err,
		)
	}

	s.publish(fmt.Sprintf("account-%d", acct.ID), events.AccountRegistered{
		AccountID: acct.ID,
		Username:  acct.Username,
		Email:     acct.Email,
		At:        s.now(),
	})

	return acct, nil
}

// classifyCreateError inspects a storage violation and maps it to the
// duplicate field. Postgres reports SQLSTATE 23505 with the constraint name;
// sqlite reports "UNIQUE constraint failed: table.column".
func classifyCreateError(err error) error {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "unique") && !strings.Contains(msg, "duplicate") {
		return fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}
	switch {
	case strings.Contains(msg, "student_id"):
		return ErrStudentIDExists
	case strings.Contains(msg, "email"):
		return ErrEmailExists
	case strings.Contains(msg, "username"):
		return ErrUsernameExists
	default:
		return fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}
}

func (s *Service) sendVerificationEmail(ctx context.Context, acct *account.Account, name string) error {
	actionURL := fmt.Sprintf("%s/auth/verify-email/%s/%s",
		s.baseURL,
		token.EncodeUID(acct.ID),
		s.verifyTokens.Make(acct),
	)
	subject, htmlBody, textBody, err := mailer.VerificationEmail(name, actionURL)
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, acct.Email, subject, htmlBody, textBody)
}

// VerifyEmail validates a verification link and marks the profile verified.
// All token failures collapse into ErrInvalidLink.
func (s *Service) VerifyEmail(ctx context.Context, uid, tok string) error {
	acct, err := s.checkLink(ctx, s.verifyTokens, uid, tok)
	if err != nil {
		return err
	}

	profile, err := s.accounts.GetProfileByAccount(ctx, acct.ID)
	if err != nil {
		if errors.Is(err, account.ErrProfileNotFound) {
			return account.ErrProfileNotFound
		}
		return err
	}

	profile.EmailVerified = true
	if err := s.accounts.UpdateProfile(ctx, profile); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "email verified", "username", acct.Username)
	return nil
}

// RequestPasswordReset emails a reset link. With duplicate emails no link is
// sent; the user must contact support with their username instead.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	accts, err := s.accounts.GetAllByEmail(ctx, email)
	if err != nil {
		return err
	}
	switch len(accts) {
	case 0:
		return ErrEmailNotFound
	case 1:
	default:
		return ErrEmailAmbiguous
	}

	acct := &accts[0]
	profile, err := s.accounts.GetProfileByAccount(ctx, acct.ID)
	name := acct.Username
	if err == nil && profile.FullName != "" {
		name = profile.FullName
	}

	actionURL := fmt.Sprintf("%s/auth/password-reset/%s/%s",
		s.baseURL,
		token.EncodeUID(acct.ID),
		s.resetTokens.Make(acct),
	)
	subject, htmlBody, textBody, err := mailer.PasswordResetEmail(name, actionURL)
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, acct.Email, subject, htmlBody, textBody)
}

// ConfirmPasswordReset validates a reset link and sets the new credential.
// The password change rotates the account fingerprint, so the link cannot be
// replayed.
func (s *Service) ConfirmPasswordReset(ctx context.Context, uid, tok, newPassword string) error {
	acct, err := s.checkLink(ctx, s.resetTokens, uid, tok)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	acct.PasswordHash = string(hash)
	if err := s.accounts.Update(ctx, acct); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password reset", "username", acct.Username)
	return nil
}

// checkLink resolves the uid leg and validates the token leg. It never
// reveals which of {not found, expired, wrong purpose, tampered} failed.
func (s *Service) checkLink(ctx context.Context, gen *token.Generator, uid, tok string) (*account.Account, error) {
	id, err := token.DecodeUID(uid)
	if err != nil {
		return nil, ErrInvalidLink
	}
	acct, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return nil, ErrInvalidLink
		}
		return nil, err
	}
	if !gen.Check(acct, tok) {
		return nil, ErrInvalidLink
	}
	return acct, nil
}

func (s *Service) publish(key string, event interface{}) {
	if s.producer == nil {
		return
	}
	if err := s.producer.Publish(key, event); err != nil {
		s.logger.Error("failed to publish event", "key", key, "error", err)
	}
}
