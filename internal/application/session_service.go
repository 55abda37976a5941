package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/natours/natours-api/config"
	"github.com/natours/natours-api/internal/domain/entity"
	"github.com/natours/natours-api/internal/domain/notification"
	repo "github.com/natours/natours-api/internal/domain/repository"
	"github.com/natours/natours-api/pkg/apperror"
	"github.com/natours/natours-api/pkg/helpers"
	mailtpl "github.com/natours/natours-api/pkg/mailer/templates"
)

const (
	resetSecretBytes = 32
	rollbackTimeout  = 5 * time.Second

	msgIncorrectCredentials = "incorrect email or password"
)

// Session is an issued bearer token and its expiry.
type Session struct {
	Token     string
	ExpiresAt time.Time
	// TTL is the token lifetime; cookies carrying the token use it as max age.
	TTL     time.Duration
	Account *entity.Account
}

type SignupInput struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
}

type ResetPasswordInput struct {
	Token           string
	Password        string
	PasswordConfirm string
}

type UpdatePasswordInput struct {
	PasswordCurrent string
	Password        string
	PasswordConfirm string
}

// SessionService issues sessions and runs the password flows.
type SessionService struct {
	accounts repo.AccountRepository
	hasher   *helpers.PasswordHasher
	tokens   *helpers.TokenCodec
	mail     notification.Dispatcher
	logger   *logrus.Logger

	resetTTL time.Duration
	appName  string
	now      func() time.Time
	random   io.Reader
}

type SessionOption func(*SessionService)

func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionService) { s.now = now }
}

// WithRandom replaces the source of reset secrets.
func WithRandom(r io.Reader) SessionOption {
	return func(s *SessionService) { s.random = r }
}

func WithAppName(name string) SessionOption {
	return func(s *SessionService) { s.appName = name }
}

func NewSessionService(accounts repo.AccountRepository, hasher *helpers.PasswordHasher, tokens *helpers.TokenCodec, mail notification.Dispatcher, auth config.AuthConfig, logger *logrus.Logger, opts ...SessionOption) *SessionService {
	s := &SessionService{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		mail:     mail,
		logger:   logger,
		resetTTL: auth.ResetTTL,
		appName:  "Natours",
		now:      time.Now,
		random:   rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resetTTL <= 0 {
		s.resetTTL = 10 * time.Minute
	}
	return s
}

// Signup validates, hashes and stores a new account with the default role,
// then issues a session.
func (s *SessionService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	fields := map[string]string{
		"name":            in.Name,
		"email":           strings.TrimSpace(in.Email),
		"password":        in.Password,
		"passwordConfirm": in.PasswordConfirm,
	}
	if bad := SignupRules().Validate(fields); bad != nil {
		return nil, apperror.Validation(bad)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	a := &entity.Account{
		Name:         strings.TrimSpace(in.Name),
		Email:        entity.NormalizeEmail(in.Email),
		Role:         entity.RoleUser,
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, storeError(err, "account not found")
	}
	s.logger.WithField("account_id", a.ID).Info("account created")
	return s.issue(a)
}

// Login answers both unknown email and wrong password with the same error.
func (s *SessionService) Login(ctx context.Context, email, password string) (*Session, error) {
	if bad := LoginRules().Validate(map[string]string{"email": strings.TrimSpace(email), "password": password}); bad != nil {
		return nil, apperror.Validation(bad)
	}

	a, err := s.accounts.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		s.hasher.DummyVerify(ctx, password)
		return nil, apperror.New(apperror.KindInvalidCredentials, msgIncorrectCredentials)
	case err != nil:
		return nil, apperror.Internal(err)
	}
	if !s.hasher.Verify(ctx, a.PasswordHash, password) {
		return nil, apperror.New(apperror.KindInvalidCredentials, msgIncorrectCredentials)
	}
	return s.issue(a)
}

// Logout tells the client to replace its token with a short-lived sentinel.
// Tokens are stateless, so nothing is revoked server-side.
func (s *SessionService) Logout() helpers.CookieInstruction {
	return helpers.LogoutInstruction()
}

// ForgotPassword stores the hash of a fresh reset secret and mails the raw
// secret inside resetURLBase/<secret>. If the mail cannot be handed off the
// ticket is removed again and ServiceUnavailable is returned.
func (s *SessionService) ForgotPassword(ctx context.Context, email, resetURLBase string) error {
	if bad := ForgotPasswordRules().Validate(map[string]string{"email": strings.TrimSpace(email)}); bad != nil {
		return apperror.Validation(bad)
	}
	a, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return storeError(err, "there is no user with that email address")
	}

	raw, hash, err := s.newResetSecret()
	if err != nil {
		return apperror.Internal(err)
	}
	expiresAt := s.now().Add(s.resetTTL)
	resetURL := strings.TrimRight(resetURLBase, "/") + "/" + raw
	subject, body, err := mailtpl.Render(mailtpl.ForgotPassword, mailtpl.NewForgotPasswordData(s.appName, resetURL,
		mailtpl.WithName(a.Name), mailtpl.WithEmail(a.Email), mailtpl.WithExpiry(expiresAt, s.resetTTL)))
	if err != nil {
		return apperror.Internal(err)
	}

	ticket := &entity.ResetTicket{TokenHash: hash, ExpiresAt: expiresAt}
	if _, err := s.accounts.UpdateFields(ctx, a.ID, entity.AccountPatch{Reset: ticket}); err != nil {
		return storeError(err, "there is no user with that email address")
	}

	if err := s.mail.Send(ctx, a.Email, subject, body); err != nil {
		log := s.logger.WithError(err).WithField("account_id", a.ID)
		log.Warn("reset email dispatch failed; clearing reset ticket")
		// The rollback must finish even when the request is already gone.
		rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
		defer cancel()
		if _, rbErr := s.accounts.UpdateFields(rbCtx, a.ID, entity.AccountPatch{ClearReset: true}); rbErr != nil {
			log.WithField("rollback_error", rbErr.Error()).Error("reset ticket rollback failed")
		}
		return apperror.Wrap(err, apperror.KindServiceUnavailable, "there was an error sending the email, try again later")
	}
	return nil
}

// ResetPassword consumes a reset secret. No matching, unexpired ticket fails
// immediately with InvalidOrExpiredToken. The write is pinned to the ticket, so
// of two concurrent submissions of one secret only the first succeeds.
func (s *SessionService) ResetPassword(ctx context.Context, in ResetPasswordInput) (*Session, error) {
	hash := HashResetSecret(in.Token)
	now := s.now()
	a, err := s.accounts.FindByResetToken(ctx, hash, now)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errResetTokenInvalid()
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}

	updated, err := s.setPassword(ctx, a.ID, in.Password, in.PasswordConfirm, entity.AccountPatch{
		ClearReset:  true,
		ExpectReset: &entity.ResetExpectation{TokenHash: hash, At: now},
	})
	if err != nil {
		return nil, err
	}
	return s.issue(updated)
}

func errResetTokenInvalid() error {
	return apperror.New(apperror.KindInvalidOrExpiredToken, "token is invalid or has expired")
}

// UpdatePassword changes the password of an authenticated account after
// checking the current one.
func (s *SessionService) UpdatePassword(ctx context.Context, accountID string, in UpdatePasswordInput) (*Session, error) {
	if in.PasswordCurrent == "" {
		return nil, apperror.Validation(map[string]string{"passwordCurrent": "is required"})
	}
	a, err := s.accounts.FindByID(ctx, accountID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, apperror.Unauthenticated("account no longer exists")
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if !s.hasher.Verify(ctx, a.PasswordHash, in.PasswordCurrent) {
		return nil, apperror.New(apperror.KindWrongPassword, "your current password is wrong")
	}

	updated, err := s.setPassword(ctx, a.ID, in.Password, in.PasswordConfirm, entity.AccountPatch{})
	if err != nil {
		return nil, err
	}
	return s.issue(updated)
}

// setPassword is the only path that writes a password hash after signup.
func (s *SessionService) setPassword(ctx context.Context, id, password, confirm string, patch entity.AccountPatch) (*entity.Account, error) {
	if bad := PasswordRules().Validate(map[string]string{"password": password, "passwordConfirm": confirm}); bad != nil {
		return nil, apperror.Validation(bad)
	}
	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	changedAt := s.now()
	patch.PasswordHash = &hash
	patch.PasswordChangedAt = &changedAt

	a, err := s.accounts.UpdateFields(ctx, id, patch)
	if err != nil {
		return nil, storeError(err, "account no longer exists")
	}
	s.logger.WithField("account_id", id).Info("password changed")
	return a, nil
}

func (s *SessionService) issue(a *entity.Account) (*Session, error) {
	token, exp, err := s.tokens.Sign(a.ID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("sign token: %w", err))
	}
	return &Session{Token: token, ExpiresAt: exp, TTL: s.tokens.TTL(), Account: a}, nil
}

func (s *SessionService) newResetSecret() (raw, hash string, err error) {
	b := make([]byte, resetSecretBytes)
	if _, err := io.ReadFull(s.random, b); err != nil {
		return "", "", fmt.Errorf("read reset secret: %w", err)
	}
	raw = hex.EncodeToString(b)
	return raw, HashResetSecret(raw), nil
}

// HashResetSecret is the one-way transform stored in place of a reset secret.
func HashResetSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// storeError maps repository errors to API errors. Errors that already carry
// a kind, such as query validation failures, pass through.
func storeError(err error, notFound string) error {
	var appErr *apperror.Error
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return apperror.NotFound(notFound)
	case errors.Is(err, repo.ErrDuplicateEmail):
		return apperror.Conflict("email already in use")
	case errors.Is(err, entity.ErrResetTicketGone):
		return errResetTokenInvalid()
	case errors.As(err, &appErr):
		return err
	}
	return apperror.Internal(err)
}
