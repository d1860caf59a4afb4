// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"codeberg.org/oliverandrich/storefront/internal/config"
	"codeberg.org/oliverandrich/storefront/internal/models"
	"codeberg.org/oliverandrich/storefront/internal/repository"
	"codeberg.org/oliverandrich/storefront/internal/services/cipher"
	"codeberg.org/oliverandrich/storefront/internal/services/otp"
	"codeberg.org/oliverandrich/storefront/internal/services/recovery"
	"codeberg.org/oliverandrich/storefront/internal/services/replay"
	"codeberg.org/oliverandrich/storefront/internal/services/token"
	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is the bcrypt input limit; the pepper counts against it.
const maxPasswordBytes = 72

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

// Notifier informs account owners about security relevant events.
type Notifier interface {
	RecoveryCodeUsed(ctx context.Context, email string, remaining int) error
	TwoFactorDisabled(ctx context.Context, email string) error
}

// ReplayGuard remembers spent step-up tokens.
type ReplayGuard interface {
	Consume(ctx context.Context, jti string, userID int64, expiresAt time.Time) (bool, error)
}

// Service implements registration, login, two-factor authentication and
// account recovery.
type Service struct {
	repo     *repository.Repository
	config   *config.AuthConfig
	cipher   *cipher.Cipher
	tokens   *token.Issuer
	otp      *otp.Engine
	recovery *recovery.Service
	replay   ReplayGuard
	notifier Notifier
}

// Option configures optional collaborators of the Service.
type Option func(*Service)

// WithNotifier sends security notifications through n.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithReplayGuard replaces the database backed step-up replay guard.
func WithReplayGuard(g ReplayGuard) Option {
	return func(s *Service) { s.replay = g }
}

func NewService(repo *repository.Repository, cfg *config.AuthConfig, c *cipher.Cipher, tokens *token.Issuer, engine *otp.Engine, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		config:   cfg,
		cipher:   c,
		tokens:   tokens,
		otp:      engine,
		recovery: recovery.NewService(),
		replay:   replay.NewSQLGuard(repo),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session is the result of a successful authentication.
type Session struct {
	Token    string
	Username string
	Email    string
	Address  string
}

// LoginResult holds either a full session or, when a one-time code is still
// required, a step-up token.
type LoginResult struct {
	Session     *Session
	StepUpToken string
}

// OTPRequired reports whether the client must call VerifyOTP next.
func (r *LoginResult) OTPRequired() bool {
	return r.Session == nil
}

// Profile is the public view of an account.
type Profile struct {
	Username         string
	Email            string
	Address          string
	TwoFactorEnabled bool
}

// RegisterParams holds the parameters for user registration
type RegisterParams struct {
	Name     string
	Email    string
	Password string
	Address  string
}

// Register creates a new account and returns a session for it. A taken email
// is reported before any other problem with the input.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*Session, error) {
	email := strings.TrimSpace(params.Email)

	if email != "" {
		exists, err := s.repo.EmailExists(ctx, email)
		if err != nil {
			return nil, storeError("check email", err)
		}
		if exists {
			slog.Warn("register_failed", "email", email, "reason", "email_taken")
			return nil, ErrEmailTaken
		}
	}

	if err := requireFields(
		[2]string{"name", params.Name},
		[2]string{"email", email},
		[2]string{"password", params.Password},
		[2]string{"address", params.Address},
	); err != nil {
		return nil, err
	}

	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}

	passwordHash, err := s.hashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.CreateUser(ctx, strings.TrimSpace(params.Name), email, passwordHash, strings.TrimSpace(params.Address))
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, storeError("create user", err)
	}

	slog.Info("register_success", "user_id", user.ID, "email", email)

	return s.newSession(user)
}

// Login authenticates by email and password. Accounts with two-factor
// authentication need otpCode; without it a step-up token is returned.
func (s *Service) Login(ctx context.Context, email, password, otpCode string) (*LoginResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform bcrypt comparison to prevent timing attacks
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password+s.config.Pepper))
			slog.Warn("login_failed", "email", email, "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, storeError("get user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password+s.config.Pepper)); err != nil {
		slog.Warn("login_failed", "email", email, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	if !user.TwoFactorEnabled() {
		session, err := s.newSession(user)
		if err != nil {
			return nil, err
		}
		slog.Info("login_success", "user_id", user.ID, "email", user.Email)
		return &LoginResult{Session: session}, nil
	}

	if strings.TrimSpace(otpCode) == "" {
		stepUp, err := s.tokens.IssueStepUp(user.ID)
		if err != nil {
			return nil, fmt.Errorf("issue step-up token: %w", err)
		}
		slog.Info("login_otp_required", "user_id", user.ID)
		return &LoginResult{StepUpToken: stepUp}, nil
	}

	if err := s.checkUserOTP(user, otpCode); err != nil {
		slog.Warn("login_failed", "email", email, "reason", "invalid_otp")
		return nil, err
	}

	session, err := s.newSession(user)
	if err != nil {
		return nil, err
	}
	slog.Info("login_success", "user_id", user.ID, "email", user.Email, "two_factor", true)
	return &LoginResult{Session: session}, nil
}

// VerifyOTP completes a login that returned a step-up token. Each step-up
// token yields at most one session.
func (s *Service) VerifyOTP(ctx context.Context, stepUpToken, otpCode string) (*Session, error) {
	claims, err := s.tokens.Parse(stepUpToken, token.KindStepUp)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if err := requireFields([2]string{"otp", otpCode}); err != nil {
		return nil, err
	}

	user, err := s.getUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !user.TwoFactorEnabled() {
		return nil, ErrTwoFactorNotEnabled
	}

	if err := s.checkUserOTP(user, otpCode); err != nil {
		slog.Warn("verify_otp_failed", "user_id", user.ID)
		return nil, err
	}

	fresh, err := s.replay.Consume(ctx, claims.ID, user.ID, claims.ExpiresAt.Time)
	if err != nil {
		return nil, storeError("consume step-up token", err)
	}
	if !fresh {
		slog.Warn("verify_otp_failed", "user_id", user.ID, "reason", "step_up_reused")
		return nil, ErrStepUpUsed
	}

	slog.Info("login_success", "user_id", user.ID, "email", user.Email, "two_factor", true)
	return s.newSession(user)
}

// ParseSession validates a full session token.
func (s *Service) ParseSession(tokenString string) (*token.Claims, error) {
	claims, err := s.tokens.Parse(tokenString, token.KindSession)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UpdateAddress replaces the shipping address of a user.
func (s *Service) UpdateAddress(ctx context.Context, userID int64, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return ErrAddressRequired
	}

	if err := s.repo.UpdateUserAddress(ctx, userID, address); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return storeError("update address", err)
	}

	slog.Info("address_updated", "user_id", userID)
	return nil
}

// Profile returns the account details of a user.
func (s *Service) Profile(ctx context.Context, userID int64) (*Profile, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Profile{
		Username:         user.Username,
		Email:            user.Email,
		Address:          user.Address,
		TwoFactorEnabled: user.TwoFactorEnabled(),
	}, nil
}

func (s *Service) getUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeError("get user", err)
	}
	return user, nil
}

func (s *Service) hashPassword(password string) (string, error) {
	peppered := password + s.config.Pepper
	if len(peppered) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	cost := s.config.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(peppered), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// checkUserOTP verifies code against the user's stored secret.
func (s *Service) checkUserOTP(user *models.User, code string) error {
	secret, err := s.cipher.Decrypt(user.TwoFactorSecret.String)
	if err != nil {
		return decryptError(err)
	}

	ok, err := s.otp.Verify(secret, code)
	if err != nil {
		return decryptError(err)
	}
	if !ok {
		return ErrIncorrectCode
	}
	return nil
}

func (s *Service) newSession(user *models.User) (*Session, error) {
	signed, err := s.tokens.IssueSession(user)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}
	return &Session{
		Token:    signed,
		Username: user.Username,
		Email:    user.Email,
		Address:  user.Address,
	}, nil
}

func (s *Service) notify(event string, fn func(Notifier) error) {
	if s.notifier == nil {
		return
	}
	if err := fn(s.notifier); err != nil {
		slog.Error("notification_failed", "event", event, "error", err)
	}
}
