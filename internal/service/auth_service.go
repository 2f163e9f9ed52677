package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kycdesk/intake-service/internal/auth"
	"github.com/kycdesk/intake-service/internal/config"
	"github.com/kycdesk/intake-service/internal/domain"
	"github.com/kycdesk/intake-service/internal/events"
	"github.com/kycdesk/intake-service/internal/formdata"
	"github.com/kycdesk/intake-service/internal/repository"
	apperrors "github.com/kycdesk/intake-service/pkg/util/errorutil"
)

// AuthService coordinates registration, login and password reset flows.
type AuthService struct {
	users        repository.UserRepository
	tokens       *auth.TokenManager
	publisher    EventPublisher
	logger       *zap.Logger
	bcryptCost   int
	tokenTTL     time.Duration
	rememberTTL  time.Duration
	resetTTL     time.Duration
	publicWebURL string
	mailEnabled  bool
	now          func() time.Time
	// dummyHash is compared against for unknown emails.
	dummyHash string
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	UserRepo  repository.UserRepository
	Tokens    *auth.TokenManager
	Publisher EventPublisher
	Logger    *zap.Logger
	Now       func() time.Time
}

// SignupInput is the signup payload.
type SignupInput struct {
	Name     string
	Email    string
	Password string
	Tel      string
}

// AuthResult is returned by signup and signin.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tokens := deps.Tokens
	if tokens == nil {
		tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL()).WithClock(now)
	}
	dummy, err := auth.HashPassword(uuid.NewString(), cfg.Auth.BcryptCost)
	if err != nil {
		logger.Warn("failed to prepare dummy password hash", zap.Error(err))
	}
	return &AuthService{
		users:        deps.UserRepo,
		tokens:       tokens,
		publisher:    deps.Publisher,
		logger:       logger,
		bcryptCost:   cfg.Auth.BcryptCost,
		tokenTTL:     cfg.Auth.TokenTTL(),
		rememberTTL:  cfg.Auth.RememberTTL(),
		resetTTL:     cfg.Auth.PasswordResetTTL(),
		publicWebURL: strings.TrimRight(cfg.App.PublicWebURL, "/"),
		mailEnabled:  cfg.Mail.Enabled,
		now:          now,
		dummyHash:    dummy,
	}
}

// Signup creates an account and opens a session for it.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*AuthResult, error) {
	name := strings.TrimSpace(input.Name)
	email := domain.NormalizeEmail(input.Email)
	if name == "" || email == "" || input.Password == "" {
		return nil, apperrors.NewValidationError("name, email and password are required", nil)
	}
	if !formdata.IsEmail(email) {
		return nil, apperrors.NewValidationError("invalid email address", map[string]any{"field": "email"})
	}
	if err := auth.ValidatePassword(input.Password); err != nil {
		return nil, ErrWeakPassword
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		Tel:          strings.TrimSpace(input.Tel),
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return s.issue(user, s.tokenTTL)
}

// Signin authenticates by email and password. Unknown emails and wrong
// passwords fail identically.
func (s *AuthService) Signin(ctx context.Context, email, password string, remember bool) (*AuthResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInternalError(err)
		}
		_ = auth.ComparePassword(s.dummyHash, password)
		return nil, ErrInvalidCredentials
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	ttl := s.tokenTTL
	if remember {
		ttl = s.rememberTTL
	}
	return s.issue(user, ttl)
}

// Me resolves a session token to its account.
func (s *AuthService) Me(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, ErrUnauthorized
	}
	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

// ForgotPassword stores a reset token for a registered email and mails the
// link in the background. The outcome is the same for unknown emails.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return apperrors.NewValidationError("email is required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	token, hash, err := auth.NewResetToken()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	expiresAt := s.now().UTC().Add(s.resetTTL)
	if err := s.users.SetResetToken(ctx, user.ID, hash, expiresAt); err != nil {
		return apperrors.NewInternalError(err)
	}

	if !s.mailEnabled || s.publisher == nil {
		s.logger.Info("password reset requested; mail disabled", zap.String("user_id", user.ID))
		return nil
	}
	s.publisher.Publish(events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventPasswordResetRequested,
		SubjectID: user.ID,
		Timestamp: s.now().UTC(),
		Payload: events.PasswordResetPayload{
			Email:     user.Email,
			Name:      user.Name,
			ResetURL:  s.publicWebURL + "/reset-password?token=" + url.QueryEscape(token),
			ExpiresIn: s.resetTTL,
		},
	})
	return nil
}

// ResetPassword replaces the password of the account holding an unexpired
// reset token and clears the token.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return apperrors.NewValidationError("token and password are required", nil)
	}

	user, err := s.users.GetByResetToken(ctx, auth.HashResetToken(token), s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return apperrors.NewInternalError(err)
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return ErrWeakPassword
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return apperrors.NewInternalError(err)
	}
	s.logger.Info("password reset", zap.String("user_id", user.ID))
	return nil
}

func (s *AuthService) issue(user *domain.User, ttl time.Duration) (*AuthResult, error) {
	token, exp, err := s.tokens.GenerateToken(user.ID, user.Email, ttl)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{Token: token, ExpiresAt: exp, User: user}, nil
}
