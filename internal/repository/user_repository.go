package repository

import (
	"context"
	"time"

	"github.com/kycdesk/intake-service/internal/domain"
)

// UserRepository defines persistence access for API accounts. Emails are
// stored normalized and unique.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	// GetByResetToken finds the account holding tokenHash whose expiry is after now.
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error)
	// UpdatePassword replaces the hash and clears any pending reset token.
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}
