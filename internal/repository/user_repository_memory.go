package repository

import (
	"context"
	"sync"
	"time"

	"github.com/kycdesk/intake-service/internal/domain"
)

type memoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string
	now     func() time.Time
}

// NewMemoryUserRepository returns a process-local user repository.
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (r *memoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := domain.NormalizeEmail(user.Email)
	if _, ok := r.byEmail[email]; ok {
		return ErrDuplicate
	}
	if _, ok := r.byID[user.ID]; ok {
		return ErrDuplicate
	}
	now := r.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	stored := *user
	stored.Email = email
	r.byID[user.ID] = &stored
	r.byEmail[email] = user.ID
	return nil
}

func (r *memoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(id)
}

func (r *memoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return r.get(id)
}

func (r *memoryUserRepository) SetResetToken(_ context.Context, userID, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return ErrNotFound
	}
	hash, exp := tokenHash, expiresAt
	u.ResetTokenHash, u.ResetTokenExpiresAt = &hash, &exp
	u.UpdatedAt = r.now().UTC()
	return nil
}

func (r *memoryUserRepository) GetByResetToken(_ context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, u := range r.byID {
		if u.ResetTokenHash == nil || u.ResetTokenExpiresAt == nil {
			continue
		}
		if *u.ResetTokenHash == tokenHash && u.ResetTokenExpiresAt.After(now) {
			return r.get(id)
		}
	}
	return nil, ErrNotFound
}

func (r *memoryUserRepository) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.ResetTokenHash, u.ResetTokenExpiresAt = nil, nil
	u.UpdatedAt = r.now().UTC()
	return nil
}

// get returns a copy of the stored user; callers hold the lock.
func (r *memoryUserRepository) get(id string) (*domain.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	if u.ResetTokenHash != nil {
		h := *u.ResetTokenHash
		out.ResetTokenHash = &h
	}
	if u.ResetTokenExpiresAt != nil {
		e := *u.ResetTokenExpiresAt
		out.ResetTokenExpiresAt = &e
	}
	return &out, nil
}
