package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kycdesk/intake-service/internal/domain"
)

type pgUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation over auth.users.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &pgUserRepository{pool: pool}
}

const userColumns = `id, name, email, tel, password_hash, reset_token_hash, reset_token_expires_at, created_at, updated_at`

func (r *pgUserRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO auth.users (id, name, email, tel, password_hash)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Tel,
		user.PasswordHash,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	return translatePgError(err)
}

func (r *pgUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM auth.users WHERE id=$1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *pgUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM auth.users WHERE lower(email)=lower($1)`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *pgUserRepository) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	const query = `
        UPDATE auth.users SET reset_token_hash=$1, reset_token_expires_at=$2, updated_at=NOW()
        WHERE id=$3`

	cmd, err := r.pool.Exec(ctx, query, tokenHash, expiresAt, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgUserRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	const query = `SELECT ` + userColumns + `
        FROM auth.users WHERE reset_token_hash=$1 AND reset_token_expires_at > $2`
	return scanUser(r.pool.QueryRow(ctx, query, tokenHash, now))
}

func (r *pgUserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	const query = `
        UPDATE auth.users SET password_hash=$1, reset_token_hash=NULL, reset_token_expires_at=NULL, updated_at=NOW()
        WHERE id=$2`

	cmd, err := r.pool.Exec(ctx, query, passwordHash, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Tel,
		&user.PasswordHash,
		&user.ResetTokenHash,
		&user.ResetTokenExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, translatePgError(err)
	}
	return &user, nil
}
