package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kycdesk/intake-service/internal/domain"
)

const uniqueViolation = "23505"

type pgApplicationRepository struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresApplicationRepository returns a repository over table.
func NewPostgresApplicationRepository(pool *pgxpool.Pool, table string) ApplicationRepository {
	return &pgApplicationRepository{pool: pool, table: pgx.Identifier{table}.Sanitize()}
}

func (r *pgApplicationRepository) Insert(ctx context.Context, app *domain.Application) error {
	files, err := encodeFiles(app.Files)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
        INSERT INTO %s (id, region, applicant_type, form_key, form_data, files, edit_token, edit_until, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`, r.table)

	_, err = r.pool.Exec(ctx, query,
		app.ID,
		string(app.Region),
		string(app.ApplicantType),
		app.FormKey,
		[]byte(app.FormData),
		files,
		app.EditToken,
		app.EditUntil,
		app.CreatedAt,
		app.UpdatedAt,
	)
	return translatePgError(err)
}

func (r *pgApplicationRepository) FindByID(ctx context.Context, id string) (*domain.Application, error) {
	query := fmt.Sprintf(`
        SELECT id, region, applicant_type, form_key, form_data, files, edit_token, edit_until, created_at, updated_at
        FROM %s WHERE id=$1`, r.table)

	app, err := scanApplication(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translatePgError(err)
	}
	return app, nil
}

func (r *pgApplicationRepository) Update(ctx context.Context, app *domain.Application) error {
	files, err := encodeFiles(app.Files)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
        UPDATE %s SET form_data=$1, files=$2, updated_at=$3
        WHERE id=$4`, r.table)

	cmd, err := r.pool.Exec(ctx, query, []byte(app.FormData), files, app.UpdatedAt, app.ID)
	if err != nil {
		return translatePgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgApplicationRepository) ListRecent(ctx context.Context, limit int) ([]domain.Application, error) {
	query := fmt.Sprintf(`
        SELECT id, region, applicant_type, form_key, form_data, files, edit_token, edit_until, created_at, updated_at
        FROM %s ORDER BY updated_at DESC LIMIT $1`, r.table)

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []domain.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}
	return apps, rows.Err()
}

func scanApplication(row pgx.Row) (*domain.Application, error) {
	var (
		app           domain.Application
		region        string
		applicantType string
		formData      []byte
		files         []byte
	)
	if err := row.Scan(
		&app.ID,
		&region,
		&applicantType,
		&app.FormKey,
		&formData,
		&files,
		&app.EditToken,
		&app.EditUntil,
		&app.CreatedAt,
		&app.UpdatedAt,
	); err != nil {
		return nil, err
	}
	app.Region = domain.Region(region)
	app.ApplicantType = domain.ApplicantType(applicantType)
	app.FormData = domain.FormData(formData)
	if len(files) > 0 {
		if err := json.Unmarshal(files, &app.Files); err != nil {
			return nil, fmt.Errorf("decode files of %s: %w", app.ID, err)
		}
	}
	return &app, nil
}

func encodeFiles(files []domain.FileRef) ([]byte, error) {
	if files == nil {
		files = []domain.FileRef{}
	}
	return json.Marshal(files)
}

func translatePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
