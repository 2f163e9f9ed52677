package persistence

import (
	"context"
	"embed"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/applications/*.sql migrations/auth/*.sql
var migrationFiles embed.FS

// MigrationSet names a directory of embedded migrations and the goose
// version table that tracks it.
type MigrationSet struct {
	Dir   string
	Table string
}

var (
	// ApplicationMigrations creates the four category tables.
	ApplicationMigrations = MigrationSet{Dir: "migrations/applications", Table: "applications_goose_version"}
	// AuthMigrations creates the auth schema and its users table.
	AuthMigrations = MigrationSet{Dir: "migrations/auth", Table: "auth_goose_version"}
)

// goose keeps its configuration in package state.
var gooseMu sync.Mutex

// RunMigrations applies the embedded migrations of set against pool. A nil
// pool is a no-op.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, set MigrationSet, logger *zap.Logger) error {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations", zap.String("set", set.Dir))
		return nil
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationFiles)
	goose.SetTableName(set.Table)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, set.Dir); err != nil {
		return fmt.Errorf("apply migrations %s: %w", set.Dir, err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("read migration version %s: %w", set.Dir, err)
	}
	logger.Info("migrations applied", zap.String("set", set.Dir), zap.Int64("version", version))
	return nil
}
