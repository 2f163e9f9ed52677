package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/kycdesk/intake-service/internal/domain"
)

// ApplicationRepository is the handle of one category collection.
type ApplicationRepository interface {
	Insert(ctx context.Context, app *domain.Application) error
	FindByID(ctx context.Context, id string) (*domain.Application, error)
	// Update persists FormData, Files and UpdatedAt of an existing record.
	Update(ctx context.Context, app *domain.Application) error
	// ListRecent returns up to limit records ordered by UpdatedAt, newest first.
	ListRecent(ctx context.Context, limit int) ([]domain.Application, error)
}

// ApplicationStores binds every category to its own collection handle.
type ApplicationStores map[domain.Category]ApplicationRepository

// NewPostgresApplicationStores returns one table-backed handle per category.
func NewPostgresApplicationStores(pool *pgxpool.Pool) ApplicationStores {
	stores := make(ApplicationStores, len(domain.Categories))
	for _, c := range domain.Categories {
		stores[c] = NewPostgresApplicationRepository(pool, c.Collection())
	}
	return stores
}

// NewMongoApplicationStores returns one collection-backed handle per category.
func NewMongoApplicationStores(db *mongo.Database) ApplicationStores {
	stores := make(ApplicationStores, len(domain.Categories))
	for _, c := range domain.Categories {
		stores[c] = NewMongoApplicationRepository(db.Collection(c.Collection()))
	}
	return stores
}

// NewMemoryApplicationStores returns independent in-memory handles.
func NewMemoryApplicationStores() ApplicationStores {
	stores := make(ApplicationStores, len(domain.Categories))
	for _, c := range domain.Categories {
		stores[c] = NewMemoryApplicationRepository()
	}
	return stores
}
