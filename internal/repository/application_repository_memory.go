package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/kycdesk/intake-service/internal/domain"
)

type memoryApplicationRepository struct {
	mu   sync.RWMutex
	apps map[string]domain.Application
}

// NewMemoryApplicationRepository returns a process-local repository.
func NewMemoryApplicationRepository() ApplicationRepository {
	return &memoryApplicationRepository{apps: make(map[string]domain.Application)}
}

func (r *memoryApplicationRepository) Insert(_ context.Context, app *domain.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.apps[app.ID]; ok {
		return ErrDuplicate
	}
	r.apps[app.ID] = cloneApplication(*app)
	return nil
}

func (r *memoryApplicationRepository) FindByID(_ context.Context, id string) (*domain.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.apps[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneApplication(app)
	return &out, nil
}

func (r *memoryApplicationRepository) Update(_ context.Context, app *domain.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.apps[app.ID]
	if !ok {
		return ErrNotFound
	}
	updated := cloneApplication(*app)
	stored.FormData = updated.FormData
	stored.Files = updated.Files
	stored.UpdatedAt = updated.UpdatedAt
	r.apps[app.ID] = stored
	return nil
}

func (r *memoryApplicationRepository) ListRecent(_ context.Context, limit int) ([]domain.Application, error) {
	r.mu.RLock()
	out := make([]domain.Application, 0, len(r.apps))
	for _, app := range r.apps {
		out = append(out, cloneApplication(app))
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneApplication(app domain.Application) domain.Application {
	app.FormData = append(domain.FormData(nil), app.FormData...)
	app.Files = append([]domain.FileRef(nil), app.Files...)
	return app
}
