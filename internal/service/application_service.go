package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kycdesk/intake-service/internal/domain"
	"github.com/kycdesk/intake-service/internal/events"
	"github.com/kycdesk/intake-service/internal/formdata"
	"github.com/kycdesk/intake-service/internal/observability"
	"github.com/kycdesk/intake-service/internal/repository"
	"github.com/kycdesk/intake-service/internal/storage"
	apperrors "github.com/kycdesk/intake-service/pkg/util/errorutil"
)

const (
	// DefaultListLimit applies when the admin list is requested without a limit.
	DefaultListLimit = 200
	// MaxListLimit caps the admin list.
	MaxListLimit = 500
)

// FileStore persists uploads.
type FileStore interface {
	Save(ctx context.Context, up storage.Upload) (domain.FileRef, error)
	Remove(refs []domain.FileRef) error
}

// EventPublisher hands events to background handlers without blocking.
type EventPublisher interface {
	Publish(event events.Event)
}

// ApplicationService coordinates the application lifecycle.
type ApplicationService struct {
	stores     repository.ApplicationStores
	files      FileStore
	publisher  EventPublisher
	metrics    *observability.Metrics
	logger     *zap.Logger
	editWindow time.Duration
	now        func() time.Time
}

// ApplicationDependencies bundles collaborators for the application service.
type ApplicationDependencies struct {
	Stores     repository.ApplicationStores
	Files      FileStore
	Publisher  EventPublisher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	EditWindow time.Duration
	Now        func() time.Time
}

// ApplicationInput is the submitted envelope plus its uploads.
type ApplicationInput struct {
	Region        domain.Region
	ApplicantType domain.ApplicantType
	FormKey       string
	FormData      domain.FormData
	Uploads       []storage.Upload
}

// SubmitResult is returned by create and update.
type SubmitResult struct {
	ID        string
	EditUntil time.Time
}

// ApplicationRow is the admin list projection of a record.
type ApplicationRow struct {
	ID            string
	Region        domain.Region
	ApplicantType domain.ApplicantType
	FormKey       string
	Name          string
	Email         string
	Phone         string
	FileCount     int
	EditUntil     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewApplicationService constructs the service.
func NewApplicationService(deps ApplicationDependencies) *ApplicationService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{
		stores:     deps.Stores,
		files:      deps.Files,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
		logger:     logger,
		editWindow: deps.EditWindow,
		now:        now,
	}
}

// EditWindowDays is the edit window reported to clients.
func (s *ApplicationService) EditWindowDays() int {
	return int(s.editWindow / (24 * time.Hour))
}

// Create validates and stores a new submission, then publishes it.
func (s *ApplicationService) Create(ctx context.Context, input ApplicationInput) (*SubmitResult, error) {
	category, err := domain.ResolveCategory(input.Region, input.ApplicantType)
	if err != nil {
		return nil, ErrInvalidClassification
	}
	formKey := strings.TrimSpace(input.FormKey)
	if formKey == "" || input.FormData.IsEmpty() {
		return nil, ErrMissingField
	}
	store, ok := s.stores[category]
	if !ok {
		return nil, apperrors.NewInternalError(errors.New("no store for category " + string(category)))
	}

	token, err := newEditToken()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	files, err := s.saveUploads(ctx, input.Uploads)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	app := &domain.Application{
		ID:            uuid.NewString(),
		Region:        input.Region,
		ApplicantType: input.ApplicantType,
		FormKey:       formKey,
		FormData:      input.FormData,
		Files:         files,
		EditToken:     token,
		EditUntil:     now.Add(s.editWindow),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := store.Insert(ctx, app); err != nil {
		s.discard(files)
		return nil, apperrors.NewInternalError(err)
	}

	s.metrics.RecordApplicationWrite(string(category), "create")
	s.logger.Info("application created",
		zap.String("application_id", app.ID),
		zap.String("category", string(category)),
		zap.Int("files", len(files)))
	s.publish(events.EventApplicationSubmitted, category, app)

	return &SubmitResult{ID: app.ID, EditUntil: app.EditUntil}, nil
}

// Get returns the record while its edit window is open.
func (s *ApplicationService) Get(ctx context.Context, id string) (*domain.Application, error) {
	_, app, err := s.locateEditable(ctx, id)
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Update replaces the form data and merges uploads by field. The edit
// window and token are left as they were.
func (s *ApplicationService) Update(ctx context.Context, id string, input ApplicationInput) (*SubmitResult, error) {
	category, app, err := s.locateEditable(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Region != app.Region || input.ApplicantType != app.ApplicantType || strings.TrimSpace(input.FormKey) != app.FormKey {
		return nil, ErrClassificationMismatch
	}
	if input.FormData.IsEmpty() {
		return nil, ErrMissingField
	}

	files, err := s.saveUploads(ctx, input.Uploads)
	if err != nil {
		return nil, err
	}

	app.FormData = input.FormData
	app.Files = domain.MergeFiles(app.Files, files)
	app.UpdatedAt = s.now().UTC()
	if err := s.stores[category].Update(ctx, app); err != nil {
		s.discard(files)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.metrics.RecordApplicationWrite(string(category), "update")
	s.logger.Info("application updated",
		zap.String("application_id", app.ID),
		zap.String("category", string(category)),
		zap.Int("files_uploaded", len(files)))
	s.publish(events.EventApplicationUpdated, category, app)

	return &SubmitResult{ID: app.ID, EditUntil: app.EditUntil}, nil
}

// ListForCategory returns the most recently updated records of a category
// with a best-effort contact projection.
func (s *ApplicationService) ListForCategory(ctx context.Context, key string, limit int) ([]ApplicationRow, error) {
	category, err := domain.ParseCategory(key)
	if err != nil {
		return nil, ErrInvalidClassification
	}
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	apps, err := s.stores[category].ListRecent(ctx, limit)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	rows := make([]ApplicationRow, 0, len(apps))
	for _, app := range apps {
		contact := formdata.ExtractContact(app.FormData)
		rows = append(rows, ApplicationRow{
			ID:            app.ID,
			Region:        app.Region,
			ApplicantType: app.ApplicantType,
			FormKey:       app.FormKey,
			Name:          contact.Name,
			Email:         contact.Email,
			Phone:         contact.Phone,
			FileCount:     len(app.Files),
			EditUntil:     app.EditUntil,
			CreatedAt:     app.CreatedAt,
			UpdatedAt:     app.UpdatedAt,
		})
	}
	return rows, nil
}

// locate checks every category store in order; the first match wins.
func (s *ApplicationService) locate(ctx context.Context, id string) (domain.Category, *domain.Application, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", nil, ErrApplicationNotFound
	}
	for _, category := range domain.Categories {
		store, ok := s.stores[category]
		if !ok {
			continue
		}
		app, err := store.FindByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", nil, apperrors.NewInternalError(err)
		}
		return category, app, nil
	}
	return "", nil, ErrApplicationNotFound
}

func (s *ApplicationService) locateEditable(ctx context.Context, id string) (domain.Category, *domain.Application, error) {
	category, app, err := s.locate(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if !app.Editable(s.now()) {
		return "", nil, ErrEditWindowExpired
	}
	return category, app, nil
}

// saveUploads stores one file per field; the first file of a repeated
// field wins. Files written before a failure are removed.
func (s *ApplicationService) saveUploads(ctx context.Context, uploads []storage.Upload) ([]domain.FileRef, error) {
	seen := make(map[string]struct{}, len(uploads))
	var saved []domain.FileRef
	for _, up := range uploads {
		if _, dup := seen[up.Field]; dup || up.Field == "" {
			continue
		}
		seen[up.Field] = struct{}{}

		ref, err := s.files.Save(ctx, up)
		if err != nil {
			s.discard(saved)
			if errors.Is(err, storage.ErrFileTooLarge) {
				return nil, ErrFileTooLarge
			}
			return nil, apperrors.NewInternalError(err)
		}
		saved = append(saved, ref)
	}
	return saved, nil
}

func (s *ApplicationService) discard(files []domain.FileRef) {
	if len(files) == 0 {
		return
	}
	if err := s.files.Remove(files); err != nil {
		s.logger.Warn("failed to remove uploaded files", zap.Error(err))
	}
}

func (s *ApplicationService) publish(eventType events.EventType, category domain.Category, app *domain.Application) {
	if s.publisher == nil {
		return
	}
	snapshot := *app
	snapshot.Files = append([]domain.FileRef(nil), app.Files...)
	s.publisher.Publish(events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SubjectID: app.ID,
		Timestamp: s.now().UTC(),
		Payload:   events.ApplicationPayload{Category: category, Application: snapshot},
	})
}

func newEditToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
