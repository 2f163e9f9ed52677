package service

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kycdesk/intake-service/internal/config"
	"github.com/kycdesk/intake-service/internal/domain"
	"github.com/kycdesk/intake-service/internal/events"
	"github.com/kycdesk/intake-service/internal/mail"
	"github.com/kycdesk/intake-service/internal/repository"
	"github.com/kycdesk/intake-service/internal/storage"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

// syncPublisher dispatches on the caller's goroutine.
type syncPublisher struct {
	dispatcher events.Dispatcher
}

func (p syncPublisher) Publish(e events.Event) {
	_ = p.dispatcher.Publish(context.Background(), e)
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []mail.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *recordingSender) Messages() []mail.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mail.Message(nil), s.msgs...)
}

// failingStore rejects inserts and updates.
type failingStore struct {
	repository.ApplicationRepository
}

func (failingStore) Insert(context.Context, *domain.Application) error {
	return io.ErrUnexpectedEOF
}

// limitSpy records the limit passed to ListRecent.
type limitSpy struct {
	repository.ApplicationRepository
	limits []int
}

func (s *limitSpy) ListRecent(ctx context.Context, limit int) ([]domain.Application, error) {
	s.limits = append(s.limits, limit)
	return s.ApplicationRepository.ListRecent(ctx, limit)
}

func testConfig() config.Config {
	return config.Config{
		App: config.AppConfig{Name: "intake-service", Env: "test", PublicWebURL: "https://portal.example.com/"},
		Auth: config.AuthConfig{
			JWTSecret:               "test-secret",
			TokenTTLHours:           8,
			RememberTTLDays:         30,
			PasswordResetTTLMinutes: 30,
			BcryptCost:              bcrypt.MinCost,
		},
		Mail: config.MailConfig{
			Enabled:         true,
			AdminRecipients: []string{"ops@example.com", "kyc@example.com"},
		},
		Applications: config.ApplicationConfig{EditWindowDays: 7},
	}
}

func newFileStore(t *testing.T) *storage.FileStore {
	t.Helper()
	fs, err := storage.NewFileStore(t.TempDir(), "/uploads", 1<<20)
	require.NoError(t, err)
	return fs
}

func fileUpload(field, name, body string) storage.Upload {
	return storage.Upload{
		Field:       field,
		Filename:    name,
		ContentType: "application/pdf",
		Size:        int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader([]byte(body))), nil
		},
	}
}

func nopLogger() *zap.Logger {
	return zap.NewNop()
}
