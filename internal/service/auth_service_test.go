package service

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kycdesk/intake-service/internal/auth"
	"github.com/kycdesk/intake-service/internal/events"
	"github.com/kycdesk/intake-service/internal/repository"
	apperrors "github.com/kycdesk/intake-service/pkg/util/errorutil"
)

type resetSpy struct {
	repository.UserRepository
	resets int
}

func (s *resetSpy) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	s.resets++
	return s.UserRepository.SetResetToken(ctx, userID, tokenHash, expiresAt)
}

type authFixture struct {
	svc       *AuthService
	users     *resetSpy
	publisher *recordingPublisher
	clock     *fakeClock
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	f := authFixture{
		users:     &resetSpy{UserRepository: repository.NewMemoryUserRepository()},
		publisher: &recordingPublisher{},
		clock:     newClock(),
	}
	f.svc = NewAuthService(testConfig(), AuthDependencies{
		UserRepo:  f.users,
		Publisher: f.publisher,
		Logger:    nopLogger(),
		Now:       f.clock.Now,
	})
	return f
}

func (f authFixture) signup(t *testing.T, email, password string) *AuthResult {
	t.Helper()
	res, err := f.svc.Signup(context.Background(), SignupInput{Name: "Ama Mensah", Email: email, Password: password, Tel: " 020 "})
	require.NoError(t, err)
	return res
}

// resetToken extracts the raw token from the last published reset link.
func (f authFixture) resetToken(t *testing.T) string {
	t.Helper()
	evs := f.publisher.Events()
	require.NotEmpty(t, evs)
	payload, ok := evs[len(evs)-1].Payload.(events.PasswordResetPayload)
	require.True(t, ok)
	u, err := url.Parse(payload.ResetURL)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestSignupIssuesSession(t *testing.T) {
	f := newAuthFixture(t)
	res := f.signup(t, " Ama@Example.com ", "correct-horse")

	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "ama@example.com", res.User.Email)
	assert.Equal(t, "020", res.User.Tel)
	assert.Equal(t, f.clock.Now().Add(8*time.Hour), res.ExpiresAt)
	assert.NotEqual(t, "correct-horse", res.User.PasswordHash)

	me, err := f.svc.Me(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, me.ID)
}

func TestSignupRejections(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.signup(t, "ama@example.com", "correct-horse")

	_, err := f.svc.Signup(ctx, SignupInput{Name: "Other", Email: "AMA@example.COM", Password: "another-pass"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = f.svc.Signup(ctx, SignupInput{Name: "Kofi", Email: "kofi@example.com", Password: "short"})
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = f.svc.Signup(ctx, SignupInput{Email: "kofi@example.com", Password: "long-enough"})
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)

	_, err = f.svc.Signup(ctx, SignupInput{Name: "Kofi", Email: "not-an-email", Password: "long-enough"})
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestSigninFailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.signup(t, "ama@example.com", "correct-horse")

	_, wrongPassword := f.svc.Signin(ctx, "ama@example.com", "wrong-horse", false)
	_, unknownEmail := f.svc.Signin(ctx, "nobody@example.com", "wrong-horse", false)

	require.Error(t, wrongPassword)
	assert.Equal(t, wrongPassword, unknownEmail)
	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
}

func TestSigninRememberExtendsSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.signup(t, "ama@example.com", "correct-horse")

	short, err := f.svc.Signin(ctx, "AMA@example.com", "correct-horse", false)
	require.NoError(t, err)
	long, err := f.svc.Signin(ctx, "ama@example.com", "correct-horse", true)
	require.NoError(t, err)

	assert.Equal(t, f.clock.Now().Add(8*time.Hour), short.ExpiresAt)
	assert.Equal(t, f.clock.Now().Add(30*24*time.Hour), long.ExpiresAt)

	f.clock.Advance(9 * time.Hour)
	_, err = f.svc.Me(ctx, short.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.svc.Me(ctx, long.Token)
	assert.NoError(t, err)
}

func TestMeRejectsBadTokens(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := f.svc.Me(ctx, token)
		assert.ErrorIs(t, err, ErrUnauthorized, token)
	}

	foreign, _, err := auth.NewTokenManager("other-secret", time.Hour).WithClock(f.clock.Now).GenerateToken("u1", "a@b.com", 0)
	require.NoError(t, err)
	_, err = f.svc.Me(ctx, foreign)
	assert.ErrorIs(t, err, ErrUnauthorized)

	orphan, _, err := auth.NewTokenManager("test-secret", time.Hour).WithClock(f.clock.Now).GenerateToken("deleted-user", "a@b.com", 0)
	require.NoError(t, err)
	_, err = f.svc.Me(ctx, orphan)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	f := newAuthFixture(t)
	require.NoError(t, f.svc.ForgotPassword(context.Background(), "ghost@example.com"))
	assert.Zero(t, f.users.resets)
	assert.Empty(t, f.publisher.Events())
}

func TestForgotPasswordPublishesResetLink(t *testing.T) {
	f := newAuthFixture(t)
	user := f.signup(t, "ama@example.com", "correct-horse").User

	require.NoError(t, f.svc.ForgotPassword(context.Background(), "Ama@Example.com"))

	evs := f.publisher.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.EventPasswordResetRequested, evs[0].Type)
	assert.Equal(t, user.ID, evs[0].SubjectID)
	payload := evs[0].Payload.(events.PasswordResetPayload)
	assert.Equal(t, "ama@example.com", payload.Email)
	assert.Equal(t, 30*time.Minute, payload.ExpiresIn)
	assert.True(t, strings.HasPrefix(payload.ResetURL, "https://portal.example.com/reset-password?token="), payload.ResetURL)
	assert.Len(t, f.resetToken(t), 64)
}

func TestResetPasswordLifecycle(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.signup(t, "ama@example.com", "correct-horse")
	require.NoError(t, f.svc.ForgotPassword(ctx, "ama@example.com"))
	token := f.resetToken(t)

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "short"), ErrWeakPassword)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "not-the-token", "brand-new-pass"), ErrInvalidOrExpiredToken)

	require.NoError(t, f.svc.ResetPassword(ctx, token, "brand-new-pass"))
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "another-new-pass"), ErrInvalidOrExpiredToken, "token is single use")

	_, err := f.svc.Signin(ctx, "ama@example.com", "correct-horse", false)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Signin(ctx, "ama@example.com", "brand-new-pass", false)
	assert.NoError(t, err)
}

func TestResetPasswordExpires(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.signup(t, "ama@example.com", "correct-horse")
	require.NoError(t, f.svc.ForgotPassword(ctx, "ama@example.com"))
	token := f.resetToken(t)

	f.clock.Advance(31 * time.Minute)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "brand-new-pass"), ErrInvalidOrExpiredToken)
}

func TestForgotPasswordWithMailDisabledStillStoresToken(t *testing.T) {
	cfg := testConfig()
	cfg.Mail.Enabled = false
	users := &resetSpy{UserRepository: repository.NewMemoryUserRepository()}
	publisher := &recordingPublisher{}
	svc := NewAuthService(cfg, AuthDependencies{UserRepo: users, Publisher: publisher})

	_, err := svc.Signup(context.Background(), SignupInput{Name: "Ama", Email: "ama@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	require.NoError(t, svc.ForgotPassword(context.Background(), "ama@example.com"))
	assert.Equal(t, 1, users.resets)
	assert.Empty(t, publisher.Events())
}
