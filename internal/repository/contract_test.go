package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kycdesk/intake-service/internal/domain"
)

func newApplication(cat domain.Category, formData string, at time.Time) *domain.Application {
	return &domain.Application{
		ID:            uuid.NewString(),
		Region:        cat.Region(),
		ApplicantType: cat.ApplicantType(),
		FormKey:       "kyc-v1",
		FormData:      domain.FormData(formData),
		Files:         []domain.FileRef{{Field: "idFront", OriginalName: "id.png", MimeType: "image/png", Size: 10, Path: "/uploads/1_id.png"}},
		EditToken:     "token",
		EditUntil:     at.Add(7 * 24 * time.Hour),
		CreatedAt:     at,
		UpdatedAt:     at,
	}
}

func testApplicationRepository(t *testing.T, repo ApplicationRepository) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first := newApplication(domain.CategoryLocalIndividual, `{"z":1,"a":{"y":"b","x":[true,null]}}`, base)
	second := newApplication(domain.CategoryLocalIndividual, `{"name":"second"}`, base.Add(time.Hour))
	require.NoError(t, repo.Insert(ctx, first))
	require.NoError(t, repo.Insert(ctx, second))

	err := repo.Insert(ctx, first)
	assert.True(t, errors.Is(err, ErrDuplicate), "got %v", err)

	got, err := repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, domain.CategoryLocalIndividual.Region(), got.Region)
	assert.Equal(t, "kyc-v1", got.FormKey)
	assert.JSONEq(t, `{"z":1,"a":{"y":"b","x":[true,null]}}`, string(got.FormData))
	assert.Regexp(t, `^\{\s*"z"`, string(got.FormData))
	assert.Equal(t, first.Files, got.Files)
	assert.True(t, first.EditUntil.Equal(got.EditUntil))

	_, err = repo.FindByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	got.FormData = domain.FormData(`{"name":"edited"}`)
	got.Files = append(got.Files, domain.FileRef{Field: "proof", OriginalName: "p.pdf", MimeType: "application/pdf", Size: 5, Path: "/uploads/2_p.pdf"})
	got.UpdatedAt = base.Add(2 * time.Hour)
	require.NoError(t, repo.Update(ctx, got))

	updated, err := repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"edited"}`, string(updated.FormData))
	assert.Len(t, updated.Files, 2)
	assert.True(t, first.EditUntil.Equal(updated.EditUntil))
	assert.Equal(t, first.EditToken, updated.EditToken)

	missing := newApplication(domain.CategoryLocalIndividual, `{"a":1}`, base)
	assert.ErrorIs(t, repo.Update(ctx, missing), ErrNotFound)

	rows, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.Equal(t, second.ID, rows[1].ID)

	rows, err = repo.ListRecent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func testUserRepository(t *testing.T, repo UserRepository) {
	ctx := context.Background()
	user := &domain.User{ID: uuid.NewString(), Name: "Ada", Email: "ada@example.com", Tel: "123", PasswordHash: "hash"}
	require.NoError(t, repo.Create(ctx, user))
	assert.False(t, user.CreatedAt.IsZero())

	dup := &domain.User{ID: uuid.NewString(), Name: "Other", Email: "ADA@example.com", PasswordHash: "hash"}
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrDuplicate)

	got, err := repo.GetByEmail(ctx, "Ada@Example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Nil(t, got.ResetTokenHash)

	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	now := time.Now().UTC()
	require.NoError(t, repo.SetResetToken(ctx, user.ID, "abc", now.Add(30*time.Minute)))

	found, err := repo.GetByResetToken(ctx, "abc", now)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.GetByResetToken(ctx, "abc", now.Add(31*time.Minute))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByResetToken(ctx, "other", now)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.UpdatePassword(ctx, user.ID, "new-hash"))
	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.Nil(t, got.ResetTokenHash)
	assert.Nil(t, got.ResetTokenExpiresAt)

	_, err = repo.GetByResetToken(ctx, "abc", now)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.UpdatePassword(ctx, uuid.NewString(), "x"), ErrNotFound)
	assert.ErrorIs(t, repo.SetResetToken(ctx, uuid.NewString(), "x", now), ErrNotFound)
}
