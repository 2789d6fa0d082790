package services

import (
	"context"
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joshua-takyi/rondpoint/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveProvisionsOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := NewUserService(env.deps)
	id := &models.Identity{Subject: gofakeit.UUID(), Email: "Kemi@Example.com", Name: "Kemi"}

	first, err := svc.Resolve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOrganizer, first.Role)
	assert.Equal(t, "kemi@example.com", first.Email)

	second, err := svc.Resolve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = svc.Resolve(ctx, &models.Identity{})
	assert.True(t, errors.Is(err, models.ErrUnauthenticated))
}

func TestResolveRefusesEmailLinkedElsewhere(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := NewUserService(env.deps)

	_, err := svc.Resolve(ctx, &models.Identity{Subject: gofakeit.UUID(), Email: "ada@example.cm"})
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, &models.Identity{Subject: gofakeit.UUID(), Email: "Ada@example.cm"})
	assert.True(t, errors.Is(err, models.ErrForbidden))
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := NewUserService(env.deps)
	u := env.seedUser(t, models.RoleOrganizer)

	bio := "Curator based in Douala"
	site := "https://galerie.example.cm"
	updated, err := svc.UpdateProfile(ctx, actorOf(u), &models.ProfileUpdate{Bio: &bio, Website: &site})
	require.NoError(t, err)
	assert.Equal(t, bio, updated.Bio)
	assert.Equal(t, site, updated.Website)

	bad := "ftp://galerie"
	_, err = svc.UpdateProfile(ctx, actorOf(u), &models.ProfileUpdate{Website: &bad})
	assert.True(t, errors.Is(err, models.ErrInvalidInput))

	_, err = svc.UpdateProfile(ctx, actorOf(u), &models.ProfileUpdate{})
	assert.True(t, errors.Is(err, models.ErrInvalidInput))

	_, err = svc.Profile(ctx, nil)
	assert.True(t, errors.Is(err, models.ErrUnauthenticated))
}

func TestCancelPremiumKeepsAccessUntilExpiry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := NewUserService(env.deps)
	u := env.seedUser(t, models.RoleOrganizer)

	_, err := svc.CancelPremium(ctx, actorOf(u))
	assert.True(t, errors.Is(err, models.ErrInvalidInput))

	_, err = env.repo.UpdateUserFields(ctx, u.ID, map[string]interface{}{"premium_auto_renew": true}, testNow)
	require.NoError(t, err)
	env.makePremium(t, u)

	cancelled, err := svc.CancelPremium(ctx, actorOf(u))
	require.NoError(t, err)
	assert.False(t, cancelled.PremiumAutoRenew)
	assert.True(t, cancelled.IsPremiumActive(testNow))
}
