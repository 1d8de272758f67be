package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockroom-bot/internal/domain"
	"github.com/Proton-105/stockroom-bot/internal/repository"
	"github.com/Proton-105/stockroom-bot/internal/testutil"
	"github.com/Proton-105/stockroom-bot/internal/usercache"
)

func TestService_GetOrCreate(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(repository.NewUserRepository(db, testutil.Logger()), testutil.Logger())
	ctx := context.Background()

	tgUser := &telebot.User{ID: 501, FirstName: "Айгуль", LanguageCode: "kz"}

	created, err := svc.GetOrCreate(ctx, tgUser)
	require.NoError(t, err)
	assert.Equal(t, domain.LanguageKZ, created.Language)
	assert.Equal(t, domain.SectorFull, created.Sector)
	assert.False(t, created.HasBranch())

	again, err := svc.GetOrCreate(ctx, &telebot.User{ID: 501, FirstName: "Other"})
	require.NoError(t, err)
	assert.Equal(t, "Айгуль", again.FirstName)

	_, err = svc.GetOrCreate(ctx, nil)
	assert.Error(t, err)
}

func TestService_SaveProfile(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(repository.NewUserRepository(db, testutil.Logger()), testutil.Logger())
	ctx := context.Background()

	_, err := svc.GetOrCreate(ctx, &telebot.User{ID: 7, LanguageCode: "en"})
	require.NoError(t, err)

	branch := uint(3)
	require.NoError(t, svc.SaveProfile(ctx, 7, domain.LanguageRU, &branch, domain.SectorAP))

	u, err := svc.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.SectorAP, u.Sector)
	assert.True(t, u.HasBranch())

	assert.ErrorIs(t, svc.SaveProfile(ctx, 8, domain.LanguageRU, nil, domain.SectorFull), ErrNotFound)
	_, err = svc.Get(ctx, 8)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_CacheInvalidatedOnProfileSave(t *testing.T) {
	db := testutil.NewDB(t)
	client, _ := testutil.NewRedis(t)
	cache := usercache.NewCache(client, time.Hour)
	svc := NewService(repository.NewUserRepository(db, testutil.Logger()), testutil.Logger(), WithCache(cache))
	ctx := context.Background()

	_, err := svc.GetOrCreate(ctx, &telebot.User{ID: 9, LanguageCode: "ru"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, 9)
	require.NoError(t, err)
	cached, err := cache.Get(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.False(t, cached.HasBranch())

	branch := uint(2)
	require.NoError(t, svc.SaveProfile(ctx, 9, domain.LanguageKZ, &branch, domain.SectorFull))

	cached, err = cache.Get(ctx, 9)
	require.NoError(t, err)
	assert.Nil(t, cached)

	u, err := svc.Get(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, domain.LanguageKZ, u.Language)
	assert.True(t, u.HasBranch())
}
