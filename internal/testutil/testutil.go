// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Proton-105/stockroom-bot/internal/database"
	"github.com/Proton-105/stockroom-bot/pkg/config"
)

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SQLiteConfig points at a private in-memory database.
func SQLiteConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
	}
}

// NewDB opens a migrated in-memory database that lives for the duration of the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, SQLiteConfig(), Logger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	require.NoError(t, database.NewMigrator(db, Logger()).Migrate(ctx))
	return db
}

// NewRedis starts a miniredis server and returns a client bound to it.
func NewRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}
