package postgres_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sundayezeilo/customlinks/internal/links"
	"github.com/sundayezeilo/customlinks/internal/store/postgres"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newPool starts a throwaway PostgreSQL container.
func newPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(ctx))
	return pool
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	pool := newPool(t)

	s := postgres.New(pool, testLogger())
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureSchema(ctx), "schema creation must be idempotent")

	t.Run("empty table", func(t *testing.T) {
		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("save and load keep order", func(t *testing.T) {
		entries := []links.Entry{
			{ID: "custom_link_2", Record: links.Record{Href: "/b", Location: "menu", Active: true}},
			{ID: "custom_link_1", Record: links.Record{Href: "/a", Location: "nav", Extra: map[string]any{"label": "A"}}},
		}
		require.NoError(t, s.Save(ctx, entries))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "custom_link_2", got[0].ID)
		assert.True(t, got[0].Record.Active)
		assert.Equal(t, "custom_link_1", got[1].ID)
		assert.False(t, got[1].Record.Active)
		assert.Equal(t, "A", got[1].Record.Extra["label"])
	})

	t.Run("failed save keeps previous rows", func(t *testing.T) {
		dup := []links.Entry{
			{ID: "custom_link_9", Record: links.Record{Href: "/x", Location: "nav"}},
			{ID: "custom_link_9", Record: links.Record{Href: "/y", Location: "nav"}},
		}
		require.Error(t, s.Save(ctx, dup))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("save empty collection", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, nil))
		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("backs the registry", func(t *testing.T) {
		r, err := links.Open(ctx, s, &links.RegistryConfig{Logger: testLogger()})
		require.NoError(t, err)

		id, err := r.Add(ctx, links.Fields{"href": "https://example.com", "location": "menu"})
		require.NoError(t, err)
		assert.Equal(t, "custom_link_1", id)

		reopened, err := links.Open(ctx, s, &links.RegistryConfig{Logger: testLogger()})
		require.NoError(t, err)
		menu := reopened.MenuLinks(ctx)
		require.Len(t, menu, 1)
		assert.Equal(t, id, menu[0].ID)
	})
}
