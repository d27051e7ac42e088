package store

import (
	"context"
	"testing"

	"github.com/soyeahso/storyforge/internal/domain"
	"github.com/soyeahso/storyforge/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgresStores(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("storyforge"),
		postgres.WithUsername("forge"),
		postgres.WithPassword("forge"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, Options{Driver: DriverPostgres, DSN: connStr}, logging.New(nil, "silent"), WithClock(steppingClock()))
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, DriverPostgres, db.Driver())

	t.Run("migrations are idempotent", func(t *testing.T) {
		require.NoError(t, db.migrate(ctx))
		var n int
		require.NoError(t, db.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&n))
		assert.Equal(t, len(migrations), n)
	})

	t.Run("resources", func(t *testing.T) {
		rs := NewResourceStore(db)
		a, err := rs.Create(ctx, sampleResource("alpha", "first postgres document"))
		require.NoError(t, err)
		b, err := rs.Create(ctx, sampleResource("beta", "second postgres document"))
		require.NoError(t, err)

		got, err := rs.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a, got)

		list, err := rs.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, b.ID, list[0].ID)

		found, err := rs.Search(ctx, "ALPHA")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, a.ID, found[0].ID)

		require.NoError(t, rs.Delete(ctx, a.ID))
		assert.ErrorIs(t, rs.Delete(ctx, a.ID), domain.ErrNotFound)
	})

	t.Run("agents", func(t *testing.T) {
		as := NewAgentStore(db)
		a, err := as.Create(ctx, sampleAgent("Reviewer"))
		require.NoError(t, err)

		updated, err := as.Update(ctx, a.ID, AgentPatch{"maxTokens": 321, "name": "Senior Reviewer"})
		require.NoError(t, err)
		assert.Equal(t, 321, updated.MaxTokens)
		assert.Equal(t, "Senior Reviewer", updated.Name)
		assert.InDelta(t, a.Temperature, updated.Temperature, 1e-9)

		_, err = as.Update(ctx, "missing", AgentPatch{"name": "x"})
		assert.ErrorIs(t, err, domain.ErrNotFound)

		require.NoError(t, as.Delete(ctx, a.ID))
	})
}
