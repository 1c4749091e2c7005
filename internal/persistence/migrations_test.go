package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brymix/dashboard-bff/internal/persistence/pgtest"
)

func TestRunMigrationsReleasesConnection(t *testing.T) {
	pool := pgtest.Start(t)

	require.NoError(t, RunMigrations(pool, zap.NewNop()))
	require.Zero(t, pool.Stat().AcquiredConns())

	// Applying again is a no-op.
	require.NoError(t, RunMigrations(pool, zap.NewNop()))
	require.Zero(t, pool.Stat().AcquiredConns())

	var tables int
	err := pool.QueryRow(context.Background(),
		`SELECT count(*) FROM information_schema.tables WHERE table_name IN ('users', 'api_keys')`).Scan(&tables)
	require.NoError(t, err)
	require.Equal(t, 2, tables)

	closed := make(chan struct{})
	go func() {
		pool.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("pool close blocked on a checked-out connection")
	}
}
