package pgdb_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/counter"
	"github.com/trezcool/academia/storage/database/postgres"
)

// TEST_POSTGRES_DSN must point at a disposable database: the counter table is reset.
func openDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err)
	require.NoError(t, pgdb.Migrate(db.DB))
	_, err = db.Exec("DELETE FROM receipt_counter")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCounterStore(t *testing.T) {
	ctx := context.Background()
	store := pgdb.NewCounterStore(openDB(t))

	cur, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cur)

	require.NoError(t, store.Init(ctx, counter.DefaultStart))
	require.NoError(t, store.Init(ctx, 5))

	block, err := counter.ReserveBlock(ctx, store, 3)
	require.NoError(t, err)
	first, ok := block.Next()
	require.True(t, ok)
	assert.Equal(t, int64(counter.DefaultStart+1), first)

	var wg sync.WaitGroup
	results := make(chan int64, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := store.Allocate(ctx)
			assert.NoError(t, err)
			results <- n
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for n := range results {
		assert.False(t, seen[n])
		assert.Greater(t, n, int64(counter.DefaultStart+3))
		seen[n] = true
	}
	assert.Len(t, seen, 10)

	_, err = store.AllocateBatch(ctx, -1)
	assert.Equal(t, counter.ErrInvalidBatchSize, err)
}
