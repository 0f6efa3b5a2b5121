package inmemdb_test

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/counter"
	"github.com/trezcool/academia/storage/database/inmem"
)

func newCounter(t *testing.T, start int64) counter.Store {
	store := inmemdb.NewCounterStore(inmemdb.Open())
	require.NoError(t, store.Init(context.Background(), start))
	return store
}

func TestCounterStore_AllocateBatch(t *testing.T) {
	ctx := context.Background()
	store := newCounter(t, counter.DefaultStart)

	start, err := store.AllocateBatch(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, counter.DefaultStart+1, start)

	next, err := store.Allocate(ctx)
	require.NoError(t, err)
	assert.Equal(t, start+5, next)

	for _, n := range []int{0, -3} {
		_, err = store.AllocateBatch(ctx, n)
		assert.Equal(t, counter.ErrInvalidBatchSize, err)
	}
	cur, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, next, cur)
}

func TestCounterStore_Allocate_sequential(t *testing.T) {
	ctx := context.Background()
	store := newCounter(t, counter.DefaultStart)

	prev := counter.DefaultStart
	for i := 0; i < 50; i++ {
		n, err := store.Allocate(ctx)
		require.NoError(t, err)
		assert.Equal(t, prev+1, n)
		prev = n
	}
}

func TestCounterStore_Init(t *testing.T) {
	ctx := context.Background()
	store := newCounter(t, counter.DefaultStart)

	_, err := store.AllocateBatch(ctx, 3)
	require.NoError(t, err)

	for _, start := range []int64{5, counter.DefaultStart, 200000} {
		require.NoError(t, store.Init(ctx, start))
		cur, err := store.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, counter.DefaultStart+3, cur, "Init(%d)", start)
	}

	// an allocation before Init counts from 0 and pins the counter
	fresh := inmemdb.NewCounterStore(inmemdb.Open())
	n, err := fresh.Allocate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, fresh.Init(ctx, counter.DefaultStart))
	n, err = fresh.Allocate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCounterStore_concurrent(t *testing.T) {
	ctx := context.Background()
	store := newCounter(t, counter.DefaultStart)

	const workers, batch = 20, 3
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		got []int64
	)
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			n, err := store.Allocate(ctx)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			got = append(got, n)
		}()
		go func() {
			defer wg.Done()
			block, err := counter.ReserveBlock(ctx, store, batch)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			for n, ok := block.Next(); ok; n, ok = block.Next() {
				got = append(got, n)
			}
		}()
	}
	wg.Wait()

	// every number between start+1 and the high-water mark was handed out exactly once
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	require.Len(t, got, workers*(1+batch))
	for i, n := range got {
		assert.Equal(t, counter.DefaultStart+1+int64(i), n)
	}
	cur, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, got[len(got)-1], cur)
}

func TestReserveBlock_empty(t *testing.T) {
	ctx := context.Background()
	store := newCounter(t, counter.DefaultStart)

	block, err := counter.ReserveBlock(ctx, store, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, block.Remaining())

	_, err = counter.ReserveBlock(ctx, store, -1)
	assert.True(t, errors.Is(err, counter.ErrInvalidBatchSize))

	cur, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, counter.DefaultStart, cur)
}
