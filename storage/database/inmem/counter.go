package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/academia/core/counter"
)

// counterTable lives outside the transactional tables: allocations survive rollbacks.
type counterTable struct {
	mutex       sync.Mutex
	initialized bool
	value       int64
}

type counterStore struct {
	c *counterTable
}

func NewCounterStore(db *DB) counter.Store {
	return &counterStore{c: db.counter}
}

func (s *counterStore) Init(_ context.Context, start int64) error {
	s.c.mutex.Lock()
	defer s.c.mutex.Unlock()
	if !s.c.initialized {
		s.c.initialized = true
		s.c.value = start
	}
	return nil
}

func (s *counterStore) Current(_ context.Context) (int64, error) {
	s.c.mutex.Lock()
	defer s.c.mutex.Unlock()
	return s.c.value, nil
}

func (s *counterStore) Allocate(ctx context.Context) (int64, error) {
	return s.AllocateBatch(ctx, 1)
}

func (s *counterStore) AllocateBatch(_ context.Context, n int) (int64, error) {
	if n < 1 {
		return 0, counter.ErrInvalidBatchSize
	}
	s.c.mutex.Lock()
	defer s.c.mutex.Unlock()
	// an uninitialized counter starts from 0, like an upsert on the durable stores
	s.c.initialized = true
	s.c.value += int64(n)
	return s.c.value - int64(n) + 1, nil
}
