package pgdb

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/counter"
)

const (
	initCounterQuery = `
INSERT INTO receipt_counter (id, counter) VALUES ($1, $2)
ON CONFLICT (id) DO NOTHING`

	currentCounterQuery = `SELECT counter FROM receipt_counter WHERE id = $1`

	// a missing row is created as if it had been initialized at 0
	allocateQuery = `
INSERT INTO receipt_counter (id, counter) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE
SET counter = receipt_counter.counter + EXCLUDED.counter, updated_at = now()
RETURNING counter`
)

type counterStore struct {
	db *sqlx.DB
}

func NewCounterStore(db *sqlx.DB) counter.Store {
	return &counterStore{db: db}
}

func (s *counterStore) Init(ctx context.Context, start int64) error {
	if _, err := s.db.ExecContext(ctx, initCounterQuery, counter.ReceiptCounterID, start); err != nil {
		return core.NewStoreUnavailableError(err, "initializing receipt counter")
	}
	return nil
}

func (s *counterStore) Current(ctx context.Context) (int64, error) {
	var value int64
	err := s.db.GetContext(ctx, &value, currentCounterQuery, counter.ReceiptCounterID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, core.NewStoreUnavailableError(err, "reading receipt counter")
	}
	return value, nil
}

func (s *counterStore) Allocate(ctx context.Context) (int64, error) {
	return s.AllocateBatch(ctx, 1)
}

func (s *counterStore) AllocateBatch(ctx context.Context, n int) (int64, error) {
	if n < 1 {
		return 0, counter.ErrInvalidBatchSize
	}
	var value int64
	if err := s.db.GetContext(ctx, &value, allocateQuery, counter.ReceiptCounterID, int64(n)); err != nil {
		return 0, core.NewStoreUnavailableError(err, "allocating receipt numbers")
	}
	return value - int64(n) + 1, nil
}
