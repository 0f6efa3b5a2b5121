// Package counter hands out receipt numbers.
//
// The receipt counter is a single durable integer keyed by ReceiptCounterID.
// Every allocation is one atomic increment-and-return against the store, so
// concurrent callers never observe the same value. Allocations are committed
// as soon as they return: they are not part of any business transaction, an
// aborted write therefore leaves a gap instead of handing the number out twice.
package counter

import (
	"context"

	"github.com/pkg/errors"
)

const (
	ReceiptCounterID = 1
	DefaultStart     = int64(100000)
)

var ErrInvalidBatchSize = errors.New("batch size must be at least 1")

type Store interface {
	// Init creates the counter at start if it does not exist yet. It never lowers an existing counter.
	Init(ctx context.Context, start int64) error
	// Current returns the last allocated value (the high-water mark).
	Current(ctx context.Context) (int64, error)
	// Allocate increments the counter by one and returns the new value.
	Allocate(ctx context.Context) (int64, error)
	// AllocateBatch reserves n contiguous values and returns the first one.
	// The block is [start, start+n-1].
	AllocateBatch(ctx context.Context, n int) (int64, error)
}

// Block is a reserved range of receipt numbers handed out one at a time.
type Block struct {
	next int64
	end  int64 // exclusive
}

func NewBlock(start int64, n int) *Block {
	return &Block{next: start, end: start + int64(n)}
}

// Next returns the next number of the block and false once the block is exhausted.
func (b *Block) Next() (int64, bool) {
	if b == nil || b.next >= b.end {
		return 0, false
	}
	n := b.next
	b.next++
	return n, true
}

func (b *Block) Remaining() int {
	if b == nil {
		return 0
	}
	return int(b.end - b.next)
}

// ReserveBlock allocates a block of n numbers from store. n == 0 yields an empty block
// without touching the store.
func ReserveBlock(ctx context.Context, store Store, n int) (*Block, error) {
	if n == 0 {
		return NewBlock(0, 0), nil
	}
	start, err := store.AllocateBatch(ctx, n)
	if err != nil {
		return nil, err
	}
	return NewBlock(start, n), nil
}
