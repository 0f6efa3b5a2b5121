package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/trezcool/academia/core/counter"
)

type counterDoc struct {
	ID      int   `bson:"_id"`
	Counter int64 `bson:"counter"`
}

// counterStore keeps the receipt counter in a single document. Every allocation is one
// findOneAndUpdate with $inc, which the server applies atomically.
type counterStore struct {
	col *mongo.Collection
}

func NewCounterStore(db *DB) counter.Store {
	return &counterStore{col: db.col(colCounters)}
}

func (s *counterStore) Init(ctx context.Context, start int64) error {
	_, err := s.col.UpdateOne(
		ctx,
		bson.M{"_id": counter.ReceiptCounterID},
		bson.M{"$setOnInsert": bson.M{"counter": start}},
		options.UpdateOne().SetUpsert(true),
	)
	return storeErr(err, "initializing receipt counter")
}

func (s *counterStore) Current(ctx context.Context) (int64, error) {
	var doc counterDoc
	err := s.col.FindOne(ctx, bson.M{"_id": counter.ReceiptCounterID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, storeErr(err, "reading receipt counter")
	}
	return doc.Counter, nil
}

func (s *counterStore) Allocate(ctx context.Context) (int64, error) {
	return s.AllocateBatch(ctx, 1)
}

func (s *counterStore) AllocateBatch(ctx context.Context, n int) (int64, error) {
	if n < 1 {
		return 0, counter.ErrInvalidBatchSize
	}
	var doc counterDoc
	err := s.col.FindOneAndUpdate(
		ctx,
		bson.M{"_id": counter.ReceiptCounterID},
		bson.M{"$inc": bson.M{"counter": int64(n)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, storeErr(err, "allocating receipt numbers")
	}
	return doc.Counter - int64(n) + 1, nil
}
