package mongodb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/trezcool/academia/core/batch"
	"github.com/trezcool/academia/core/kit"
)

type batchRepository struct {
	col *mongo.Collection
}

func NewBatchRepository(db *DB) batch.Repository {
	return &batchRepository{col: db.col(colBatches)}
}

func (repo *batchRepository) Insert(ctx context.Context, b batch.Batch) error {
	if _, err := repo.col.InsertOne(ctx, b); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return batch.ErrNameExists
		}
		return storeErr(err, "inserting batch")
	}
	return nil
}

func (repo *batchRepository) List(ctx context.Context) ([]batch.Batch, error) {
	cur, err := repo.col.Find(ctx, bson.M{}, options.Find().SetSort(sortBy("startdate", false)))
	if err != nil {
		return nil, storeErr(err, "finding batches")
	}
	var batches []batch.Batch
	if err := cur.All(ctx, &batches); err != nil {
		return nil, storeErr(err, "decoding batches")
	}
	return batches, nil
}

func (repo *batchRepository) Get(ctx context.Context, id string) (batch.Batch, error) {
	var b batch.Batch
	err := repo.col.FindOne(ctx, bson.M{"id": id}).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return batch.Batch{}, batch.ErrNotFound
	}
	if err != nil {
		return batch.Batch{}, storeErr(err, "finding batch")
	}
	return b, nil
}

func (repo *batchRepository) Update(ctx context.Context, b batch.Batch) error {
	res, err := repo.col.ReplaceOne(ctx, bson.M{"id": b.ID}, b)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return batch.ErrNameExists
		}
		return storeErr(err, "updating batch")
	}
	if res.MatchedCount == 0 {
		return batch.ErrNotFound
	}
	return nil
}

func (repo *batchRepository) Delete(ctx context.Context, id string) error {
	res, err := repo.col.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return storeErr(err, "deleting batch")
	}
	if res.DeletedCount == 0 {
		return batch.ErrNotFound
	}
	return nil
}

type kitRepository struct {
	col *mongo.Collection
}

func NewKitRepository(db *DB) kit.Repository {
	return &kitRepository{col: db.col(colKits)}
}

func (repo *kitRepository) Insert(ctx context.Context, k kit.Kit) error {
	if _, err := repo.col.InsertOne(ctx, k); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return kit.ErrNameExists
		}
		return storeErr(err, "inserting kit")
	}
	return nil
}

func (repo *kitRepository) List(ctx context.Context) ([]kit.Kit, error) {
	cur, err := repo.col.Find(ctx, bson.M{}, options.Find().SetSort(sortBy("name", true)))
	if err != nil {
		return nil, storeErr(err, "finding kits")
	}
	var kits []kit.Kit
	if err := cur.All(ctx, &kits); err != nil {
		return nil, storeErr(err, "decoding kits")
	}
	return kits, nil
}

// Ensure upserts by name so concurrent imports naming the same new kit end up sharing one.
func (repo *kitRepository) Ensure(ctx context.Context, names []string, description string, now time.Time) ([]kit.Kit, error) {
	kits := make([]kit.Kit, 0, len(names))
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	for _, name := range names {
		var k kit.Kit
		err := repo.col.FindOneAndUpdate(
			ctx,
			bson.M{"name": name},
			bson.M{"$setOnInsert": bson.M{
				"id":          uuid.NewString(),
				"description": description,
				"createdat":   now,
			}},
			opts,
		).Decode(&k)
		if err != nil {
			return nil, storeErr(err, "ensuring kit "+name)
		}
		kits = append(kits, k)
	}
	return kits, nil
}
