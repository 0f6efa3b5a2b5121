package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/fee"
)

type feeRepository struct {
	col *mongo.Collection
}

func NewFeeRepository(db *DB) fee.Repository {
	return &feeRepository{col: db.col(colFees)}
}

// writeErr maps the errors of a ledger write. A duplicate receipt number is told apart from a
// second ledger for the same student, and a transaction that lost a race is a version conflict.
func writeErr(err error, msg string) error {
	switch {
	case mongo.IsDuplicateKeyError(err):
		if duplicateKey(err) == "submissions.receiptnumber" {
			return fee.ErrReceiptCollision
		}
		return fee.ErrLedgerExists
	case isWriteConflict(err):
		return fee.ErrVersionConflict
	}
	return storeErr(err, msg)
}

func (repo *feeRepository) findOne(ctx context.Context, filter bson.M) (fee.Ledger, error) {
	var l fee.Ledger
	err := repo.col.FindOne(ctx, filter).Decode(&l)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fee.Ledger{}, fee.ErrLedgerNotFound
	}
	if err != nil {
		return fee.Ledger{}, storeErr(err, "finding fee record")
	}
	return l, nil
}

func (repo *feeRepository) FindByRollNumber(ctx context.Context, rollNo int) (fee.Ledger, error) {
	return repo.findOne(ctx, bson.M{"studentrollno": rollNo})
}

func (repo *feeRepository) FindByReceiptNumber(ctx context.Context, receiptNo int64) (fee.Ledger, error) {
	return repo.findOne(ctx, bson.M{"submissions.receiptnumber": receiptNo})
}

func (repo *feeRepository) FindByRollNumbers(ctx context.Context, rollNos []int) ([]fee.Ledger, error) {
	if len(rollNos) == 0 {
		return nil, nil
	}
	cur, err := repo.col.Find(ctx, bson.M{"studentrollno": bson.M{"$in": rollNos}})
	if err != nil {
		return nil, storeErr(err, "finding fee records")
	}
	var ledgers []fee.Ledger
	if err := cur.All(ctx, &ledgers); err != nil {
		return nil, storeErr(err, "decoding fee records")
	}
	return ledgers, nil
}

func (repo *feeRepository) Insert(ctx context.Context, l fee.Ledger) error {
	if _, err := repo.col.InsertOne(ctx, l); err != nil {
		return writeErr(err, "inserting fee record")
	}
	return nil
}

func (repo *feeRepository) InsertMany(ctx context.Context, ledgers []fee.Ledger) error {
	if len(ledgers) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(ledgers))
	for _, l := range ledgers {
		docs = append(docs, l)
	}
	if _, err := repo.col.InsertMany(ctx, docs); err != nil {
		return writeErr(err, "inserting fee records")
	}
	return nil
}

func (repo *feeRepository) Update(ctx context.Context, l fee.Ledger) error {
	filter := bson.M{"id": l.ID, "version": l.Version}
	l.Version++
	res, err := repo.col.ReplaceOne(ctx, filter, l)
	if err != nil {
		return writeErr(err, "updating fee record")
	}
	if res.MatchedCount == 0 {
		return fee.ErrVersionConflict
	}
	return nil
}

func (repo *feeRepository) UpdateMany(ctx context.Context, ledgers []fee.Ledger) error {
	if len(ledgers) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(ledgers))
	for _, l := range ledgers {
		filter := bson.M{"id": l.ID, "version": l.Version}
		l.Version++
		models = append(models, mongo.NewReplaceOneModel().SetFilter(filter).SetReplacement(l))
	}
	res, err := repo.col.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return writeErr(err, "updating fee records")
	}
	if res.MatchedCount != int64(len(ledgers)) {
		return fee.ErrVersionConflict
	}
	return nil
}

func (repo *feeRepository) Query(ctx context.Context, page core.Pagination) ([]fee.Ledger, int64, error) {
	total, err := repo.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, storeErr(err, "counting fee records")
	}
	opts := options.Find().SetSort(sortBy("studentrollno", true))
	if page.PageSize > 0 {
		opts.SetSkip(int64(page.Offset())).SetLimit(int64(page.PageSize))
	}
	cur, err := repo.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, storeErr(err, "finding fee records")
	}
	var ledgers []fee.Ledger
	if err := cur.All(ctx, &ledgers); err != nil {
		return nil, 0, storeErr(err, "decoding fee records")
	}
	return ledgers, total, nil
}

func (repo *feeRepository) Totals(ctx context.Context) (fee.Totals, error) {
	cur, err := repo.col.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":       nil,
			"revenue":   bson.M{"$sum": "$finalfees"},
			"collected": bson.M{"$sum": "$paidamount"},
			"pending":   bson.M{"$sum": "$pendingamount"},
			"ledgers":   bson.M{"$sum": 1},
		}}},
	})
	if err != nil {
		return fee.Totals{}, storeErr(err, "summing fee records")
	}
	var docs []struct {
		Revenue   int64 `bson:"revenue"`
		Collected int64 `bson:"collected"`
		Pending   int64 `bson:"pending"`
		Ledgers   int64 `bson:"ledgers"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return fee.Totals{}, storeErr(err, "decoding fee totals")
	}
	if len(docs) == 0 {
		return fee.Totals{}, nil
	}
	d := docs[0]
	return fee.Totals{TotalRevenue: d.Revenue, TotalCollected: d.Collected, TotalPending: d.Pending, Ledgers: d.Ledgers}, nil
}
