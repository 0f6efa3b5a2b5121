// Package mongodb is the MongoDB store of every domain collection.
//
// Documents use the driver's default field naming (lowercased Go field names).
// Multi-collection writes run in a session transaction, which needs a replica set.
package mongodb

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/trezcool/academia/core"
)

const (
	colCounters   = "counters"
	colStudents   = "students"
	colFees       = "fees"
	colUsers      = "users"
	colOTPs       = "otps"
	colBatches    = "batches"
	colKits       = "kits"
	colAttendance = "attendance"
	colScores     = "testscores"
)

type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ core.Transactor = (*DB)(nil)

// Open connects to the deployment and waits until it answers.
func Open(conf *core.Config) (*DB, error) {
	opts := options.Client().ApplyURI(conf.Database.URI)
	if conf.Database.ConnectTimeout > 0 {
		opts.SetConnectTimeout(conf.Database.ConnectTimeout)
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongo")
	}
	if err := ping(client); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return &DB{client: client, db: client.Database(conf.Database.Name)}, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(client *mongo.Client) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = client.Ping(ctx, readpref.Primary())
		cancel()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return core.NewStoreUnavailableError(err, "DB ping timeout")
	}
	return nil
}

func (db *DB) Close(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}

// Drop deletes the whole database. Tests only.
func (db *DB) Drop(ctx context.Context) error {
	return db.db.Drop(ctx)
}

func (db *DB) col(name string) *mongo.Collection {
	return db.db.Collection(name)
}

// WithinTx runs fn in a session transaction. Nested calls join the outer transaction.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	sess, err := db.client.StartSession()
	if err != nil {
		return storeErr(err, "starting session")
	}
	defer sess.EndSession(context.Background())

	if err := sess.StartTransaction(); err != nil {
		return storeErr(err, "starting transaction")
	}
	sctx := mongo.NewSessionContext(ctx, sess)
	if err := fn(sctx); err != nil {
		if abortErr := sess.AbortTransaction(context.Background()); abortErr != nil {
			return errors.Wrapf(err, "aborting transaction: %v", abortErr)
		}
		return err
	}
	if err := sess.CommitTransaction(sctx); err != nil {
		return core.NewStoreUnavailableError(err, "committing transaction")
	}
	return nil
}

// CreateIndexes creates the indexes every collection relies on. It is idempotent.
func (db *DB) CreateIndexes(ctx context.Context) error {
	unique := func() *options.IndexOptionsBuilder { return options.Index().SetUnique(true) }
	indexes := map[string][]mongo.IndexModel{
		colStudents: {
			{Keys: bson.D{{Key: "rollno", Value: 1}}, Options: unique()},
			{Keys: bson.D{{Key: "parent.email", Value: 1}}},
			{Keys: bson.D{{Key: "batch", Value: 1}}},
		},
		colFees: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique()},
			{Keys: bson.D{{Key: "studentrollno", Value: 1}}, Options: unique()},
			{
				Keys: bson.D{{Key: "submissions.receiptnumber", Value: 1}},
				Options: unique().SetPartialFilterExpression(bson.M{
					"submissions.receiptnumber": bson.M{"$exists": true},
				}),
			},
		},
		colUsers: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique()},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique()},
			{
				Keys:    bson.D{{Key: "username", Value: 1}},
				Options: unique().SetPartialFilterExpression(bson.M{"username": bson.M{"$gt": ""}}),
			},
		},
		colOTPs: {
			{Keys: bson.D{{Key: "email", Value: 1}, {Key: "used", Value: 1}}},
		},
		colBatches: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique()},
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: unique()},
		},
		colKits: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique()},
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: unique()},
		},
		colAttendance: {
			{Keys: bson.D{{Key: "rollno", Value: 1}, {Key: "date", Value: 1}}},
			{Keys: bson.D{{Key: "date", Value: -1}}},
		},
		colScores: {
			{Keys: bson.D{{Key: "name", Value: 1}}},
			{Keys: bson.D{{Key: "rollnumber", Value: 1}}},
		},
	}
	for col, models := range indexes {
		if _, err := db.col(col).Indexes().CreateMany(ctx, models); err != nil {
			return storeErr(err, "creating indexes on "+col)
		}
	}
	return nil
}

const (
	duplicateKeyCode  = 11000
	writeConflictCode = 112
	transientTxnLabel = "TransientTransactionError"
)

// storeErr marks connectivity failures and aborted transactions as retryable and wraps everything else.
func storeErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || isWriteConflict(err) {
		return core.NewStoreUnavailableError(err, msg)
	}
	return errors.Wrap(err, msg)
}

// isWriteConflict reports a transaction that lost a write to a concurrent transaction.
func isWriteConflict(err error) bool {
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	return se.HasErrorCode(writeConflictCode) || se.HasErrorLabel(transientTxnLabel)
}

// duplicateKey returns the first field of the unique index a duplicate key error hit, or "".
func duplicateKey(err error) string {
	var writeErrs []mongo.WriteError
	var we mongo.WriteException
	var bwe mongo.BulkWriteException
	switch {
	case errors.As(err, &we):
		writeErrs = we.WriteErrors
	case errors.As(err, &bwe):
		for _, e := range bwe.WriteErrors {
			writeErrs = append(writeErrs, e.WriteError)
		}
	}
	for _, e := range writeErrs {
		if e.Code != duplicateKeyCode {
			continue
		}
		if pattern, ok := e.Raw.Lookup("keyPattern").DocumentOK(); ok {
			if elems, err := pattern.Elements(); err == nil && len(elems) > 0 {
				return elems[0].Key()
			}
		}
		// older servers only name the index in the message: "... index: <name>_1 dup key: ..."
		if _, rest, ok := strings.Cut(e.Message, "index: "); ok {
			name, _, _ := strings.Cut(rest, " ")
			if i := strings.LastIndex(name, "_"); i > 0 {
				return name[:i]
			}
			return name
		}
	}
	return ""
}

func sortBy(field string, ascending bool) bson.D {
	dir := -1
	if ascending {
		dir = 1
	}
	return bson.D{{Key: field, Value: dir}}
}
