package mongodb

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/fee"
)

func keyPattern(t *testing.T, field string) bson.Raw {
	raw, err := bson.Marshal(bson.D{{Key: "keyPattern", Value: bson.D{{Key: field, Value: 1}}}})
	require.NoError(t, err)
	return raw
}

func duplicate(t *testing.T, field string) mongo.WriteException {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{
		{Code: duplicateKeyCode, Message: "E11000 duplicate key error", Raw: keyPattern(t, field)},
	}}
}

func TestWriteErr(t *testing.T) {
	writeConflict := mongo.CommandError{Code: writeConflictCode, Name: "WriteConflict", Labels: []string{transientTxnLabel}}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "duplicate receipt number", err: duplicate(t, "submissions.receiptnumber"), want: fee.ErrReceiptCollision},
		{name: "duplicate roll number", err: duplicate(t, "studentrollno"), want: fee.ErrLedgerExists},
		{
			name: "index named in the message only",
			err: mongo.WriteException{WriteErrors: []mongo.WriteError{{
				Code:    duplicateKeyCode,
				Message: "E11000 duplicate key error collection: academia.fees index: submissions.receiptnumber_1 dup key: { submissions.receiptnumber: 100001 }",
			}}},
			want: fee.ErrReceiptCollision,
		},
		{
			name: "duplicate in a bulk write",
			err: mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{
				{WriteError: mongo.WriteError{Code: duplicateKeyCode, Raw: keyPattern(t, "submissions.receiptnumber")}},
			}},
			want: fee.ErrReceiptCollision,
		},
		{name: "write conflict", err: writeConflict, want: fee.ErrVersionConflict},
		{name: "wrapped write conflict", err: errors.Wrap(writeConflict, "replacing"), want: fee.ErrVersionConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := writeErr(tt.err, "writing fee record")
			assert.Equal(t, tt.want, err)
			assert.Equal(t, core.KindConflict, core.KindOf(err))
		})
	}
}

func TestStoreErr(t *testing.T) {
	assert.NoError(t, storeErr(nil, "noop"))

	err := storeErr(mongo.CommandError{Code: writeConflictCode, Labels: []string{transientTxnLabel}}, "saving student")
	assert.Equal(t, core.KindStoreUnavailable, core.KindOf(err))

	err = storeErr(errors.New("boom"), "saving student")
	assert.Equal(t, core.KindInternal, core.KindOf(err))
	assert.Contains(t, err.Error(), "saving student")
}
