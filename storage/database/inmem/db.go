// Package inmemdb is a process-local store used by tests and local runs.
//
// A single lock guards every table. WithinTx holds that lock for the whole unit
// of work and restores a snapshot of the tables when the work fails, so
// transactions are serializable and all-or-nothing.
package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/batch"
	"github.com/trezcool/academia/core/fee"
	"github.com/trezcool/academia/core/kit"
	"github.com/trezcool/academia/core/student"
	"github.com/trezcool/academia/core/testscore"
	"github.com/trezcool/academia/core/user"
)

type (
	DB struct {
		mutex   sync.Mutex
		t       *tables
		counter *counterTable
	}

	tables struct {
		students   map[int]student.Student
		ledgers    map[string]fee.Ledger // {id: ledger}
		ledgerIDs  map[int]string        // {rollNo: ledger id}
		users      map[string]user.User
		otps       []user.OTP
		batches    map[string]batch.Batch
		kits       map[string]kit.Kit
		attendance []attendance.Record
		scores     []testscore.Score
	}

	txKey struct{}
)

func newTables() *tables {
	return &tables{
		students:  make(map[int]student.Student),
		ledgers:   make(map[string]fee.Ledger),
		ledgerIDs: make(map[int]string),
		users:     make(map[string]user.User),
		batches:   make(map[string]batch.Batch),
		kits:      make(map[string]kit.Kit),
	}
}

// clone copies the maps and slices of t. Values are copied on write, never mutated in place.
func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.students {
		c.students[k] = v
	}
	for k, v := range t.ledgers {
		c.ledgers[k] = v
	}
	for k, v := range t.ledgerIDs {
		c.ledgerIDs[k] = v
	}
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.batches {
		c.batches[k] = v
	}
	for k, v := range t.kits {
		c.kits[k] = v
	}
	c.otps = append([]user.OTP(nil), t.otps...)
	c.attendance = append([]attendance.Record(nil), t.attendance...)
	c.scores = append([]testscore.Score(nil), t.scores...)
	return c
}

func Open() *DB {
	return &DB{t: newTables(), counter: &counterTable{}}
}

func (db *DB) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*DB)
	return owner == db
}

// lock takes the table lock unless ctx already holds it through WithinTx.
func (db *DB) lock(ctx context.Context) func() {
	if db.inTx(ctx) {
		return func() {}
	}
	db.mutex.Lock()
	return db.mutex.Unlock
}

// WithinTx implements core.Transactor. Nested calls join the outer unit of work.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if db.inTx(ctx) {
		return fn(ctx)
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	snapshot := db.t.clone()
	committed := false
	defer func() {
		if !committed {
			db.t = snapshot
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, db)); err != nil {
		return err
	}
	committed = true
	return nil
}

// Reset drops all data, the receipt counter included.
func (db *DB) Reset() {
	db.mutex.Lock()
	db.t = newTables()
	db.mutex.Unlock()

	db.counter.mutex.Lock()
	db.counter.initialized, db.counter.value = false, 0
	db.counter.mutex.Unlock()
}
