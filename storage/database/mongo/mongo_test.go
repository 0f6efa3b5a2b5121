package mongodb_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/counter"
	"github.com/trezcool/academia/core/fee"
	"github.com/trezcool/academia/core/student"
	"github.com/trezcool/academia/storage/database/mongo"
)

// openDB connects to the replica set named by TEST_MONGO_URI, on a throwaway database.
func openDB(t *testing.T) *mongodb.DB {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	conf := core.NewTestConfig()
	conf.Database.URI = uri
	conf.Database.Name = "academia_test_" + uuid.NewString()[:8]
	conf.Database.ConnectTimeout = 5 * time.Second

	db, err := mongodb.Open(conf)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, db.CreateIndexes(ctx))
	t.Cleanup(func() {
		_ = db.Drop(ctx)
		_ = db.Close(ctx)
	})
	return db
}

func TestCounterStore(t *testing.T) {
	ctx := context.Background()
	store := mongodb.NewCounterStore(openDB(t))

	cur, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cur)

	require.NoError(t, store.Init(ctx, counter.DefaultStart))
	require.NoError(t, store.Init(ctx, 5)) // never lowers

	first, err := store.Allocate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(counter.DefaultStart+1), first)

	block, err := store.AllocateBatch(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, first+1, block)

	_, err = store.AllocateBatch(ctx, 0)
	assert.Equal(t, counter.ErrInvalidBatchSize, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := store.Allocate(ctx)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, seen[n])
			seen[n] = true
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 20)

	cur, err = store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(counter.DefaultStart+24), cur)
}

func TestFeeRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := mongodb.NewFeeRepository(openDB(t))

	now := time.Now().UTC().Truncate(time.Millisecond)
	l := fee.Ledger{ID: uuid.NewString(), StudentRollNo: 1001, FinalFees: 1000, PendingAmount: 1000, Status: fee.StatusUnpaid, CreatedAt: now}
	require.NoError(t, repo.Insert(ctx, l))
	assert.Equal(t, fee.ErrLedgerExists, repo.Insert(ctx, fee.Ledger{ID: uuid.NewString(), StudentRollNo: 1001}))

	stored, err := repo.FindByRollNumber(ctx, 1001)
	require.NoError(t, err)
	stored.Submissions = append(stored.Submissions, fee.Submission{Amount: 400, Mode: "cash", DateOfReceipt: now, ReceiptNumber: 100001})
	stored.PaidAmount, stored.PendingAmount, stored.Status = 400, 600, fee.StatusPartial
	require.NoError(t, repo.Update(ctx, stored))

	// stale version
	assert.Equal(t, fee.ErrVersionConflict, repo.Update(ctx, stored))

	byReceipt, err := repo.FindByReceiptNumber(ctx, 100001)
	require.NoError(t, err)
	assert.Equal(t, l.ID, byReceipt.ID)
	assert.Equal(t, int64(1), byReceipt.Version)

	_, err = repo.FindByReceiptNumber(ctx, 100002)
	assert.Equal(t, fee.ErrLedgerNotFound, err)

	other := fee.Ledger{ID: uuid.NewString(), StudentRollNo: 1002, FinalFees: 500, PendingAmount: 500}
	other.Submissions = []fee.Submission{{Amount: 100, ReceiptNumber: 100001}}
	assert.Equal(t, fee.ErrReceiptCollision, repo.Insert(ctx, other))

	totals, err := repo.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, fee.Totals{TotalRevenue: 1000, TotalCollected: 400, TotalPending: 600, Ledgers: 1}, totals)
}

func TestFeeRepository_concurrentUpdates(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	repo := mongodb.NewFeeRepository(db)
	require.NoError(t, repo.Insert(ctx, fee.Ledger{ID: uuid.NewString(), StudentRollNo: 1001, FinalFees: 1000, PendingAmount: 1000, Status: fee.StatusUnpaid}))

	// both transactions read the same version before either writes
	var (
		read sync.WaitGroup
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	read.Add(len(errs))
	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = db.WithinTx(ctx, func(ctx context.Context) error {
				l, err := repo.FindByRollNumber(ctx, 1001)
				read.Done()
				if err != nil {
					return err
				}
				read.Wait()
				l.Submissions = append(l.Submissions, fee.Submission{Amount: 100, Mode: "cash", ReceiptNumber: int64(100001 + i)})
				l.PaidAmount += 100
				return repo.Update(ctx, l)
			})
		}()
	}
	wg.Wait()

	var conflicts int
	for _, err := range errs {
		if err != nil {
			assert.Equal(t, fee.ErrVersionConflict, err)
			conflicts++
		}
	}
	assert.Equal(t, 1, conflicts)

	stored, err := repo.FindByRollNumber(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stored.PaidAmount)
	assert.Equal(t, int64(1), stored.Version)
	assert.Len(t, stored.Submissions, 1)
}

func TestStudentRepository(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	repo := mongodb.NewStudentRepository(db)

	for _, s := range []student.Student{
		{RollNo: 3, Name: "Chitra", Batch: "beta", Kits: []string{}},
		{RollNo: 1, Name: "Asha", Batch: "alpha", Kits: []string{}},
		{RollNo: 2, Name: "Bala", Batch: "alpha", Kits: []string{}},
	} {
		require.NoError(t, repo.Insert(ctx, s))
	}
	assert.Equal(t, student.ErrRollNoExists, repo.Insert(ctx, student.Student{RollNo: 1}))

	students, total, err := repo.Query(ctx, student.QueryFilter{Batch: "alpha"}, nil, core.Pagination{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, students, 2)
	assert.Equal(t, 1, students[0].RollNo)

	students, _, err = repo.Query(ctx, student.QueryFilter{Search: "chi"}, nil, core.Pagination{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, 3, students[0].RollNo)

	matched, err := repo.AddKits(ctx, []int{1, 2, 99}, []string{"k1", "k2"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2}, matched)
	_, err = repo.AddKits(ctx, []int{1}, []string{"k1"})
	require.NoError(t, err)
	s, err := repo.FindByRollNumber(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, s.Kits)

	counts, err := repo.CountByBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, []student.BatchCount{{Batch: "alpha", Count: 2}, {Batch: "beta", Count: 1}}, counts)

	// a failed transaction leaves nothing behind
	err = db.WithinTx(ctx, func(ctx context.Context) error {
		if err := repo.Insert(ctx, student.Student{RollNo: 4, Name: "Devi"}); err != nil {
			return err
		}
		return repo.Insert(ctx, student.Student{RollNo: 1, Name: "dup"})
	})
	assert.Equal(t, student.ErrRollNoExists, err)
	exists, err := repo.Exists(ctx, 4)
	require.NoError(t, err)
	assert.False(t, exists)
}
