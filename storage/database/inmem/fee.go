package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/fee"
)

type feeRepository struct {
	db *DB
}

func NewFeeRepository(db *DB) fee.Repository {
	return &feeRepository{db: db}
}

func cloneLedger(l fee.Ledger) fee.Ledger {
	l.Submissions = append([]fee.Submission{}, l.Submissions...)
	if l.DueDate != nil {
		d := *l.DueDate
		l.DueDate = &d
	}
	return l
}

func (repo *feeRepository) byRoll(rollNo int) (fee.Ledger, bool) {
	id, ok := repo.db.t.ledgerIDs[rollNo]
	if !ok {
		return fee.Ledger{}, false
	}
	l, ok := repo.db.t.ledgers[id]
	return l, ok
}

func (repo *feeRepository) FindByRollNumber(ctx context.Context, rollNo int) (fee.Ledger, error) {
	defer repo.db.lock(ctx)()
	if l, ok := repo.byRoll(rollNo); ok {
		return cloneLedger(l), nil
	}
	return fee.Ledger{}, fee.ErrLedgerNotFound
}

func (repo *feeRepository) FindByRollNumbers(ctx context.Context, rollNos []int) ([]fee.Ledger, error) {
	defer repo.db.lock(ctx)()
	ledgers := make([]fee.Ledger, 0, len(rollNos))
	seen := make(map[int]bool, len(rollNos))
	for _, r := range rollNos {
		if l, ok := repo.byRoll(r); ok && !seen[r] {
			seen[r] = true
			ledgers = append(ledgers, cloneLedger(l))
		}
	}
	return ledgers, nil
}

func (repo *feeRepository) FindByReceiptNumber(ctx context.Context, receiptNo int64) (fee.Ledger, error) {
	defer repo.db.lock(ctx)()
	for _, l := range repo.db.t.ledgers {
		if _, ok := l.Submission(receiptNo); ok {
			return cloneLedger(l), nil
		}
	}
	return fee.Ledger{}, fee.ErrLedgerNotFound
}

func (repo *feeRepository) insert(l fee.Ledger) {
	repo.db.t.ledgers[l.ID] = cloneLedger(l)
	repo.db.t.ledgerIDs[l.StudentRollNo] = l.ID
}

func (repo *feeRepository) Insert(ctx context.Context, l fee.Ledger) error {
	defer repo.db.lock(ctx)()
	if _, ok := repo.db.t.ledgerIDs[l.StudentRollNo]; ok {
		return fee.ErrLedgerExists
	}
	repo.insert(l)
	return nil
}

func (repo *feeRepository) InsertMany(ctx context.Context, ledgers []fee.Ledger) error {
	defer repo.db.lock(ctx)()
	seen := make(map[int]bool, len(ledgers))
	for _, l := range ledgers {
		if _, ok := repo.db.t.ledgerIDs[l.StudentRollNo]; ok || seen[l.StudentRollNo] {
			return fee.ErrLedgerExists
		}
		seen[l.StudentRollNo] = true
	}
	for _, l := range ledgers {
		repo.insert(l)
	}
	return nil
}

func (repo *feeRepository) update(l fee.Ledger) error {
	stored, ok := repo.db.t.ledgers[l.ID]
	if !ok || stored.Version != l.Version {
		return fee.ErrVersionConflict
	}
	l = cloneLedger(l)
	l.Version++
	repo.db.t.ledgers[l.ID] = l
	return nil
}

func (repo *feeRepository) Update(ctx context.Context, l fee.Ledger) error {
	defer repo.db.lock(ctx)()
	return repo.update(l)
}

func (repo *feeRepository) UpdateMany(ctx context.Context, ledgers []fee.Ledger) error {
	defer repo.db.lock(ctx)()
	for _, l := range ledgers {
		stored, ok := repo.db.t.ledgers[l.ID]
		if !ok || stored.Version != l.Version {
			return fee.ErrVersionConflict
		}
	}
	for _, l := range ledgers {
		if err := repo.update(l); err != nil {
			return err
		}
	}
	return nil
}

func (repo *feeRepository) Query(ctx context.Context, page core.Pagination) ([]fee.Ledger, int64, error) {
	defer repo.db.lock(ctx)()
	ledgers := make([]fee.Ledger, 0, len(repo.db.t.ledgers))
	for _, l := range repo.db.t.ledgers {
		ledgers = append(ledgers, cloneLedger(l))
	}
	sort.Slice(ledgers, func(i, j int) bool { return ledgers[i].StudentRollNo < ledgers[j].StudentRollNo })
	return paginate(ledgers, page), int64(len(ledgers)), nil
}

func (repo *feeRepository) Totals(ctx context.Context) (fee.Totals, error) {
	defer repo.db.lock(ctx)()
	var t fee.Totals
	for _, l := range repo.db.t.ledgers {
		t.TotalRevenue += l.FinalFees
		t.TotalCollected += l.PaidAmount
		t.TotalPending += l.PendingAmount
		t.Ledgers++
	}
	return t, nil
}
