// Package bulk imports spreadsheets as all-or-nothing units.
//
// Every import validates all its rows before touching the store and writes
// everything inside one transaction: a sheet that fails on row K leaves rows
// 1..K-1 unwritten. Receipt numbers are reserved as one contiguous block just
// before the transaction; the block is lost if the transaction aborts.
package bulk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/counter"
	"github.com/trezcool/academia/core/fee"
	"github.com/trezcool/academia/core/kit"
	"github.com/trezcool/academia/core/student"
	"github.com/trezcool/academia/core/testscore"
)

var (
	ErrEmptySheet = errors.New("the sheet has no rows")
	ErrNoKits     = errors.New("no kits to assign")

	errRollNoExists = errors.New("roll number already exists")

	nowFunc = time.Now // mockable
)

type (
	SeedResult struct {
		InsertedCount int `json:"insertedCount"`
	}

	ApplyResult struct {
		UpdatedCount        int   `json:"updatedCount"`
		NotFoundRollNumbers []int `json:"notFoundRollNumbers"`
	}

	KitResult struct {
		UpdatedCount        int       `json:"updatedCount"`
		NotFoundRollNumbers []int     `json:"notFoundRollNumbers"`
		Kits                []kit.Kit `json:"kits"`
	}

	ImportResult struct {
		InsertedCount int `json:"insertedCount"`
	}

	Service struct {
		tx         core.Transactor
		counter    counter.Store
		students   student.Repository
		fees       fee.Repository
		kits       *kit.Service
		attendance *attendance.Service
		scores     *testscore.Service
		logger     core.Logger
	}
)

func NewService(
	tx core.Transactor,
	counterStore counter.Store,
	students student.Repository,
	fees fee.Repository,
	kits *kit.Service,
	att *attendance.Service,
	scores *testscore.Service,
	logger core.Logger,
) *Service {
	return &Service{
		tx:         tx,
		counter:    counterStore,
		students:   students,
		fees:       fees,
		kits:       kits,
		attendance: att,
		scores:     scores,
		logger:     logger,
	}
}

// SeedStudentsWithFees creates a student and their fee ledger for every row.
// Rows with a received amount get one receipt each, numbered in row order from one reserved block.
func (svc *Service) SeedStudentsWithFees(ctx context.Context, rows []StudentRow) (SeedResult, error) {
	if len(rows) == 0 {
		return SeedResult{}, core.NewFieldError("rows", ErrEmptySheet)
	}

	seeds := make([]seed, 0, len(rows))
	rowOf := make(map[int]int, len(rows)) // {rollNo: row}
	paid := 0
	for i, row := range rows {
		s, err := parseStudentRow(i+1, row)
		if err != nil {
			return SeedResult{}, err
		}
		if _, dup := rowOf[s.student.RollNo]; dup {
			return SeedResult{}, rowError(i+1, "ROLL NO.", errDuplicateRow)
		}
		rowOf[s.student.RollNo] = i + 1
		if s.payment != nil {
			paid++
		}
		seeds = append(seeds, s)
	}

	rollNos := make([]int, 0, len(seeds))
	for _, s := range seeds {
		rollNos = append(rollNos, s.student.RollNo)
	}
	taken, err := svc.students.ExistingRollNumbers(ctx, rollNos)
	if err != nil {
		return SeedResult{}, errors.Wrap(err, "checking roll numbers")
	}
	if len(taken) > 0 {
		first := taken[0]
		for _, t := range taken {
			if rowOf[t] < rowOf[first] {
				first = t
			}
		}
		return SeedResult{}, core.NewConflictError(
			fmt.Sprintf("row %d: ROLL NO.: %v (%d)", rowOf[first], errRollNoExists, first),
		)
	}

	block, err := counter.ReserveBlock(ctx, svc.counter, paid)
	if err != nil {
		return SeedResult{}, errors.Wrap(err, "reserving receipt numbers")
	}

	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := nowFunc().UTC()
		students := make([]student.Student, 0, len(seeds))
		ledgers := make([]fee.Ledger, 0, len(seeds))

		for _, s := range seeds {
			l := fee.NewLedger(s.student.RollNo, s.terms, now)
			if s.payment != nil {
				sub := *s.payment
				receiptNo, ok := block.Next()
				if !ok {
					return errors.New("receipt block exhausted")
				}
				sub.ReceiptNumber = receiptNo
				if err := l.Apply(sub, now); err != nil {
					return rowError(rowOf[s.student.RollNo], "Received Amount", err)
				}
			}

			st := s.student
			st.FeeID = l.ID
			st.CreatedAt = now
			st.UpdatedAt = now
			students = append(students, st)
			ledgers = append(ledgers, l)
		}

		if err := svc.students.InsertMany(ctx, students); err != nil {
			return errors.Wrap(err, "inserting students")
		}
		if err := svc.fees.InsertMany(ctx, ledgers); err != nil {
			return errors.Wrap(err, "inserting fee records")
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}

	svc.logger.Info(fmt.Sprintf("bulk seeded %d students (%d receipts)", len(seeds), paid))
	return SeedResult{InsertedCount: len(seeds)}, nil
}

// ApplySubmissions records installments against existing ledgers. Rows whose student has no
// ledger are reported, not failed. Any invalid or overpaying row fails the whole sheet.
func (svc *Service) ApplySubmissions(ctx context.Context, rows []SubmissionRow) (ApplyResult, error) {
	if len(rows) == 0 {
		return ApplyResult{}, core.NewFieldError("rows", ErrEmptySheet)
	}

	items := make([]installment, 0, len(rows))
	rollNos := make([]int, 0, len(rows))
	seen := make(map[int]bool, len(rows))
	for i, row := range rows {
		it, err := parseSubmissionRow(i+1, row)
		if err != nil {
			return ApplyResult{}, err
		}
		items = append(items, it)
		if !seen[it.rollNo] {
			seen[it.rollNo] = true
			rollNos = append(rollNos, it.rollNo)
		}
	}

	ledgers, err := svc.fees.FindByRollNumbers(ctx, rollNos)
	if err != nil {
		return ApplyResult{}, errors.Wrap(err, "finding fee records")
	}
	matched, notFound, err := simulate(items, ledgers)
	if err != nil {
		return ApplyResult{}, err
	}
	result := ApplyResult{NotFoundRollNumbers: notFound}
	if len(matched) == 0 {
		return result, nil
	}

	block, err := counter.ReserveBlock(ctx, svc.counter, len(matched))
	if err != nil {
		return ApplyResult{}, errors.Wrap(err, "reserving receipt numbers")
	}

	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := nowFunc().UTC()
		current, err := svc.fees.FindByRollNumbers(ctx, rollNos)
		if err != nil {
			return errors.Wrap(err, "finding fee records")
		}
		byRoll := make(map[int]*fee.Ledger, len(current))
		for i := range current {
			byRoll[current[i].StudentRollNo] = &current[i]
		}

		order := make([]int, 0, len(byRoll))
		touched := make(map[int]bool, len(byRoll))
		for _, it := range matched {
			l, ok := byRoll[it.rollNo]
			if !ok {
				return fee.ErrVersionConflict
			}
			sub := it.sub
			receiptNo, ok := block.Next()
			if !ok {
				return errors.New("receipt block exhausted")
			}
			sub.ReceiptNumber = receiptNo
			if err := l.Apply(sub, now); err != nil {
				return rowError(it.row, "amount", err)
			}
			if !touched[it.rollNo] {
				touched[it.rollNo] = true
				order = append(order, it.rollNo)
			}
		}

		updated := make([]fee.Ledger, 0, len(order))
		for _, rollNo := range order {
			updated = append(updated, *byRoll[rollNo])
		}
		if err := svc.fees.UpdateMany(ctx, updated); err != nil {
			return errors.Wrap(err, "updating fee records")
		}
		result.UpdatedCount = len(updated)
		return nil
	})
	if err != nil {
		return ApplyResult{}, err
	}
	return result, nil
}

// simulate applies items to copies of ledgers to find overpayments before anything is written.
// It returns the items that target an existing ledger and the roll numbers that have none.
func simulate(items []installment, ledgers []fee.Ledger) ([]installment, []int, error) {
	byRoll := make(map[int]fee.Ledger, len(ledgers))
	for _, l := range ledgers {
		byRoll[l.StudentRollNo] = l
	}

	matched := make([]installment, 0, len(items))
	notFound := []int{}
	reported := make(map[int]bool)
	paid := make(map[int]int64, len(ledgers))
	for _, it := range items {
		l, ok := byRoll[it.rollNo]
		if !ok {
			if !reported[it.rollNo] {
				reported[it.rollNo] = true
				notFound = append(notFound, it.rollNo)
			}
			continue
		}
		l.PaidAmount += paid[it.rollNo]
		if err := l.CanAccept(it.sub.Amount); err != nil {
			return nil, nil, rowError(it.row, "amount", err)
		}
		paid[it.rollNo] += it.sub.Amount
		matched = append(matched, it)
	}
	return matched, notFound, nil
}

// AssignKits hands kits out to students. Unknown kit names are created.
func (svc *Service) AssignKits(ctx context.Context, rows []KitRow) (KitResult, error) {
	if len(rows) == 0 {
		return KitResult{}, core.NewFieldError("rows", ErrEmptySheet)
	}
	defaultKits := splitNames(rows[0].Kits)
	if len(defaultKits) == 0 {
		return KitResult{}, rowError(1, "kits", ErrNoKits)
	}
	description := rows[0].Description.String()

	type assignment struct {
		rollNos []int
		names   []string
	}
	groups := make(map[string]*assignment) // {normalized kit list: assignment}
	groupOrder := make([]string, 0)
	allNames := make([]string, 0)
	for i, row := range rows {
		rollNo, err := row.RollNumber.RollNo()
		if err != nil {
			return KitResult{}, rowError(i+1, "rollnum", err)
		}
		names := splitNames(row.Kits)
		if len(names) == 0 {
			names = defaultKits
		}
		for j := range names {
			names[j] = core.CleanString(names[j], true /* lower */)
		}
		key := strings.Join(names, ",")
		g, ok := groups[key]
		if !ok {
			g = &assignment{names: names}
			groups[key] = g
			groupOrder = append(groupOrder, key)
			allNames = append(allNames, names...)
		}
		g.rollNos = append(g.rollNos, rollNo)
	}

	var result KitResult
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		kits, err := svc.kits.FindOrCreate(ctx, allNames, description)
		if err != nil {
			return err
		}
		idOf := make(map[string]string, len(kits))
		for _, k := range kits {
			idOf[k.Name] = k.ID
		}

		found := make(map[int]bool)
		asked := make([]int, 0, len(rows))
		for _, key := range groupOrder {
			g := groups[key]
			ids := make([]string, 0, len(g.names))
			for _, n := range g.names {
				ids = append(ids, idOf[n])
			}
			matched, err := svc.students.AddKits(ctx, g.rollNos, ids)
			if err != nil {
				return errors.Wrap(err, "assigning kits")
			}
			for _, r := range matched {
				found[r] = true
			}
			asked = append(asked, g.rollNos...)
		}

		result = KitResult{Kits: kits, NotFoundRollNumbers: []int{}}
		reported := make(map[int]bool)
		for _, r := range asked {
			if reported[r] {
				continue
			}
			reported[r] = true
			if found[r] {
				result.UpdatedCount++
			} else {
				result.NotFoundRollNumbers = append(result.NotFoundRollNumbers, r)
			}
		}
		return nil
	})
	if err != nil {
		return KitResult{}, err
	}
	return result, nil
}

// ImportAttendance stores a day of attendance.
func (svc *Service) ImportAttendance(ctx context.Context, date string, rows []AttendanceRow) (ImportResult, error) {
	day, err := Cell(date).Date()
	if err != nil {
		return ImportResult{}, core.NewFieldError("date", attendance.ErrMissingDate)
	}
	if len(rows) == 0 {
		return ImportResult{}, core.NewFieldError("rows", ErrEmptySheet)
	}
	records := make([]attendance.NewRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := parseAttendanceRow(i+1, row)
		if err != nil {
			return ImportResult{}, err
		}
		records = append(records, rec)
	}

	var n int
	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		n, err = svc.attendance.BulkRecord(ctx, day, records)
		return err
	})
	if err != nil {
		return ImportResult{}, err
	}
	return ImportResult{InsertedCount: n}, nil
}

// ImportTestScores stores the result sheet of a test.
func (svc *Service) ImportTestScores(ctx context.Context, name, date string, rows []ScoreRow) (ImportResult, error) {
	scores := make([]testscore.NewScore, 0, len(rows))
	for i, row := range rows {
		s, err := parseScoreRow(i+1, row)
		if err != nil {
			return ImportResult{}, err
		}
		scores = append(scores, s)
	}

	var n int
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		n, err = svc.scores.Upload(ctx, name, date, scores)
		return err
	})
	if err != nil {
		return ImportResult{}, err
	}
	return ImportResult{InsertedCount: n}, nil
}
