package fee

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/counter"
	"github.com/trezcool/academia/core/student"
)

const UnknownStudentName = "Unknown"

var (
	// errors
	ErrStudentNotFound  = core.NewNotFoundError("no student with this roll number")
	ErrLedgerNotFound   = core.NewNotFoundError("fee record not found")
	ErrReceiptNotFound  = core.NewNotFoundError("receipt not found")
	ErrLedgerExists     = core.NewConflictError("a fee record already exists for this student")
	ErrVersionConflict  = core.NewConflictError("the fee record was modified concurrently, please retry")
	ErrReceiptCollision = core.NewConflictError("receipt number already issued")

	ErrMissingRollNo      = errors.New("student roll number is required")
	ErrInvalidAmount      = errors.New("amount must be greater than 0")
	ErrMissingPaymentMode = errors.New("payment mode is required")
	ErrInvalidDate        = errors.New("date of receipt must be a valid date")
	ErrMissingFinalFees   = errors.New("final fees are required for the first submission")
	ErrInvalidFinalFees   = errors.New("final fees must be greater than 0")
	ErrMissingDueDate     = errors.New("a due date is required when the fees are not paid in full")
	ErrInvalidDueDate     = errors.New("due date must be a valid date")
	ErrOverpayment        = errors.New("amount exceeds the pending fees")
	ErrAmountTooLarge     = errors.New("amount must not exceed 1000000000000")

	nowFunc = time.Now // mockable
)

type (
	// Repository persists Ledgers. Methods accept a transaction-bound ctx (see core.Transactor).
	Repository interface {
		FindByRollNumber(ctx context.Context, rollNo int) (Ledger, error)
		FindByRollNumbers(ctx context.Context, rollNos []int) ([]Ledger, error)
		FindByReceiptNumber(ctx context.Context, receiptNo int64) (Ledger, error)
		Insert(ctx context.Context, l Ledger) error
		InsertMany(ctx context.Context, ledgers []Ledger) error
		// Update stores l if the stored version still equals l.Version, and bumps the version.
		// ErrVersionConflict otherwise.
		Update(ctx context.Context, l Ledger) error
		// UpdateMany is Update for several ledgers in a single bulk write.
		UpdateMany(ctx context.Context, ledgers []Ledger) error
		// Query pages through ledgers ordered by roll number.
		Query(ctx context.Context, page core.Pagination) ([]Ledger, int64, error)
		Totals(ctx context.Context) (Totals, error)
	}

	Service struct {
		tx       core.Transactor
		counter  counter.Store
		students student.Repository
		repo     Repository
		logger   core.Logger
	}
)

func NewService(
	tx core.Transactor,
	counterStore counter.Store,
	students student.Repository,
	repo Repository,
	logger core.Logger,
) *Service {
	return &Service{
		tx:       tx,
		counter:  counterStore,
		students: students,
		repo:     repo,
		logger:   logger,
	}
}

func (svc *Service) Repository() Repository { return svc.repo }

type checkedInput struct {
	rollNo int
	sub    Submission
	terms  *Terms // nil when no final fees were supplied
}

// checkInput validates the fields that do not depend on the stored state.
func checkInput(in SubmissionInput) (checkedInput, error) {
	if in.StudentRollNo <= 0 {
		return checkedInput{}, core.NewFieldError("studentRollNo", ErrMissingRollNo)
	}
	if in.PaidAmount <= 0 {
		return checkedInput{}, core.NewFieldError("paidAmount", ErrInvalidAmount)
	}
	if in.PaidAmount > core.MaxAmount {
		return checkedInput{}, core.NewFieldError("paidAmount", ErrAmountTooLarge)
	}
	if core.CleanString(in.Mode) == "" {
		return checkedInput{}, core.NewFieldError("mode", ErrMissingPaymentMode)
	}
	date, err := core.ParseDate(in.DateOfReceipt)
	if err != nil {
		return checkedInput{}, core.NewFieldError("dateOfReceipt", ErrInvalidDate)
	}

	ci := checkedInput{
		rollNo: in.StudentRollNo,
		sub: Submission{
			Amount:        in.PaidAmount,
			Mode:          core.CleanString(in.Mode),
			DateOfReceipt: date,
			UTR:           core.CleanString(in.UTR),
		},
	}
	if in.FinalFees != nil {
		terms := Terms{FinalFees: *in.FinalFees, ApprovedBy: core.CleanString(in.ApprovedBy)}
		if in.TotalFees != nil {
			terms.TotalFees = *in.TotalFees
		}
		if in.Discount != nil {
			terms.Discount = *in.Discount
		}
		if in.DueDate != "" {
			due, err := core.ParseDate(in.DueDate)
			if err != nil {
				return checkedInput{}, core.NewFieldError("dueDate", ErrInvalidDueDate)
			}
			terms.DueDate = &due
		}
		ci.terms = &terms
	}
	return ci, nil
}

// checkTerms validates the terms a new Ledger would be opened with, for a first payment of amount.
func checkTerms(terms *Terms, amount int64) error {
	if terms == nil {
		return core.NewFieldError("finalFees", ErrMissingFinalFees)
	}
	if terms.FinalFees <= 0 {
		return core.NewFieldError("finalFees", ErrInvalidFinalFees)
	}
	if terms.FinalFees > core.MaxAmount {
		return core.NewFieldError("finalFees", ErrAmountTooLarge)
	}
	if amount > terms.FinalFees {
		return core.NewFieldError("paidAmount", ErrOverpayment)
	}
	if terms.FinalFees != amount && terms.DueDate == nil {
		return core.NewFieldError("dueDate", ErrMissingDueDate)
	}
	return nil
}

// termsWarnings reports a final fee that disagrees with total - discount. The supplied final fee wins.
func termsWarnings(terms *Terms) []string {
	if terms == nil || terms.TotalFees == 0 {
		return nil
	}
	if want := terms.TotalFees - terms.Discount; want != terms.FinalFees {
		return []string{fmt.Sprintf(
			"finalFees (%d) differs from totalFees - discount (%d); the supplied finalFees was kept",
			terms.FinalFees, want,
		)}
	}
	return nil
}

// RecordSubmission records one payment for a student: it opens the student's Ledger on the
// first payment or appends to it, and issues one receipt number.
// All validation happens before anything is written. The ledger write and the student
// back-reference are committed together; the receipt number is allocated just before the
// transaction and is lost (never reused) if the transaction fails.
func (svc *Service) RecordSubmission(ctx context.Context, in SubmissionInput) (RecordResult, error) {
	ci, err := checkInput(in)
	if err != nil {
		return RecordResult{}, err
	}

	exists, err := svc.students.Exists(ctx, ci.rollNo)
	if err != nil {
		return RecordResult{}, errors.Wrap(err, "checking student")
	}
	if !exists {
		return RecordResult{}, ErrStudentNotFound
	}

	var warnings []string
	existing, err := svc.repo.FindByRollNumber(ctx, ci.rollNo)
	switch {
	case err == nil:
		if err := existing.CanAccept(ci.sub.Amount); err != nil {
			return RecordResult{}, core.NewFieldError("paidAmount", err)
		}
	case errors.Cause(err) == ErrLedgerNotFound:
		if err := checkTerms(ci.terms, ci.sub.Amount); err != nil {
			return RecordResult{}, err
		}
		warnings = termsWarnings(ci.terms)
		for _, w := range warnings {
			svc.logger.Warn(fmt.Sprintf("fee for roll number %d: %s", ci.rollNo, w))
		}
	default:
		return RecordResult{}, errors.Wrap(err, "finding fee record")
	}

	receiptNo, err := svc.counter.Allocate(ctx)
	if err != nil {
		return RecordResult{}, errors.Wrap(err, "allocating receipt number")
	}
	ci.sub.ReceiptNumber = receiptNo

	var ledger Ledger
	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := nowFunc().UTC()

		l, err := svc.repo.FindByRollNumber(ctx, ci.rollNo)
		if err != nil && errors.Cause(err) != ErrLedgerNotFound {
			return errors.Wrap(err, "finding fee record")
		}

		if err == nil { // append
			if err := l.Apply(ci.sub, now); err != nil {
				return core.NewFieldError("paidAmount", err)
			}
			if err := svc.repo.Update(ctx, l); err != nil {
				return errors.Wrap(err, "updating fee record")
			}
			l.Version++
			ledger = l
			return nil
		}

		// first submission
		if err := checkTerms(ci.terms, ci.sub.Amount); err != nil {
			return err
		}
		l = NewLedger(ci.rollNo, *ci.terms, now)
		if err := l.Apply(ci.sub, now); err != nil {
			return core.NewFieldError("paidAmount", err)
		}
		if err := svc.repo.Insert(ctx, l); err != nil {
			return errors.Wrap(err, "inserting fee record")
		}
		if err := svc.students.SetFeeRef(ctx, ci.rollNo, l.ID); err != nil {
			return errors.Wrap(err, "linking fee record to student")
		}
		ledger = l
		return nil
	})
	if err != nil {
		return RecordResult{}, err
	}

	return RecordResult{Ledger: ledger, Receipt: ci.sub, Warnings: warnings}, nil
}

// ListByRollNumber returns the fee history of a student.
func (svc *Service) ListByRollNumber(ctx context.Context, rollNo int) (StudentLedger, error) {
	s, err := svc.students.FindByRollNumber(ctx, rollNo)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return StudentLedger{}, ErrStudentNotFound
		}
		return StudentLedger{}, errors.Wrap(err, "finding student")
	}

	view := StudentLedger{StudentName: s.Name, StudentRollNo: s.RollNo, Submissions: []Submission{}}
	l, err := svc.repo.FindByRollNumber(ctx, rollNo)
	switch {
	case err == nil:
		view.Ledger = &l
		view.Submissions = l.Submissions
	case errors.Cause(err) != ErrLedgerNotFound:
		return StudentLedger{}, errors.Wrap(err, "finding fee record")
	}
	return view, nil
}

// ListAll pages through all ledgers and resolves the owning students' names.
func (svc *Service) ListAll(ctx context.Context, page core.Pagination) (Page, error) {
	ledgers, total, err := svc.repo.Query(ctx, page)
	if err != nil {
		return Page{}, errors.Wrap(err, "querying fee records")
	}

	rollNos := make([]int, 0, len(ledgers))
	for _, l := range ledgers {
		rollNos = append(rollNos, l.StudentRollNo)
	}
	names := make(map[int]string, len(ledgers))
	if len(rollNos) > 0 {
		students, err := svc.students.FindByRollNumbers(ctx, rollNos)
		if err != nil {
			return Page{}, errors.Wrap(err, "finding students")
		}
		for _, s := range students {
			names[s.RollNo] = s.Name
		}
	}

	items := make([]LedgerItem, 0, len(ledgers))
	for _, l := range ledgers {
		name, ok := names[l.StudentRollNo]
		if !ok {
			name = UnknownStudentName
		}
		items = append(items, LedgerItem{Ledger: l, StudentName: name})
	}
	return Page{PageInfo: core.NewPageInfo(page, total), Data: items}, nil
}

// GetReceipt finds the submission that was issued receiptNo.
func (svc *Service) GetReceipt(ctx context.Context, receiptNo int64) (Receipt, error) {
	l, err := svc.repo.FindByReceiptNumber(ctx, receiptNo)
	if err != nil {
		if errors.Cause(err) == ErrLedgerNotFound {
			return Receipt{}, ErrReceiptNotFound
		}
		return Receipt{}, errors.Wrap(err, "finding fee record")
	}
	sub, ok := l.Submission(receiptNo)
	if !ok {
		return Receipt{}, ErrReceiptNotFound
	}

	name := UnknownStudentName
	if s, err := svc.students.FindByRollNumber(ctx, l.StudentRollNo); err == nil {
		name = s.Name
	} else if errors.Cause(err) != student.ErrNotFound {
		return Receipt{}, errors.Wrap(err, "finding student")
	}

	return Receipt{
		Submission:    sub,
		StudentRollNo: l.StudentRollNo,
		StudentName:   name,
		FinalFees:     l.FinalFees,
		PaidAmount:    l.PaidAmount,
		PendingAmount: l.PendingAmount,
		Status:        l.Status,
	}, nil
}

func (svc *Service) Totals(ctx context.Context) (Totals, error) {
	return svc.repo.Totals(ctx)
}
