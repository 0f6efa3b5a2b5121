package fee

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StatusFor derives the status from the aggregates: PAID iff nothing is pending,
// UNPAID iff nothing was paid, PARTIAL otherwise.
func StatusFor(paid, pending int64) Status {
	switch {
	case pending == 0:
		return StatusPaid
	case paid == 0:
		return StatusUnpaid
	default:
		return StatusPartial
	}
}

func pendingFor(final, paid int64) int64 {
	if p := final - paid; p > 0 {
		return p
	}
	return 0
}

// NewLedger opens an UNPAID Ledger for rollNo. terms.FinalFees must be > 0.
func NewLedger(rollNo int, terms Terms, now time.Time) Ledger {
	return Ledger{
		ID:            uuid.NewString(),
		StudentRollNo: rollNo,
		TotalFees:     terms.TotalFees,
		Discount:      terms.Discount,
		FinalFees:     terms.FinalFees,
		ApprovedBy:    terms.ApprovedBy,
		PaidAmount:    0,
		PendingAmount: terms.FinalFees,
		DueDate:       terms.DueDate,
		Status:        StatusFor(0, terms.FinalFees),
		Submissions:   []Submission{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CanAccept reports whether amount can be paid without exceeding the final fees.
func (l Ledger) CanAccept(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > l.FinalFees-l.PaidAmount {
		return ErrOverpayment
	}
	return nil
}

// Apply appends sub and recomputes paid, pending and status.
// It leaves l untouched when sub would overpay the Ledger.
func (l *Ledger) Apply(sub Submission, now time.Time) error {
	if err := l.CanAccept(sub.Amount); err != nil {
		return err
	}
	l.Submissions = append(l.Submissions, sub)
	l.PaidAmount += sub.Amount
	l.PendingAmount = pendingFor(l.FinalFees, l.PaidAmount)
	l.Status = StatusFor(l.PaidAmount, l.PendingAmount)
	l.UpdatedAt = now
	return nil
}

// CheckInvariants verifies that the aggregates agree with the submission history.
func (l Ledger) CheckInvariants() error {
	var sum int64
	for _, s := range l.Submissions {
		sum += s.Amount
	}
	if sum != l.PaidAmount {
		return fmt.Errorf("paidAmount %d != sum of submissions %d", l.PaidAmount, sum)
	}
	if want := pendingFor(l.FinalFees, l.PaidAmount); l.PendingAmount != want {
		return fmt.Errorf("pendingAmount %d != %d", l.PendingAmount, want)
	}
	if want := StatusFor(l.PaidAmount, l.PendingAmount); l.Status != want {
		return fmt.Errorf("status %s != %s", l.Status, want)
	}
	return nil
}

// LastReceiptNumber returns the highest receipt number issued for l, 0 if none.
func (l Ledger) LastReceiptNumber() int64 {
	var max int64
	for _, s := range l.Submissions {
		if s.ReceiptNumber > max {
			max = s.ReceiptNumber
		}
	}
	return max
}

// Submission returns the submission carrying receiptNo.
func (l Ledger) Submission(receiptNo int64) (Submission, bool) {
	for _, s := range l.Submissions {
		if s.ReceiptNumber == receiptNo {
			return s, true
		}
	}
	return Submission{}, false
}
