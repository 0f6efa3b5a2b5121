package fee

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

type Status string

const (
	StatusUnpaid  Status = "UNPAID"
	StatusPartial Status = "PARTIAL"
	StatusPaid    Status = "PAID"
)

// Submission is one payment recorded against a Ledger. Submissions are append-only.
type Submission struct {
	Amount        int64     `json:"amount"`
	Mode          string    `json:"mode"`
	DateOfReceipt time.Time `json:"dateOfReceipt"`
	ReceiptNumber int64     `json:"receiptNumber"`
	UTR           string    `json:"UTR,omitempty"`
}

// Ledger is the fee record of one student, keyed by the student's roll number.
// Amounts are whole currency units.
type Ledger struct {
	ID            string       `json:"id"`
	StudentRollNo int          `json:"studentRollNo"`
	TotalFees     int64        `json:"totalFees"`
	Discount      int64        `json:"discount"`
	FinalFees     int64        `json:"finalFees"`
	ApprovedBy    string       `json:"approvedBy,omitempty"`
	PaidAmount    int64        `json:"paidAmount"`
	PendingAmount int64        `json:"pendingAmount"`
	DueDate       *time.Time   `json:"dueDate,omitempty"`
	Status        Status       `json:"status"`
	Submissions   []Submission `json:"feeSubmissions"`
	Version       int64        `json:"-"` // optimistic concurrency token
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// Terms are the charges a Ledger is opened with.
type Terms struct {
	TotalFees  int64
	Discount   int64
	FinalFees  int64
	ApprovedBy string
	DueDate    *time.Time
}

// SubmissionInput is the payload of RecordSubmission. Terms fields are only read when
// the student has no Ledger yet.
type SubmissionInput struct {
	StudentRollNo int    `json:"studentRollNo"`
	TotalFees     *int64 `json:"totalFees" validate:"omitempty,min=0,max=1000000000000"`
	Discount      *int64 `json:"discount" validate:"omitempty,min=0,max=1000000000000"`
	FinalFees     *int64 `json:"finalFees" validate:"omitempty,max=1000000000000"`
	ApprovedBy    string `json:"approvedBy" validate:"max=100"`
	PaidAmount    int64  `json:"paidAmount" validate:"max=1000000000000"`
	DueDate       string `json:"dueDate"`
	Mode          string `json:"mode" validate:"max=50"`
	DateOfReceipt string `json:"dateOfReceipt"`
	UTR           string `json:"UTR" validate:"max=100"`
}

// Validate cleans the input and checks the secondary constraints. The required fields are
// checked by the Service so that each failure maps to its own error.
func (in *SubmissionInput) Validate(validate *validator.Validate) error {
	in.Mode = core.CleanString(in.Mode)
	in.ApprovedBy = core.CleanString(in.ApprovedBy)
	in.DateOfReceipt = core.CleanString(in.DateOfReceipt)
	in.DueDate = core.CleanString(in.DueDate)
	in.UTR = core.CleanString(in.UTR)
	return validate.Struct(in)
}

// RecordResult is the Ledger state after a submission.
type RecordResult struct {
	Ledger
	Receipt  Submission `json:"receipt"`
	Warnings []string   `json:"warnings,omitempty"`
}

// StudentLedger is the fee view of one student. Ledger is nil when no fee was recorded yet.
type StudentLedger struct {
	StudentName   string       `json:"studentName"`
	StudentRollNo int          `json:"studentRollNo"`
	Ledger        *Ledger      `json:"fee"`
	Submissions   []Submission `json:"feeSubmissions"`
}

type LedgerItem struct {
	Ledger
	StudentName string `json:"studentName"`
}

type Page struct {
	core.PageInfo
	Data []LedgerItem `json:"data"`
}

// Receipt is a single Submission with the ledger state it belongs to.
type Receipt struct {
	Submission
	StudentRollNo int    `json:"studentRollNo"`
	StudentName   string `json:"studentName"`
	FinalFees     int64  `json:"finalFees"`
	PaidAmount    int64  `json:"paidAmount"`
	PendingAmount int64  `json:"pendingAmount"`
	Status        Status `json:"status"`
}

// Totals aggregates all ledgers.
type Totals struct {
	TotalRevenue   int64 `json:"totalRevenue"` // sum of final fees
	TotalCollected int64 `json:"totalCollected"`
	TotalPending   int64 `json:"totalPending"`
	Ledgers        int64 `json:"ledgers"`
}
