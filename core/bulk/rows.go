package bulk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/fee"
	"github.com/trezcool/academia/core/student"
	"github.com/trezcool/academia/core/testscore"
)

const notAvailable = "N/A"

// StudentRow is one line of the admission sheet: a new student and their fee terms.
type StudentRow struct {
	RollNo             Cell `json:"ROLL NO."`
	Name               Cell `json:"Student Name"`
	Class              Cell `json:"Class"`
	PreviousSchoolName Cell `json:"Previous School Name"`
	Medium             Cell `json:"Medium"`
	DOB                Cell `json:"DOB"`
	Gender             Cell `json:"Gender"`
	Category           Cell `json:"Category"`
	State              Cell `json:"State"`
	City               Cell `json:"City"`
	PinCode            Cell `json:"Pincode"`
	PermanentAddress   Cell `json:"Permanent Address"`
	MobileNumber       Cell `json:"student mobile no"`
	TShirtSize         Cell `json:"T-SHIRT SIZE"`
	HowDidYouHear      Cell `json:"How did you hear about us"`
	ProgrammeName      Cell `json:"Programme Name"`
	EmergencyContact   Cell `json:"Emergency Local Contact No"`
	Email              Cell `json:"Email ID"`
	FatherName         Cell `json:"Father's Name"`
	MotherName         Cell `json:"Mother's Name"`
	ParentOccupation   Cell `json:"Parents Occupation"`
	ParentContact      Cell `json:"Parents Contact No."`
	ParentEmail        Cell `json:"Parents Email"`
	Batch              Cell `json:"BATCH NAME"`
	TotalFees          Cell `json:"Total Fees"`
	Discount           Cell `json:"Discount"`
	FinalFees          Cell `json:"FINAL FEE"`
	ReceivedAmount     Cell `json:"Received Amount"`
	Mode               Cell `json:"Mode of Payment"`
	DateOfReceipt      Cell `json:"Date of Receipt"`
	UTR                Cell `json:"UTR NO."`
	DueDate            Cell `json:"Expected Date of Receipt of Pending Fees"`
	ApprovedBy         Cell `json:"Approved By"`
}

// SubmissionRow is one installment paid against an existing ledger.
type SubmissionRow struct {
	RollNumber    Cell `json:"rollNumber"`
	Amount        Cell `json:"amount"`
	Mode          Cell `json:"mode"`
	DateOfReceipt Cell `json:"dateOfReceipt"`
	UTR           Cell `json:"UTR"`
}

// KitRow assigns kits to a student. A row without kits reuses the kits of the first row.
type KitRow struct {
	RollNumber  Cell `json:"rollnum"`
	Kits        Cell `json:"kits"` // comma separated names
	Description Cell `json:"description"`
}

// AttendanceRow is one line of the biometric device export.
type AttendanceRow struct {
	RollNo         Cell `json:"rollNo"`
	Name           Cell `json:"name"`
	InTime         Cell `json:"inTime"`
	OutTime        Cell `json:"outTime"`
	LateArrival    Cell `json:"lateArrival"`
	EarlyDeparture Cell `json:"earlyDeparture"`
	WorkingHours   Cell `json:"workingHours"`
	OTDuration     Cell `json:"otDuration"`
	PresentStatus  Cell `json:"presentStatus"`
}

// ScoreRow is one line of a result sheet. Columns other than the known ones holding a number
// are subject marks.
type ScoreRow map[string]Cell

const (
	scoreRollCol       = "Roll No"
	scoreStudentCol    = "Student Name"
	scoreFatherCol     = "Students Father Name"
	scoreBatchCol      = "Batch"
	scorePercentileCol = "Percentile"
	scoreTotalCol      = "Total"
	scoreRankCol       = "Test Rank"
)

var scoreKnownCols = map[string]bool{
	scoreRollCol: true, scoreStudentCol: true, scoreFatherCol: true, scoreBatchCol: true,
	scorePercentileCol: true, scoreTotalCol: true, scoreRankCol: true,
}

// rowError reports the first problem of a sheet as "row N: field: reason". N is 1-based.
func rowError(row int, field string, err error) error {
	fld := fmt.Sprintf("row %d: %s", row, field)
	return core.NewValidationError(errors.Wrap(err, fld), core.FieldError{Field: fld, Error: err.Error()})
}

func orNA(c Cell) string {
	if c.Empty() {
		return notAvailable
	}
	return c.String()
}

// seed is a validated StudentRow.
type seed struct {
	student student.Student
	terms   fee.Terms
	payment *fee.Submission // nil when nothing was received; no receipt number yet
}

func parseStudentRow(n int, row StudentRow) (seed, error) {
	rollNo, err := row.RollNo.RollNo()
	if err != nil {
		return seed{}, rowError(n, "ROLL NO.", err)
	}
	if row.MobileNumber.Empty() {
		return seed{}, rowError(n, "student mobile no", errRequired)
	}
	if row.ParentContact.Empty() {
		return seed{}, rowError(n, "Parents Contact No.", errRequired)
	}
	dob, err := row.DOB.OptionalDate()
	if err != nil {
		return seed{}, rowError(n, "DOB", err)
	}

	if row.FinalFees.Empty() {
		return seed{}, rowError(n, "FINAL FEE", errRequired)
	}
	finalFees, err := row.FinalFees.Amount()
	if err != nil {
		return seed{}, rowError(n, "FINAL FEE", err)
	}
	if finalFees == 0 {
		return seed{}, rowError(n, "FINAL FEE", errNotPositive)
	}
	totalFees, err := row.TotalFees.Amount()
	if err != nil {
		return seed{}, rowError(n, "Total Fees", err)
	}
	discount, err := row.Discount.Amount()
	if err != nil {
		return seed{}, rowError(n, "Discount", err)
	}
	received, err := row.ReceivedAmount.Amount()
	if err != nil {
		return seed{}, rowError(n, "Received Amount", err)
	}
	if received > finalFees {
		return seed{}, rowError(n, "Received Amount", fee.ErrOverpayment)
	}
	dueDate, err := row.DueDate.OptionalDate()
	if err != nil {
		return seed{}, rowError(n, "Expected Date of Receipt of Pending Fees", err)
	}

	var payment *fee.Submission
	if received > 0 {
		if row.Mode.Empty() {
			return seed{}, rowError(n, "Mode of Payment", errRequired)
		}
		date, err := row.DateOfReceipt.Date()
		if err != nil {
			return seed{}, rowError(n, "Date of Receipt", err)
		}
		payment = &fee.Submission{
			Amount:        received,
			Mode:          row.Mode.String(),
			DateOfReceipt: date,
			UTR:           row.UTR.String(),
		}
	}

	name := row.Name.String()
	if name == "" {
		name = notAvailable
	}
	return seed{
		student: student.Student{
			RollNo:               rollNo,
			Name:                 name,
			Class:                row.Class.String(),
			PreviousSchoolName:   row.PreviousSchoolName.String(),
			Medium:               row.Medium.String(),
			DOB:                  dob,
			Gender:               row.Gender.String(),
			Category:             row.Category.String(),
			State:                row.State.String(),
			City:                 row.City.String(),
			PinCode:              row.PinCode.String(),
			PermanentAddress:     row.PermanentAddress.String(),
			MobileNumber:         row.MobileNumber.String(),
			TShirtSize:           row.TShirtSize.String(),
			HowDidYouHearAboutUs: row.HowDidYouHear.String(),
			ProgrammeName:        row.ProgrammeName.String(),
			EmergencyContact:     row.EmergencyContact.String(),
			Email:                strings.ToLower(row.Email.String()),
			Batch:                strings.ToLower(row.Batch.String()),
			Parent: student.Parent{
				FatherName: row.FatherName.String(),
				MotherName: row.MotherName.String(),
				Occupation: row.ParentOccupation.String(),
				Contact:    row.ParentContact.String(),
				Email:      strings.ToLower(row.ParentEmail.String()),
			},
			Kits: []string{},
		},
		terms: fee.Terms{
			TotalFees:  totalFees,
			Discount:   discount,
			FinalFees:  finalFees,
			ApprovedBy: row.ApprovedBy.String(),
			DueDate:    dueDate,
		},
		payment: payment,
	}, nil
}

// installment is a validated SubmissionRow.
type installment struct {
	row    int
	rollNo int
	sub    fee.Submission
}

func parseSubmissionRow(n int, row SubmissionRow) (installment, error) {
	rollNo, err := row.RollNumber.RollNo()
	if err != nil {
		return installment{}, rowError(n, "rollNumber", err)
	}
	if row.Amount.Empty() {
		return installment{}, rowError(n, "amount", errRequired)
	}
	amount, err := row.Amount.Amount()
	if err != nil {
		return installment{}, rowError(n, "amount", err)
	}
	if amount == 0 {
		return installment{}, rowError(n, "amount", errNotPositive)
	}
	if row.Mode.Empty() {
		return installment{}, rowError(n, "mode", errRequired)
	}
	date, err := row.DateOfReceipt.Date()
	if err != nil {
		return installment{}, rowError(n, "dateOfReceipt", err)
	}
	return installment{
		row:    n,
		rollNo: rollNo,
		sub: fee.Submission{
			Amount:        amount,
			Mode:          row.Mode.String(),
			DateOfReceipt: date,
			UTR:           row.UTR.String(),
		},
	}, nil
}

func parseAttendanceRow(n int, row AttendanceRow) (attendance.NewRecord, error) {
	rollNo, err := row.RollNo.RollNo()
	if err != nil {
		return attendance.NewRecord{}, rowError(n, "rollNo", err)
	}
	if row.Name.Empty() {
		return attendance.NewRecord{}, rowError(n, "name", errRequired)
	}
	return attendance.NewRecord{
		RollNo:         rollNo,
		Name:           row.Name.String(),
		InTime:         orNA(row.InTime),
		OutTime:        orNA(row.OutTime),
		LateArrival:    orNA(row.LateArrival),
		EarlyDeparture: orNA(row.EarlyDeparture),
		WorkingHours:   orNA(row.WorkingHours),
		OTDuration:     orNA(row.OTDuration),
		PresentStatus:  orNA(row.PresentStatus),
	}, nil
}

func parseScoreRow(n int, row ScoreRow) (testscore.NewScore, error) {
	rollNo, err := row[scoreRollCol].RollNo()
	if err != nil {
		return testscore.NewScore{}, rowError(n, scoreRollCol, err)
	}
	num := func(col string) (float64, error) {
		c := row[col]
		if c.Empty() {
			return 0, nil
		}
		f, err := c.Float()
		if err != nil {
			return 0, rowError(n, col, err)
		}
		return f, nil
	}

	score := testscore.NewScore{
		RollNumber:  rollNo,
		StudentName: row[scoreStudentCol].String(),
		FatherName:  row[scoreFatherCol].String(),
		Batch:       row[scoreBatchCol].String(),
	}
	if score.Total, err = num(scoreTotalCol); err != nil {
		return testscore.NewScore{}, err
	}
	if score.Percentile, err = num(scorePercentileCol); err != nil {
		return testscore.NewScore{}, err
	}
	rank, err := num(scoreRankCol)
	if err != nil {
		return testscore.NewScore{}, err
	}
	score.Rank = int(rank)

	cols := make([]string, 0, len(row))
	for col := range row {
		if !scoreKnownCols[col] {
			cols = append(cols, col)
		}
	}
	sort.Strings(cols)
	for _, col := range cols {
		if marks, err := row[col].Float(); err == nil {
			score.Subjects = append(score.Subjects, testscore.Subject{Name: col, Marks: marks})
		}
	}
	return score, nil
}

func splitNames(c Cell) []string {
	var names []string
	for _, n := range strings.Split(c.String(), ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}
