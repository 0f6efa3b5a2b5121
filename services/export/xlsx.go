// Package exportsvc builds the spreadsheet exports downloaded from the admin dashboard.
package exportsvc

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/fee"
	"github.com/trezcool/academia/core/student"
)

const (
	StudentsSheet     = "Students"
	InstallmentsSheet = "Installments"
	ContentType       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	ErrInvalidRange = errors.New("rollStart must not be greater than rollEnd")
	ErrNoStudents   = core.NewNotFoundError("no students found in the specified roll number range")
)

var studentHeaders = []string{
	"Roll No", "Name", "Class", "Previous School", "Medium", "DOB", "Gender", "Category",
	"State", "City", "Pin Code", "Permanent Address", "Mobile Number", "T-Shirt Size",
	"How Did You Hear About Us", "Programme Name", "Emergency Contact", "Student Email",
	"Father Name", "Mother Name", "Parent Occupation", "Parent Contact", "Parent Email",
	"Batch", "Created At", "Updated At",
	"Total Fees", "Discount", "Final Fees", "Approved By", "Paid Amount", "Due Date",
	"Pending Amount", "Fee Status",
}

var installmentHeaders = []string{
	"Roll No", "Installment No", "Amount", "Mode", "Date of Receipt", "Receipt Number", "UTR",
}

type Service struct {
	students student.Repository
	fees     fee.Repository
}

func NewService(students student.Repository, fees fee.Repository) *Service {
	return &Service{students: students, fees: fees}
}

// FileName is the attachment name of the export of [rollStart, rollEnd].
func FileName(rollStart, rollEnd int) string {
	return fmt.Sprintf("students_%d_to_%d.xlsx", rollStart, rollEnd)
}

// Students builds a workbook of the students whose roll numbers are in [rollStart, rollEnd],
// with their fee summary. includeFees adds an Installments sheet with one row per submission.
func (svc *Service) Students(ctx context.Context, rollStart, rollEnd int, includeFees bool) (*excelize.File, error) {
	if rollStart > rollEnd {
		return nil, core.NewValidationError(ErrInvalidRange, core.FieldError{Field: "rollStart", Error: ErrInvalidRange.Error()})
	}

	students, err := svc.students.QueryRange(ctx, rollStart, rollEnd)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	if len(students) == 0 {
		return nil, ErrNoStudents
	}

	rollNos := make([]int, 0, len(students))
	for _, s := range students {
		rollNos = append(rollNos, s.RollNo)
	}
	ledgers, err := svc.fees.FindByRollNumbers(ctx, rollNos)
	if err != nil {
		return nil, errors.Wrap(err, "querying fee records")
	}
	byRollNo := make(map[int]fee.Ledger, len(ledgers))
	for _, l := range ledgers {
		byRollNo[l.StudentRollNo] = l
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", StudentsSheet); err != nil {
		return nil, errors.Wrap(err, "naming students sheet")
	}
	if err := writeRow(f, StudentsSheet, 1, toRow(studentHeaders)); err != nil {
		return nil, err
	}
	for i, s := range students {
		if err := writeRow(f, StudentsSheet, i+2, studentRow(s, byRollNo[s.RollNo])); err != nil {
			return nil, err
		}
	}

	if includeFees {
		if _, err := f.NewSheet(InstallmentsSheet); err != nil {
			return nil, errors.Wrap(err, "adding installments sheet")
		}
		if err := writeRow(f, InstallmentsSheet, 1, toRow(installmentHeaders)); err != nil {
			return nil, err
		}
		row := 2
		for _, s := range students {
			l, ok := byRollNo[s.RollNo]
			if !ok {
				continue
			}
			for i, sub := range l.Submissions {
				values := []interface{}{
					l.StudentRollNo, i + 1, sub.Amount, sub.Mode,
					sub.DateOfReceipt.Format(core.DateLayout), sub.ReceiptNumber, sub.UTR,
				}
				if err := writeRow(f, InstallmentsSheet, row, values); err != nil {
					return nil, err
				}
				row++
			}
		}
	}
	return f, nil
}

// WriteStudents writes the Students workbook to w.
func (svc *Service) WriteStudents(ctx context.Context, w io.Writer, rollStart, rollEnd int, includeFees bool) error {
	f, err := svc.Students(ctx, rollStart, rollEnd, includeFees)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}

func studentRow(s student.Student, l fee.Ledger) []interface{} {
	dob := ""
	if s.DOB != nil {
		dob = s.DOB.Format(core.DateLayout)
	}
	dueDate := ""
	if l.DueDate != nil {
		dueDate = l.DueDate.Format(core.DateLayout)
	}
	status := l.Status
	if status == "" {
		status = fee.StatusUnpaid
	}
	return []interface{}{
		s.RollNo, s.Name, s.Class, s.PreviousSchoolName, s.Medium, dob, s.Gender, s.Category,
		s.State, s.City, s.PinCode, s.PermanentAddress, s.MobileNumber, s.TShirtSize,
		s.HowDidYouHearAboutUs, s.ProgrammeName, s.EmergencyContact, s.Email,
		s.Parent.FatherName, s.Parent.MotherName, s.Parent.Occupation, s.Parent.Contact, s.Parent.Email,
		s.Batch, s.CreatedAt.Format(core.DateLayout), s.UpdatedAt.Format(core.DateLayout),
		l.TotalFees, l.Discount, l.FinalFees, l.ApprovedBy, l.PaidAmount, dueDate,
		l.PendingAmount, string(status),
	}
}

func toRow(headers []string) []interface{} {
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	return row
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return errors.Wrap(err, "addressing row")
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return errors.Wrapf(err, "writing %s row %d", sheet, row)
	}
	return nil
}
