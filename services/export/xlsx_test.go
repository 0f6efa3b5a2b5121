package exportsvc_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/fee"
	"github.com/trezcool/academia/services/export"
	"github.com/trezcool/academia/storage/database/inmem"
	"github.com/trezcool/academia/tests"
)

func setup(t *testing.T) *exportsvc.Service {
	db := testutil.PrepareDB(t)
	students := inmemdb.NewStudentRepository(db)
	fees := inmemdb.NewFeeRepository(db)

	testutil.CreateStudent(t, students, 1001, "Asha", "p@x.io")
	testutil.CreateStudent(t, students, 1002, "Bala", "")
	testutil.CreateStudent(t, students, 2000, "Outside", "")

	paidOn := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, fees.Insert(context.Background(), fee.Ledger{
		ID:            "l1",
		StudentRollNo: 1001,
		TotalFees:     1000,
		FinalFees:     1000,
		PaidAmount:    600,
		PendingAmount: 400,
		Status:        fee.StatusPartial,
		Submissions: []fee.Submission{
			{Amount: 400, Mode: "cash", DateOfReceipt: paidOn, ReceiptNumber: 100001},
			{Amount: 200, Mode: "upi", DateOfReceipt: paidOn.AddDate(0, 1, 0), ReceiptNumber: 100002, UTR: "U1"},
		},
	}))
	return exportsvc.NewService(students, fees)
}

func TestService_Students(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	f, err := svc.Students(ctx, 1000, 1999, true)
	require.NoError(t, err)

	rows, err := f.GetRows(exportsvc.StudentsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Roll No", rows[0][0])
	assert.Equal(t, "Fee Status", rows[0][len(rows[0])-1])
	assert.Equal(t, "1001", rows[1][0])
	assert.Equal(t, "PARTIAL", rows[1][len(rows[1])-1])
	assert.Equal(t, "1002", rows[2][0])
	assert.Equal(t, "UNPAID", rows[2][len(rows[2])-1])

	installments, err := f.GetRows(exportsvc.InstallmentsSheet)
	require.NoError(t, err)
	require.Len(t, installments, 3)
	assert.Equal(t, []string{"1001", "1", "400", "cash", "2024-03-01", "100001"}, installments[1])
	assert.Equal(t, []string{"1001", "2", "200", "upi", "2024-04-01", "100002", "U1"}, installments[2])
}

func TestService_Students_withoutFees(t *testing.T) {
	svc := setup(t)

	var buf bytes.Buffer
	require.NoError(t, svc.WriteStudents(context.Background(), &buf, 1001, 1001, false))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, []string{exportsvc.StudentsSheet}, f.GetSheetList())
}

func TestService_Students_errors(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	_, err := svc.Students(ctx, 10, 1, false)
	assert.ErrorIs(t, err, exportsvc.ErrInvalidRange)
	assert.Equal(t, core.KindValidation, core.KindOf(err))

	_, err = svc.Students(ctx, 5000, 6000, false)
	assert.Equal(t, exportsvc.ErrNoStudents, err)
	assert.True(t, core.IsNotFound(err))
}
