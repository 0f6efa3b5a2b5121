package bulk_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/bulk"
	"github.com/trezcool/academia/core/counter"
	"github.com/trezcool/academia/core/fee"
	"github.com/trezcool/academia/core/kit"
	"github.com/trezcool/academia/core/student"
	"github.com/trezcool/academia/core/testscore"
	"github.com/trezcool/academia/storage/database/inmem"
	"github.com/trezcool/academia/tests"
)

type fixture struct {
	svc        *bulk.Service
	students   student.Repository
	fees       fee.Repository
	kits       kit.Repository
	attendance attendance.Repository
	scores     testscore.Repository
	counter    counter.Store
}

func setup(t *testing.T) fixture {
	db := testutil.PrepareDB(t)
	f := fixture{
		students:   inmemdb.NewStudentRepository(db),
		fees:       inmemdb.NewFeeRepository(db),
		kits:       inmemdb.NewKitRepository(db),
		attendance: inmemdb.NewAttendanceRepository(db),
		scores:     inmemdb.NewScoreRepository(db),
		counter:    inmemdb.NewCounterStore(db),
	}
	f.svc = bulk.NewService(
		db,
		f.counter,
		f.students,
		f.fees,
		kit.NewService(f.kits),
		attendance.NewService(f.attendance),
		testscore.NewService(f.scores),
		testutil.NewLogger(),
	)
	return f
}

// studentRow builds a sheet line the way the spreadsheet converter sends it.
func studentRow(t *testing.T, rollNo int, final, received int64) bulk.StudentRow {
	raw := fmt.Sprintf(`{
		"ROLL NO.": %d,
		"Student Name": "Student %d",
		"student mobile no": "9876543210",
		"Parents Contact No.": 9123456780,
		"Parents Email": "Parent@Example.com",
		"BATCH NAME": "Alpha",
		"Total Fees": %d,
		"Discount": 0,
		"FINAL FEE": %d,
		"Received Amount": %d,
		"Mode of Payment": "cash",
		"Date of Receipt": "2024-03-01",
		"Expected Date of Receipt of Pending Fees": 45444
	}`, rollNo, rollNo, final, final, received)

	var row bulk.StudentRow
	require.NoError(t, json.Unmarshal([]byte(raw), &row))
	return row
}

func TestService_SeedStudentsWithFees(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	rows := []bulk.StudentRow{
		studentRow(t, 101, 5000, 2000),
		studentRow(t, 102, 6000, 0),
		studentRow(t, 103, 4000, 4000),
	}
	res, err := f.svc.SeedStudentsWithFees(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 3, res.InsertedCount)

	s, err := f.students.FindByRollNumber(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, "alpha", s.Batch)
	assert.Equal(t, "parent@example.com", s.Parent.Email)
	assert.True(t, s.HasFee())

	l, err := f.fees.FindByRollNumber(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, s.FeeID, l.ID)
	assert.Equal(t, fee.StatusPartial, l.Status)
	require.Len(t, l.Submissions, 1)
	assert.Equal(t, int64(100001), l.Submissions[0].ReceiptNumber)
	require.NotNil(t, l.DueDate)

	l, err = f.fees.FindByRollNumber(ctx, 102)
	require.NoError(t, err)
	assert.Equal(t, fee.StatusUnpaid, l.Status)
	assert.Empty(t, l.Submissions)

	l, err = f.fees.FindByRollNumber(ctx, 103)
	require.NoError(t, err)
	assert.Equal(t, fee.StatusPaid, l.Status)
	require.Len(t, l.Submissions, 1)
	assert.Equal(t, int64(100002), l.Submissions[0].ReceiptNumber)

	current, err := f.counter.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100002), current)
}

func TestService_SeedStudentsWithFees_allOrNothing(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		rows      func(t *testing.T) []bulk.StudentRow
		existing  []int
		wantKind  core.ErrorKind
		wantInErr string
	}{
		{
			name: "row 7 has no final fee",
			rows: func(t *testing.T) []bulk.StudentRow {
				rows := make([]bulk.StudentRow, 0, 10)
				for i := 1; i <= 10; i++ {
					rows = append(rows, studentRow(t, 200+i, 5000, 1000))
				}
				rows[6].FinalFees = ""
				return rows
			},
			wantKind:  core.KindValidation,
			wantInErr: "row 7: FINAL FEE",
		},
		{
			name: "duplicate roll number in the sheet",
			rows: func(t *testing.T) []bulk.StudentRow {
				return []bulk.StudentRow{studentRow(t, 301, 5000, 0), studentRow(t, 302, 5000, 0), studentRow(t, 301, 5000, 0)}
			},
			wantKind:  core.KindValidation,
			wantInErr: "row 3: ROLL NO.",
		},
		{
			name: "roll number already enrolled",
			rows: func(t *testing.T) []bulk.StudentRow {
				return []bulk.StudentRow{studentRow(t, 401, 5000, 0), studentRow(t, 402, 5000, 0)}
			},
			existing:  []int{402},
			wantKind:  core.KindConflict,
			wantInErr: "row 2: ROLL NO.",
		},
		{
			name: "received more than the final fee",
			rows: func(t *testing.T) []bulk.StudentRow {
				return []bulk.StudentRow{studentRow(t, 501, 5000, 0), studentRow(t, 502, 5000, 5001)}
			},
			wantKind:  core.KindValidation,
			wantInErr: "row 2: Received Amount",
		},
		{
			name:      "empty sheet",
			rows:      func(t *testing.T) []bulk.StudentRow { return nil },
			wantKind:  core.KindValidation,
			wantInErr: "no rows",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			for _, r := range tt.existing {
				testutil.CreateStudent(t, f.students, r, "Existing", "")
			}

			_, err := f.svc.SeedStudentsWithFees(ctx, tt.rows(t))
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, core.KindOf(err))
			assert.Contains(t, err.Error(), tt.wantInErr)

			n, err := f.students.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.existing)), n)
			totals, err := f.fees.Totals(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(0), totals.Ledgers)
			current, err := f.counter.Current(ctx)
			require.NoError(t, err)
			assert.Equal(t, counter.DefaultStart, current)
		})
	}
}

// failingFees fails the bulk ledger insert after the students were written.
type failingFees struct {
	fee.Repository
}

func (failingFees) InsertMany(context.Context, []fee.Ledger) error {
	return errors.New("write failed")
}

func TestService_SeedStudentsWithFees_rollsBack(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	students := inmemdb.NewStudentRepository(db)
	svc := bulk.NewService(
		db,
		inmemdb.NewCounterStore(db),
		students,
		failingFees{inmemdb.NewFeeRepository(db)},
		nil, nil, nil,
		testutil.NewLogger(),
	)

	_, err := svc.SeedStudentsWithFees(ctx, []bulk.StudentRow{studentRow(t, 101, 5000, 1000)})
	require.Error(t, err)

	n, err := students.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func submissionRow(rollNo, amount string) bulk.SubmissionRow {
	return bulk.SubmissionRow{
		RollNumber:    bulk.Cell(rollNo),
		Amount:        bulk.Cell(amount),
		Mode:          "upi",
		DateOfReceipt: "2024-04-01",
		UTR:           "UTR1",
	}
}

func TestService_ApplySubmissions(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	_, err := f.svc.SeedStudentsWithFees(ctx, []bulk.StudentRow{
		studentRow(t, 101, 5000, 1000),
		studentRow(t, 102, 3000, 0),
	})
	require.NoError(t, err)

	res, err := f.svc.ApplySubmissions(ctx, []bulk.SubmissionRow{
		submissionRow("101", "1000"),
		submissionRow("999", "500"),
		submissionRow("102", "3000"),
		submissionRow("101", "500"),
		submissionRow("999", "100"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.UpdatedCount)
	assert.Equal(t, []int{999}, res.NotFoundRollNumbers)

	l, err := f.fees.FindByRollNumber(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), l.PaidAmount)
	require.Len(t, l.Submissions, 3)
	// numbered in row order, after the seeded receipt
	assert.Equal(t, int64(100002), l.Submissions[1].ReceiptNumber)
	assert.Equal(t, int64(100004), l.Submissions[2].ReceiptNumber)
	assert.NoError(t, l.CheckInvariants())

	l, err = f.fees.FindByRollNumber(ctx, 102)
	require.NoError(t, err)
	assert.Equal(t, fee.StatusPaid, l.Status)
	assert.Equal(t, int64(100003), l.Submissions[0].ReceiptNumber)
}

func TestService_ApplySubmissions_allOrNothing(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		rows      []bulk.SubmissionRow
		wantInErr string
	}{
		{
			name:      "overpayment across rows",
			rows:      []bulk.SubmissionRow{submissionRow("101", "3000"), submissionRow("101", "1500")},
			wantInErr: "row 2: amount",
		},
		{
			name:      "zero amount",
			rows:      []bulk.SubmissionRow{submissionRow("101", "100"), submissionRow("101", "0")},
			wantInErr: "row 2: amount",
		},
		{
			name:      "invalid roll number",
			rows:      []bulk.SubmissionRow{submissionRow("101", "100"), submissionRow("x", "100")},
			wantInErr: "row 2: rollNumber",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			_, err := f.svc.SeedStudentsWithFees(ctx, []bulk.StudentRow{studentRow(t, 101, 5000, 1000)})
			require.NoError(t, err)

			_, err = f.svc.ApplySubmissions(ctx, tt.rows)
			require.Error(t, err)
			assert.Equal(t, core.KindValidation, core.KindOf(err))
			assert.Contains(t, err.Error(), tt.wantInErr)

			l, err := f.fees.FindByRollNumber(ctx, 101)
			require.NoError(t, err)
			assert.Equal(t, int64(1000), l.PaidAmount)
			assert.Len(t, l.Submissions, 1)
		})
	}
}

func TestService_AssignKits(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	testutil.CreateStudent(t, f.students, 101, "Asha", "")
	testutil.CreateStudent(t, f.students, 102, "Ravi", "")

	res, err := f.svc.AssignKits(ctx, []bulk.KitRow{
		{RollNumber: "101", Kits: "Physics Module, Bag", Description: "Term 1"},
		{RollNumber: "102"},
		{RollNumber: "555"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.UpdatedCount)
	assert.Equal(t, []int{555}, res.NotFoundRollNumbers)
	assert.Len(t, res.Kits, 2)

	kits, err := f.kits.List(ctx)
	require.NoError(t, err)
	assert.Len(t, kits, 2)

	s, err := f.students.FindByRollNumber(ctx, 102)
	require.NoError(t, err)
	assert.Len(t, s.Kits, 2)

	// assigning again does not duplicate
	_, err = f.svc.AssignKits(ctx, []bulk.KitRow{{RollNumber: "102", Kits: "bag"}})
	require.NoError(t, err)
	s, err = f.students.FindByRollNumber(ctx, 102)
	require.NoError(t, err)
	assert.Len(t, s.Kits, 2)

	_, err = f.svc.AssignKits(ctx, []bulk.KitRow{{RollNumber: "101"}})
	assert.True(t, errors.Is(err, bulk.ErrNoKits))
}

func TestService_ImportAttendance(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	res, err := f.svc.ImportAttendance(ctx, "2024-03-01", []bulk.AttendanceRow{
		{RollNo: "101", Name: "Asha", InTime: "09:00", PresentStatus: "p"},
		{RollNo: "102", Name: "Ravi", PresentStatus: "A"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.InsertedCount)

	counts, err := f.attendance.CountByDate(ctx, 10)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, attendance.DateCount{Date: "2024-03-01", Present: 1, Absent: 1}, counts[0])

	_, err = f.svc.ImportAttendance(ctx, "2024-03-02", []bulk.AttendanceRow{
		{RollNo: "101", Name: "Asha"},
		{RollNo: "102"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2: name")
	counts, err = f.attendance.CountByDate(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, counts, 1)
}

func TestService_ImportTestScores(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	rows := []bulk.ScoreRow{
		{"Roll No": "101", "Student Name": "Asha", "Physics": "78", "Chemistry": "81.5", "Total": "159.5", "Test Rank": "1"},
		{"Roll No": "102", "Student Name": "Ravi", "Physics": "60", "Chemistry": "55", "Total": "115", "Test Rank": "2"},
	}
	res, err := f.svc.ImportTestScores(ctx, "Weekly Test 1", "2024-03-03", rows)
	require.NoError(t, err)
	assert.Equal(t, 2, res.InsertedCount)

	scores, err := f.scores.ListByRollNumber(ctx, 101)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, "weekly test 1", scores[0].Name)
	assert.Equal(t, 1, scores[0].Rank)
	require.Len(t, scores[0].Subjects, 2)
	assert.Equal(t, "chemistry", scores[0].Subjects[0].Name)

	_, err = f.svc.ImportTestScores(ctx, "weekly test 1", "2024-03-03", rows)
	assert.Equal(t, testscore.ErrNameExists, err)
}
