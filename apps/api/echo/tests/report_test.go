package tests

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/academia/core/fee"
	"github.com/trezcool/academia/core/report"
	"github.com/trezcool/academia/core/student"
	"github.com/trezcool/academia/services/export"
	"github.com/trezcool/academia/tests"
)

func seedLedger(t *testing.T, e env, rollNo int, final, paid int64) {
	_, err := e.feeSvc.RecordSubmission(context.Background(), fee.SubmissionInput{
		StudentRollNo: rollNo,
		TotalFees:     testutil.Int64(final),
		Discount:      testutil.Int64(0),
		FinalFees:     testutil.Int64(final),
		PaidAmount:    paid,
		DueDate:       "2024-09-01",
		Mode:          "cash",
		DateOfReceipt: "2024-03-01",
	})
	require.NoError(t, err)
}

func Test_reportApi_summary(t *testing.T) {
	e := setup(t)
	token := e.adminToken(t)

	rec := e.serve(httpTest{path: "/v1/reports/summary", token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var empty report.Summary
	unmarshal(t, rec, &empty)
	assert.Zero(t, empty.TotalStudents)
	assert.NotNil(t, empty.BatchWise)

	testutil.CreateStudent(t, e.students, 1001, "Asha", "")
	testutil.CreateStudent(t, e.students, 1002, "Ravi", "")
	seedLedger(t, e, 1001, 30000, 10000)
	seedLedger(t, e, 1002, 20000, 5000)

	rec = e.serve(httpTest{path: "/v1/reports/summary", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var s report.Summary
	unmarshal(t, rec, &s)
	assert.Equal(t, int64(2), s.TotalStudents)
	assert.Equal(t, []student.BatchCount{{Batch: "alpha", Count: 2}}, s.BatchWise)
	assert.Equal(t, int64(50000), s.TotalRevenue)
	assert.Equal(t, int64(15000), s.TotalCollected)
	assert.Equal(t, int64(35000), s.TotalPending)

	tt := httpTest{path: "/v1/reports/summary", token: getParentToken(t, e.conf, "p@test.in", 1001)}
	assert.Equal(t, http.StatusForbidden, e.serve(tt).Code)
}

func Test_reportApi_exportStudents(t *testing.T) {
	e := setup(t)
	token := e.adminToken(t)
	testutil.CreateStudent(t, e.students, 1001, "Asha", "")
	testutil.CreateStudent(t, e.students, 1002, "Ravi", "")
	seedLedger(t, e, 1001, 30000, 10000)

	tests := []httpTest{
		{name: "missing range", path: "/v1/exports/students", token: token, wantCode: http.StatusBadRequest},
		{name: "inverted range", path: "/v1/exports/students?rollStart=10&rollEnd=1", token: token, wantCode: http.StatusBadRequest},
		{name: "bad includeFees", path: "/v1/exports/students?rollStart=1&rollEnd=10&includeFees=maybe", token: token, wantCode: http.StatusBadRequest},
		{name: "empty range", path: "/v1/exports/students?rollStart=5000&rollEnd=6000", token: token, wantCode: http.StatusNotFound},
	}
	runTests(t, e, tests)

	rec := e.serve(httpTest{path: "/v1/exports/students?rollStart=1000&rollEnd=1999&includeFees=true", token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, exportsvc.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), exportsvc.FileName(1000, 1999))

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.Equal(t, []string{exportsvc.StudentsSheet, exportsvc.InstallmentsSheet}, f.GetSheetList())

	rows, err := f.GetRows(exportsvc.StudentsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + 2 students
	assert.Equal(t, "1001", rows[1][0])
	assert.Equal(t, "Asha", rows[1][1])

	rows, err = f.GetRows(exportsvc.InstallmentsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "100001", rows[1][5])
}
