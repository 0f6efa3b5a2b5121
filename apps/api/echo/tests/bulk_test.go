package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/bulk"
	"github.com/trezcool/academia/core/fee"
	"github.com/trezcool/academia/core/testscore"
)

const studentSheet = `{"rows": [
	{
		"ROLL NO.": 2001, "Student Name": "Asha", "student mobile no": "9876543210",
		"Parents Contact No.": 9123456780, "Parents Email": "parent@test.in", "BATCH NAME": "Alpha",
		"Total Fees": 30000, "Discount": 0, "FINAL FEE": 30000, "Received Amount": 10000,
		"Mode of Payment": "cash", "Date of Receipt": "2024-03-01",
		"Expected Date of Receipt of Pending Fees": "2024-06-01"
	},
	{
		"ROLL NO.": 2002, "Student Name": "Ravi", "student mobile no": "9876543211",
		"Parents Contact No.": "9123456781", "BATCH NAME": "Alpha", "Total Fees": 30000, "FINAL FEE": 30000, "Received Amount": 0
	}
]}`

func Test_bulkApi(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	token := e.adminToken(t)
	post := func(path, body string) httpTest {
		return httpTest{method: http.MethodPost, path: path, token: token, body: []byte(body)}
	}

	t.Run("admin required", func(t *testing.T) {
		tt := post("/v1/bulk/students", studentSheet)
		tt.token = getParentToken(t, e.conf, "parent@test.in", 2001)
		assert.Equal(t, http.StatusForbidden, e.serve(tt).Code)
	})

	t.Run("seed students", func(t *testing.T) {
		rec := e.serve(post("/v1/bulk/students", studentSheet))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var res bulk.SeedResult
		unmarshal(t, rec, &res)
		assert.Equal(t, 2, res.InsertedCount)

		l, err := e.fees.FindByRollNumber(ctx, 2001)
		require.NoError(t, err)
		assert.Equal(t, fee.StatusPartial, l.Status)
		require.Len(t, l.Submissions, 1)
		assert.Equal(t, int64(100001), l.Submissions[0].ReceiptNumber)

		// seeding the same roll numbers again is refused as a whole
		rec = e.serve(post("/v1/bulk/students", studentSheet))
		assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	})

	t.Run("apply submissions", func(t *testing.T) {
		rec := e.serve(post("/v1/bulk/fees", `{"rows": [
			{"rollNumber": 2001, "amount": 5000, "mode": "upi", "dateOfReceipt": "2024-04-01", "UTR": "U1"},
			{"rollNumber": 9999, "amount": 5000, "mode": "upi", "dateOfReceipt": "2024-04-01"}
		]}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res bulk.ApplyResult
		unmarshal(t, rec, &res)
		assert.Equal(t, 1, res.UpdatedCount)
		assert.Equal(t, []int{9999}, res.NotFoundRollNumbers)

		rec = e.serve(post("/v1/bulk/fees", `{"rows": []}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		// overpaying fails the whole sheet
		rec = e.serve(post("/v1/bulk/fees", `{"rows": [{"rollNumber": 2001, "amount": 999999, "mode": "upi", "dateOfReceipt": "2024-04-01"}]}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("assign kits", func(t *testing.T) {
		rec := e.serve(post("/v1/bulk/kits", `{"rows": [
			{"rollnum": 2001, "kits": "Physics, Chemistry", "description": "books"},
			{"rollnum": "2002"}
		]}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res bulk.KitResult
		unmarshal(t, rec, &res)
		assert.Equal(t, 2, res.UpdatedCount)
		assert.Len(t, res.Kits, 2)

		s, err := e.students.FindByRollNumber(ctx, 2002)
		require.NoError(t, err)
		assert.Len(t, s.Kits, 2)
	})

	t.Run("import attendance", func(t *testing.T) {
		rec := e.serve(post("/v1/bulk/attendance", `{"date": "2024-03-05", "rows": [
			{"rollNo": 2001, "name": "Asha", "inTime": "09:00", "presentStatus": "P"},
			{"rollNo": 2002, "name": "Ravi", "presentStatus": "A"}
		]}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var res bulk.ImportResult
		unmarshal(t, rec, &res)
		assert.Equal(t, 2, res.InsertedCount)

		rec = e.serve(httpTest{path: "/v1/attendance/2001?from=2024-03-01&to=2024-03-31", token: token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var records []attendance.Record
		unmarshal(t, rec, &records)
		require.Len(t, records, 1)
		assert.True(t, records[0].Present())

		rec = e.serve(httpTest{path: "/v1/attendance/2001?from=2024-04-01", token: token})
		require.Equal(t, http.StatusOK, rec.Code)
		unmarshal(t, rec, &records)
		assert.Empty(t, records)

		rec = e.serve(httpTest{path: "/v1/attendance/2001?from=yesterday", token: token})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("import test scores", func(t *testing.T) {
		sheet := `{"name": "Weekly Test 1", "date": "2024-03-10", "rows": [
			{"Roll No": 2001, "Student Name": "Asha", "Physics": 78, "Total": 78, "Test Rank": 1},
			{"Roll No": 2002, "Student Name": "Ravi", "Physics": 60, "Total": 60, "Test Rank": 2}
		]}`
		rec := e.serve(post("/v1/bulk/testscores", sheet))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = e.serve(post("/v1/bulk/testscores", sheet))
		assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

		rec = e.serve(httpTest{path: "/v1/testscores", token: token})
		require.Equal(t, http.StatusOK, rec.Code)
		var tests []testscore.Test
		unmarshal(t, rec, &tests)
		require.Len(t, tests, 1)
		assert.Equal(t, "weekly test 1", tests[0].Name)
		assert.Equal(t, int64(2), tests[0].Students)

		rec = e.serve(httpTest{path: "/v1/testscores/2002", token: token})
		require.Equal(t, http.StatusOK, rec.Code)
		var scores []testscore.Score
		unmarshal(t, rec, &scores)
		require.Len(t, scores, 1)
		assert.Equal(t, 2, scores[0].Rank)
	})
}
