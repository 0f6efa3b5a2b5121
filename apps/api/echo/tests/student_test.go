package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/student"
	"github.com/trezcool/academia/tests"
)

func Test_studentApi(t *testing.T) {
	e := setup(t)
	token := e.adminToken(t)
	testutil.CreateStudent(t, e.students, 1001, "Asha", "")

	create := func(ns student.NewStudent) httpTest {
		return httpTest{method: http.MethodPost, path: "/v1/students", token: token, body: marchallObj(t, ns)}
	}

	t.Run("create with roll number", func(t *testing.T) {
		rec := e.serve(create(student.NewStudent{RollNo: 1002, Name: " Ravi ", Batch: "Alpha", MobileNumber: "9876543210"}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var s student.Student
		unmarshal(t, rec, &s)
		assert.Equal(t, 1002, s.RollNo)
		assert.Equal(t, "Ravi", s.Name)
		assert.Equal(t, "alpha", s.Batch)
	})

	t.Run("create with allocated roll number", func(t *testing.T) {
		rec := e.serve(create(student.NewStudent{Name: "Meera", Batch: "beta"}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var s student.Student
		unmarshal(t, rec, &s)
		assert.True(t, s.RollNo >= 1 && s.RollNo <= 9999999)
	})

	tests := []httpTest{
		{name: "auth required", path: "/v1/students", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "taken roll number", method: http.MethodPost, path: "/v1/students", token: token,
			body: marchallObj(t, student.NewStudent{RollNo: 1001, Name: "Dup"}), wantCode: http.StatusConflict},
		{name: "missing name", method: http.MethodPost, path: "/v1/students", token: token,
			body: marchallObj(t, student.NewStudent{RollNo: 1003}), wantCode: http.StatusBadRequest},
		{name: "unknown", path: "/v1/students/4040", token: token, wantCode: http.StatusNotFound},
		{name: "bad suggestions count", path: "/v1/students/suggestions?count=x", token: token, wantCode: http.StatusBadRequest},
	}
	runTests(t, e, tests)

	t.Run("query by batch", func(t *testing.T) {
		rec := e.serve(httpTest{path: "/v1/students?batch=ALPHA", token: token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var page student.Page
		unmarshal(t, rec, &page)
		assert.Equal(t, int64(2), page.TotalItems)
		require.Len(t, page.Data, 2)
		assert.Equal(t, 1001, page.Data[0].RollNo)
		assert.Equal(t, 1002, page.Data[1].RollNo)
	})

	t.Run("update", func(t *testing.T) {
		name := "Ravi Kumar"
		rec := e.serve(httpTest{method: http.MethodPut, path: "/v1/students/1002", token: token, body: marchallObj(t, student.UpdateStudent{Name: &name})})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = e.serve(httpTest{path: "/v1/students/1002", token: token})
		require.Equal(t, http.StatusOK, rec.Code)
		var s student.Student
		unmarshal(t, rec, &s)
		assert.Equal(t, name, s.Name)
	})

	t.Run("suggestions", func(t *testing.T) {
		rec := e.serve(httpTest{path: "/v1/students/suggestions?count=3", token: token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp struct {
			RollNumbers []int `json:"rollNumbers"`
		}
		unmarshal(t, rec, &resp)
		assert.Len(t, resp.RollNumbers, 3)
	})
}
