package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/batch"
	"github.com/trezcool/academia/core/kit"
	"github.com/trezcool/academia/tests"
)

type batchView struct {
	batch.Batch
	Duration int `json:"duration"`
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func Test_catalogApi_batches(t *testing.T) {
	e := setup(t)
	token := e.adminToken(t)

	rec := e.serve(httpTest{
		method: http.MethodPost, path: "/v1/batches", token: token,
		body: marchallObj(t, batch.NewBatch{Name: "Alpha 2024", Class: "12", StartDate: "2024-04-01", EndDate: "2024-04-11"}),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created batchView
	unmarshal(t, rec, &created)
	assert.Equal(t, "alpha 2024", created.Name)
	assert.Equal(t, 10, created.Duration)
	path := "/v1/batches/" + created.ID

	tests := []httpTest{
		{name: "auth required", path: "/v1/batches", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "duplicate name", method: http.MethodPost, path: "/v1/batches", token: token,
			body:     marchallObj(t, batch.NewBatch{Name: "ALPHA 2024", Class: "11", StartDate: "2024-04-01", EndDate: "2024-05-01"}),
			wantCode: http.StatusConflict,
		},
		{
			name: "end before start", method: http.MethodPost, path: "/v1/batches", token: token,
			body:     marchallObj(t, batch.NewBatch{Name: "Beta", Class: "11", StartDate: "2024-05-01", EndDate: "2024-04-01"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "bad date", method: http.MethodPost, path: "/v1/batches", token: token,
			body:     marchallObj(t, batch.NewBatch{Name: "Beta", Class: "11", StartDate: "01/05/2024", EndDate: "2024-06-01"}),
			wantCode: http.StatusBadRequest,
		},
		{name: "unknown", path: "/v1/batches/nope", token: token, wantCode: http.StatusNotFound},
		{
			name: "update moves end before start", method: http.MethodPut, path: path, token: token,
			body: marchallObj(t, batch.UpdateBatch{EndDate: "2024-03-01"}), wantCode: http.StatusBadRequest,
		},
	}
	runTests(t, e, tests)

	rec = e.serve(httpTest{method: http.MethodPut, path: path, token: token, body: marchallObj(t, batch.UpdateBatch{Class: "11"})})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	older := testutil.CreateBatch(t, e.batches, "omega 2023", "12", date(2023, 4, 1), date(2023, 4, 3))

	rec = e.serve(httpTest{path: "/v1/batches", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var list []batchView
	unmarshal(t, rec, &list)
	require.Len(t, list, 2)
	assert.Equal(t, "11", list[0].Class)
	assert.Equal(t, 10, list[0].Duration)
	assert.Equal(t, older.ID, list[1].ID)
	assert.Equal(t, 2, list[1].Duration)

	rec = e.serve(httpTest{method: http.MethodDelete, path: path, token: token})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.serve(httpTest{path: path, token: token})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_catalogApi_kits(t *testing.T) {
	e := setup(t)
	token := e.adminToken(t)

	rec := e.serve(httpTest{method: http.MethodPost, path: "/v1/kits", token: token, body: marchallObj(t, kit.NewKit{Name: " Physics Kit ", Description: "Books"})})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.serve(httpTest{method: http.MethodPost, path: "/v1/kits", token: token, body: marchallObj(t, kit.NewKit{Name: "physics kit"})})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = e.serve(httpTest{path: "/v1/kits", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var kits []kit.Kit
	unmarshal(t, rec, &kits)
	require.Len(t, kits, 1)
	assert.Equal(t, "physics kit", kits[0].Name)
	assert.Equal(t, "books", kits[0].Description)
}
