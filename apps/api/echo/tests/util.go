package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/batch"
	"github.com/trezcool/academia/core/fee"
	"github.com/trezcool/academia/core/student"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

// env is a Server backed by an in-memory store, with direct access to the repositories.
type env struct {
	conf     *core.Config
	app      *Server
	users    user.Repository
	students student.Repository
	fees     fee.Repository
	batches  batch.Repository
	feeSvc   *fee.Service
}

func setup(t *testing.T) env {
	conf := core.NewTestConfig()
	logger := testutil.NewLogger()

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	d := testutil.NewInmemDeps(t, conf, logger)
	return env{
		conf:     conf,
		users:    d.Users,
		students: d.Students,
		fees:     d.Fees,
		batches:  d.Batches,
		feeSvc:   d.FeeSvc,
		app: NewServer(conf, logger, &Deps{
			Validate:      validate,
			Translator:    translator,
			UserSvc:       d.UserSvc,
			StudentSvc:    d.StudentSvc,
			FeeSvc:        d.FeeSvc,
			BulkSvc:       d.BulkSvc,
			BatchSvc:      d.BatchSvc,
			KitSvc:        d.KitSvc,
			AttendanceSvc: d.AttendanceSvc,
			ScoreSvc:      d.ScoreSvc,
			ReportSvc:     d.ReportSvc,
			ExportSvc:     d.ExportSvc,
		}),
	}
}

// adminToken creates an admin and returns a token for them.
func (e env) adminToken(t *testing.T) string {
	admin := testutil.CreateUser(t, e.users, "Admin", "admin", "admin@test.in", "", []string{user.RoleAdmin}, true)
	return getToken(t, e.conf, admin)
}

// serve runs tt against the server and returns the recorded response.
func (e env) serve(tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	e.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := GenerateToken(conf, GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func getParentToken(t *testing.T, conf *core.Config, email string, rollNos ...int) string {
	token, err := GenerateToken(conf, GetParentClaims(conf, user.Parent{Email: email, RollNos: rollNos}))
	if err != nil {
		t.Fatalf("getParentToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runTests(t *testing.T, e env, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, e.serve(tt))
		})
	}
}
