package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/services/email"
	"github.com/trezcool/academia/tests"
)

func Test_userApi_login(t *testing.T) {
	e := setup(t)
	testutil.CreateUser(t, e.users, "Admin", "admin", "admin@test.in", "str0ngPwd!", []string{user.RoleAdmin}, true)
	testutil.CreateUser(t, e.users, "Gone", "gone", "gone@test.in", "str0ngPwd!", []string{user.RoleAdmin}, false)

	login := func(uname, pwd string) []byte {
		return marchallObj(t, LoginRequest{Username: uname, Password: pwd})
	}

	tests := []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/users/login",
			body: []byte(`{}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/v1/users/login",
			body: login("nobody", "str0ngPwd!"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/users/login",
			body: login("admin", "wrong"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/v1/users/login",
			body: login("gone", "str0ngPwd!"), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	runTests(t, e, tests)

	t.Run("by username or email", func(t *testing.T) {
		for _, uname := range []string{"admin", "ADMIN@test.in"} {
			rec := e.serve(httpTest{method: http.MethodPost, path: "/v1/users/login", body: login(uname, "str0ngPwd!")})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var resp LoginResponse
			unmarshal(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)

			// the token opens admin endpoints
			rec = e.serve(httpTest{path: "/v1/users/roles", token: resp.Token})
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func Test_userApi_query(t *testing.T) {
	e := setup(t)
	token := e.adminToken(t)

	tests := []httpTest{
		{name: "auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "admin required", path: "/v1/users", token: getParentToken(t, e.conf, "parent@test.in", 1001),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "roles", path: "/v1/users/roles", token: token, wantCode: http.StatusOK, wantData: marchallObj(t, user.Roles)},
	}
	runTests(t, e, tests)

	rec := e.serve(httpTest{path: "/v1/users", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var users []user.User
	unmarshal(t, rec, &users)
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0].Username)
}

func Test_userApi_register(t *testing.T) {
	e := setup(t)
	admin := testutil.CreateUser(t, e.users, "Admin", "admin", "admin@test.in", "", []string{user.RoleAdmin}, true)
	token := getToken(t, e.conf, admin)

	body := func(uname string, roles ...string) []byte {
		return marchallObj(t, user.NewUser{
			Name:            "Staff",
			Username:        uname,
			Email:           uname + "@test.in",
			Password:        "Acad3mia!2024",
			PasswordConfirm: "Acad3mia!2024",
			Roles:           roles,
		})
	}

	t.Run("cannot grant a higher role", func(t *testing.T) {
		rec := e.serve(httpTest{method: http.MethodPost, path: "/v1/users/register", token: token, body: body("ownerx", user.RoleAdminOwner)})
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("ok", func(t *testing.T) {
		rec := e.serve(httpTest{method: http.MethodPost, path: "/v1/users/register", token: token, body: body("staffer", user.RoleAdmin)})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var usr user.User
		unmarshal(t, rec, &usr)
		assert.Equal(t, "staffer", usr.Username)
		assert.True(t, usr.IsActive)
	})

	t.Run("duplicate username", func(t *testing.T) {
		rec := e.serve(httpTest{method: http.MethodPost, path: "/v1/users/register", token: token, body: body("staffer", user.RoleAdmin)})
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})
}

func Test_parentLogin(t *testing.T) {
	e := setup(t)
	testutil.CreateStudent(t, e.students, 1001, "Asha", "parent@test.in")
	testutil.CreateStudent(t, e.students, 1002, "Ravi", "other@test.in")

	otp := func(email string) httpTest {
		return httpTest{method: http.MethodPost, path: "/v1/parents/otp", body: marchallObj(t, PasswordResetRequest{Email: email})}
	}

	rec := e.serve(otp("nobody@test.in"))
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	rec = e.serve(otp("Parent@Test.in"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	data, ok := msg.TemplateData.(map[string]interface{})
	require.True(t, ok)
	code, _ := data["Code"].(string)
	require.Len(t, code, 6)

	login := func(c string) httpTest {
		return httpTest{
			method: http.MethodPost, path: "/v1/parents/login",
			body: marchallObj(t, ParentLoginRequest{Email: "parent@test.in", Code: c}),
		}
	}
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	rec = e.serve(login(wrong))
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = e.serve(login(code))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp ParentLoginResponse
	unmarshal(t, rec, &resp)
	assert.Equal(t, []int{1001}, resp.Parent.RollNos)
	require.NotEmpty(t, resp.Token)

	// codes are single use
	rec = e.serve(login(code))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	tests := []httpTest{
		{name: "own child", path: "/v1/fees/1001", token: resp.Token, wantCode: http.StatusOK},
		{name: "own child attendance", path: "/v1/attendance/1001", token: resp.Token, wantCode: http.StatusOK},
		{name: "own child scores", path: "/v1/testscores/1001", token: resp.Token, wantCode: http.StatusOK},
		{
			name: "other child", path: "/v1/fees/1002", token: resp.Token,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "admin only", path: "/v1/fees", token: resp.Token, wantCode: http.StatusForbidden},
		{name: "refresh", method: http.MethodPost, path: "/v1/users/token-refresh", token: resp.Token, wantCode: http.StatusOK},
	}
	runTests(t, e, tests)
}
