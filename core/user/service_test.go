package user_test

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/student"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/services/email"
	"github.com/trezcool/academia/storage/database/inmem"
	"github.com/trezcool/academia/tests"
)

func setup(t *testing.T) (*user.Service, user.Repository, student.Repository) {
	db := testutil.PrepareDB(t)
	conf := core.NewTestConfig()
	usrRepo := inmemdb.NewUserRepository(db)
	students := inmemdb.NewStudentRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, testutil.NewLogger())
	svc := user.NewService(conf, usrRepo, inmemdb.NewOTPRepository(db), students, mailSvc)
	emailsvc.ResetSentMessages()
	return svc, usrRepo, students
}

func templateValue(t *testing.T, msg core.EmailMessage, key string) string {
	data, ok := msg.TemplateData.(map[string]interface{})
	require.True(t, ok)
	v, ok := data[key].(string)
	require.True(t, ok, "missing %s", key)
	return v
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t)

	nu := user.NewUser{Name: "Admin", Username: "admin_1", Email: "admin@example.com", Password: "Pa$$w0rd!", PasswordConfirm: "Pa$$w0rd!"}
	usr, err := svc.Create(ctx, nu)
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("Pa$$w0rd!"))

	tests := []struct {
		name      string
		nu        user.NewUser
		wantErr   error
		wantField string
	}{
		{name: "username taken", nu: user.NewUser{Name: "X", Username: "admin_1", Email: "x@example.com", Password: "p"}, wantErr: user.ErrUsernameExists, wantField: "username"},
		{name: "email taken", nu: user.NewUser{Name: "X", Username: "other_1", Email: "admin@example.com", Password: "p"}, wantErr: user.ErrEmailExists, wantField: "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.nu)
			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.wantErr, vErr.Err)
			assert.Equal(t, tt.wantField, vErr.Fields[0].Field)
		})
	}
}

func TestService_PasswordReset(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := setup(t)
	usr := testutil.CreateUser(t, repo, "Admin", "admin_1", "admin@example.com", "OldPa$$w0rd", []string{user.RoleAdmin}, true)

	assert.Equal(t, user.ErrNotFound, svc.RequestPasswordReset(ctx, "nobody@example.com"))

	require.NoError(t, svc.RequestPasswordReset(ctx, "Admin@Example.com"))
	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "admin@example.com", msg.To[0].Address)
	uid := templateValue(t, msg, "UID")
	token := templateValue(t, msg, "Token")
	assert.Equal(t, user.EncodeUID(usr), uid)
	assert.Contains(t, msg.TextContent, "/password-reset/"+uid+"/"+token)

	err := svc.ResetPassword(ctx, user.ResetUserPassword{Token: "bad-token", UID: uid, Password: "N3wPa$$w0rd"})
	assert.Equal(t, core.KindValidation, core.KindOf(err))

	require.NoError(t, svc.ResetPassword(ctx, user.ResetUserPassword{Token: token, UID: uid, Password: "N3wPa$$w0rd"}))
	usr, err = repo.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("N3wPa$$w0rd"))

	// the token is bound to the old password hash
	err = svc.ResetPassword(ctx, user.ResetUserPassword{Token: token, UID: uid, Password: "An0therPa$$"})
	assert.Equal(t, core.KindValidation, core.KindOf(err))
}

func TestService_ParentLogin(t *testing.T) {
	ctx := context.Background()
	svc, _, students := setup(t)
	testutil.CreateStudent(t, students, 1002, "Ravi", "parent@example.com")
	testutil.CreateStudent(t, students, 1001, "Asha", "parent@example.com")
	testutil.CreateStudent(t, students, 1003, "Other", "other@example.com")

	assert.Equal(t, user.ErrNoParent, svc.RequestParentOTP(ctx, "stranger@example.com"))

	require.NoError(t, svc.RequestParentOTP(ctx, " Parent@Example.com "))
	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	code := templateValue(t, msg, "Code")
	assert.Len(t, code, 6)
	assert.True(t, strings.Contains(msg.TextContent, code))

	// a new request invalidates the previous code
	require.NoError(t, svc.RequestParentOTP(ctx, "parent@example.com"))
	msg, _ = emailsvc.LastSentMessage()
	newCode := templateValue(t, msg, "Code")
	if newCode != code {
		_, err := svc.ParentLogin(ctx, "parent@example.com", code)
		assert.True(t, errors.Is(err, user.ErrInvalidOTP))
	}

	p, err := svc.ParentLogin(ctx, "parent@example.com", newCode)
	require.NoError(t, err)
	assert.Equal(t, []int{1001, 1002}, p.RollNos)
	assert.True(t, p.HasChild(1001))
	assert.False(t, p.HasChild(1003))

	// codes are single use
	_, err = svc.ParentLogin(ctx, "parent@example.com", newCode)
	assert.True(t, errors.Is(err, user.ErrInvalidOTP))
	assert.Equal(t, core.KindValidation, core.KindOf(err))
}
