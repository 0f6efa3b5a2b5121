package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

// addUser updates or creates an active admin user.User
func (cli *commandLine) addUser(name, uname, email, pwd string, isOwner bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	roles := []string{user.RoleAdmin}
	if isOwner {
		roles = user.AdminRoles
	}

	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		nu := user.NewUser{
			Name:            name,
			Username:        uname,
			Email:           email,
			Password:        pwd,
			PasswordConfirm: pwd,
			Roles:           roles,
		}
		nu.Clean()
		_, err = cli.usrSvc.Create(ctx, nu)
		return err
	}

	usr.Name = core.CleanString(name)
	usr.Roles = roles
	usr.IsActive = true
	_, err = cli.usrSvc.SetPassword(ctx, usr, pwd)
	return err
}
