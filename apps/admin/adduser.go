package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/tadris/core"
	"github.com/trezcool/tadris/core/user"
)

// addUser updates or creates an active user with role.
func (cli *commandLine) addUser(ctx context.Context, name, email, pwd, role string) error {
	email = core.CleanString(email, true /* lower */)
	if msg := user.PasswordPolicy(pwd, name, email); msg != "" {
		return core.NewValidationError(nil, core.FieldError{Field: "password", Error: msg})
	}

	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return err
		}
		usr, err = cli.usrSvc.Create(ctx, user.NewUser{Name: name, Email: email, Password: pwd, Roles: []string{role}})
		if err != nil {
			return errors.Wrap(err, "creating user")
		}
		cli.printf("user %s created\n", usr.ID)
		return nil
	}

	usr.Name = core.CleanString(name)
	usr.IsActive = true
	if !usr.HasRole(role) {
		usr.Roles = append(usr.Roles, role)
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	cli.printf("user %s updated\n", usr.ID)
	return nil
}
