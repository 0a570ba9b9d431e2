package main

import (
	"context"
)

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	if err := cli.usrSvc.SetPassword(ctx, email, pwd); err != nil {
		return err
	}
	cli.printf("password of %s reset\n", email)
	return nil
}
