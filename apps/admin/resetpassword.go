package main

import (
	"context"

	"github.com/Beccio00/homeworks-web-app/core/user"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	data := user.ResetUserPassword{Username: uname, Password: pwd, PasswordConfirm: pwd}
	if err := data.Validate(cli.validate); err != nil {
		return err
	}
	_, err := cli.usrSvc.ResetPassword(context.Background(), data)
	return err
}
