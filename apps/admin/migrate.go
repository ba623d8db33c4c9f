package main

import (
	"github.com/pressly/goose/v3"

	"github.com/Beccio00/homeworks-web-app/storage/database"
)

var gooseRunFunc = goose.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	dir, err := database.SetupGoose(cli.db)
	if err != nil {
		return err
	}
	return gooseRunFunc(args[0], cli.db.DB, dir, args[1:]...)
}
