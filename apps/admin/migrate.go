package main

import (
	"github.com/peerbot/peerbot/storage/database"
)

var migrateRunFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return migrateRunFunc(args[0], cli.db.DB, arguments...)
}
