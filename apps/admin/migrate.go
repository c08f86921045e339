package main

import (
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/storage/database"
)

var (
	migrateFunc = database.RunMigration // mockable

	errNoSQLDatabase = errors.New("migrations need a postgres database engine")
)

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSQLDatabase
	}
	return migrateFunc(cli.db, args[0], args[1:]...)
}
