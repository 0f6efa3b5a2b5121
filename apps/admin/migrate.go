package main

import (
	"github.com/pressly/goose/v3"

	"github.com/trezcool/academia/core"
)

var gooseRunFunc = goose.Run // mockable

// migrate runs a goose command against the postgres counter DB. The migrations are read from
// the embedded fs (see main).
func (cli *commandLine) migrate(args []string) error {
	if cli.conf.Counter.Backend != core.CounterBackendPostgres {
		return errNoCounterSQL
	}
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.sqlDB, "migrations", arguments...)
}
