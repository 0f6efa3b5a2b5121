package main

import (
	"context"
	"log"
	"os"

	"github.com/pressly/goose/v3"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/fs"
	emailsvc "github.com/trezcool/academia/services/email"
	exportsvc "github.com/trezcool/academia/services/export"
	logsvc "github.com/trezcool/academia/services/logger"
	mongodb "github.com/trezcool/academia/storage/database/mongo"
	pgdb "github.com/trezcool/academia/storage/database/postgres"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()
	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(false)

	// set up DB
	db, err := mongodb.Open(conf)
	errAndDie(err)
	defer func() { _ = db.Close(context.Background()) }()

	cli := commandLine{
		conf:    conf,
		indexes: db,
		counter: mongodb.NewCounterStore(db),
		exports: exportsvc.NewService(mongodb.NewStudentRepository(db), mongodb.NewFeeRepository(db)),
		usrSvc: user.NewService(
			conf,
			mongodb.NewUserRepository(db),
			mongodb.NewOTPRepository(db),
			mongodb.NewStudentRepository(db),
			emailsvc.NewConsoleService(conf, appLogger),
		),
	}

	if conf.Counter.Backend == core.CounterBackendPostgres {
		errAndDie(pgdb.CreateIfNotExist(context.Background(), conf))
		sqlDB, err := pgdb.Open(conf)
		errAndDie(err)
		defer func() { _ = sqlDB.Close() }()

		goose.SetBaseFS(appfs.FS)
		goose.SetLogger(log.New(os.Stdout, "GOOSE : ", log.LstdFlags))
		errAndDie(goose.SetDialect("postgres"))

		cli.sqlDB = sqlDB.DB
		cli.counter = pgdb.NewCounterStore(sqlDB)
	}

	// start CLI
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
