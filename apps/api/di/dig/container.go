package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/batch"
	"github.com/trezcool/academia/core/bulk"
	"github.com/trezcool/academia/core/counter"
	"github.com/trezcool/academia/core/fee"
	"github.com/trezcool/academia/core/kit"
	"github.com/trezcool/academia/core/report"
	"github.com/trezcool/academia/core/student"
	"github.com/trezcool/academia/core/testscore"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
	exportsvc "github.com/trezcool/academia/services/export"
	logsvc "github.com/trezcool/academia/services/logger"
	mongodb "github.com/trezcool/academia/storage/database/mongo"
	pgdb "github.com/trezcool/academia/storage/database/postgres"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// CounterDB is the postgres connection of the receipt counter. DB is nil with the mongo backend.
type CounterDB struct {
	DB *sqlx.DB
}

type depsParam struct {
	dig.In

	Validate      *validator.Validate
	Translator    ut.Translator
	UserSvc       *user.Service
	StudentSvc    *student.Service
	FeeSvc        *fee.Service
	BulkSvc       *bulk.Service
	BatchSvc      *batch.Service
	KitSvc        *kit.Service
	AttendanceSvc *attendance.Service
	ScoreSvc      *testscore.Service
	ReportSvc     *report.Service
	ExportSvc     *exportsvc.Service
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*mongodb.DB, core.Transactor) {
	setUp := func() (*mongodb.DB, error) {
		db, err := mongodb.Open(conf)
		if err != nil {
			return nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), conf.Database.ConnectTimeout)
		defer cancel()
		if err = db.CreateIndexes(ctx); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

// newCounterStore opens the configured receipt counter. The postgres schema is migrated on the way.
func newCounterStore(conf *core.Config, db *mongodb.DB, loggerParam DBLoggerParam) (counter.Store, CounterDB) {
	setUp := func() (counter.Store, CounterDB, error) {
		ctx := context.Background()
		var (
			store counter.Store
			cdb   CounterDB
		)
		switch conf.Counter.Backend {
		case core.CounterBackendPostgres:
			if err := pgdb.CreateIfNotExist(ctx, conf); err != nil {
				return nil, cdb, err
			}
			sqlDB, err := pgdb.Open(conf)
			if err != nil {
				return nil, cdb, err
			}
			if err = pgdb.Migrate(sqlDB.DB); err != nil {
				return nil, cdb, err
			}
			store, cdb.DB = pgdb.NewCounterStore(sqlDB), sqlDB
		default:
			store = mongodb.NewCounterStore(db)
		}
		return store, cdb, nil
	}

	store, cdb, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up receipt counter: %v", err), err)
	}
	return store, cdb
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newDeps(p depsParam) *echoapi.Deps {
	return &echoapi.Deps{
		Validate:      p.Validate,
		Translator:    p.Translator,
		UserSvc:       p.UserSvc,
		StudentSvc:    p.StudentSvc,
		FeeSvc:        p.FeeSvc,
		BulkSvc:       p.BulkSvc,
		BatchSvc:      p.BatchSvc,
		KitSvc:        p.KitSvc,
		AttendanceSvc: p.AttendanceSvc,
		ScoreSvc:      p.ScoreSvc,
		ReportSvc:     p.ReportSvc,
		ExportSvc:     p.ExportSvc,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newCounterStore))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))

	// repositories
	must(c.Provide(mongodb.NewStudentRepository))
	must(c.Provide(mongodb.NewFeeRepository))
	must(c.Provide(mongodb.NewUserRepository))
	must(c.Provide(mongodb.NewOTPRepository))
	must(c.Provide(mongodb.NewBatchRepository))
	must(c.Provide(mongodb.NewKitRepository))
	must(c.Provide(mongodb.NewAttendanceRepository))
	must(c.Provide(mongodb.NewScoreRepository))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(student.NewService))
	must(c.Provide(fee.NewService))
	must(c.Provide(bulk.NewService))
	must(c.Provide(batch.NewService))
	must(c.Provide(kit.NewService))
	must(c.Provide(attendance.NewService))
	must(c.Provide(testscore.NewService))
	must(c.Provide(report.NewService))
	must(c.Provide(exportsvc.NewService))

	must(c.Provide(newDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
