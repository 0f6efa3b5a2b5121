package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"

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
	"github.com/trezcool/academia/services/email"
	"github.com/trezcool/academia/services/export"
	"github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/storage/database/inmem"
)

// NewLogger returns a logger that neither prints nor reports.
func NewLogger() core.Logger {
	l := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), core.NewTestConfig())
	l.Enable(false)
	return l
}

// PrepareDB returns an empty in-memory store whose receipt counter starts at counter.DefaultStart.
func PrepareDB(t *testing.T) *inmemdb.DB {
	t.Helper()
	db := inmemdb.Open()
	if err := inmemdb.NewCounterStore(db).Init(context.Background(), counter.DefaultStart); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        name + "-" + uname,
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	if err := repo.Create(context.Background(), usr); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateStudent enrolls a minimal Student. parentEmail may be empty.
func CreateStudent(t *testing.T, repo student.Repository, rollNo int, name, parentEmail string) student.Student {
	now := time.Now().UTC()
	s := student.Student{
		RollNo:       rollNo,
		Name:         name,
		Class:        "12",
		MobileNumber: "9876543210",
		Batch:        "alpha",
		Parent:       student.Parent{Contact: "9123456780", Email: parentEmail},
		Kits:         []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Insert(context.Background(), s); err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return s
}

// CreateBatch inserts a Batch running from start to end.
func CreateBatch(t *testing.T, repo batch.Repository, name, class string, start, end time.Time) batch.Batch {
	now := time.Now().UTC()
	b := batch.Batch{
		ID:        uuid.NewString(),
		Name:      name,
		Class:     class,
		StartDate: start.UTC(),
		EndDate:   end.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Insert(context.Background(), b); err != nil {
		t.Fatalf("CreateBatch() failed: %v", err)
	}
	return b
}

// InmemDeps is every repository and service of the app, backed by one in-memory store.
type InmemDeps struct {
	DB         *inmemdb.DB
	Counter    counter.Store
	Users      user.Repository
	Students   student.Repository
	Fees       fee.Repository
	Batches    batch.Repository
	Attendance attendance.Repository

	Email         core.EmailService
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

// NewInmemDeps wires the services against a fresh store. Emails go to the console mock.
func NewInmemDeps(t *testing.T, conf *core.Config, logger core.Logger) *InmemDeps {
	t.Helper()
	db := PrepareDB(t)
	d := &InmemDeps{
		DB:         db,
		Counter:    inmemdb.NewCounterStore(db),
		Users:      inmemdb.NewUserRepository(db),
		Students:   inmemdb.NewStudentRepository(db),
		Fees:       inmemdb.NewFeeRepository(db),
		Batches:    inmemdb.NewBatchRepository(db),
		Attendance: inmemdb.NewAttendanceRepository(db),
	}

	emailsvc.ResetSentMessages()
	d.Email = emailsvc.NewConsoleServiceMock(conf, logger)
	d.KitSvc = kit.NewService(inmemdb.NewKitRepository(db))
	d.AttendanceSvc = attendance.NewService(d.Attendance)
	d.ScoreSvc = testscore.NewService(inmemdb.NewScoreRepository(db))
	d.FeeSvc = fee.NewService(db, d.Counter, d.Students, d.Fees, logger)
	d.BulkSvc = bulk.NewService(db, d.Counter, d.Students, d.Fees, d.KitSvc, d.AttendanceSvc, d.ScoreSvc, logger)
	d.UserSvc = user.NewService(conf, d.Users, inmemdb.NewOTPRepository(db), d.Students, d.Email)
	d.StudentSvc = student.NewService(d.Students)
	d.BatchSvc = batch.NewService(d.Batches)
	d.ReportSvc = report.NewService(d.Students, d.Fees, d.Attendance)
	d.ExportSvc = exportsvc.NewService(d.Students, d.Fees)
	return d
}

// Int64 returns a pointer to n.
func Int64(n int64) *int64 { return &n }
