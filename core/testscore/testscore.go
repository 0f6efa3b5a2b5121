// Package testscore stores the results of the institute's periodic tests.
package testscore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

const notAvailable = "n/a"

var (
	// errors
	ErrNameExists    = core.NewConflictError("a test with this name already exists")
	ErrMissingName   = errors.New("test name is required")
	ErrMissingDate   = errors.New("a valid test date is required")
	ErrNoRows        = errors.New("the sheet has no rows")
	ErrMissingRollNo = errors.New("roll number is required")

	nowFunc = time.Now // mockable
)

type Subject struct {
	Name  string  `json:"name"`
	Marks float64 `json:"marks"`
}

// Score is the result of one student in one test.
type Score struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"` // test name, lowercase
	Date        time.Time `json:"date"`
	RollNumber  int       `json:"rollNumber"`
	StudentName string    `json:"student"`
	FatherName  string    `json:"father"`
	Batch       string    `json:"batch"`
	Subjects    []Subject `json:"subjects"`
	Total       float64   `json:"total"`
	Percentile  float64   `json:"percentile"`
	Rank        int       `json:"rank"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewScore is one line of a result sheet.
type NewScore struct {
	RollNumber  int
	StudentName string
	FatherName  string
	Batch       string
	Subjects    []Subject
	Total       float64
	Percentile  float64
	Rank        int
}

// Test summarizes one uploaded result sheet.
type Test struct {
	Name     string    `json:"name"`
	Date     time.Time `json:"date"`
	Students int64     `json:"students"`
}

type (
	Repository interface {
		NameExists(ctx context.Context, name string) (bool, error)
		InsertMany(ctx context.Context, scores []Score) error
		ListByRollNumber(ctx context.Context, rollNo int) ([]Score, error)
		// ListTests returns one entry per test name, latest first.
		ListTests(ctx context.Context) ([]Test, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func lowerOrNA(s string) string {
	if s = core.CleanString(s, true /* lower */); s == "" {
		return notAvailable
	}
	return s
}

// Upload stores the result sheet of a test. A test name can only be uploaded once.
func (svc *Service) Upload(ctx context.Context, name, date string, rows []NewScore) (int, error) {
	name = core.CleanString(name, true /* lower */)
	if name == "" {
		return 0, core.NewFieldError("name", ErrMissingName)
	}
	testDate, err := core.ParseDate(date)
	if err != nil {
		return 0, core.NewFieldError("date", ErrMissingDate)
	}
	if len(rows) == 0 {
		return 0, core.NewFieldError("rows", ErrNoRows)
	}

	now := nowFunc().UTC()
	scores := make([]Score, 0, len(rows))
	for i, row := range rows {
		if row.RollNumber <= 0 {
			return 0, core.NewFieldError(fmt.Sprintf("row %d: rollNumber", i+1), ErrMissingRollNo)
		}
		subjects := make([]Subject, 0, len(row.Subjects))
		for _, sub := range row.Subjects {
			subjects = append(subjects, Subject{Name: core.CleanString(sub.Name, true /* lower */), Marks: sub.Marks})
		}
		scores = append(scores, Score{
			ID:          uuid.NewString(),
			Name:        name,
			Date:        testDate,
			RollNumber:  row.RollNumber,
			StudentName: lowerOrNA(row.StudentName),
			FatherName:  lowerOrNA(row.FatherName),
			Batch:       lowerOrNA(row.Batch),
			Subjects:    subjects,
			Total:       row.Total,
			Percentile:  row.Percentile,
			Rank:        row.Rank,
			CreatedAt:   now,
		})
	}

	exists, err := svc.repo.NameExists(ctx, name)
	if err != nil {
		return 0, errors.Wrap(err, "checking test name")
	}
	if exists {
		return 0, ErrNameExists
	}
	if err := svc.repo.InsertMany(ctx, scores); err != nil {
		return 0, errors.Wrap(err, "inserting scores")
	}
	return len(scores), nil
}

func (svc *Service) ListByRollNumber(ctx context.Context, rollNo int) ([]Score, error) {
	scores, err := svc.repo.ListByRollNumber(ctx, rollNo)
	if err != nil {
		return nil, errors.Wrap(err, "listing scores")
	}
	if scores == nil {
		scores = []Score{}
	}
	return scores, nil
}

func (svc *Service) ListTests(ctx context.Context) ([]Test, error) {
	tests, err := svc.repo.ListTests(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing tests")
	}
	if tests == nil {
		tests = []Test{}
	}
	return tests, nil
}
