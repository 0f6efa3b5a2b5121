// Package attendance stores the daily punch records exported by the biometric device.
package attendance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

const (
	StatusPresent = "P"
	notAvailable  = "N/A"
)

var (
	ErrMissingRollNo = errors.New("roll number is required")
	ErrMissingName   = errors.New("name is required")
	ErrMissingDate   = errors.New("a valid attendance date is required")
	ErrInvalidRange  = errors.New("from must not be after to")

	nowFunc = time.Now // mockable
)

type Record struct {
	ID             string    `json:"id"`
	RollNo         int       `json:"rollNo"`
	Name           string    `json:"name"`
	Date           time.Time `json:"date"`
	InTime         string    `json:"inTime"`
	OutTime        string    `json:"outTime"`
	LateArrival    string    `json:"lateArrival"`
	EarlyDeparture string    `json:"earlyDeparture"`
	WorkingHours   string    `json:"workingHours"`
	OTDuration     string    `json:"otDuration"`
	PresentStatus  string    `json:"presentStatus"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (r Record) Present() bool { return r.PresentStatus == StatusPresent }

// NewRecord is one line of an attendance sheet.
type NewRecord struct {
	RollNo         int
	Name           string
	InTime         string
	OutTime        string
	LateArrival    string
	EarlyDeparture string
	WorkingHours   string
	OTDuration     string
	PresentStatus  string
}

// DateCount is the number of present and absent records of one day.
type DateCount struct {
	Date    string `json:"date"` // YYYY-MM-DD
	Present int64  `json:"present"`
	Absent  int64  `json:"absent"`
}

type (
	Repository interface {
		InsertMany(ctx context.Context, records []Record) error
		ListByRollNumber(ctx context.Context, rollNo int, from, to time.Time) ([]Record, error)
		// CountByDate returns the latest limit days, most recent first.
		CountByDate(ctx context.Context, limit int) ([]DateCount, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func orNA(s string) string {
	if s = core.CleanString(s); s == "" {
		return notAvailable
	}
	return s
}

// Build validates the lines of a sheet taken on date and turns them into records.
// Errors name the 1-based line.
func Build(date time.Time, rows []NewRecord) ([]Record, error) {
	if date.IsZero() {
		return nil, core.NewFieldError("date", ErrMissingDate)
	}
	now := nowFunc().UTC()
	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		if row.RollNo <= 0 {
			return nil, core.NewFieldError(fmt.Sprintf("row %d: rollNo", i+1), ErrMissingRollNo)
		}
		name := core.CleanString(row.Name)
		if name == "" {
			return nil, core.NewFieldError(fmt.Sprintf("row %d: name", i+1), ErrMissingName)
		}
		records = append(records, Record{
			ID:             uuid.NewString(),
			RollNo:         row.RollNo,
			Name:           name,
			Date:           date,
			InTime:         orNA(row.InTime),
			OutTime:        orNA(row.OutTime),
			LateArrival:    orNA(row.LateArrival),
			EarlyDeparture: orNA(row.EarlyDeparture),
			WorkingHours:   orNA(row.WorkingHours),
			OTDuration:     orNA(row.OTDuration),
			PresentStatus:  strings.ToUpper(orNA(row.PresentStatus)),
			CreatedAt:      now,
		})
	}
	return records, nil
}

// BulkRecord stores a whole attendance sheet. Nothing is stored if a line is invalid.
func (svc *Service) BulkRecord(ctx context.Context, date time.Time, rows []NewRecord) (int, error) {
	records, err := Build(date, rows)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := svc.repo.InsertMany(ctx, records); err != nil {
		return 0, errors.Wrap(err, "inserting attendance")
	}
	return len(records), nil
}

// ListByRollNumber returns the records of a student between from and to, both inclusive.
// Zero bounds are open.
func (svc *Service) ListByRollNumber(ctx context.Context, rollNo int, from, to time.Time) ([]Record, error) {
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, core.NewFieldError("from", ErrInvalidRange)
	}
	records, err := svc.repo.ListByRollNumber(ctx, rollNo, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "listing attendance")
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func (svc *Service) CountByDate(ctx context.Context, limit int) ([]DateCount, error) {
	return svc.repo.CountByDate(ctx, limit)
}
