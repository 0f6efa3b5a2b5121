// Package batch manages the cohorts students are enrolled in.
package batch

import (
	"context"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("batch not found")
	ErrNameExists    = core.NewConflictError("a batch with this name already exists")
	ErrEndBeforeFrom = errors.New("end date must be after the start date")

	nowFunc = time.Now // mockable
)

type Batch struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"` // unique, lowercase
	Class     string    `json:"class"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DurationDays is the number of days between the start and end dates, rounded up.
func (b Batch) DurationDays() int {
	return int(math.Ceil(b.EndDate.Sub(b.StartDate).Hours() / 24))
}

// batchJSON adds the derived duration to the JSON form.
type batchJSON struct {
	Batch
	Duration int `json:"duration"`
}

// View returns b with its derived fields.
func (b Batch) View() interface{} {
	return batchJSON{Batch: b, Duration: b.DurationDays()}
}

type NewBatch struct {
	Name      string `json:"name" validate:"required,max=100"`
	Class     string `json:"class" validate:"required,max=50"`
	StartDate string `json:"startDate" validate:"required,ymd"`
	EndDate   string `json:"endDate" validate:"required,ymd"`
}

func (nb *NewBatch) Validate(validate *validator.Validate) error {
	nb.Name = core.CleanString(nb.Name, true /* lower */)
	nb.Class = core.CleanString(nb.Class, true /* lower */)
	if err := validate.Struct(nb); err != nil {
		return err
	}
	return checkDates(nb.StartDate, nb.EndDate)
}

// UpdateBatch defines what may be changed on a Batch. Empty fields are left untouched.
type UpdateBatch struct {
	Name      string `json:"name" validate:"max=100"`
	Class     string `json:"class" validate:"max=50"`
	StartDate string `json:"startDate" validate:"omitempty,ymd"`
	EndDate   string `json:"endDate" validate:"omitempty,ymd"`
}

func (ub *UpdateBatch) Validate(validate *validator.Validate) error {
	ub.Name = core.CleanString(ub.Name, true /* lower */)
	ub.Class = core.CleanString(ub.Class, true /* lower */)
	return validate.Struct(ub)
}

func checkDates(from, to string) error {
	start, _ := core.ParseDate(from)
	end, _ := core.ParseDate(to)
	if !end.After(start) {
		return core.NewFieldError("endDate", ErrEndBeforeFrom)
	}
	return nil
}

type (
	Repository interface {
		Insert(ctx context.Context, b Batch) error
		// List returns all batches, latest start date first.
		List(ctx context.Context) ([]Batch, error)
		Get(ctx context.Context, id string) (Batch, error)
		Update(ctx context.Context, b Batch) error
		Delete(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create adds a Batch. NewBatch must have been validated.
func (svc *Service) Create(ctx context.Context, nb NewBatch) (Batch, error) {
	start, _ := core.ParseDate(nb.StartDate)
	end, _ := core.ParseDate(nb.EndDate)
	now := nowFunc().UTC()
	b := Batch{
		ID:        uuid.NewString(),
		Name:      nb.Name,
		Class:     nb.Class,
		StartDate: start,
		EndDate:   end,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := svc.repo.Insert(ctx, b); err != nil {
		return Batch{}, errors.Wrap(err, "inserting batch")
	}
	return b, nil
}

func (svc *Service) List(ctx context.Context) ([]Batch, error) {
	batches, err := svc.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing batches")
	}
	if batches == nil {
		batches = []Batch{}
	}
	return batches, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Batch, error) {
	return svc.repo.Get(ctx, id)
}

// Update applies ub to the Batch. UpdateBatch must have been validated.
func (svc *Service) Update(ctx context.Context, id string, ub UpdateBatch) (Batch, error) {
	b, err := svc.repo.Get(ctx, id)
	if err != nil {
		return Batch{}, err
	}
	if ub.Name != "" {
		b.Name = ub.Name
	}
	if ub.Class != "" {
		b.Class = ub.Class
	}
	if ub.StartDate != "" {
		b.StartDate, _ = core.ParseDate(ub.StartDate)
	}
	if ub.EndDate != "" {
		b.EndDate, _ = core.ParseDate(ub.EndDate)
	}
	if !b.EndDate.After(b.StartDate) {
		return Batch{}, core.NewFieldError("endDate", ErrEndBeforeFrom)
	}
	b.UpdatedAt = nowFunc().UTC()
	if err := svc.repo.Update(ctx, b); err != nil {
		return Batch{}, errors.Wrap(err, "updating batch")
	}
	return b, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.Delete(ctx, id)
}
