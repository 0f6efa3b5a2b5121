// Package kit manages the study kits handed out to students.
package kit

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrNotFound   = core.NewNotFoundError("kit not found")
	ErrNameExists = core.NewConflictError("a kit with this name already exists")

	nowFunc = time.Now // mockable
)

type Kit struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"` // unique, lowercase
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

type NewKit struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

func (nk *NewKit) Validate(validate *validator.Validate) error {
	nk.Name = core.CleanString(nk.Name, true /* lower */)
	nk.Description = core.CleanString(nk.Description, true /* lower */)
	return validate.Struct(nk)
}

type (
	Repository interface {
		Insert(ctx context.Context, k Kit) error
		List(ctx context.Context) ([]Kit, error)
		// Ensure returns the kits named names, creating the missing ones with description.
		Ensure(ctx context.Context, names []string, description string, now time.Time) ([]Kit, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create adds a Kit. NewKit must have been validated.
func (svc *Service) Create(ctx context.Context, nk NewKit) (Kit, error) {
	k := Kit{
		ID:          uuid.NewString(),
		Name:        nk.Name,
		Description: nk.Description,
		CreatedAt:   nowFunc().UTC(),
	}
	if err := svc.repo.Insert(ctx, k); err != nil {
		return Kit{}, errors.Wrap(err, "inserting kit")
	}
	return k, nil
}

func (svc *Service) List(ctx context.Context) ([]Kit, error) {
	kits, err := svc.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing kits")
	}
	if kits == nil {
		kits = []Kit{}
	}
	return kits, nil
}

// FindOrCreate resolves kit names (case-insensitive) to kits, creating those that do not exist yet.
func (svc *Service) FindOrCreate(ctx context.Context, names []string, description string) ([]Kit, error) {
	seen := make(map[string]bool, len(names))
	clean := make([]string, 0, len(names))
	for _, n := range names {
		n = core.CleanString(n, true /* lower */)
		if n != "" && !seen[n] {
			seen[n] = true
			clean = append(clean, n)
		}
	}
	if len(clean) == 0 {
		return []Kit{}, nil
	}
	kits, err := svc.repo.Ensure(ctx, clean, core.CleanString(description, true /* lower */), nowFunc().UTC())
	if err != nil {
		return nil, errors.Wrap(err, "ensuring kits")
	}
	return kits, nil
}
