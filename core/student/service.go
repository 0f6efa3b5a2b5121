package student

import (
	"context"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("student not found")
	ErrRollNoExists   = core.NewConflictError("a student with this roll number already exists")
	errNoFreeRollNums = errors.New("could not find enough free roll numbers")

	randIntn = rand.New(rand.NewSource(time.Now().UnixNano())).Intn // mockable
	nowFunc  = time.Now                                             // mockable
)

type (
	// Repository is the Student Directory. Methods accept a transaction-bound ctx (see core.Transactor).
	Repository interface {
		FindByRollNumber(ctx context.Context, rollNo int) (Student, error)
		FindByRollNumbers(ctx context.Context, rollNos []int) ([]Student, error)
		FindByParentEmail(ctx context.Context, email string) ([]Student, error)
		Exists(ctx context.Context, rollNo int) (bool, error)
		// ExistingRollNumbers returns the subset of rollNos already taken.
		ExistingRollNumbers(ctx context.Context, rollNos []int) ([]int, error)
		Insert(ctx context.Context, s Student) error
		InsertMany(ctx context.Context, students []Student) error
		// Save replaces the Student with the same roll number.
		Save(ctx context.Context, s Student) error
		SetFeeRef(ctx context.Context, rollNo int, feeID string) error
		// AddKits adds kitIDs (without duplicates) to the given students and returns the roll numbers that matched.
		AddKits(ctx context.Context, rollNos []int, kitIDs []string) ([]int, error)
		Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Student, int64, error)
		QueryRange(ctx context.Context, from, to int) ([]Student, error)
		Count(ctx context.Context) (int64, error)
		CountByBatch(ctx context.Context) ([]BatchCount, error)
	}

	Service struct {
		repo Repository
	}

	Page struct {
		core.PageInfo
		Data []Student `json:"data"`
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Repository() Repository { return svc.repo }

// Create enrolls a new Student. NewStudent must have been validated.
func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	if ns.RollNo == 0 {
		nums, err := svc.SuggestRollNumbers(ctx, 1)
		if err != nil {
			return Student{}, errors.Wrap(err, "allocating roll number")
		}
		ns.RollNo = nums[0]
	} else {
		exists, err := svc.repo.Exists(ctx, ns.RollNo)
		if err != nil {
			return Student{}, errors.Wrap(err, "checking roll number")
		}
		if exists {
			return Student{}, ErrRollNoExists
		}
	}

	s := ns.toStudent(nowFunc().UTC())
	if err := svc.repo.Insert(ctx, s); err != nil {
		return Student{}, errors.Wrap(err, "inserting student")
	}
	return s, nil
}

func (svc *Service) Get(ctx context.Context, rollNo int) (Student, error) {
	return svc.repo.FindByRollNumber(ctx, rollNo)
}

func (svc *Service) Exists(ctx context.Context, rollNo int) (bool, error) {
	return svc.repo.Exists(ctx, rollNo)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) (Page, error) {
	ords := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if OrderingFields[ord.Field] {
			ords = append(ords, ord)
		}
	}
	students, total, err := svc.repo.Query(ctx, filter, ords, page)
	if err != nil {
		return Page{}, errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []Student{}
	}
	return Page{PageInfo: core.NewPageInfo(page, total), Data: students}, nil
}

// Update applies us to the Student. UpdateStudent must have been validated.
func (svc *Service) Update(ctx context.Context, rollNo int, us UpdateStudent) (Student, error) {
	s, err := svc.repo.FindByRollNumber(ctx, rollNo)
	if err != nil {
		return Student{}, err
	}
	us.apply(&s)
	s.UpdatedAt = nowFunc().UTC()
	if err := svc.repo.Save(ctx, s); err != nil {
		return Student{}, errors.Wrap(err, "saving student")
	}
	return s, nil
}

// SuggestRollNumbers picks n distinct random roll numbers that are not taken yet.
func (svc *Service) SuggestRollNumbers(ctx context.Context, n int) ([]int, error) {
	if n < 1 {
		n = 1
	}
	picked := make(map[int]bool, n)
	result := make([]int, 0, n)

	for attempt := 0; attempt < 10 && len(result) < n; attempt++ {
		candidates := make([]int, 0, 2*n)
		for len(candidates) < 2*n {
			c := randIntn(core.MaxRollNumber) + 1
			if !picked[c] {
				picked[c] = true
				candidates = append(candidates, c)
			}
		}

		taken, err := svc.repo.ExistingRollNumbers(ctx, candidates)
		if err != nil {
			return nil, errors.Wrap(err, "checking roll numbers")
		}
		takenSet := make(map[int]bool, len(taken))
		for _, t := range taken {
			takenSet[t] = true
		}
		for _, c := range candidates {
			if !takenSet[c] && len(result) < n {
				result = append(result, c)
			}
		}
	}
	if len(result) < n {
		return nil, errNoFreeRollNums
	}
	return result, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func itoa(i int) string { return strconv.Itoa(i) }
