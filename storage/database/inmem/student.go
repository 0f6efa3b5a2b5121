package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/student"
)

type studentRepository struct {
	db *DB
}

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

func cloneStudent(s student.Student) student.Student {
	s.Kits = append([]string{}, s.Kits...)
	return s
}

func (repo *studentRepository) FindByRollNumber(ctx context.Context, rollNo int) (student.Student, error) {
	defer repo.db.lock(ctx)()
	if s, ok := repo.db.t.students[rollNo]; ok {
		return cloneStudent(s), nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) FindByRollNumbers(ctx context.Context, rollNos []int) ([]student.Student, error) {
	defer repo.db.lock(ctx)()
	students := make([]student.Student, 0, len(rollNos))
	seen := make(map[int]bool, len(rollNos))
	for _, r := range rollNos {
		if s, ok := repo.db.t.students[r]; ok && !seen[r] {
			seen[r] = true
			students = append(students, cloneStudent(s))
		}
	}
	return students, nil
}

func (repo *studentRepository) FindByParentEmail(ctx context.Context, email string) ([]student.Student, error) {
	defer repo.db.lock(ctx)()
	var students []student.Student
	for _, s := range repo.db.t.students {
		if email != "" && s.Parent.Email == email {
			students = append(students, cloneStudent(s))
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].RollNo < students[j].RollNo })
	return students, nil
}

func (repo *studentRepository) Exists(ctx context.Context, rollNo int) (bool, error) {
	defer repo.db.lock(ctx)()
	_, ok := repo.db.t.students[rollNo]
	return ok, nil
}

func (repo *studentRepository) ExistingRollNumbers(ctx context.Context, rollNos []int) ([]int, error) {
	defer repo.db.lock(ctx)()
	var taken []int
	for _, r := range rollNos {
		if _, ok := repo.db.t.students[r]; ok {
			taken = append(taken, r)
		}
	}
	return taken, nil
}

func (repo *studentRepository) Insert(ctx context.Context, s student.Student) error {
	defer repo.db.lock(ctx)()
	if _, ok := repo.db.t.students[s.RollNo]; ok {
		return student.ErrRollNoExists
	}
	repo.db.t.students[s.RollNo] = cloneStudent(s)
	return nil
}

func (repo *studentRepository) InsertMany(ctx context.Context, students []student.Student) error {
	defer repo.db.lock(ctx)()
	seen := make(map[int]bool, len(students))
	for _, s := range students {
		if _, ok := repo.db.t.students[s.RollNo]; ok || seen[s.RollNo] {
			return student.ErrRollNoExists
		}
		seen[s.RollNo] = true
	}
	for _, s := range students {
		repo.db.t.students[s.RollNo] = cloneStudent(s)
	}
	return nil
}

func (repo *studentRepository) Save(ctx context.Context, s student.Student) error {
	defer repo.db.lock(ctx)()
	if _, ok := repo.db.t.students[s.RollNo]; !ok {
		return student.ErrNotFound
	}
	repo.db.t.students[s.RollNo] = cloneStudent(s)
	return nil
}

func (repo *studentRepository) SetFeeRef(ctx context.Context, rollNo int, feeID string) error {
	defer repo.db.lock(ctx)()
	s, ok := repo.db.t.students[rollNo]
	if !ok {
		return student.ErrNotFound
	}
	s.FeeID = feeID
	repo.db.t.students[rollNo] = s
	return nil
}

func (repo *studentRepository) AddKits(ctx context.Context, rollNos []int, kitIDs []string) ([]int, error) {
	defer repo.db.lock(ctx)()
	var matched []int
	for _, r := range rollNos {
		s, ok := repo.db.t.students[r]
		if !ok {
			continue
		}
		s = cloneStudent(s)
		for _, id := range kitIDs {
			if !contains(s.Kits, id) {
				s.Kits = append(s.Kits, id)
			}
		}
		repo.db.t.students[r] = s
		matched = append(matched, r)
	}
	return matched, nil
}

func (repo *studentRepository) Query(
	ctx context.Context,
	filter student.QueryFilter,
	ordering []core.DBOrdering,
	page core.Pagination,
) ([]student.Student, int64, error) {
	defer repo.db.lock(ctx)()

	var students []student.Student
	for _, s := range repo.db.t.students {
		if filter.Matches(s) {
			students = append(students, cloneStudent(s))
		}
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "rollNo", Ascending: true}}
	}
	sort.SliceStable(students, func(i, j int) bool { return lessStudent(students[i], students[j], ordering) })

	total := int64(len(students))
	return paginate(students, page), total, nil
}

func lessStudent(a, b student.Student, ordering []core.DBOrdering) bool {
	for _, ord := range ordering {
		var cmp int
		switch ord.Field {
		case "rollNo":
			cmp = a.RollNo - b.RollNo
		case "name":
			cmp = strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case "createdAt":
			cmp = a.CreatedAt.Compare(b.CreatedAt)
		}
		if cmp != 0 {
			return (cmp < 0) == ord.Ascending
		}
	}
	return a.RollNo < b.RollNo
}

func (repo *studentRepository) QueryRange(ctx context.Context, from, to int) ([]student.Student, error) {
	defer repo.db.lock(ctx)()
	var students []student.Student
	for _, s := range repo.db.t.students {
		if s.RollNo >= from && s.RollNo <= to {
			students = append(students, cloneStudent(s))
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].RollNo < students[j].RollNo })
	return students, nil
}

func (repo *studentRepository) Count(ctx context.Context) (int64, error) {
	defer repo.db.lock(ctx)()
	return int64(len(repo.db.t.students)), nil
}

func (repo *studentRepository) CountByBatch(ctx context.Context) ([]student.BatchCount, error) {
	defer repo.db.lock(ctx)()
	counts := make(map[string]int64)
	for _, s := range repo.db.t.students {
		counts[s.Batch]++
	}
	result := make([]student.BatchCount, 0, len(counts))
	for b, n := range counts {
		result = append(result, student.BatchCount{Batch: b, Count: n})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Batch < result[j].Batch })
	return result, nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, page core.Pagination) []T {
	if page.PageSize <= 0 {
		return items
	}
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
