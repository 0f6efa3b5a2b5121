package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/testscore"
)

type attendanceRepository struct {
	db *DB
}

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) InsertMany(ctx context.Context, records []attendance.Record) error {
	defer repo.db.lock(ctx)()
	repo.db.t.attendance = append(repo.db.t.attendance, records...)
	return nil
}

func (repo *attendanceRepository) ListByRollNumber(ctx context.Context, rollNo int, from, to time.Time) ([]attendance.Record, error) {
	defer repo.db.lock(ctx)()
	var records []attendance.Record
	for _, r := range repo.db.t.attendance {
		if r.RollNo != rollNo {
			continue
		}
		if (!from.IsZero() && r.Date.Before(from)) || (!to.IsZero() && r.Date.After(to)) {
			continue
		}
		records = append(records, r)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}

func (repo *attendanceRepository) CountByDate(ctx context.Context, limit int) ([]attendance.DateCount, error) {
	defer repo.db.lock(ctx)()
	counts := make(map[string]*attendance.DateCount)
	for _, r := range repo.db.t.attendance {
		day := r.Date.UTC().Format(core.DateLayout)
		c, ok := counts[day]
		if !ok {
			c = &attendance.DateCount{Date: day}
			counts[day] = c
		}
		if r.Present() {
			c.Present++
		} else {
			c.Absent++
		}
	}
	result := make([]attendance.DateCount, 0, len(counts))
	for _, c := range counts {
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date > result[j].Date })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type scoreRepository struct {
	db *DB
}

func NewScoreRepository(db *DB) testscore.Repository {
	return &scoreRepository{db: db}
}

func (repo *scoreRepository) NameExists(ctx context.Context, name string) (bool, error) {
	defer repo.db.lock(ctx)()
	for _, s := range repo.db.t.scores {
		if s.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (repo *scoreRepository) InsertMany(ctx context.Context, scores []testscore.Score) error {
	defer repo.db.lock(ctx)()
	repo.db.t.scores = append(repo.db.t.scores, scores...)
	return nil
}

func (repo *scoreRepository) ListByRollNumber(ctx context.Context, rollNo int) ([]testscore.Score, error) {
	defer repo.db.lock(ctx)()
	var scores []testscore.Score
	for _, s := range repo.db.t.scores {
		if s.RollNumber == rollNo {
			scores = append(scores, s)
		}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Date.After(scores[j].Date) })
	return scores, nil
}

func (repo *scoreRepository) ListTests(ctx context.Context) ([]testscore.Test, error) {
	defer repo.db.lock(ctx)()
	tests := make(map[string]*testscore.Test)
	for _, s := range repo.db.t.scores {
		t, ok := tests[s.Name]
		if !ok {
			t = &testscore.Test{Name: s.Name, Date: s.Date}
			tests[s.Name] = t
		}
		t.Students++
	}
	result := make([]testscore.Test, 0, len(tests))
	for _, t := range tests {
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date.Equal(result[j].Date) {
			return result[i].Name < result[j].Name
		}
		return result[i].Date.After(result[j].Date)
	})
	return result, nil
}
