package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core/batch"
	"github.com/trezcool/academia/core/kit"
)

type batchRepository struct {
	db *DB
}

func NewBatchRepository(db *DB) batch.Repository {
	return &batchRepository{db: db}
}

func (repo *batchRepository) nameTaken(name, exceptID string) bool {
	for _, b := range repo.db.t.batches {
		if b.Name == name && b.ID != exceptID {
			return true
		}
	}
	return false
}

func (repo *batchRepository) Insert(ctx context.Context, b batch.Batch) error {
	defer repo.db.lock(ctx)()
	if repo.nameTaken(b.Name, "") {
		return batch.ErrNameExists
	}
	repo.db.t.batches[b.ID] = b
	return nil
}

func (repo *batchRepository) List(ctx context.Context) ([]batch.Batch, error) {
	defer repo.db.lock(ctx)()
	batches := make([]batch.Batch, 0, len(repo.db.t.batches))
	for _, b := range repo.db.t.batches {
		batches = append(batches, b)
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].StartDate.After(batches[j].StartDate) })
	return batches, nil
}

func (repo *batchRepository) Get(ctx context.Context, id string) (batch.Batch, error) {
	defer repo.db.lock(ctx)()
	if b, ok := repo.db.t.batches[id]; ok {
		return b, nil
	}
	return batch.Batch{}, batch.ErrNotFound
}

func (repo *batchRepository) Update(ctx context.Context, b batch.Batch) error {
	defer repo.db.lock(ctx)()
	if _, ok := repo.db.t.batches[b.ID]; !ok {
		return batch.ErrNotFound
	}
	if repo.nameTaken(b.Name, b.ID) {
		return batch.ErrNameExists
	}
	repo.db.t.batches[b.ID] = b
	return nil
}

func (repo *batchRepository) Delete(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()
	if _, ok := repo.db.t.batches[id]; !ok {
		return batch.ErrNotFound
	}
	delete(repo.db.t.batches, id)
	return nil
}

type kitRepository struct {
	db *DB
}

func NewKitRepository(db *DB) kit.Repository {
	return &kitRepository{db: db}
}

func (repo *kitRepository) byName(name string) (kit.Kit, bool) {
	for _, k := range repo.db.t.kits {
		if k.Name == name {
			return k, true
		}
	}
	return kit.Kit{}, false
}

func (repo *kitRepository) Insert(ctx context.Context, k kit.Kit) error {
	defer repo.db.lock(ctx)()
	if _, ok := repo.byName(k.Name); ok {
		return kit.ErrNameExists
	}
	repo.db.t.kits[k.ID] = k
	return nil
}

func (repo *kitRepository) List(ctx context.Context) ([]kit.Kit, error) {
	defer repo.db.lock(ctx)()
	kits := make([]kit.Kit, 0, len(repo.db.t.kits))
	for _, k := range repo.db.t.kits {
		kits = append(kits, k)
	}
	sort.Slice(kits, func(i, j int) bool { return kits[i].Name < kits[j].Name })
	return kits, nil
}

func (repo *kitRepository) Ensure(ctx context.Context, names []string, description string, now time.Time) ([]kit.Kit, error) {
	defer repo.db.lock(ctx)()
	kits := make([]kit.Kit, 0, len(names))
	for _, name := range names {
		k, ok := repo.byName(name)
		if !ok {
			k = kit.Kit{ID: uuid.NewString(), Name: name, Description: description, CreatedAt: now}
			repo.db.t.kits[k.ID] = k
		}
		kits = append(kits, k)
	}
	return kits, nil
}
