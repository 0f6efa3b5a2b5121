package batch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/batch"
	"github.com/trezcool/academia/storage/database/inmem"
	"github.com/trezcool/academia/tests"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	svc := batch.NewService(inmemdb.NewBatchRepository(testutil.PrepareDB(t)))

	b, err := svc.Create(ctx, batch.NewBatch{Name: "alpha", Class: "12", StartDate: "2024-04-01", EndDate: "2025-03-31"})
	require.NoError(t, err)
	assert.Equal(t, 364, b.DurationDays())

	_, err = svc.Create(ctx, batch.NewBatch{Name: "alpha", Class: "11", StartDate: "2024-04-01", EndDate: "2025-03-31"})
	assert.ErrorIs(t, err, batch.ErrNameExists)

	_, err = svc.Create(ctx, batch.NewBatch{Name: "beta", Class: "11", StartDate: "2023-04-01", EndDate: "2024-03-31"})
	require.NoError(t, err)

	batches, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "alpha", batches[0].Name)

	b, err = svc.Update(ctx, b.ID, batch.UpdateBatch{EndDate: "2024-04-11"})
	require.NoError(t, err)
	assert.Equal(t, 10, b.DurationDays())

	_, err = svc.Update(ctx, b.ID, batch.UpdateBatch{EndDate: "2024-03-01"})
	assert.Equal(t, core.KindValidation, core.KindOf(err))

	_, err = svc.Update(ctx, b.ID, batch.UpdateBatch{Name: "beta"})
	assert.ErrorIs(t, err, batch.ErrNameExists)

	require.NoError(t, svc.Delete(ctx, b.ID))
	_, err = svc.Get(ctx, b.ID)
	assert.Equal(t, batch.ErrNotFound, err)
	assert.Equal(t, batch.ErrNotFound, svc.Delete(ctx, b.ID))
}
