package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/naufalaziz23/piplinee/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository()

	_, err := repo.Latest(ctx)
	assert.ErrorIs(t, err, entity.ErrRunNotFound)

	run := entity.NewRun(entity.DefaultScanParams(), entity.ContainerMP4)
	require.NoError(t, repo.Create(ctx, run))
	assert.Error(t, repo.Create(ctx, run))

	run.MarkIndexing()
	require.NoError(t, repo.Update(ctx, run))

	got, err := repo.FindByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusIndexing, got.Status)

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest.ID)

	require.NoError(t, repo.Delete(ctx, run.ID))
	_, err = repo.FindByID(ctx, run.ID)
	assert.ErrorIs(t, err, entity.ErrRunNotFound)
	_, err = repo.Latest(ctx)
	assert.ErrorIs(t, err, entity.ErrRunNotFound)
}

func TestRunRepositoryStoresCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository()

	run := entity.NewRun(entity.DefaultScanParams(), entity.ContainerMP4)
	run.MarkProcessing(100, []int{0, 10, 20})
	require.NoError(t, repo.Create(ctx, run))

	run.AddFrame(entity.AnnotatedFrame{Position: 1, FrameIndex: 0, Filename: entity.FrameName(1)})
	got, err := repo.FindByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Frames)

	got.Samples[0] = 99
	again, err := repo.FindByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Samples[0])
}

func TestRunRepositoryUpdateUnknown(t *testing.T) {
	repo := NewRunRepository()
	err := repo.Update(context.Background(), &entity.Run{ID: uuid.New()})
	assert.ErrorIs(t, err, entity.ErrRunNotFound)
}

func TestRunRepositoryConcurrentReads(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository()
	run := entity.NewRun(entity.DefaultScanParams(), entity.ContainerMP4)
	run.MarkProcessing(50, []int{0, 1, 2, 3, 4})
	require.NoError(t, repo.Create(ctx, run))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 5; i++ {
			run.AddFrame(entity.AnnotatedFrame{Position: i + 1, FrameIndex: i})
			_ = repo.Update(ctx, run)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			r, err := repo.Latest(ctx)
			if err == nil {
				assert.LessOrEqual(t, len(r.Frames), 5)
			}
		}
	}()
	wg.Wait()

	got, err := repo.FindByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, got.Frames, 5)
}
