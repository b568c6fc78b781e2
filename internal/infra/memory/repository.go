package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/naufalaziz23/piplinee/internal/domain/entity"
)

// RunRepository keeps run snapshots in process memory. Callers never share a
// *entity.Run with the store: writes and reads both copy.
type RunRepository struct {
	mu     sync.RWMutex
	runs   map[uuid.UUID]*entity.Run
	latest uuid.UUID
}

func NewRunRepository() *RunRepository {
	return &RunRepository{runs: make(map[uuid.UUID]*entity.Run)}
}

func (r *RunRepository) Create(_ context.Context, run *entity.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; ok {
		return fmt.Errorf("create run: %s already exists", run.ID)
	}
	r.runs[run.ID] = run.Snapshot()
	r.latest = run.ID
	return nil
}

func (r *RunRepository) Update(_ context.Context, run *entity.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; !ok {
		return fmt.Errorf("update run %s: %w", run.ID, entity.ErrRunNotFound)
	}
	r.runs[run.ID] = run.Snapshot()
	return nil
}

func (r *RunRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("find run %s: %w", id, entity.ErrRunNotFound)
	}
	return run.Snapshot(), nil
}

// Latest returns the most recently created run.
func (r *RunRepository) Latest(ctx context.Context) (*entity.Run, error) {
	r.mu.RLock()
	id := r.latest
	r.mu.RUnlock()

	if id == uuid.Nil {
		return nil, fmt.Errorf("latest run: %w", entity.ErrRunNotFound)
	}
	return r.FindByID(ctx, id)
}

func (r *RunRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.runs, id)
	if r.latest == id {
		r.latest = uuid.Nil
	}
	return nil
}
