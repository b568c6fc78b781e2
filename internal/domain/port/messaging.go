package port

import (
	"context"

	"github.com/naufalaziz23/piplinee/internal/domain/entity"
)

type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg []byte) error
}

// ProgressReporter accepts (completed, total) updates while a run is
// processing frames. Updates are advisory; implementations must not block the
// pipeline for long and have no way to fail it.
type ProgressReporter interface {
	ReportProgress(ctx context.Context, p entity.Progress)
}
