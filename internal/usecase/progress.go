package usecase

import (
	"context"

	"github.com/naufalaziz23/piplinee/internal/domain/entity"
	"github.com/naufalaziz23/piplinee/internal/domain/port"
	"go.uber.org/zap"
)

// ProgressFanout forwards every update to each reporter in order.
type ProgressFanout []port.ProgressReporter

func (f ProgressFanout) ReportProgress(ctx context.Context, p entity.Progress) {
	for _, r := range f {
		if r != nil {
			r.ReportProgress(ctx, p)
		}
	}
}

type LogProgress struct {
	Logger *zap.Logger
}

func (l LogProgress) ReportProgress(_ context.Context, p entity.Progress) {
	l.Logger.Info(p.Counter(),
		zap.String("run_id", p.RunID.String()),
		zap.Int("completed", p.Completed),
		zap.Int("total", p.Total),
	)
}
