package metrics

import (
	"context"

	"github.com/naufalaziz23/piplinee/internal/domain/entity"
)

// ProgressGauge mirrors run progress into the ScanProgress gauge.
type ProgressGauge struct{}

func (ProgressGauge) ReportProgress(_ context.Context, p entity.Progress) {
	ScanProgress.Set(p.Fraction())
}
