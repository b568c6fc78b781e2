package port

import (
	"context"

	"github.com/naufalaziz23/piplinee/internal/domain/entity"
)

// VideoInput is a video supplied by the caller that still has to be written to
// a local, seekable file before it can be scanned.
type VideoInput interface {
	Container() entity.Container
	SaveTo(ctx context.Context, destPath string) error
}
