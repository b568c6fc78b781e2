package port

import (
	"context"
	"image"

	"github.com/naufalaziz23/piplinee/internal/domain/entity"
)

type Detector interface {
	// Detect returns the objects found in img with a score of at least
	// confidence, together with an annotated copy of img.
	Detect(ctx context.Context, img image.Image, confidence float64) (*entity.DetectionResult, error)
}
