package port

import (
	"context"
	"image"
)

type Archiver interface {
	Reset(dir string) error
	WriteFrame(dir, filename string, img image.Image) error
	PackageArchive(ctx context.Context, dir, archivePath string) error
}
