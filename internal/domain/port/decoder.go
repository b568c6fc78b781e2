package port

import (
	"context"
	"image"
)

// VideoSource is an opened video. It keeps a read cursor and is not safe for
// use by more than one goroutine.
type VideoSource interface {
	FrameCount() int
	Duration() float64
	Position() int
	ReadFrameAt(ctx context.Context, index int) (image.Image, error)
	Close() error
}

type FrameDecoder interface {
	Open(ctx context.Context, videoPath string) (VideoSource, error)
}
