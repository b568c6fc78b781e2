package usecase

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/naufalaziz23/piplinee/internal/domain/entity"
)

// ReaderInput is a video streamed by the caller, typically a multipart part.
// It can be saved once.
type ReaderInput struct {
	r         io.Reader
	container entity.Container
}

// NewReaderInput resolves the container from the declared content type and
// file name. An unsupported format is an *entity.UploadError.
func NewReaderInput(r io.Reader, contentType, filename string) (*ReaderInput, error) {
	container, err := entity.ParseContainer(contentType, filename)
	if err != nil {
		return nil, err
	}
	return &ReaderInput{r: r, container: container}, nil
}

func (in *ReaderInput) Container() entity.Container { return in.container }

func (in *ReaderInput) SaveTo(ctx context.Context, destPath string) error {
	f, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return &entity.IOError{Op: "create video file", Path: destPath, Err: err}
	}

	n, err := io.Copy(&fileWriter{f: f}, &ctxReader{ctx: ctx, r: in.r})
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = &entity.IOError{Op: "close video file", Path: destPath, Err: closeErr}
	}
	if err == nil && n == 0 {
		err = &entity.UploadError{Reason: "video file is empty"}
	}
	if err != nil {
		_ = os.Remove(destPath)
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return &entity.UploadError{Reason: "video exceeds the upload size limit", Err: err}
		case entity.IsUploadError(err), entity.IsIOError(err):
			return err
		default:
			return &entity.UploadError{Reason: "could not read video", Err: err}
		}
	}
	return nil
}

// fileWriter marks write failures so they are not blamed on the upload.
type fileWriter struct {
	f *os.File
}

func (w *fileWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	if err != nil {
		return n, &entity.IOError{Op: "write video file", Path: w.f.Name(), Err: err}
	}
	return n, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
