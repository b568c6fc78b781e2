package entity

import (
	"errors"
	"fmt"
)

// UploadError means no usable video or parameters were supplied. The caller is
// expected to ask the user again; no run state is kept.
type UploadError struct {
	Reason string
	Err    error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload: %s: %v", e.Reason, e.Err)
	}
	return "upload: " + e.Reason
}

func (e *UploadError) Unwrap() error { return e.Err }

// ModelLoadError means the detection model could not be initialized. It is
// fatal for the process.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %q: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// DecodeError means the frame at Index could not be read from the video.
type DecodeError struct {
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// InferenceError means detection failed on the frame at Index.
type InferenceError struct {
	Index int
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("detect frame %d: %v", e.Index, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// IOError is a disk or packaging failure. It aborts the run it happens in.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ErrRunNotFound is returned by repositories for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

func IsUploadError(err error) bool {
	var e *UploadError
	return errors.As(err, &e)
}

func IsModelLoadError(err error) bool {
	var e *ModelLoadError
	return errors.As(err, &e)
}

func IsIOError(err error) bool {
	var e *IOError
	return errors.As(err, &e)
}

// IsFrameError reports whether err is confined to a single frame, i.e. a
// decode or inference failure. Such errors stop the batch but keep the frames
// already collected.
func IsFrameError(err error) bool {
	var de *DecodeError
	if errors.As(err, &de) {
		return true
	}
	var ie *InferenceError
	return errors.As(err, &ie)
}
