package entity

import (
	"mime"
	"path/filepath"
	"strings"
)

// Container is a supported video container format.
type Container string

const (
	ContainerMP4 Container = "mp4"
	ContainerAVI Container = "avi"
	ContainerMOV Container = "mov"
)

var containerByMIME = map[string]Container{
	"video/mp4":       ContainerMP4,
	"video/x-msvideo": ContainerAVI,
	"video/avi":       ContainerAVI,
	"video/msvideo":   ContainerAVI,
	"video/quicktime": ContainerMOV,
}

var containerByExt = map[string]Container{
	".mp4": ContainerMP4,
	".avi": ContainerAVI,
	".mov": ContainerMOV,
}

// Ext returns the file extension used when the video is materialized.
func (c Container) Ext() string {
	return "." + string(c)
}

// ParseContainer resolves the container of an uploaded video from its declared
// content type, falling back to the file name extension when the content type
// is missing or generic.
func ParseContainer(contentType, filename string) (Container, error) {
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			if c, ok := containerByMIME[strings.ToLower(mediaType)]; ok {
				return c, nil
			}
			if mediaType != "application/octet-stream" {
				return "", &UploadError{Reason: "unsupported video type " + mediaType}
			}
		}
	}

	if c, ok := containerByExt[strings.ToLower(filepath.Ext(filename))]; ok {
		return c, nil
	}
	return "", &UploadError{Reason: "unsupported video file " + filepath.Base(filename)}
}
