package entity

import (
	"fmt"
	"image"
)

// FrameName is the file name of the n-th annotated frame (1-indexed).
func FrameName(n int) string {
	return fmt.Sprintf("objek_%d.jpg", n)
}

const (
	CollectionDirName = "hasil_deteksi"
	ArchiveName       = "hasil_scan_ai.zip"
	ArchiveMIME       = "application/zip"
)

// Box is an axis-aligned bounding box in source-image pixels.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

type Detection struct {
	ClassID    int     `json:"class_id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// DetectionResult is what the detector produces for one frame.
type DetectionResult struct {
	Detections []Detection
	Annotated  image.Image
}

// AnnotatedFrame is one output unit of a run. Position is 1-indexed and
// matches the frame's place in the run's sample set. The pixels live on disk
// at Path.
type AnnotatedFrame struct {
	Position   int
	FrameIndex int
	Filename   string
	Path       string
	Detections []Detection
}
