package onnx

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"sync"
	"time"

	"github.com/naufalaziz23/piplinee/internal/domain/entity"
	"github.com/naufalaziz23/piplinee/internal/infra/annotate"
	"go.uber.org/zap"
)

type DetectorConfig struct {
	ModelPath         string
	LabelsPath        string
	SharedLibraryPath string
	InputSize         int
	IOUThreshold      float64
	UseCUDA           bool
}

// runner executes one forward pass on a CHW input of the given square size
// and returns the raw output tensor with its shape.
type runner interface {
	run(input []float32, size int) ([]float32, []int64, error)
	close() error
}

// Detector runs a YOLOv8 model. It is created once per process and shared;
// forward passes are serialized because the session is not documented as safe
// for concurrent runs.
type Detector struct {
	runner    runner
	mu        sync.Mutex
	labels    []string
	inputSize int
	iou       float32
	logger    *zap.Logger
}

// NewDetector loads the model and runs one warm-up pass so that a broken model
// or runtime is reported at startup. Every failure is a *entity.ModelLoadError.
func NewDetector(cfg DetectorConfig, logger *zap.Logger) (*Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, &entity.ModelLoadError{Path: cfg.ModelPath, Err: err}
	}

	labels, err := LoadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, &entity.ModelLoadError{Path: cfg.ModelPath, Err: err}
	}

	start := time.Now()
	r, err := newORTRunner(cfg, logger)
	if err != nil {
		return nil, &entity.ModelLoadError{Path: cfg.ModelPath, Err: err}
	}

	d := newDetector(r, labels, cfg.InputSize, cfg.IOUThreshold, logger)
	if err := d.warmUp(); err != nil {
		r.close()
		return nil, &entity.ModelLoadError{Path: cfg.ModelPath, Err: fmt.Errorf("warm-up: %w", err)}
	}

	logger.Info("detector loaded",
		zap.String("model", cfg.ModelPath),
		zap.Int("classes", len(labels)),
		zap.Int("input_size", cfg.InputSize),
		zap.Duration("load_time", time.Since(start)),
	)
	return d, nil
}

func newDetector(r runner, labels []string, inputSize int, iou float64, logger *zap.Logger) *Detector {
	return &Detector{
		runner:    r,
		labels:    labels,
		inputSize: inputSize,
		iou:       float32(iou),
		logger:    logger,
	}
}

func (d *Detector) warmUp() error {
	blank := image.NewRGBA(image.Rect(0, 0, d.inputSize, d.inputSize))
	_, _, err := d.forward(blank)
	return err
}

func (d *Detector) Detect(ctx context.Context, img image.Image, confidence float64) (*entity.DetectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("empty image")
	}

	output, shape, lb, err := d.infer(img)
	if err != nil {
		return nil, err
	}

	cands, err := DecodeOutput(output, shape, float32(confidence))
	if err != nil {
		return nil, err
	}
	kept := NMS(cands, d.iou, MaxDetections)
	detections := d.toDetections(kept, lb, img.Bounds())

	return &entity.DetectionResult{
		Detections: detections,
		Annotated:  annotate.Draw(img, detections),
	}, nil
}

func (d *Detector) infer(img image.Image) ([]float32, []int64, letterbox, error) {
	boxed, lb := letterboxImage(img, d.inputSize)
	output, shape, err := d.forward(boxed)
	return output, shape, lb, err
}

func (d *Detector) forward(boxed *image.RGBA) ([]float32, []int64, error) {
	input := toCHW(boxed)

	d.mu.Lock()
	defer d.mu.Unlock()
	output, shape, err := d.runner.run(input, d.inputSize)
	if err != nil {
		return nil, nil, fmt.Errorf("inference: %w", err)
	}
	return output, shape, nil
}

func (d *Detector) toDetections(cands []Candidate, lb letterbox, bounds image.Rectangle) []entity.Detection {
	out := make([]entity.Detection, 0, len(cands))
	for _, c := range cands {
		x1, y1 := lb.toSource(c.X1, c.Y1)
		x2, y2 := lb.toSource(c.X2, c.Y2)
		box := entity.Box{
			X1: clamp(int(math.Round(x1)), 0, bounds.Dx()) + bounds.Min.X,
			Y1: clamp(int(math.Round(y1)), 0, bounds.Dy()) + bounds.Min.Y,
			X2: clamp(int(math.Round(x2)), 0, bounds.Dx()) + bounds.Min.X,
			Y2: clamp(int(math.Round(y2)), 0, bounds.Dy()) + bounds.Min.Y,
		}
		if box.X2 <= box.X1 || box.Y2 <= box.Y1 {
			continue
		}
		out = append(out, entity.Detection{
			ClassID:    c.ClassID,
			Label:      labelFor(d.labels, c.ClassID),
			Confidence: float64(c.Score),
			Box:        box,
		})
	}
	return out
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Close releases the session and the runtime environment.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runner.close()
}
