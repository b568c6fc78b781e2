package onnx

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/naufalaziz23/piplinee/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRunner struct {
	data   []float32
	shape  []int64
	err    error
	calls  int
	sizes  []int
	closed bool
}

func (f *fakeRunner) run(input []float32, size int) ([]float32, []int64, error) {
	f.calls++
	f.sizes = append(f.sizes, size)
	if len(input) != 3*size*size {
		return nil, nil, errors.New("bad input length")
	}
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.data, f.shape, nil
}

func (f *fakeRunner) close() error {
	f.closed = true
	return nil
}

func TestLetterboxMapsBackToSource(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 128, 64))
	boxed, lb := letterboxImage(src, 64)

	assert.Equal(t, image.Rect(0, 0, 64, 64), boxed.Bounds())
	assert.InDelta(t, 0.5, lb.scale, 1e-9)
	assert.Equal(t, 0, lb.padX)
	assert.Equal(t, 16, lb.padY)

	// Padding rows keep the fill colour.
	assert.Equal(t, padColor, boxed.RGBAAt(10, 2))

	x, y := lb.toSource(32, 48)
	assert.InDelta(t, 64, x, 1e-9)
	assert.InDelta(t, 64, y, 1e-9)
}

func TestToCHW(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 255, G: 0, B: 51, A: 255})
	img.SetRGBA(1, 0, color.RGBA{R: 0, G: 255, B: 0, A: 255})

	out := toCHW(img)
	require.Len(t, out, 6)
	assert.InDeltaSlice(t, []float32{1, 0, 0, 1, 0.2, 0}, out, 1e-6)
}

func TestDetectMapsBoxesAndLabels(t *testing.T) {
	// 128x64 source letterboxed into 64x64: scale 0.5, 16 px padding top.
	data, shape := head(2,
		anchor{cx: 24, cy: 32, w: 16, h: 16, scores: []float32{0.9, 0.1}},
		anchor{cx: 50, cy: 30, w: 8, h: 8, scores: []float32{0.05, 0.1}},
	)
	r := &fakeRunner{data: data, shape: shape}
	d := newDetector(r, []string{"person", "car"}, 64, 0.45, zap.NewNop())

	src := image.NewRGBA(image.Rect(0, 0, 128, 64))
	res, err := d.Detect(context.Background(), src, 0.25)
	require.NoError(t, err)

	require.Len(t, res.Detections, 1)
	det := res.Detections[0]
	assert.Equal(t, "person", det.Label)
	assert.Equal(t, 0, det.ClassID)
	assert.InDelta(t, 0.9, det.Confidence, 1e-6)
	assert.Equal(t, entity.Box{X1: 32, Y1: 16, X2: 64, Y2: 48}, det.Box)

	require.NotNil(t, res.Annotated)
	assert.Equal(t, src.Bounds(), res.Annotated.Bounds())
	assert.Equal(t, []int{64}, r.sizes)
}

func TestDetectClampsToImage(t *testing.T) {
	data, shape := head(1, anchor{cx: 4, cy: 60, w: 16, h: 16, scores: []float32{0.8}})
	d := newDetector(&fakeRunner{data: data, shape: shape}, nil, 64, 0.45, zap.NewNop())

	res, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 64, 64)), 0.25)
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)
	assert.Equal(t, entity.Box{X1: 0, Y1: 52, X2: 12, Y2: 64}, res.Detections[0].Box)
	assert.Equal(t, "class 0", res.Detections[0].Label)
}

func TestDetectNoDetectionsStillAnnotates(t *testing.T) {
	data, shape := head(1, anchor{cx: 4, cy: 4, w: 4, h: 4, scores: []float32{0.1}})
	d := newDetector(&fakeRunner{data: data, shape: shape}, nil, 64, 0.45, zap.NewNop())

	res, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 32, 32)), 0.5)
	require.NoError(t, err)
	assert.Empty(t, res.Detections)
	assert.NotNil(t, res.Annotated)
}

func TestDetectPropagatesRunnerError(t *testing.T) {
	d := newDetector(&fakeRunner{err: errors.New("boom")}, nil, 64, 0.45, zap.NewNop())

	_, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)), 0.25)
	assert.ErrorContains(t, err, "boom")
}

func TestDetectHonoursCancelledContext(t *testing.T) {
	r := &fakeRunner{}
	d := newDetector(r, nil, 64, 0.45, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Detect(ctx, image.NewRGBA(image.Rect(0, 0, 8, 8)), 0.25)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, r.calls)
}

func TestWarmUpAndClose(t *testing.T) {
	data, shape := head(1, anchor{scores: []float32{0}})
	r := &fakeRunner{data: data, shape: shape}
	d := newDetector(r, nil, 32, 0.45, zap.NewNop())

	require.NoError(t, d.warmUp())
	assert.Equal(t, 1, r.calls)
	require.NoError(t, d.Close())
	assert.True(t, r.closed)
}

func TestNewDetectorMissingModel(t *testing.T) {
	_, err := NewDetector(DetectorConfig{ModelPath: "/nonexistent/model.onnx", InputSize: 64}, zap.NewNop())
	require.Error(t, err)
	assert.True(t, entity.IsModelLoadError(err))
}

func TestLoadLabels(t *testing.T) {
	labels, err := LoadLabels("")
	require.NoError(t, err)
	assert.Len(t, labels, 80)
	assert.Equal(t, "person", labels[0])
	assert.Equal(t, "toothbrush", labels[79])

	_, err = LoadLabels("/nonexistent/labels.txt")
	assert.Error(t, err)
}
