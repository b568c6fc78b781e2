package annotate

import (
	"image"
	"image/color"
	"testing"

	"github.com/naufalaziz23/piplinee/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gray(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	return img
}

func TestDrawDoesNotMutateInput(t *testing.T) {
	src := gray(200, 150)
	before := append([]uint8(nil), src.Pix...)

	out := Draw(src, []entity.Detection{{
		ClassID: 0, Label: "person", Confidence: 0.91,
		Box: entity.Box{X1: 20, Y1: 40, X2: 120, Y2: 140},
	}})

	assert.Equal(t, before, src.Pix)
	assert.NotEqual(t, src.Pix, out.Pix)
	assert.Equal(t, src.Bounds(), out.Bounds())
}

func TestDrawPaintsBoxInClassColor(t *testing.T) {
	src := gray(200, 150)
	det := entity.Detection{ClassID: 2, Label: "car", Confidence: 0.5, Box: entity.Box{X1: 50, Y1: 60, X2: 150, Y2: 140}}

	out := Draw(src, []entity.Detection{det})

	want := ClassColor(2)
	// Bottom and right edges are never covered by the tag.
	assert.Equal(t, want, out.RGBAAt(100, 139))
	assert.Equal(t, want, out.RGBAAt(149, 100))
	// Centre stays untouched.
	assert.Equal(t, color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0x80}, out.RGBAAt(100, 100))
}

func TestDrawWithoutDetectionsCopies(t *testing.T) {
	src := gray(64, 48)
	out := Draw(src, nil)
	require.NotSame(t, src, out)
	assert.Equal(t, src.Pix, out.Pix)
}

func TestDrawSkipsBoxesOutsideImage(t *testing.T) {
	src := gray(64, 48)
	out := Draw(src, []entity.Detection{{Label: "ghost", Box: entity.Box{X1: 100, Y1: 100, X2: 120, Y2: 120}}})
	assert.Equal(t, src.Pix, out.Pix)
}

func TestDrawTagAtTopEdge(t *testing.T) {
	src := gray(120, 80)
	assert.NotPanics(t, func() {
		Draw(src, []entity.Detection{{ClassID: 5, Label: "bus", Confidence: 0.7, Box: entity.Box{X1: 0, Y1: 0, X2: 60, Y2: 50}}})
	})
}

func TestClassColorWraps(t *testing.T) {
	assert.Equal(t, ClassColor(1), ClassColor(21))
	assert.Equal(t, ClassColor(3), ClassColor(-3))
}
