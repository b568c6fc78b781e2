// Package annotate renders detections onto images.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/naufalaziz23/piplinee/internal/domain/entity"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var palette = []color.RGBA{
	hex(0xFF3838), hex(0xFF9D97), hex(0xFF701F), hex(0xFFB21D), hex(0xCFD231),
	hex(0x48F90A), hex(0x92CC17), hex(0x3DDB86), hex(0x1A9334), hex(0x00D4BB),
	hex(0x2C99A8), hex(0x00C2FF), hex(0x344593), hex(0x6473FF), hex(0x0018EC),
	hex(0x8438FF), hex(0x520085), hex(0xCB38FF), hex(0xFF95C8), hex(0xFF37C7),
}

func hex(v uint32) color.RGBA {
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

// ClassColor is the box color used for a class id.
func ClassColor(classID int) color.RGBA {
	if classID < 0 {
		classID = -classID
	}
	return palette[classID%len(palette)]
}

// Draw returns a copy of src with every detection drawn as a box and a
// "label score" tag. src is left untouched.
func Draw(src image.Image, detections []entity.Detection) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)

	lw := lineWidth(bounds)
	face := basicfont.Face7x13
	for _, det := range detections {
		c := ClassColor(det.ClassID)
		box := det.Box.Rect().Intersect(bounds)
		if box.Empty() {
			continue
		}
		strokeRect(dst, box, lw, c)
		drawTag(dst, face, box, fmt.Sprintf("%s %.2f", det.Label, det.Confidence), c)
	}
	return dst
}

func lineWidth(b image.Rectangle) int {
	lw := int(math.Round(float64(b.Dx()+b.Dy()) / 2 * 0.003))
	return max(lw, 2)
}

func strokeRect(dst *image.RGBA, r image.Rectangle, lw int, c color.RGBA) {
	u := image.NewUniform(c)
	lw = min(lw, r.Dx(), r.Dy())
	if lw <= 0 {
		lw = 1
	}
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+lw),
		image.Rect(r.Min.X, r.Max.Y-lw, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+lw, r.Max.Y),
		image.Rect(r.Max.X-lw, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), u, image.Point{}, draw.Src)
	}
}

// drawTag puts the text on a filled background above the box, or just inside
// its top edge when there is no room above.
func drawTag(dst *image.RGBA, face font.Face, box image.Rectangle, text string, bg color.RGBA) {
	const pad = 2
	metrics := face.Metrics()
	textW := font.MeasureString(face, text).Ceil()
	textH := (metrics.Ascent + metrics.Descent).Ceil()

	tag := image.Rect(box.Min.X, box.Min.Y-textH-2*pad, box.Min.X+textW+2*pad, box.Min.Y)
	if tag.Min.Y < dst.Bounds().Min.Y {
		tag = tag.Add(image.Pt(0, textH+2*pad))
	}
	draw.Draw(dst, tag.Intersect(dst.Bounds()), image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(tag.Min.X+pad, tag.Min.Y+pad+metrics.Ascent.Ceil()),
	}
	d.DrawString(text)
}
