package onnx

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

var padColor = color.RGBA{R: 114, G: 114, B: 114, A: 0xff}

// letterbox describes how a source image was fitted into the square model
// input: uniformly scaled, then centred with padding.
type letterbox struct {
	scale float64
	padX  int
	padY  int
}

// toSource maps a point in model input space back to source image space.
func (l letterbox) toSource(x, y float32) (float64, float64) {
	return (float64(x) - float64(l.padX)) / l.scale, (float64(y) - float64(l.padY)) / l.scale
}

func letterboxImage(src image.Image, size int) (*image.RGBA, letterbox) {
	b := src.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	scale := math.Min(float64(size)/w, float64(size)/h)

	nw := int(math.Round(w * scale))
	nh := int(math.Round(h * scale))
	padX := (size - nw) / 2
	padY := (size - nh) / 2

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(padColor), image.Point{}, draw.Src)
	draw.ApproxBiLinear.Scale(dst, image.Rect(padX, padY, padX+nw, padY+nh), src, b, draw.Src, nil)

	return dst, letterbox{scale: scale, padX: padX, padY: padY}
}

// toCHW converts an RGBA image into a planar RGB float tensor in [0,1].
func toCHW(img *image.RGBA) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	out := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			i := y*w + x
			out[i] = float32(row[x*4]) / 255
			out[plane+i] = float32(row[x*4+1]) / 255
			out[2*plane+i] = float32(row[x*4+2]) / 255
		}
	}
	return out
}
