package embedding

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// CLIP image normalization constants.
var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// PreprocessCLIP resizes the shorter side of img to size with bicubic filtering, center-crops
// a size x size square and returns normalized pixel values in CHW order.
func PreprocessCLIP(img image.Image, size int) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	scale := float64(size) / float64(min(w, h))
	nw := max(size, int(math.Round(float64(w)*scale)))
	nh := max(size, int(math.Round(float64(h)*scale)))

	resized := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, b, draw.Src, nil)

	ox := (nw - size) / 2
	oy := (nh - size) / 2
	plane := size * size
	out := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		row := resized.Pix[(oy+y)*resized.Stride:]
		for x := 0; x < size; x++ {
			p := row[(ox+x)*4:]
			i := y*size + x
			for c := 0; c < 3; c++ {
				out[c*plane+i] = (float32(p[c])/255 - clipMean[c]) / clipStd[c]
			}
		}
	}
	return out
}
