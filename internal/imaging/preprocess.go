package imaging

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Normalization describes how a feature extractor turns pixels into model input.
type Normalization struct {
	Size    int
	Mean    [3]float32
	Std     [3]float32
	Rescale float32
}

// ViTDefaults matches the ViT feature extractor shipped with vit-gpt2 captioners.
var ViTDefaults = Normalization{
	Size:    224,
	Mean:    [3]float32{0.5, 0.5, 0.5},
	Std:     [3]float32{0.5, 0.5, 0.5},
	Rescale: 1.0 / 255.0,
}

// Resize scales img to size x size with bilinear interpolation, ignoring aspect ratio.
func Resize(img image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	// Composite onto white so transparent regions do not turn black.
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// PixelValues returns a 1x3xSxS float32 tensor in CHW order.
func PixelValues(img image.Image, n Normalization) []float32 {
	if n.Size <= 0 {
		n.Size = ViTDefaults.Size
	}
	if n.Rescale == 0 {
		n.Rescale = ViTDefaults.Rescale
	}
	rgba := Resize(img, n.Size)
	plane := n.Size * n.Size
	out := make([]float32, 3*plane)
	for y := 0; y < n.Size; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < n.Size; x++ {
			px := row[x*4 : x*4+3]
			idx := y*n.Size + x
			for c := 0; c < 3; c++ {
				std := n.Std[c]
				if std == 0 {
					std = 1
				}
				out[c*plane+idx] = (float32(px[c])*n.Rescale - n.Mean[c]) / std
			}
		}
	}
	return out
}
