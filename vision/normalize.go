package vision

import (
	"image"

	"golang.org/x/image/draw"
)

// normalize downscales img so its longest side is at most maxDim, keeping the
// aspect ratio. Smaller images are returned unchanged.
func normalize(img Image, maxDim int) Image {
	longest := img.Width
	if img.Height > longest {
		longest = img.Height
	}
	if maxDim <= 0 || longest <= maxDim {
		return img
	}

	scale := float64(maxDim) / float64(longest)
	w := max(1, int(float64(img.Width)*scale+0.5))
	h := max(1, int(float64(img.Height)*scale+0.5))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img.RGBA(), image.Rect(0, 0, img.Width, img.Height), draw.Src, nil)
	return Image{Width: w, Height: h, Pix: dst.Pix}
}
