package vision

import "math"

// luminance returns per-pixel Rec. 601 luma in [0,1].
func luminance(img Image) []float64 {
	out := make([]float64, img.Width*img.Height)
	for i := range out {
		p := img.Pix[4*i : 4*i+3 : 4*i+3]
		out[i] = (0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])) / 255
	}
	return out
}

// EdgeMap is a binary edge image.
type EdgeMap struct {
	Width  int
	Height int
	Bits   []bool
}

// At reports whether (x, y) is an edge pixel; out of range is false.
func (m EdgeMap) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Bits[y*m.Width+x]
}

// Count returns the number of edge pixels.
func (m EdgeMap) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// detectEdges applies 3x3 Sobel kernels to the luminance and thresholds the
// gradient magnitude. Border pixels are never edges.
func detectEdges(w, h int, lum []float64, threshold float64) EdgeMap {
	m := EdgeMap{Width: w, Height: h, Bits: make([]bool, w*h)}
	at := func(x, y int) float64 { return lum[y*w+x] }
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1) +
				at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			if math.Hypot(gx, gy) >= threshold {
				m.Bits[y*w+x] = true
			}
		}
	}
	return m
}
