package testutil

import (
	"image"
	"image/color"
	"image/draw"
)

// Common fixture colors.
var (
	Gray   = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	Dark   = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	Bright = color.RGBA{R: 230, G: 230, B: 230, A: 255}
	Door   = color.RGBA{R: 70, G: 70, B: 70, A: 255}
)

// RoomImage builds synthetic room photos out of filled rectangles and lines.
// Coordinates are half-open: [x0,x1) x [y0,y1).
type RoomImage struct {
	img *image.RGBA
}

// NewRoomImage returns a w x h canvas filled with bg.
func NewRoomImage(w, h int, bg color.RGBA) *RoomImage {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)
	return &RoomImage{img: img}
}

// Rect fills a rectangle.
func (r *RoomImage) Rect(x0, y0, x1, y1 int, c color.RGBA) *RoomImage {
	draw.Draw(r.img, image.Rect(x0, y0, x1, y1), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return r
}

// HLine draws a full-width horizontal line of the given thickness at y.
func (r *RoomImage) HLine(y, thickness int, c color.RGBA) *RoomImage {
	return r.Rect(0, y, r.img.Bounds().Dx(), y+thickness, c)
}

// VLine draws a full-height vertical line of the given thickness at x.
func (r *RoomImage) VLine(x, thickness int, c color.RGBA) *RoomImage {
	return r.Rect(x, 0, x+thickness, r.img.Bounds().Dy(), c)
}

// Window draws a bright w x h opening at (x, y).
func (r *RoomImage) Window(x, y, w, h int) *RoomImage { return r.Rect(x, y, x+w, y+h, Bright) }

// Door draws a dark w x h opening at (x, y).
func (r *RoomImage) Door(x, y, w, h int) *RoomImage { return r.Rect(x, y, x+w, y+h, Door) }

// Image returns the canvas.
func (r *RoomImage) Image() *image.RGBA { return r.img }

// LivingRoom is a 400x300 scene with two walls, two windows and one door.
func LivingRoom() *image.RGBA {
	return NewRoomImage(400, 300, Gray).
		HLine(60, 3, Dark).
		VLine(20, 3, Dark).
		Window(60, 100, 60, 50).
		Window(240, 100, 60, 50).
		Door(170, 170, 40, 100).
		Image()
}

// Uniform returns a featureless w x h image.
func Uniform(w, h int, c color.RGBA) *image.RGBA {
	return NewRoomImage(w, h, c).Image()
}
