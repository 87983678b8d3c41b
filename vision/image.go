package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// ErrInvalidImage is returned for images with no pixels or an inconsistent buffer.
var ErrInvalidImage = errors.New("invalid image")

// Image is an 8-bit RGBA raster with a stride of 4*Width.
type Image struct {
	Width  int
	Height int
	Pix    []uint8
}

// Validate checks the buffer geometry.
func (img Image) Validate() error {
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidImage, img.Width, img.Height)
	}
	if len(img.Pix) != 4*img.Width*img.Height {
		return fmt.Errorf("%w: have %d bytes, want %d", ErrInvalidImage, len(img.Pix), 4*img.Width*img.Height)
	}
	return nil
}

// RGBA exposes the image as *image.RGBA sharing the pixel buffer.
func (img Image) RGBA() *image.RGBA {
	return &image.RGBA{Pix: img.Pix, Stride: 4 * img.Width, Rect: image.Rect(0, 0, img.Width, img.Height)}
}

// FromImage copies any image.Image into an Image.
func FromImage(src image.Image) Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return Image{Width: b.Dx(), Height: b.Dy(), Pix: dst.Pix}
}

// MaxPixels bounds the declared size of an encoded image. Larger images are
// rejected from their header, before any pixel is decoded.
const MaxPixels = 40_000_000

// Decode decodes PNG, JPEG, GIF, BMP or WebP bytes.
func Decode(data []byte) (Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return Image{}, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidImage, cfg.Width, cfg.Height, MaxPixels)
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return FromImage(src), format, nil
}
