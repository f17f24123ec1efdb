package filter

import (
	"image"

	"golang.org/x/image/draw"
)

// grayscale converts src to an 8-bit single channel image using the ITU-R
// BT.601 weights of color.GrayModel (0.299 R + 0.587 G + 0.114 B).
// The result always has its origin at (0,0).
func grayscale(src image.Image) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
