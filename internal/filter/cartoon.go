package filter

import (
	"image"

	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/parallel"
)

// cartoonBand is the width of each posterisation band per channel.
const cartoonBand = 8

// cartoon posterises every colour channel into bands of cartoonBand values and darkens
// the Canny edges of the source so outlines read as ink lines.
func cartoon(src image.Image) *image.RGBA {
	flat := clone.AsRGBA(src)
	w, h := flat.Bounds().Dx(), flat.Bounds().Dy()

	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			row := flat.Pix[y*flat.Stride : y*flat.Stride+w*4]
			for i := 0; i < len(row); i += 4 {
				row[i+0] = posterize(row[i+0])
				row[i+1] = posterize(row[i+1])
				row[i+2] = posterize(row[i+2])
				row[i+3] = 0xff
			}
		}
	})

	// Subtract computes fg - bg per channel and clamps at zero, so every edge
	// pixel (255) turns black and the rest keep their posterised colour.
	return blend.Subtract(edges(src), flat)
}

// posterize snaps v to the centre of its band.
func posterize(v uint8) uint8 {
	return v/cartoonBand*cartoonBand + cartoonBand/2
}
