package filter

import (
	"image"
	"math"
	"math/rand"

	"github.com/anthonynsimon/bild/blur"
)

// Grain distribution for Retro, on the 0-255 intensity scale.
const (
	retroGrainMean   = 30.0
	retroGrainStdDev = 30.0
	retroBlurRadius  = 1 // 3x3 box
)

// retro produces a soft, grainy grayscale image. The grain is drawn from a
// normal distribution and stored as an 8-bit value before it is added, so
// negative samples clamp to zero and the grain only ever lightens.
//
// The generator is created per call from seed and sampled in row-major order,
// so the same input and seed always produce the same output.
func retro(src image.Image, seed int64) *image.Gray {
	soft := blur.Box(grayscale(src), retroBlurRadius)
	b := soft.Bounds()
	w, h := b.Dx(), b.Dy()

	out := image.NewGray(image.Rect(0, 0, w, h))
	rng := rand.New(rand.NewSource(seed))

	for y := 0; y < h; y++ {
		in := soft.Pix[y*soft.Stride : y*soft.Stride+w*4]
		row := out.Pix[y*out.Stride : y*out.Stride+w]
		for x := range row {
			grain := saturate(math.Round(retroGrainMean + retroGrainStdDev*rng.NormFloat64()))
			row[x] = saturate(float64(in[x*4]) + float64(grain))
		}
	}

	return out
}

// saturate clamps v to the byte range, truncating any fraction.
func saturate(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
