package filter

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/parallel"
)

// Canny hysteresis thresholds on the 0-255 gradient scale.
const (
	edgeThresholdLow  = 10
	edgeThresholdHigh = 100
)

// edges returns the Canny edge map of src: 255 on edges, 0 elsewhere.
func edges(src image.Image) *image.Gray {
	return canny(grayscale(src), edgeThresholdLow, edgeThresholdHigh)
}

// canny performs Canny edge detection on a grayscale image.
//
// The pipeline is:
//
//  1. Gaussian blur with a 5x5 kernel (sigma ≈ 1.4) to reduce noise
//  2. Sobel gradients, magnitude = sqrt(Gx² + Gy²), direction = atan2(Gy, Gx)
//  3. Non-maximum suppression along the gradient direction
//  4. Hysteresis: pixels at or above high are edges, pixels at or above low
//     are edges when 8-connected to an edge
//
// Thresholds are on the 0-255 intensity scale. Border pixels are never edges.
func canny(gray *image.Gray, low, high int) *image.Gray {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, width, height))
	if width < 3 || height < 3 {
		return out
	}

	lum := make([]float64, width*height)
	for y := 0; y < height; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+width]
		for x, v := range row {
			lum[y*width+x] = float64(v) / 255.0
		}
	}

	blurred := gaussianBlur(lum, width, height)

	magnitude := make([]float64, width*height)
	direction := make([]float64, width*height)
	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < width; x++ {
				var gx, gy float64
				for ky := -1; ky <= 1; ky++ {
					for kx := -1; kx <= 1; kx++ {
						v := blurred[clamp(y+ky, 0, height-1)*width+clamp(x+kx, 0, width-1)]
						gx += v * sobelX[ky+1][kx+1]
						gy += v * sobelY[ky+1][kx+1]
					}
				}
				magnitude[y*width+x] = math.Sqrt(gx*gx + gy*gy)
				direction[y*width+x] = math.Atan2(gy, gx)
			}
		}
	})

	suppressed := make([]float64, width*height)
	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			if y == 0 || y == height-1 {
				continue
			}
			for x := 1; x < width-1; x++ {
				i := y*width + x
				n1, n2 := gradientNeighbours(magnitude, width, x, y, direction[i])
				if magnitude[i] >= n1 && magnitude[i] >= n2 {
					suppressed[i] = magnitude[i]
				}
			}
		}
	})

	lowThresh := float64(low) / 255.0
	highThresh := float64(high) / 255.0

	// Seed with strong edges, then grow through weak pixels.
	stack := make([]int, 0, width)
	for i, v := range suppressed {
		if v >= highThresh {
			out.Pix[i/width*out.Stride+i%width] = 255
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%width, i/width
		for ky := -1; ky <= 1; ky++ {
			for kx := -1; kx <= 1; kx++ {
				px, py := x+kx, y+ky
				if px < 0 || py < 0 || px >= width || py >= height {
					continue
				}
				j := py*width + px
				o := py*out.Stride + px
				if out.Pix[o] == 0 && suppressed[j] >= lowThresh {
					out.Pix[o] = 255
					stack = append(stack, j)
				}
			}
		}
	}

	return out
}

var (
	sobelX = [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY = [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}
	gaussian5 = [5][5]float64{
		{1, 4, 7, 4, 1},
		{4, 16, 26, 16, 4},
		{7, 26, 41, 26, 7},
		{4, 16, 26, 16, 4},
		{1, 4, 7, 4, 1},
	}
)

const gaussian5Sum = 273.0

// gradientNeighbours returns the two magnitudes on either side of (x, y)
// along the quantised gradient direction.
func gradientNeighbours(mag []float64, width, x, y int, angle float64) (float64, float64) {
	at := func(px, py int) float64 { return mag[py*width+px] }

	switch {
	case (angle >= -math.Pi/8 && angle < math.Pi/8) || angle >= 7*math.Pi/8 || angle < -7*math.Pi/8:
		return at(x-1, y), at(x+1, y)
	case (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8):
		return at(x+1, y-1), at(x-1, y+1)
	case (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8):
		return at(x, y-1), at(x, y+1)
	default:
		return at(x-1, y-1), at(x+1, y+1)
	}
}

// gaussianBlur convolves img with gaussian5. Borders replicate edge pixels.
func gaussianBlur(img []float64, width, height int) []float64 {
	result := make([]float64, width*height)
	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < width; x++ {
				var sum float64
				for ky := -2; ky <= 2; ky++ {
					for kx := -2; kx <= 2; kx++ {
						sum += img[clamp(y+ky, 0, height-1)*width+clamp(x+kx, 0, width-1)] * gaussian5[ky+2][kx+2]
					}
				}
				result[y*width+x] = sum / gaussian5Sum
			}
		}
	})
	return result
}

func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
