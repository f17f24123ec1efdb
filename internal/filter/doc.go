// Package filter implements the fixed set of image transformations offered by
// the service and the registry that maps wire identifiers onto them.
//
// # Variants
//
// The set of variants is closed:
//
//   - Grayscale (0): BT.601 luminance, single channel output
//   - EdgeDetect (1): Canny edge map, single channel output (edges are 255)
//   - Cartoonize (2): posterisation in bands of 8 values with dark edge outlines, RGBA output
//   - Retro (3): blurred grayscale with additive Gaussian grain, single channel
//
// Resolve maps any integer onto a Variant and never fails: identifiers outside
// 0..3 resolve to Grayscale.
//
// # Thread Safety
//
// Every variant is a pure function of its input image (and, for Retro, of a
// fixed seed). Variants never modify the source image and keep no state
// between calls, so Apply may be called concurrently from any number of
// goroutines without synchronisation.
package filter
