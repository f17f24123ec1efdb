package filter

import (
	"errors"
	"fmt"
	"image"
)

// Variant identifies one of the fixed transformations.
type Variant int

// Wire identifiers. The numeric values are part of the protocol.
const (
	Grayscale  Variant = 0
	EdgeDetect Variant = 1
	Cartoonize Variant = 2
	Retro      Variant = 3
)

// DefaultVariant is used for any identifier outside the known set.
const DefaultVariant = Grayscale

// DefaultRetroSeed seeds the Retro grain generator unless configured otherwise.
const DefaultRetroSeed int64 = 1

// ErrEmptyImage is returned when a transformation is given an image with no pixels.
var ErrEmptyImage = errors.New("image has no pixels")

// Variants returns every variant in identifier order.
func Variants() []Variant {
	return []Variant{Grayscale, EdgeDetect, Cartoonize, Retro}
}

// Resolve maps a wire identifier onto a Variant. It never fails: identifiers
// outside the known set resolve to DefaultVariant.
func Resolve(id int) Variant {
	switch v := Variant(id); v {
	case Grayscale, EdgeDetect, Cartoonize, Retro:
		return v
	default:
		return DefaultVariant
	}
}

// String returns the lowercase variant name.
func (v Variant) String() string {
	switch v {
	case Grayscale:
		return "grayscale"
	case EdgeDetect:
		return "edge"
	case Cartoonize:
		return "cartoon"
	case Retro:
		return "retro"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// Options tunes the transformations.
type Options struct {
	// RetroSeed seeds the grain added by Retro. A fixed seed makes Retro output
	// identical for identical input.
	RetroSeed int64
}

// Registry applies variants with a fixed set of options. The zero value is
// not useful; use NewRegistry. A Registry is read-only after construction and
// safe for concurrent use.
type Registry struct {
	opts Options
}

// NewRegistry creates a registry with the given options.
func NewRegistry(opts Options) *Registry {
	return &Registry{opts: opts}
}

// Apply runs variant v on img and returns a newly allocated image. The source
// image is never modified. A Variant value outside the known set is treated as
// DefaultVariant.
func (r *Registry) Apply(v Variant, img image.Image) (image.Image, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	switch Resolve(int(v)) {
	case EdgeDetect:
		return edges(img), nil
	case Cartoonize:
		return cartoon(img), nil
	case Retro:
		return retro(img, r.opts.RetroSeed), nil
	default:
		return grayscale(img), nil
	}
}
