package imaging

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// DefaultJPEGQuality is the JPEG quality used when saving, matching the
// OpenCV imwrite default.
const DefaultJPEGQuality = 95

// Sentinel errors describing why a load or save failed. They are reachable
// through errors.Is on LoadError and SaveError.
var (
	// ErrUnreadable means the source file could not be opened.
	ErrUnreadable = errors.New("image file unreadable")

	// ErrDecode means the source file is not a decodable image.
	ErrDecode = errors.New("image decode failed")

	// ErrUnsupportedFormat means the destination extension has no encoder.
	ErrUnsupportedFormat = errors.New("unsupported output format")

	// ErrWrite means the destination could not be written.
	ErrWrite = errors.New("image write failed")
)

// LoadError reports a failed Load.
type LoadError struct {
	Path string
	Kind error // ErrUnreadable or ErrDecode
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load image %s: %v: %v", e.Path, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *LoadError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// SaveError reports a failed Save.
type SaveError struct {
	Path string
	Kind error // ErrUnsupportedFormat or ErrWrite
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("failed to save image %s: %v: %v", e.Path, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *SaveError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Store loads and saves images on the local filesystem.
//
// Store holds only immutable settings, so one Store may be shared by every
// connection. Loaded images are never cached: each Load returns a fresh image
// owned by the caller.
type Store struct {
	jpegQuality int
	autoOrient  bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithJPEGQuality sets the quality (1-100) used when saving JPEG files.
// Out of range values are ignored.
func WithJPEGQuality(q int) StoreOption {
	return func(s *Store) {
		if q >= 1 && q <= 100 {
			s.jpegQuality = q
		}
	}
}

// WithAutoOrientation controls whether the EXIF orientation tag is applied on
// load. It is enabled by default.
func WithAutoOrientation(enabled bool) StoreOption {
	return func(s *Store) {
		s.autoOrient = enabled
	}
}

// NewStore creates a Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		jpegQuality: DefaultJPEGQuality,
		autoOrient:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads and decodes the image at path.
//
// Supported formats are PNG, JPEG, GIF, BMP, TIFF and WebP; the format is
// detected from the file contents, not the extension.
//
// # Errors
//
//   - *LoadError wrapping ErrUnreadable if the file cannot be opened
//   - *LoadError wrapping ErrDecode if the contents are not a supported image
func (s *Store) Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Kind: ErrUnreadable, Err: err}
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(s.autoOrient))
	if err != nil {
		return nil, &LoadError{Path: path, Kind: ErrDecode, Err: err}
	}

	return img, nil
}

// Save encodes img to path. The format is chosen from the extension of path:
// ".png", ".jpg"/".jpeg", ".gif", ".tif"/".tiff" and ".bmp" are supported.
//
// The image is written to a temporary file in the destination directory and
// renamed over path once complete, so a failed save leaves path untouched.
//
// # Errors
//
//   - *SaveError wrapping ErrUnsupportedFormat for an unknown extension
//   - *SaveError wrapping ErrWrite if the file cannot be written
func (s *Store) Save(img image.Image, path string) error {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return &SaveError{Path: path, Kind: ErrUnsupportedFormat, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".smartfilter-*"+filepath.Ext(path))
	if err != nil {
		return &SaveError{Path: path, Kind: ErrWrite, Err: err}
	}
	tmpName := tmp.Name()

	if err := imaging.Encode(tmp, img, format, imaging.JPEGQuality(s.jpegQuality)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &SaveError{Path: path, Kind: ErrWrite, Err: fmt.Errorf("encode %s: %w", format, err)}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &SaveError{Path: path, Kind: ErrWrite, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return &SaveError{Path: path, Kind: ErrWrite, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &SaveError{Path: path, Kind: ErrWrite, Err: err}
	}

	return nil
}

// Info describes the pixel layout of an image.
type Info struct {
	// Width is the image width in pixels.
	Width int

	// Height is the image height in pixels.
	Height int

	// Channels is the number of colour channels: 1 for gray, 3 for colour
	// without alpha, 4 for colour with alpha.
	Channels int
}

// Describe reports the dimensions and channel count of img.
//
// Channel count is derived from the Go image type:
//   - *image.Gray, *image.Gray16 -> 1
//   - *image.YCbCr, *image.CMYK -> 3 (JPEG decodes to these)
//   - *image.Paletted -> 4 if any palette entry is translucent, otherwise 3
//   - everything else -> 4
func Describe(img image.Image) Info {
	b := img.Bounds()
	info := Info{Width: b.Dx(), Height: b.Dy(), Channels: 4}

	switch p := img.(type) {
	case *image.Gray, *image.Gray16:
		info.Channels = 1
	case *image.YCbCr, *image.CMYK:
		info.Channels = 3
	case *image.Paletted:
		info.Channels = 3
		for _, c := range p.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				info.Channels = 4
				break
			}
		}
	}

	return info
}
