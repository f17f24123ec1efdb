package imaging

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestImage writes a uniform PNG into dir and returns its path.
func createTestImage(t *testing.T, dir string, width, height int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(dir, "input.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, png.Encode(f, img))
	return path
}

func TestNewStore(t *testing.T) {
	s := NewStore()
	require.NotNil(t, s)
	assert.Equal(t, DefaultJPEGQuality, s.jpegQuality)
	assert.True(t, s.autoOrient)

	s = NewStore(WithJPEGQuality(80), WithAutoOrientation(false))
	assert.Equal(t, 80, s.jpegQuality)
	assert.False(t, s.autoOrient)

	s = NewStore(WithJPEGQuality(0), WithJPEGQuality(101))
	assert.Equal(t, DefaultJPEGQuality, s.jpegQuality, "out of range quality should be ignored")
}

func TestStore_Load(t *testing.T) {
	dir := t.TempDir()
	path := createTestImage(t, dir, 100, 50, color.RGBA{255, 0, 0, 255})

	img, err := NewStore().Load(path)
	require.NoError(t, err)

	bounds := img.Bounds()
	assert.Equal(t, 100, bounds.Dx())
	assert.Equal(t, 50, bounds.Dy())

	r, g, b, _ := img.At(10, 10).RGBA()
	assert.Equal(t, uint32(255), r>>8)
	assert.Equal(t, uint32(0), g>>8)
	assert.Equal(t, uint32(0), b>>8)
}

func TestStore_LoadNotCached(t *testing.T) {
	dir := t.TempDir()
	path := createTestImage(t, dir, 10, 10, color.White)
	s := NewStore()

	first, err := s.Load(path)
	require.NoError(t, err)

	// Replace the file; the next load must see the new contents.
	createTestImage(t, dir, 20, 20, color.Black)
	second, err := s.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, first.Bounds().Dx())
	assert.Equal(t, 20, second.Bounds().Dx())
}

func TestStore_LoadNonExistent(t *testing.T) {
	_, err := NewStore().Load(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.ErrorIs(t, err, ErrUnreadable)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "missing.png")
}

func TestStore_LoadInvalidImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	_, err := NewStore().Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)
	assert.False(t, errors.Is(err, ErrUnreadable))
}

func TestStore_LoadDirectory(t *testing.T) {
	_, err := NewStore().Load(t.TempDir())
	require.Error(t, err)

	var loadErr *LoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestStore_SaveFormats(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 16, 8))
	for i := range gray.Pix {
		gray.Pix[i] = uint8(i)
	}

	tests := []struct {
		name         string
		file         string
		wantChannels int
	}{
		{"png", "out.png", 1},
		{"jpeg", "out.jpg", 1},
		{"jpeg long extension", "out.JPEG", 1},
		{"gif", "out.gif", 3},
		{"bmp", "out.bmp", 1},
		{"tiff", "out.tiff", 1},
	}

	s := NewStore()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, s.Save(gray, path))

			got, err := s.Load(path)
			require.NoError(t, err)
			assert.Equal(t, 16, got.Bounds().Dx())
			assert.Equal(t, 8, got.Bounds().Dy())
			if tt.name != "bmp" {
				assert.Equal(t, tt.wantChannels, Describe(got).Channels)
			}
		})
	}
}

func TestStore_SavePNGRoundTripIsLossless(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
		if i%4 == 3 {
			img.Pix[i] = 255
		}
	}

	path := filepath.Join(t.TempDir(), "out.png")
	s := NewStore()
	require.NoError(t, s.Save(img, path))

	got, err := s.Load(path)
	require.NoError(t, err)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			assert.Equal(t, color.RGBAModel.Convert(img.At(x, y)), color.RGBAModel.Convert(got.At(x, y)))
		}
	}
}

func TestStore_SaveUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.xyz")

	err := NewStore().Save(image.NewGray(image.Rect(0, 0, 4, 4)), path)
	require.Error(t, err)

	var saveErr *SaveError
	require.True(t, errors.As(err, &saveErr))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.NoFileExists(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no temporary files should be left behind")
}

func TestStore_SaveMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no", "such", "dir", "out.png")

	err := NewStore().Save(image.NewGray(image.Rect(0, 0, 4, 4)), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrite)
	assert.NoFileExists(t, path)
}

func TestStore_SaveOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := createTestImage(t, dir, 10, 10, color.White)

	s := NewStore()
	require.NoError(t, s.Save(image.NewGray(image.Rect(0, 0, 3, 3)), path))

	got, err := s.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Bounds().Dx())

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o644), st.Mode().Perm())
}

func TestStore_ConcurrentAccess(t *testing.T) {
	dir := t.TempDir()
	path := createTestImage(t, dir, 32, 32, color.RGBA{0, 0, 255, 255})
	s := NewStore()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			img, err := s.Load(path)
			if err != nil {
				errs <- err
				return
			}
			out := filepath.Join(dir, "out-"+string(rune('a'+i))+".png")
			if err := s.Save(img, out); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent load/save failed: %v", err)
	}
}

func TestDescribe(t *testing.T) {
	rect := image.Rect(0, 0, 7, 3)
	opaque := color.Palette{color.Black, color.White}
	translucent := color.Palette{color.Black, color.NRGBA{255, 0, 0, 128}}

	tests := []struct {
		name string
		img  image.Image
		want int
	}{
		{"gray", image.NewGray(rect), 1},
		{"gray16", image.NewGray16(rect), 1},
		{"ycbcr", image.NewYCbCr(rect, image.YCbCrSubsampleRatio420), 3},
		{"cmyk", image.NewCMYK(rect), 3},
		{"rgba", image.NewRGBA(rect), 4},
		{"nrgba", image.NewNRGBA(rect), 4},
		{"opaque palette", image.NewPaletted(rect, opaque), 3},
		{"translucent palette", image.NewPaletted(rect, translucent), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Describe(tt.img)
			assert.Equal(t, Info{Width: 7, Height: 3, Channels: tt.want}, info)
		})
	}
}
