package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents common frame dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test frame sizes (portrait, as captured by a phone).
	SmallSize  = ImageSize{240, 320}
	MediumSize = ImageSize{480, 640}
	LargeSize  = ImageSize{1080, 1920}
)

// TestImageConfig holds configuration for generating code-free frames.
type TestImageConfig struct {
	Text       string
	Size       ImageSize
	Background color.Color
	Foreground color.Color
	FontFace   font.Face
}

// DefaultTestImageConfig returns a default configuration for code-free frames.
func DefaultTestImageConfig() TestImageConfig {
	return TestImageConfig{
		Text:       "no barcode here",
		Size:       MediumSize,
		Background: color.White,
		Foreground: color.Black,
		FontFace:   basicfont.Face7x13,
	}
}

// GenerateTextImage creates a frame containing only centered text. Decoders
// must not find anything in it.
func GenerateTextImage(config TestImageConfig) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, config.Size.Width, config.Size.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{config.Background}, image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{config.Foreground},
		Face: config.FontFace,
	}
	textWidth := font.MeasureString(config.FontFace, config.Text).Ceil()
	textHeight := config.FontFace.Metrics().Height.Ceil()
	drawer.Dot = fixed.P((config.Size.Width-textWidth)/2, (config.Size.Height+textHeight)/2)
	drawer.DrawString(config.Text)
	return img
}

// CreateTestImage creates a uniformly colored frame.
func CreateTestImage(width, height int, background color.Color) *image.NRGBA {
	return imaging.New(width, height, background)
}

// PatternImage creates a frame in which every pixel has a distinct color, so
// that geometric transforms can be verified pixel by pixel.
func PatternImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.SetNRGBA(x, y, PatternColor(x, y))
		}
	}
	return img
}

// PatternColor is the color PatternImage uses at (x, y).
func PatternColor(x, y int) color.NRGBA {
	//nolint:gosec // G115: test pattern only, sizes stay below 4096
	return color.NRGBA{R: uint8(x), G: uint8(y), B: uint8((x>>8)<<4 | (y >> 8)), A: 255}
}

// Embed pastes fg onto a copy of bg with its top-left corner at pos.
func Embed(bg, fg image.Image, pos image.Point) *image.NRGBA {
	return imaging.Paste(bg, fg, pos)
}

// SaveImage saves an image as PNG to the specified path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
}
