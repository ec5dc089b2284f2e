package utils

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	cases := []struct {
		path string
		ok   bool
	}{
		{"a.jpg", true},
		{"b.JPEG", true},
		{"c.png", true},
		{"d.bmp", true},
		{"e.tiff", false},
		{"f.gif", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, IsSupportedImage(c.path), c.path)
	}
}

func TestSaveAndLoadImage(t *testing.T) {
	dir := t.TempDir()
	src := imaging.New(10, 20, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	for _, ext := range []string{".png", ".bmp"} {
		t.Run(ext, func(t *testing.T) {
			p := filepath.Join(dir, "nested", "frame"+ext)
			require.NoError(t, SaveImage(p, src))

			img, meta, err := LoadImage(p)
			require.NoError(t, err)
			assert.Equal(t, 10, meta.Width)
			assert.Equal(t, 20, meta.Height)
			assert.Positive(t, meta.SizeBytes)

			r, g, b, _ := img.At(3, 3).RGBA()
			assert.Equal(t, []uint32{10, 20, 30}, []uint32{r >> 8, g >> 8, b >> 8})
		})
	}
}

func TestLoadImage_Errors(t *testing.T) {
	_, _, err := LoadImage("")
	require.Error(t, err)

	_, _, err = LoadImage("frame.gif")
	var ipe *ImageProcessingError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "load", ipe.Operation)

	_, _, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestEncodeImage_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := EncodeImage(&buf, image.NewGray(image.Rect(0, 0, 1, 1)), "tiff")
	assert.Error(t, err)
}

func TestEncodePNG_DecodeImage(t *testing.T) {
	data, err := EncodePNG(imaging.New(4, 3, color.White))
	require.NoError(t, err)

	img, format, err := DecodeImage(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, image.Pt(4, 3), img.Bounds().Size())
}

func TestDebugDumper(t *testing.T) {
	var disabled *DebugDumper
	assert.False(t, disabled.Enabled())
	disabled.Dump("noop", imaging.New(1, 1, color.White))
	assert.Nil(t, NewDebugDumper("", nil))

	dir := t.TempDir()
	d := NewDebugDumper(dir, nil)
	require.True(t, d.Enabled())
	d.Dump("cropped", imaging.New(2, 2, color.Black))

	_, err := os.Stat(filepath.Join(dir, "debug_cropped.bmp"))
	assert.NoError(t, err)
}
