package overlay

import (
	"errors"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/codereader/internal/barcode"
	"github.com/MeKo-Tech/codereader/internal/testutil"
)

func TestDrawMarkers(t *testing.T) {
	src := testutil.CreateTestImage(100, 100, color.White)
	red := color.NRGBA{R: 255, A: 255}
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}

	out := DrawMarkers(src, []barcode.Point{{X: 50, Y: 50}}, red)

	assert.Equal(t, red, out.NRGBAAt(50, 50))
	assert.Equal(t, red, out.NRGBAAt(50, 36), "vertical bar top")
	assert.Equal(t, red, out.NRGBAAt(50, 64), "vertical bar bottom")
	assert.Equal(t, red, out.NRGBAAt(36, 50), "horizontal bar left")
	assert.Equal(t, red, out.NRGBAAt(64, 50), "horizontal bar right")
	assert.Equal(t, white, out.NRGBAAt(50, 34))
	assert.Equal(t, white, out.NRGBAAt(44, 44), "between the arms")

	assert.Equal(t, white, src.NRGBAAt(50, 50), "source must stay untouched")
}

func TestDrawMarkers_ClipsAtBorder(t *testing.T) {
	src := testutil.CreateTestImage(20, 20, color.White)
	out := DrawMarkers(src, []barcode.Point{{X: 0, Y: 0}, {X: 500, Y: -40}}, nil)

	assert.Equal(t, DefaultMarkerColor, color.Color(out.NRGBAAt(0, 0)))
	assert.Equal(t, src.Bounds(), out.Bounds())
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.Color
	}{
		{"#00ff00", color.NRGBA{G: 255, A: 255}},
		{"#f00", color.NRGBA{R: 255, A: 255}},
		{"#80112233", color.NRGBA{A: 0x80, R: 0x11, G: 0x22, B: 0x33}},
		{"red", color.RGBA{R: 255, A: 255}},
		{" LimeGreen ", color.RGBA{R: 0x32, G: 0xcd, B: 0x32, A: 0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseColor_Invalid(t *testing.T) {
	for _, in := range []string{"", "#12", "#ggg", "#12345", "notacolor"} {
		_, err := ParseColor(in)
		assert.True(t, errors.Is(err, ErrInvalidColor), in)
	}
}

func TestFormatColor(t *testing.T) {
	assert.Equal(t, "#00ff00", FormatColor(DefaultMarkerColor))
	assert.Equal(t, "#80112233", FormatColor(color.NRGBA{A: 0x80, R: 0x11, G: 0x22, B: 0x33}))
}
