package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/colornames"

	"github.com/MeKo-Tech/codereader/internal/barcode"
	"github.com/MeKo-Tech/codereader/internal/utils"
)

const (
	markerLength    = 30
	markerThickness = 6
)

// DefaultMarkerColor is the marker color used when none is configured.
var DefaultMarkerColor color.Color = color.NRGBA{G: 0xff, A: 0xff}

// ErrInvalidColor is returned for color strings that cannot be parsed.
var ErrInvalidColor = errors.New("overlay: invalid color")

// DrawMarkers returns a copy of img with a filled plus centered on every
// point. img is left untouched.
func DrawMarkers(img image.Image, points []barcode.Point, c color.Color) *image.NRGBA {
	dst := imaging.Clone(img)
	if c == nil {
		c = DefaultMarkerColor
	}
	for _, p := range points {
		x := int(math.Round(p.X))
		y := int(math.Round(p.Y))
		utils.FillRect(dst, image.Rect(x-markerThickness/2, y-markerLength/2, x+markerThickness/2, y+markerLength/2), c)
		utils.FillRect(dst, image.Rect(x-markerLength/2, y-markerThickness/2, x+markerLength/2, y+markerThickness/2), c)
	}
	return dst
}

// ParseColor accepts "#rgb", "#rrggbb", "#aarrggbb" and SVG color names.
func ParseColor(s string) (color.Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidColor)
	}
	if !strings.HasPrefix(s, "#") {
		if c, ok := colornames.Map[strings.ToLower(s)]; ok {
			return c, nil
		}
		return nil, fmt.Errorf("%w: unknown name %q", ErrInvalidColor, s)
	}

	hex := s[1:]
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	switch len(hex) {
	case 3:
		r, g, b := uint8(v>>8&0xf), uint8(v>>4&0xf), uint8(v&0xf)
		return color.NRGBA{R: r * 0x11, G: g * 0x11, B: b * 0x11, A: 0xff}, nil
	case 6:
		return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
	case 8:
		return color.NRGBA{A: uint8(v >> 24), R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
}

// FormatColor renders c as "#rrggbb", or "#aarrggbb" when it is translucent.
func FormatColor(c color.Color) string {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	if n.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", n.R, n.G, n.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", n.A, n.R, n.G, n.B)
}
