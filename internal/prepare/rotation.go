package prepare

import (
	"fmt"
	"strconv"
	"strings"
)

// Rotation is the device orientation in degrees, clockwise, relative to the
// physical orientation frames are captured in.
type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// NormalizeRotation maps any angle into [0, 360).
func NormalizeRotation(degrees int) Rotation {
	return Rotation(((degrees % 360) + 360) % 360)
}

// Valid reports whether r is one of the four right angles.
func (r Rotation) Valid() bool {
	switch r {
	case Rotate0, Rotate90, Rotate180, Rotate270:
		return true
	default:
		return false
	}
}

// Transposed reports whether the visible frame has width and height swapped.
func (r Rotation) Transposed() bool {
	return r == Rotate90 || r == Rotate270
}

func (r Rotation) String() string {
	return strconv.Itoa(int(r))
}

// ParseRotation parses a rotation such as "90" or "-90" and normalizes it.
func ParseRotation(s string) (Rotation, error) {
	deg, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return Rotate0, fmt.Errorf("invalid rotation %q: %w", s, err)
	}
	r := NormalizeRotation(deg)
	if !r.Valid() {
		return Rotate0, fmt.Errorf("invalid rotation %q: must be a multiple of 90", s)
	}
	return r, nil
}

// MarshalText implements encoding.TextMarshaler.
func (r Rotation) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rotation) UnmarshalText(text []byte) error {
	v, err := ParseRotation(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
