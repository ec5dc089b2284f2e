// Package overlay maps decoder points back into frame coordinates and draws
// result markers.
package overlay

import (
	"github.com/MeKo-Tech/codereader/internal/barcode"
	"github.com/MeKo-Tech/codereader/internal/prepare"
)

// MapPoints converts points found in the decode image into coordinates of
// the full-resolution crop. Points from the rotated retry are first turned
// back using the rotated image width as the pivot.
func MapPoints(points []barcode.Point, scale float64, rotated bool, rotatedWidth int) []barcode.Point {
	if len(points) == 0 {
		return nil
	}
	out := make([]barcode.Point, len(points))
	for i, p := range points {
		x, y := p.X, p.Y
		if rotated {
			x, y = y, float64(rotatedWidth)-x
		}
		out[i] = barcode.Point{X: x * scale, Y: y * scale}
	}
	return out
}

// MapOutcome maps the points of a decode outcome into the prepared crop.
func MapOutcome(out barcode.Outcome, p *prepare.Prepared) []barcode.Point {
	if !out.Found() {
		return nil
	}
	return MapPoints(out.Result.Points, p.Scale, out.Attempt == barcode.AttemptRotated, out.RotatedWidth)
}

// ToCapture maps crop points into the raw capture the crop was cut from.
func ToCapture(points []barcode.Point, p *prepare.Prepared) []barcode.Point {
	if len(points) == 0 {
		return nil
	}
	out := make([]barcode.Point, len(points))
	for i, pt := range points {
		x, y := p.ToFrame(pt.X, pt.Y)
		out[i] = barcode.Point{X: x, Y: y}
	}
	return out
}
