package prepare

import (
	"image"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/MeKo-Tech/codereader/internal/testutil"
)

var rightAngles = []Rotation{Rotate0, Rotate90, Rotate180, Rotate270}

// TestPrepare_RoundTrip verifies every pixel of the prepared crop maps back to
// the capture pixel it was taken from.
func TestPrepare_RoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("prepared pixels map back to their source", prop.ForAll(
		func(w, h, rotIdx, x0, y0, x1, y1 int) bool {
			rot := rightAngles[rotIdx]
			frame := testutil.PatternImage(w, h)
			visible := VisibleSize(frame.Bounds().Size(), rot)

			// Fractions in [0, 100] select a viewfinder inside the visible frame.
			vf := image.Rect(
				visible.X*x0/100, visible.Y*y0/100,
				visible.X*x1/100, visible.Y*y1/100,
			).Canon()
			if vf.Empty() {
				return true
			}

			p, err := Prepare(frame, vf, rot, Options{MaxSize: 4096})
			if err != nil {
				return false
			}
			if p.Frame.Bounds().Size() != vf.Size() {
				return false
			}

			b := p.Frame.Bounds()
			for v := range b.Dy() {
				for u := range b.Dx() {
					fx, fy := p.ToFrame(float64(u)+0.5, float64(v)+0.5)
					sx, sy := int(math.Floor(fx)), int(math.Floor(fy))
					if !image.Pt(sx, sy).In(frame.Bounds()) {
						return false
					}
					if p.Frame.NRGBAAt(u, v) != testutil.PatternColor(sx, sy) {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(4, 48),
		gen.IntRange(4, 48),
		gen.IntRange(0, 3),
		gen.IntRange(0, 100),
		gen.IntRange(0, 100),
		gen.IntRange(0, 100),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

// TestCropRect_StaysInsideFrame verifies the selected region never leaves the
// capture, whatever the viewfinder.
func TestCropRect_StaysInsideFrame(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("crop rectangle is inside the frame", prop.ForAll(
		func(w, h, rotIdx, x, y, dx, dy int) bool {
			frame := image.Pt(w, h)
			r := CropRect(frame, image.Rect(x, y, x+dx, y+dy), rightAngles[rotIdx])
			return r.Empty() || r.In(image.Rectangle{Max: frame})
		},
		gen.IntRange(1, 500),
		gen.IntRange(1, 500),
		gen.IntRange(0, 3),
		gen.IntRange(-100, 600),
		gen.IntRange(-100, 600),
		gen.IntRange(0, 600),
		gen.IntRange(0, 600),
	))

	properties.TestingRun(t)
}
