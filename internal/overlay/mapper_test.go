package overlay

import (
	"context"
	"image"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/codereader/internal/barcode"
	"github.com/MeKo-Tech/codereader/internal/prepare"
	"github.com/MeKo-Tech/codereader/internal/testutil"
)

func TestMapPoints(t *testing.T) {
	pts := []barcode.Point{{X: 10, Y: 20}}

	assert.Equal(t, []barcode.Point{{X: 20, Y: 40}}, MapPoints(pts, 2, false, 0))
	// Rotated: x' = y, y' = rotatedWidth - x.
	assert.Equal(t, []barcode.Point{{X: 20, Y: 90}}, MapPoints(pts, 1, true, 100))
	assert.Equal(t, []barcode.Point{{X: 30, Y: 135}}, MapPoints(pts, 1.5, true, 100))
	assert.Nil(t, MapPoints(nil, 2, false, 0))
}

func TestMapPoints_DoesNotAlias(t *testing.T) {
	pts := []barcode.Point{{X: 1, Y: 1}}
	out := MapPoints(pts, 1, false, 0)
	out[0].X = 5
	assert.InDelta(t, 1.0, pts[0].X, 1e-9)
}

// TestMapPoints_UndoesRetryRotation verifies that points on the rotated image
// land on the same content in the unrotated one.
func TestMapPoints_UndoesRetryRotation(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("rotated pixel maps back onto its source", prop.ForAll(
		func(w, h, u, v int) bool {
			src := testutil.PatternImage(w, h)
			rotated := barcode.RotateForRetry(src)
			rw := rotated.Bounds().Dx()
			u, v = u%rw, v%rotated.Bounds().Dy()

			mapped := MapPoints([]barcode.Point{{X: float64(u) + 0.5, Y: float64(v) + 0.5}}, 1, true, rw)
			sx, sy := int(math.Floor(mapped[0].X)), int(math.Floor(mapped[0].Y))
			return rotated.At(u, v) == src.At(sx, sy)
		},
		gen.IntRange(1, 64),
		gen.IntRange(1, 64),
		gen.IntRange(0, 1000),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}

// TestMapPoints_ScaleBackMapping decodes the same code at capture resolution
// and through the downscale path; mapped points must agree within the scale.
func TestMapPoints_ScaleBackMapping(t *testing.T) {
	frame := testutil.QRFrame(t, "scale me", testutil.ImageSize{Width: 1400, Height: 1700}, 1000)
	eng := barcode.NewEngine(barcode.NewBackend(), barcode.Options{Formats: []barcode.Format{barcode.FormatQR}})

	full := eng.Decode(context.Background(), frame)
	require.NotNil(t, full)

	p, err := prepare.Prepare(frame, image.Rectangle{}, prepare.Rotate0, prepare.DefaultOptions())
	require.NoError(t, err)
	require.Greater(t, p.Scale, 1.0)

	out := eng.DecodeWithRetry(context.Background(), p.Image)
	require.True(t, out.Found())
	require.Equal(t, barcode.AttemptDirect, out.Attempt)

	mapped := MapOutcome(out, p)
	require.Len(t, mapped, len(full.Points))
	tolerance := 3 * p.Scale
	for i := range mapped {
		assert.InDelta(t, full.Points[i].X, mapped[i].X, tolerance, "point %d x", i)
		assert.InDelta(t, full.Points[i].Y, mapped[i].Y, tolerance, "point %d y", i)
	}
}

func TestToCapture(t *testing.T) {
	frame := testutil.PatternImage(100, 60)
	p, err := prepare.Prepare(frame, image.Rect(10, 20, 40, 30), prepare.Rotate90, prepare.DefaultOptions())
	require.NoError(t, err)

	got := ToCapture([]barcode.Point{{X: 0, Y: 0}}, p)
	// Top-left of the upright crop is the top-right corner of the crop rect.
	assert.Equal(t, []barcode.Point{{X: float64(p.CropRect.Max.X), Y: float64(p.CropRect.Min.Y)}}, got)
}
