package prepare

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/codereader/internal/testutil"
	"github.com/MeKo-Tech/codereader/internal/utils"
)

// visibleFrame renders what the user sees for a capture held at rot.
func visibleFrame(frame image.Image, rot Rotation) *image.NRGBA {
	switch rot {
	case Rotate90:
		return imaging.Rotate90(frame)
	case Rotate180:
		return imaging.Rotate180(frame)
	case Rotate270:
		return imaging.Rotate270(frame)
	default:
		return imaging.Clone(frame)
	}
}

func TestCropRect(t *testing.T) {
	frame := image.Pt(100, 60)
	vf := image.Rect(10, 20, 40, 30)

	tests := []struct {
		rot  Rotation
		want image.Rectangle
	}{
		{Rotate0, image.Rect(10, 20, 40, 30)},
		{Rotate90, image.Rect(70, 10, 80, 40)},
		{Rotate180, image.Rect(60, 30, 90, 40)},
		{Rotate270, image.Rect(20, 20, 30, 50)},
	}

	for _, tt := range tests {
		t.Run(tt.rot.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CropRect(frame, vf, tt.rot))
		})
	}
}

func TestCropRect_EmptyViewfinderSelectsWholeFrame(t *testing.T) {
	for _, rot := range []Rotation{Rotate0, Rotate90, Rotate180, Rotate270} {
		assert.Equal(t, image.Rect(0, 0, 64, 48), CropRect(image.Pt(64, 48), image.Rectangle{}, rot), rot.String())
	}
}

func TestCropRect_ClampsToVisibleFrame(t *testing.T) {
	got := CropRect(image.Pt(100, 60), image.Rect(-10, -10, 30, 200), Rotate90)
	// Visible frame is 60x100, so the viewfinder clamps to (0,0)-(30,100).
	assert.Equal(t, image.Rect(0, 0, 100, 30), got)

	assert.True(t, CropRect(image.Pt(100, 60), image.Rect(200, 200, 300, 300), Rotate0).Empty())
}

func TestPrepare_MatchesVisibleFrame(t *testing.T) {
	frame := testutil.PatternImage(90, 50)
	vf := image.Rect(5, 7, 35, 27)

	for _, rot := range []Rotation{Rotate0, Rotate90, Rotate180, Rotate270} {
		t.Run(rot.String(), func(t *testing.T) {
			p, err := Prepare(frame, vf, rot, DefaultOptions())
			require.NoError(t, err)

			want := imaging.Crop(visibleFrame(frame, rot), vf)
			assert.Equal(t, want.Bounds(), p.Frame.Bounds())
			assert.Equal(t, want.Pix, p.Frame.Pix)
			assert.Equal(t, p.Frame, p.Image, "small crops are not rescaled")
			assert.InDelta(t, 1.0, p.Scale, 1e-9)
			assert.Equal(t, rot, p.Rotation)
		})
	}
}

func TestPrepare_FrameWithOffsetBounds(t *testing.T) {
	base := testutil.PatternImage(80, 60)
	sub := base.SubImage(image.Rect(10, 20, 70, 60)).(*image.NRGBA)

	p, err := Prepare(sub, image.Rect(0, 0, 5, 5), Rotate0, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(10, 20, 15, 25), p.CropRect)
	assert.Equal(t, testutil.PatternColor(10, 20), p.Frame.NRGBAAt(0, 0))
}

func TestPrepare_Errors(t *testing.T) {
	_, err := Prepare(nil, image.Rectangle{}, Rotate0, DefaultOptions())
	var ipe *utils.ImageProcessingError
	require.ErrorAs(t, err, &ipe)

	_, err = Prepare(testutil.PatternImage(10, 10), image.Rectangle{}, Rotation(45), DefaultOptions())
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "rotate", ipe.Operation)

	_, err = Prepare(testutil.PatternImage(10, 10), image.Rect(50, 50, 60, 60), Rotate0, DefaultOptions())
	assert.True(t, errors.Is(err, ErrEmptyCrop))
}

func TestPrepare_DoesNotModifyInput(t *testing.T) {
	frame := testutil.PatternImage(40, 30)
	before := append([]uint8(nil), frame.Pix...)

	_, err := Prepare(frame, image.Rect(2, 2, 20, 20), Rotate90, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, before, frame.Pix)
}

func TestDownscale(t *testing.T) {
	tests := []struct {
		name      string
		w, h      int
		wantSize  image.Point
		wantScale float64
	}{
		{"fits", 800, 600, image.Pt(800, 600), 1},
		{"wide", 1600, 1200, image.Pt(800, 600), 2},
		{"tall", 600, 1000, image.Pt(480, 800), 1.25},
		{"square", 1200, 1200, image.Pt(800, 800), 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := testutil.CreateTestImage(tt.w, tt.h, color.White)
			got, scale := Downscale(img, DefaultOptions())
			assert.Equal(t, tt.wantSize, got.Bounds().Size())
			assert.InDelta(t, tt.wantScale, scale, 1e-9)
		})
	}
}

func TestDownscale_ZeroOptions(t *testing.T) {
	got, scale := Downscale(testutil.CreateTestImage(1000, 100, color.White), Options{})
	assert.Equal(t, DefaultMaxSize, got.Bounds().Dx())
	assert.InDelta(t, 1.25, scale, 1e-9)
}

func TestToFrame_PixelCenters(t *testing.T) {
	frame := testutil.PatternImage(30, 20)

	for _, rot := range []Rotation{Rotate0, Rotate90, Rotate180, Rotate270} {
		p, err := Prepare(frame, image.Rect(1, 2, 9, 15), rot, DefaultOptions())
		require.NoError(t, err)

		b := p.Frame.Bounds()
		for _, pt := range []image.Point{{0, 0}, {b.Dx() - 1, 0}, {0, b.Dy() - 1}, {b.Dx() - 1, b.Dy() - 1}} {
			fx, fy := p.ToFrame(float64(pt.X)+0.5, float64(pt.Y)+0.5)
			want := testutil.PatternColor(int(math.Floor(fx)), int(math.Floor(fy)))
			assert.Equal(t, want, p.Frame.NRGBAAt(pt.X, pt.Y), "rotation %s point %v", rot, pt)
		}
	}
}
