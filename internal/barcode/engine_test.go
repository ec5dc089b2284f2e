package barcode

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/codereader/internal/testutil"
)

// scriptedBackend answers decode calls from a fixed script and records the
// sizes of the images it was handed.
type scriptedBackend struct {
	mu      sync.Mutex
	answers []func() ([]Result, error)
	sizes   []image.Point
}

func (b *scriptedBackend) Decode(_ context.Context, img image.Image, _ Options) ([]Result, error) {
	b.mu.Lock()
	idx := len(b.sizes)
	b.sizes = append(b.sizes, img.Bounds().Size())
	b.mu.Unlock()

	if idx >= len(b.answers) {
		return nil, ErrNotFound
	}
	return b.answers[idx]()
}

func miss() ([]Result, error) { return nil, ErrNotFound }

func hit(text string, pts ...Point) func() ([]Result, error) {
	return func() ([]Result, error) {
		return []Result{{Text: text, Format: FormatQR, Points: pts}}, nil
	}
}

func TestEngine_DecodeWithRetry_Direct(t *testing.T) {
	be := &scriptedBackend{answers: []func() ([]Result, error){hit("direct", Point{X: 1, Y: 2})}}
	eng := NewEngine(be, Options{})

	out := eng.DecodeWithRetry(context.Background(), image.NewGray(image.Rect(0, 0, 40, 20)))
	require.True(t, out.Found())
	assert.Equal(t, AttemptDirect, out.Attempt)
	assert.Equal(t, "direct", out.Result.Text)
	assert.Nil(t, out.Rotated)
	assert.Len(t, be.sizes, 1, "a direct hit must not trigger the second pass")
}

func TestEngine_DecodeWithRetry_Rotated(t *testing.T) {
	be := &scriptedBackend{answers: []func() ([]Result, error){miss, hit("rotated", Point{X: 5, Y: 6})}}
	eng := NewEngine(be, Options{})

	out := eng.DecodeWithRetry(context.Background(), image.NewGray(image.Rect(0, 0, 40, 20)))
	require.True(t, out.Found())
	assert.Equal(t, AttemptRotated, out.Attempt)
	require.NotNil(t, out.Rotated)
	assert.Equal(t, 20, out.RotatedWidth)
	require.Len(t, be.sizes, 2)
	assert.Equal(t, image.Pt(40, 20), be.sizes[0])
	assert.Equal(t, image.Pt(20, 40), be.sizes[1])
}

func TestEngine_DecodeWithRetry_Nothing(t *testing.T) {
	eng := NewEngine(&scriptedBackend{}, Options{})

	out := eng.DecodeWithRetry(context.Background(), image.NewGray(image.Rect(0, 0, 10, 10)))
	assert.False(t, out.Found())
	assert.Equal(t, AttemptNone, out.Attempt)
	assert.Equal(t, "none", out.Attempt.String())
}

func TestEngine_Decode_FailuresAreSilent(t *testing.T) {
	tests := []struct {
		name   string
		answer func() ([]Result, error)
	}{
		{"backend error", func() ([]Result, error) { return nil, errors.New("boom") }},
		{"backend panic", func() ([]Result, error) { panic("decoder exploded") }},
		{"empty result", func() ([]Result, error) { return []Result{{}}, nil }},
		{"no results", func() ([]Result, error) { return nil, nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := NewEngine(&scriptedBackend{answers: []func() ([]Result, error){tt.answer}}, Options{})
			assert.Nil(t, eng.Decode(context.Background(), image.NewGray(image.Rect(0, 0, 8, 8))))
		})
	}
}

func TestEngine_Decode_NilImage(t *testing.T) {
	eng := NewEngine(&scriptedBackend{answers: []func() ([]Result, error){hit("x")}}, Options{})
	assert.Nil(t, eng.Decode(context.Background(), nil))
}

func TestEngine_Decode_ReturnsCopy(t *testing.T) {
	shared := []Point{{X: 1, Y: 1}}
	be := &scriptedBackend{answers: []func() ([]Result, error){
		func() ([]Result, error) { return []Result{{Text: "a", Points: shared}}, nil },
	}}
	res := NewEngine(be, Options{}).Decode(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)))
	require.NotNil(t, res)

	res.Points[0].X = 99
	assert.InDelta(t, 1.0, shared[0].X, 1e-9)
}

func TestRotateForRetry_Clockwise(t *testing.T) {
	img := imaging.New(3, 2, color.White)
	img.Set(0, 0, color.Black)

	rotated := RotateForRetry(img)
	require.Equal(t, image.Pt(2, 3), rotated.Bounds().Size())

	// Clockwise: the top-left pixel ends up top-right.
	r, _, _, _ := rotated.At(1, 0).RGBA()
	assert.Zero(t, r)
}

func TestEngine_RealDecoder_RetryFindsVerticalCode128(t *testing.T) {
	code := testutil.Code128(t, "ROTATE-ME-42", 400, 120)
	frame := testutil.Embed(testutil.CreateTestImage(520, 240, color.White), code, image.Pt(60, 60))
	vertical := imaging.Rotate90(frame)

	eng := NewEngine(NewBackend(), Options{Formats: []Format{FormatCode128}})
	out := eng.DecodeWithRetry(context.Background(), vertical)

	require.True(t, out.Found())
	assert.Equal(t, AttemptRotated, out.Attempt)
	assert.Equal(t, "ROTATE-ME-42", out.Result.Text)
	assert.Equal(t, FormatCode128, out.Result.Format)
	assert.Equal(t, vertical.Bounds().Dy(), out.RotatedWidth)
}
