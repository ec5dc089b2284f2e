package barcode

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/codereader/internal/testutil"
)

func TestGozxingBackend_QRCode(t *testing.T) {
	frame := testutil.QRFrame(t, "https://example.org/scan", testutil.SmallSize, 200)

	results, err := NewBackend().Decode(context.Background(), frame, Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, "https://example.org/scan", res.Text)
	assert.Equal(t, FormatQR, res.Format)
	require.GreaterOrEqual(t, len(res.Points), 3)

	b := frame.Bounds()
	for _, p := range res.Points {
		assert.True(t, p.X >= 0 && p.X < float64(b.Dx()), "x out of frame: %v", p)
		assert.True(t, p.Y >= 0 && p.Y < float64(b.Dy()), "y out of frame: %v", p)
	}
}

func TestGozxingBackend_Code128(t *testing.T) {
	code := testutil.Code128(t, "CR-0001", 300, 80)
	frame := testutil.Embed(testutil.CreateTestImage(400, 200, color.White), code, image.Pt(50, 60))

	results, err := NewBackend().Decode(context.Background(), frame, Options{Formats: []Format{FormatCode128}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "CR-0001", results[0].Text)
	assert.Equal(t, FormatCode128, results[0].Format)
}

func TestGozxingBackend_NothingFound(t *testing.T) {
	frame := testutil.GenerateTextImage(testutil.DefaultTestImageConfig())

	_, err := NewBackend().Decode(context.Background(), frame, Options{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGozxingBackend_FormatFilter(t *testing.T) {
	frame := testutil.QRFrame(t, "only qr", testutil.SmallSize, 200)

	_, err := NewBackend().Decode(context.Background(), frame, Options{Formats: []Format{FormatEAN13}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGozxingBackend_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frame := testutil.QRFrame(t, "late", testutil.SmallSize, 200)
	_, err := NewBackend().Decode(ctx, frame, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSelectReaders(t *testing.T) {
	assert.Len(t, selectReaders(nil), len(defaultReaders))

	got := selectReaders([]Format{FormatQR, FormatUPCA})
	require.Len(t, got, 2)
	assert.Equal(t, FormatQR, got[0].format)
	assert.Equal(t, FormatUPCA, got[1].format)
}

func TestSelectReaders_EveryParsableFormatHasAReader(t *testing.T) {
	for f := FormatQR; f <= FormatCodabar; f++ {
		if _, ok := ParseFormat(f.String()); !ok {
			continue
		}
		readers := selectReaders([]Format{f})
		require.Len(t, readers, 1, f.String())
		assert.Equal(t, f, readers[0].format)
	}

	for _, rf := range selectReaders(nil) {
		assert.NotEqual(t, FormatPDF417, rf.format)
	}
}
