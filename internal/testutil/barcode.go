package testutil

import (
	"fmt"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/require"
)

// EncodeQR renders a QR code of roughly size x size pixels, quiet zone
// included.
func EncodeQR(text string, size int) (*image.NRGBA, error) {
	bm, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, size, size, nil)
	if err != nil {
		return nil, fmt.Errorf("encode QR code: %w", err)
	}
	return imaging.Clone(bm), nil
}

// EncodeCode128 renders a horizontal Code 128 symbol of the given size.
func EncodeCode128(text string, width, height int) (*image.NRGBA, error) {
	bm, err := oned.NewCode128Writer().Encode(text, gozxing.BarcodeFormat_CODE_128, width, height, nil)
	if err != nil {
		return nil, fmt.Errorf("encode Code 128: %w", err)
	}
	return imaging.Clone(bm), nil
}

// Centered places fg in the middle of a white frame.
func Centered(fg image.Image, frame ImageSize) *image.NRGBA {
	bg := CreateTestImage(frame.Width, frame.Height, color.White)
	fb := fg.Bounds()
	pos := image.Pt((frame.Width-fb.Dx())/2, (frame.Height-fb.Dy())/2)
	return Embed(bg, fg, pos)
}

// QRCode is EncodeQR for tests.
func QRCode(t *testing.T, text string, size int) *image.NRGBA {
	t.Helper()

	img, err := EncodeQR(text, size)
	require.NoError(t, err)
	return img
}

// Code128 is EncodeCode128 for tests.
func Code128(t *testing.T, text string, width, height int) *image.NRGBA {
	t.Helper()

	img, err := EncodeCode128(text, width, height)
	require.NoError(t, err)
	return img
}

// QRFrame places a QR code in the middle of a white frame.
func QRFrame(t *testing.T, text string, frame ImageSize, codeSize int) *image.NRGBA {
	t.Helper()
	return Centered(QRCode(t, text, codeSize), frame)
}
