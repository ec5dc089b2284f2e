package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
)

func TestCropImageRect(t *testing.T) {
	img := imaging.New(10, 10, color.White)

	assert.Equal(t, image.Pt(4, 3), CropImageRect(img, image.Rect(2, 2, 6, 5)).Bounds().Size())
	assert.Equal(t, image.Pt(3, 2), CropImageRect(img, image.Rect(7, 8, 20, 20)).Bounds().Size())
	assert.True(t, CropImageRect(img, image.Rect(20, 20, 30, 30)).Bounds().Empty())
}

func TestFillRect_Clipped(t *testing.T) {
	img := imaging.New(5, 5, color.White)
	FillRect(img, image.Rect(-2, -2, 2, 2), color.Black)

	assert.Equal(t, color.NRGBA{A: 255}, img.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{A: 255}, img.NRGBAAt(1, 1))
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, img.NRGBAAt(2, 2))
}

func TestDrawRect(t *testing.T) {
	img := imaging.New(10, 10, color.White)
	DrawRect(img, image.Rect(2, 2, 8, 8), color.Black, 1)

	black := color.NRGBA{A: 255}
	assert.Equal(t, black, img.NRGBAAt(2, 2))
	assert.Equal(t, black, img.NRGBAAt(7, 7))
	assert.Equal(t, black, img.NRGBAAt(5, 2))
	assert.NotEqual(t, black, img.NRGBAAt(5, 5))
}
