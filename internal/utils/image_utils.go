package utils

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
)

// CropImageRect crops an image to the given rectangle. The result is empty
// when the rectangle does not overlap the image.
func CropImageRect(img image.Image, rect image.Rectangle) *image.NRGBA {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return imaging.New(0, 0, color.Transparent)
	}
	return imaging.Crop(img, rect)
}

// FillRect paints rect onto dst, clipped to the image bounds.
func FillRect(dst draw.Image, rect image.Rectangle, col color.Color) {
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	draw.Draw(dst, rect, &image.Uniform{col}, image.Point{}, draw.Src)
}

// DrawRect draws an axis-aligned rectangle outline into dst.
func DrawRect(dst draw.Image, rect image.Rectangle, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	if rect.Empty() {
		return
	}
	FillRect(dst, image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+thickness), col)
	FillRect(dst, image.Rect(rect.Min.X, rect.Max.Y-thickness, rect.Max.X, rect.Max.Y), col)
	FillRect(dst, image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+thickness, rect.Max.Y), col)
	FillRect(dst, image.Rect(rect.Max.X-thickness, rect.Min.Y, rect.Max.X, rect.Max.Y), col)
}
