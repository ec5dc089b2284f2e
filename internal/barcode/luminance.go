package barcode

import (
	"image"
	"image/color"
)

// Grayscale reduces an image to 8-bit luminance using the plain average of
// the red, green and blue channels. The result always starts at (0, 0).
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	gray := image.NewGray(image.Rect(0, 0, w, h))

	switch src := img.(type) {
	case *image.NRGBA:
		for y := range h {
			row := src.Pix[(y+b.Min.Y-src.Rect.Min.Y)*src.Stride+(b.Min.X-src.Rect.Min.X)*4:]
			dst := gray.Pix[y*gray.Stride:]
			for x := range w {
				dst[x] = average(row[x*4], row[x*4+1], row[x*4+2])
			}
		}
	case *image.RGBA:
		for y := range h {
			row := src.Pix[(y+b.Min.Y-src.Rect.Min.Y)*src.Stride+(b.Min.X-src.Rect.Min.X)*4:]
			dst := gray.Pix[y*gray.Stride:]
			for x := range w {
				dst[x] = average(row[x*4], row[x*4+1], row[x*4+2])
			}
		}
	default:
		for y := range h {
			for x := range w {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				gray.Pix[y*gray.Stride+x] = average(c.R, c.G, c.B)
			}
		}
	}
	return gray
}

func average(r, g, b uint8) uint8 {
	return uint8((uint16(r) + uint16(g) + uint16(b)) / 3)
}
