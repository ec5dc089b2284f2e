// Package prepare turns a raw capture into the image handed to the decoder:
// it compensates the device rotation, crops to the viewfinder and bounds the
// size of the result.
package prepare

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/codereader/internal/utils"
)

// DefaultMaxSize bounds the longer side of the decode image.
const DefaultMaxSize = 800

// ErrEmptyCrop is returned when the viewfinder does not overlap the frame.
var ErrEmptyCrop = errors.New("prepare: viewfinder does not overlap the frame")

// Options controls the downscale step.
type Options struct {
	// MaxSize bounds the longer side. Zero or negative means DefaultMaxSize.
	MaxSize int
	// Filter is the resampling filter. The zero value selects Lanczos.
	Filter imaging.ResampleFilter
}

// DefaultOptions returns the options used by scan sessions.
func DefaultOptions() Options {
	return Options{MaxSize: DefaultMaxSize, Filter: imaging.Lanczos}
}

// Prepared is a capture conditioned for decoding.
type Prepared struct {
	// Frame is the right-side-up viewfinder crop at capture resolution.
	Frame *image.NRGBA
	// Image is Frame bounded to MaxSize; it is what the decoder sees.
	Image *image.NRGBA
	// Scale converts Image coordinates into Frame coordinates (>= 1).
	Scale float64
	// CropRect is the region of the capture Frame was cut from.
	CropRect image.Rectangle
	Rotation Rotation
}

// ToFrame maps a point of Frame into the coordinate space of the capture.
func (p *Prepared) ToFrame(x, y float64) (float64, float64) {
	return toFrame(p.CropRect, p.Rotation, x, y)
}

// Prepare compensates rot, crops to vf and downscales. It does not modify
// frame.
func Prepare(frame image.Image, vf image.Rectangle, rot Rotation, opts Options) (*Prepared, error) {
	if frame == nil {
		return nil, &utils.ImageProcessingError{Operation: "prepare", Err: errors.New("input image is nil")}
	}
	if !rot.Valid() {
		return nil, &utils.ImageProcessingError{Operation: "rotate", Err: fmt.Errorf("unsupported rotation %d", rot)}
	}

	b := frame.Bounds()
	rect := CropRect(b.Size(), vf, rot).Add(b.Min)
	if rect.Empty() {
		return nil, ErrEmptyCrop
	}

	cropped := imaging.Crop(frame, rect)
	var upright *image.NRGBA
	switch rot {
	case Rotate90:
		upright = imaging.Rotate90(cropped)
	case Rotate180:
		upright = imaging.Rotate180(cropped)
	case Rotate270:
		upright = imaging.Rotate270(cropped)
	default:
		upright = cropped
	}

	scaled, scale := Downscale(upright, opts)
	return &Prepared{
		Frame:    upright,
		Image:    scaled,
		Scale:    scale,
		CropRect: rect,
		Rotation: rot,
	}, nil
}

// Downscale bounds the longer side of img to opts.MaxSize, preserving the
// aspect ratio. The returned scale is the factor the result was shrunk by;
// images that already fit are returned as-is with scale 1.
func Downscale(img *image.NRGBA, opts Options) (*image.NRGBA, float64) {
	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	filter := opts.Filter
	if filter.Kernel == nil {
		filter = imaging.Lanczos
	}

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w <= maxSize && h <= maxSize {
		return img, 1
	}
	if h > w {
		return imaging.Resize(img, 0, maxSize, filter), float64(h) / float64(maxSize)
	}
	return imaging.Resize(img, maxSize, 0, filter), float64(w) / float64(maxSize)
}
