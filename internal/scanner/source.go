package scanner

import (
	"context"
	"errors"
	"image"
)

// ErrNoFrame is returned by a FrameSource that has nothing to offer right now.
var ErrNoFrame = errors.New("scanner: no frame available")

// FrameSource produces a snapshot of the viewfinder on request. Returning
// ErrNoFrame (or a nil image) is not fatal; the session asks again later.
type FrameSource interface {
	RequestFrame(ctx context.Context) (image.Image, error)
}

// FrameSourceFunc adapts a function to FrameSource.
type FrameSourceFunc func(ctx context.Context) (image.Image, error)

func (f FrameSourceFunc) RequestFrame(ctx context.Context) (image.Image, error) {
	return f(ctx)
}

// StaticSource returns the same image on every request, like a viewfinder
// pointed at a still scene.
type StaticSource struct {
	img image.Image
}

// NewStaticSource creates a source for img.
func NewStaticSource(img image.Image) *StaticSource {
	return &StaticSource{img: img}
}

func (s *StaticSource) RequestFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.img == nil {
		return nil, ErrNoFrame
	}
	return s.img, nil
}
