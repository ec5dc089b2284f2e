package scanner

import (
	"context"
	"errors"
	"image"
	"time"
)

// ScanImage runs a complete scan over a single still image: the image is
// delivered once and the scan ends as soon as it has been processed or the
// timeout expires. opts.Source and opts.Observer are ignored.
func ScanImage(ctx context.Context, img image.Image, opts Options, timeout time.Duration) (Completion, error) {
	if img == nil {
		return Completion{}, errors.New("scanner: nil image")
	}

	done := make(chan Completion, 1)
	delivered := false
	var s *Session

	opts.Source = nil
	opts.Observer = ObserverFuncs{
		OnNeedFrame: func() {
			if delivered {
				s.Stop()
				return
			}
			delivered = true
			s.DeliverFrame(img)
		},
		OnCompleted: func(c Completion) { done <- c },
	}

	s = NewSession(opts)
	defer s.Close()

	s.Start(timeout)
	select {
	case c := <-done:
		return c, nil
	case <-ctx.Done():
		s.Stop()
		return Completion{}, ctx.Err()
	}
}
