package barcode

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"
)

// Attempt identifies which decode pass produced a result.
type Attempt int

const (
	// AttemptNone means neither pass found a symbol.
	AttemptNone Attempt = iota
	// AttemptDirect means the image was decoded as-is.
	AttemptDirect
	// AttemptRotated means the image had to be rotated 90 degrees clockwise.
	AttemptRotated
)

func (a Attempt) String() string {
	switch a {
	case AttemptDirect:
		return "direct"
	case AttemptRotated:
		return "rotated"
	default:
		return "none"
	}
}

// Outcome is the result of the two-pass decode policy.
type Outcome struct {
	Result  *Result
	Attempt Attempt

	// Rotated is the image handed to the second pass, if one was made.
	Rotated image.Image

	// RotatedWidth is the width of Rotated. Points from the rotated pass are
	// mapped back with it as the pivot.
	RotatedWidth int
}

// Found reports whether a symbol was decoded.
func (o Outcome) Found() bool { return o.Result != nil }

// Engine decodes images through a Backend and never fails: backend errors
// and panics are both reported as "nothing found".
type Engine struct {
	backend Backend
	opts    Options
	logger  *slog.Logger
}

// NewEngine creates an engine over the given backend.
func NewEngine(backend Backend, opts Options) *Engine {
	if backend == nil {
		backend = NewBackend()
	}
	return &Engine{backend: backend, opts: opts, logger: slog.Default()}
}

// WithLogger replaces the engine logger.
func (e *Engine) WithLogger(l *slog.Logger) *Engine {
	if l != nil {
		e.logger = l
	}
	return e
}

// Decode runs a single decode pass. A nil result means nothing was found.
func (e *Engine) Decode(ctx context.Context, img image.Image) (res *Result) {
	if img == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("decoder panicked", "panic", fmt.Sprint(r))
			res = nil
		}
	}()

	results, err := e.backend.Decode(ctx, img, e.opts)
	if err != nil {
		e.logger.Debug("nothing decoded", "error", err)
		return nil
	}
	for i := range results {
		if results[i].Text != "" || len(results[i].Points) > 0 {
			return results[i].Clone()
		}
	}
	return nil
}

// DecodeWithRetry decodes img as-is and, if nothing is found, once more after
// rotating it 90 degrees clockwise.
func (e *Engine) DecodeWithRetry(ctx context.Context, img image.Image) Outcome {
	start := time.Now()
	if res := e.Decode(ctx, img); res != nil {
		recordAttempt(AttemptDirect, true)
		e.logger.Debug("decoded", "attempt", AttemptDirect, "format", res.Format, "took", time.Since(start))
		return Outcome{Result: res, Attempt: AttemptDirect}
	}
	recordAttempt(AttemptDirect, false)

	rotated := RotateForRetry(img)
	out := Outcome{Rotated: rotated, RotatedWidth: rotated.Bounds().Dx()}
	if res := e.Decode(ctx, rotated); res != nil {
		recordAttempt(AttemptRotated, true)
		out.Result = res
		out.Attempt = AttemptRotated
		e.logger.Debug("decoded", "attempt", AttemptRotated, "format", res.Format, "took", time.Since(start))
		return out
	}
	recordAttempt(AttemptRotated, false)
	e.logger.Debug("nothing was decoded", "took", time.Since(start))
	return out
}

// RotateForRetry returns img rotated 90 degrees clockwise.
func RotateForRetry(img image.Image) image.Image {
	return imaging.Rotate270(img)
}
