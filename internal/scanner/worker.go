package scanner

import (
	"errors"
	"image"
	"time"

	"github.com/MeKo-Tech/codereader/internal/barcode"
	"github.com/MeKo-Tech/codereader/internal/overlay"
	"github.com/MeKo-Tech/codereader/internal/prepare"
)

// frameResult is what the worker learned from one frame.
type frameResult struct {
	prepared *prepare.Prepared
	outcome  barcode.Outcome
}

// run is the worker loop of scan gen.
func (s *Session) run(gen uint64) {
	defer s.workers.Done()

	var (
		last   frameResult
		frames int
	)

	s.mu.Lock()
	for !s.abort && !last.outcome.Found() {
		s.notifyLocked(func(Observer) { s.onNeedFrame(gen) })

		s.waiting = true
		for s.mailbox == nil && !s.abort {
			s.cond.Wait()
		}
		s.waiting = false

		var frame image.Image
		if !s.abort {
			frame = s.mailbox
		}
		s.mailbox = nil
		vf, rot := s.vf, s.rotation
		s.mu.Unlock()

		if frame != nil {
			frames++
			if res, ok := s.process(frame, vf, rot); ok {
				last = res
			}
		}

		s.mu.Lock()
	}
	s.mu.Unlock()

	var points []barcode.Point
	if last.outcome.Found() {
		points = overlay.MapOutcome(last.outcome, last.prepared)
		s.logger.Debug("decoding succeeded",
			"scan", gen, "text", last.outcome.Result.Text, "points", len(points))
	} else {
		s.logger.Debug("nothing was decoded", "scan", gen, "frames", frames)
	}

	s.dispatch.post(func() { s.complete(gen, last, points, frames) })
}

// process prepares and decodes one frame outside the session lock.
func (s *Session) process(frame image.Image, vf image.Rectangle, rot prepare.Rotation) (frameResult, bool) {
	start := time.Now()
	defer func() { frameProcessingDuration.Observe(time.Since(start).Seconds()) }()

	s.debug.Dump("screenshot", frame)
	p, err := prepare.Prepare(frame, vf, rot, s.prepOpts)
	if err != nil {
		framesTotal.WithLabelValues("invalid").Inc()
		s.logger.Warn("dropping frame", "error", err, "viewfinder", vf, "rotation", rot)
		return frameResult{}, false
	}
	framesTotal.WithLabelValues("processed").Inc()

	s.debug.Dump("cropped", p.Frame)
	if p.Scale > 1 {
		s.debug.Dump("scaled", p.Image)
	}
	if s.debug.Enabled() {
		s.debug.Dump("grayscale", barcode.Grayscale(p.Image))
	}

	out := s.engine.DecodeWithRetry(s.ctx, p.Image)
	if out.Rotated != nil {
		s.debug.Dump("rotated", out.Rotated)
	}
	s.logger.Debug("decoding took", "duration", time.Since(start), "scale", p.Scale, "found", out.Found())
	return frameResult{prepared: p, outcome: out}, true
}

// complete finishes scan gen on the dispatcher.
func (s *Session) complete(gen uint64, res frameResult, points []barcode.Point, frames int) {
	s.mu.Lock()
	markerColor := s.markerColor
	started := s.startedAt
	s.mu.Unlock()

	c := Completion{Frames: frames, Duration: time.Since(started)}
	if res.outcome.Found() {
		img := overlay.DrawMarkers(res.prepared.Frame, points, markerColor)
		if len(points) > 0 {
			s.debug.Dump("marks", img)
		}
		c.Image = img
		c.Points = points
		c.FramePoints = overlay.ToCapture(points, res.prepared)
		c.Attempt = res.outcome.Attempt
		c.Result = ResultInfo{
			OK:     true,
			Text:   res.outcome.Result.Text,
			Format: res.outcome.Result.Format.String(),
		}
	}

	s.mu.Lock()
	if res.outcome.Found() {
		// A success that raced with the timeout still counts.
		s.timedOut = false
	}
	s.mailbox = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.scanning = false
	c.TimedOut = s.timedOut
	s.mu.Unlock()

	activeScans.Dec()
	scanDuration.Observe(c.Duration.Seconds())
	switch {
	case c.Result.OK:
		scansTotal.WithLabelValues("found").Inc()
	case c.TimedOut:
		scansTotal.WithLabelValues("timed_out").Inc()
	default:
		scansTotal.WithLabelValues("not_found").Inc()
	}
	s.logger.Debug("scan finished", "scan", gen, "ok", c.Result.OK, "timed_out", c.TimedOut, "took", c.Duration)

	s.observer.Completed(c)

	s.mu.Lock()
	s.updateStateLocked()
	s.mu.Unlock()
}

// onNeedFrame runs on the dispatcher whenever the worker of scan gen waits
// for a frame.
func (s *Session) onNeedFrame(gen uint64) {
	s.observer.NeedFrame()
	s.grab(gen)
}

// grab pulls a frame from the source and delivers it. Without a frame it
// tries again after grabRetry for as long as the worker keeps waiting.
func (s *Session) grab(gen uint64) {
	if s.source == nil || !s.wantsFrame(gen) {
		return
	}

	s.setGrabbing(true)
	frame, err := s.source.RequestFrame(s.ctx)
	s.setGrabbing(false)

	if err == nil && frame != nil {
		s.DeliverFrame(frame)
		return
	}
	if err != nil && !errors.Is(err, ErrNoFrame) {
		s.logger.Debug("frame source failed", "error", err)
	}
	if s.ctx.Err() != nil {
		return
	}
	time.AfterFunc(s.grabRetry, func() {
		s.dispatch.post(func() { s.grab(gen) })
	})
}

func (s *Session) wantsFrame(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen && s.scanning && !s.abort && s.waiting
}

func (s *Session) setGrabbing(v bool) {
	s.mu.Lock()
	changed := s.grabbing != v
	s.grabbing = v
	s.mu.Unlock()

	if changed {
		s.observer.GrabbingChanged(v)
	}
}
