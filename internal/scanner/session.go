// Package scanner coordinates a host that renders a live viewfinder with a
// background decode worker.
//
// A Session owns one worker goroutine per scan. The worker asks for frames
// through the Observer (or pulls them from a FrameSource), takes them from a
// single-slot mailbox, prepares and decodes them, and reports a Completion.
// All host-facing notifications are delivered on a per-session dispatcher
// goroutine, never on the worker.
package scanner

import (
	"context"
	"image"
	"image/color"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/codereader/internal/barcode"
	"github.com/MeKo-Tech/codereader/internal/overlay"
	"github.com/MeKo-Tech/codereader/internal/prepare"
	"github.com/MeKo-Tech/codereader/internal/utils"
)

// DefaultGrabRetry is how long the session waits before asking a FrameSource
// again after it had no frame.
const DefaultGrabRetry = 100 * time.Millisecond

// Options configures a Session.
type Options struct {
	// Engine decodes prepared frames. Nil means the gozxing engine with
	// default options.
	Engine *barcode.Engine
	// Source, if set, is asked for a frame every time the worker needs one.
	// Without a source the host must answer NeedFrame with DeliverFrame.
	Source   FrameSource
	Observer Observer
	Prepare  prepare.Options

	ViewFinderRect image.Rectangle
	Rotation       prepare.Rotation
	MarkerColor    color.Color

	// GrabRetry is the delay before retrying a FrameSource without a frame.
	GrabRetry time.Duration
	// DebugDir, if set, receives BMP dumps of every processing stage.
	DebugDir string
	Logger   *slog.Logger
}

// Session is a scan state machine. Its methods are safe for concurrent use
// and never block on image processing.
type Session struct {
	engine    *barcode.Engine
	source    FrameSource
	observer  Observer
	prepOpts  prepare.Options
	grabRetry time.Duration
	debug     *utils.DebugDumper
	logger    *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	dispatch *dispatcher
	workers  sync.WaitGroup

	mu   sync.Mutex
	cond *sync.Cond

	// Guarded by mu.
	scanning    bool
	abort       bool
	timedOut    bool
	waiting     bool
	closed      bool
	grabbing    bool
	mailbox     image.Image
	vf          image.Rectangle
	rotation    prepare.Rotation
	markerColor color.Color
	lastState   ScanState
	timer       *time.Timer
	generation  uint64
	startedAt   time.Time
}

// NewSession creates an idle session.
func NewSession(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	engine := opts.Engine
	if engine == nil {
		engine = barcode.NewEngine(nil, barcode.Options{}).WithLogger(logger)
	}
	observer := opts.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	rotation := prepare.NormalizeRotation(int(opts.Rotation))
	if !rotation.Valid() {
		logger.Warn("ignoring invalid rotation", "rotation", int(opts.Rotation))
		rotation = prepare.Rotate0
	}
	markerColor := opts.MarkerColor
	if markerColor == nil {
		markerColor = overlay.DefaultMarkerColor
	}
	grabRetry := opts.GrabRetry
	if grabRetry <= 0 {
		grabRetry = DefaultGrabRetry
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		engine:      engine,
		source:      opts.Source,
		observer:    observer,
		prepOpts:    opts.Prepare,
		grabRetry:   grabRetry,
		debug:       utils.NewDebugDumper(opts.DebugDir, logger),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		dispatch:    newDispatcher(),
		vf:          opts.ViewFinderRect,
		rotation:    rotation,
		markerColor: markerColor,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start begins a scan that ends after timeout. A timeout of zero or less
// scans until Stop. Start is a no-op while a scan is running.
func (s *Session) Start(timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.scanning {
		return
	}
	s.scanning = true
	s.abort = false
	s.timedOut = false
	s.mailbox = nil
	s.generation++
	s.startedAt = time.Now()

	gen := s.generation
	if timeout > 0 {
		s.timer = time.AfterFunc(timeout, func() { s.onTimeout(gen) })
	}
	activeScans.Inc()
	s.logger.Debug("scan started", "scan", gen, "timeout", timeout)

	s.workers.Add(1)
	go s.run(gen)
	s.updateStateLocked()
}

// Stop asks the running scan to end. It does not wait for the worker; an
// in-flight decode is allowed to finish first.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanning {
		s.abort = true
		s.cond.Broadcast()
	}
	s.updateStateLocked()
}

// onTimeout still applies after Stop until the completion has run, so a
// stopped scan whose timer fires while it winds down ends TimedOut.
func (s *Session) onTimeout(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || !s.scanning {
		return
	}
	s.logger.Debug("scan aborted by timeout", "scan", gen)
	s.abort = true
	s.timedOut = true
	s.cond.Broadcast()
	s.updateStateLocked()
}

// DeliverFrame hands a frame to the worker. The frame is discarded, and false
// returned, unless a scan is running and its worker is waiting for a frame.
// A frame delivered before the worker picked up the previous one replaces it.
func (s *Session) DeliverFrame(img image.Image) bool {
	if img == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.scanning || s.abort || !s.waiting {
		framesTotal.WithLabelValues("discarded").Inc()
		return false
	}
	s.mailbox = img
	s.cond.Broadcast()
	return true
}

// SetViewFinderRect sets the region of the visible frame to decode. An empty
// rectangle selects the whole frame.
func (s *Session) SetViewFinderRect(r image.Rectangle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vf == r {
		return
	}
	s.vf = r
	s.notifyLocked(func(o Observer) { o.PropertyChanged(PropertyViewFinderRect) })
}

// SetRotation sets the device rotation. Angles are normalized to [0, 360);
// anything but a right angle is ignored.
func (s *Session) SetRotation(r prepare.Rotation) {
	r = prepare.NormalizeRotation(int(r))
	if !r.Valid() {
		s.logger.Warn("ignoring invalid rotation", "rotation", int(r))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rotation == r {
		return
	}
	s.rotation = r
	s.notifyLocked(func(o Observer) { o.PropertyChanged(PropertyRotation) })
}

// SetMarkerColor sets the color result markers are drawn in.
func (s *Session) SetMarkerColor(c color.Color) {
	if c == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sameColor(s.markerColor, c) {
		return
	}
	s.markerColor = c
	s.notifyLocked(func(o Observer) { o.PropertyChanged(PropertyMarkerColor) })
}

// SetMarkerColorString parses value with overlay.ParseColor and sets it.
// Invalid values leave the color unchanged.
func (s *Session) SetMarkerColorString(value string) error {
	c, err := overlay.ParseColor(value)
	if err != nil {
		return err
	}
	s.SetMarkerColor(c)
	return nil
}

func sameColor(a, b color.Color) bool {
	return color.NRGBAModel.Convert(a) == color.NRGBAModel.Convert(b)
}

// ViewFinderRect returns the current viewfinder rectangle.
func (s *Session) ViewFinderRect() image.Rectangle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vf
}

// Rotation returns the current device rotation.
func (s *Session) Rotation() prepare.Rotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotation
}

// MarkerColor returns the current marker color.
func (s *Session) MarkerColor() color.Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markerColor
}

// State returns the last state reported to the observer.
func (s *Session) State() ScanState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastState
}

// Grabbing reports whether a frame is being pulled from the FrameSource.
func (s *Session) Grabbing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grabbing
}

// Close stops any running scan, waits for its worker and delivers the
// remaining notifications. It must not be called from an Observer method.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.scanning {
		s.abort = true
		s.cond.Broadcast()
		s.updateStateLocked()
	}
	s.mu.Unlock()

	s.cancel()
	s.workers.Wait()
	s.dispatch.close()
}

// updateStateLocked recomputes the reported state and notifies the observer
// if it changed.
func (s *Session) updateStateLocked() {
	state := computeState(s.scanning, s.abort, s.timedOut)
	if state == s.lastState {
		return
	}
	s.logger.Debug("scan state changed", "from", s.lastState, "to", state)
	s.lastState = state
	s.notifyLocked(func(o Observer) { o.StateChanged(state) })
}

// notifyLocked queues an observer call. Queuing under mu keeps notifications
// in the order of the mutations that caused them.
func (s *Session) notifyLocked(fn func(Observer)) {
	s.dispatch.post(func() { fn(s.observer) })
}
