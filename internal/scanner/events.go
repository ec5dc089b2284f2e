package scanner

import (
	"image"
	"time"

	"github.com/MeKo-Tech/codereader/internal/barcode"
)

// Property names a host-settable session property.
type Property int

const (
	PropertyViewFinderRect Property = iota
	PropertyRotation
	PropertyMarkerColor
)

func (p Property) String() string {
	switch p {
	case PropertyViewFinderRect:
		return "viewfinder_rect"
	case PropertyRotation:
		return "rotation"
	case PropertyMarkerColor:
		return "marker_color"
	default:
		return "unknown"
	}
}

// ResultInfo is the result record handed to the host.
type ResultInfo struct {
	OK     bool   `json:"ok" yaml:"ok"`
	Text   string `json:"text" yaml:"text"`
	Format string `json:"format" yaml:"format"`
}

// Completion describes a finished scan.
type Completion struct {
	// Image is the viewfinder crop at capture resolution with markers drawn
	// on it. It is nil when nothing was decoded.
	Image image.Image
	// Result is the record the host stores or displays.
	Result ResultInfo
	// Points are the marker points in Image coordinates.
	Points []barcode.Point
	// FramePoints are the marker points in the coordinates of the raw capture.
	FramePoints []barcode.Point
	// Attempt tells which decode pass succeeded.
	Attempt barcode.Attempt
	// Frames is the number of frames the worker processed.
	Frames   int
	Duration time.Duration
	TimedOut bool
}

// Observer receives session notifications. All methods are called from the
// session dispatcher goroutine, one at a time, in the order the events
// happened. Implementations may call back into the session but must not
// call Close.
type Observer interface {
	// NeedFrame asks the host for a frame, to be passed to DeliverFrame.
	NeedFrame()
	StateChanged(state ScanState)
	// GrabbingChanged reports that a FrameSource capture started or ended.
	GrabbingChanged(grabbing bool)
	PropertyChanged(p Property)
	Completed(c Completion)
}

// NopObserver ignores all notifications.
type NopObserver struct{}

func (NopObserver) NeedFrame() {}
func (NopObserver) StateChanged(ScanState) {}
func (NopObserver) GrabbingChanged(bool) {}
func (NopObserver) PropertyChanged(Property) {}
func (NopObserver) Completed(Completion) {}

// ObserverFuncs adapts optional callbacks to the Observer interface.
type ObserverFuncs struct {
	OnNeedFrame       func()
	OnStateChanged    func(ScanState)
	OnGrabbingChanged func(bool)
	OnPropertyChanged func(Property)
	OnCompleted       func(Completion)
}

func (f ObserverFuncs) NeedFrame() {
	if f.OnNeedFrame != nil {
		f.OnNeedFrame()
	}
}

func (f ObserverFuncs) StateChanged(s ScanState) {
	if f.OnStateChanged != nil {
		f.OnStateChanged(s)
	}
}

func (f ObserverFuncs) GrabbingChanged(g bool) {
	if f.OnGrabbingChanged != nil {
		f.OnGrabbingChanged(g)
	}
}

func (f ObserverFuncs) PropertyChanged(p Property) {
	if f.OnPropertyChanged != nil {
		f.OnPropertyChanged(p)
	}
}

func (f ObserverFuncs) Completed(c Completion) {
	if f.OnCompleted != nil {
		f.OnCompleted(c)
	}
}
