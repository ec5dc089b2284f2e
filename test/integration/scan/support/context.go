package support

import (
	"errors"
	"fmt"
	"image"
	"slices"
	"sync"
	"time"

	"github.com/MeKo-Tech/codereader/internal/scanner"
)

// waitTimeout bounds every wait on the session.
const waitTimeout = 5 * time.Second

// recorder is the Observer a scenario's host uses. It keeps every
// notification so steps can assert on their order.
type recorder struct {
	needFrame chan struct{}
	completed chan scanner.Completion

	mu         sync.Mutex
	states     []scanner.ScanState
	grabbing   []bool
	properties []scanner.Property
}

func newRecorder() *recorder {
	return &recorder{
		needFrame: make(chan struct{}, 64),
		completed: make(chan scanner.Completion, 8),
	}
}

func (r *recorder) NeedFrame() {
	select {
	case r.needFrame <- struct{}{}:
	default:
	}
}

func (r *recorder) drainFrameRequests() {
	for {
		select {
		case <-r.needFrame:
		default:
			return
		}
	}
}

func (r *recorder) StateChanged(state scanner.ScanState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recorder) GrabbingChanged(grabbing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grabbing = append(r.grabbing, grabbing)
}

func (r *recorder) PropertyChanged(p scanner.Property) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.properties = append(r.properties, p)
}

func (r *recorder) Completed(c scanner.Completion) {
	r.completed <- c
}

func (r *recorder) stateNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.states))
	for i, s := range r.states {
		names[i] = s.String()
	}
	return names
}

func (r *recorder) propertyNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.properties))
	for i, p := range r.properties {
		names[i] = p.String()
	}
	return names
}

func (r *recorder) sawGrabbing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.grabbing, true)
}

// TestContext holds the state of one scenario.
type TestContext struct {
	Session  *scanner.Session
	Options  scanner.Options
	Observer *recorder

	// LastCode is where the code of the last delivered frame sits, in raw
	// frame coordinates.
	LastCode image.Rectangle
	// Camera, if set, backs the session with a FrameSource.
	Camera image.Image

	LastCompletion *scanner.Completion
}

// NewTestContext creates an empty scenario context.
func NewTestContext() *TestContext {
	return &TestContext{}
}

// Cleanup closes the scenario's session.
func (testCtx *TestContext) Cleanup() error {
	if testCtx.Session != nil {
		testCtx.Session.Close()
		testCtx.Session = nil
	}
	return nil
}

// session returns the scenario's session, creating it on first use.
func (testCtx *TestContext) session() *scanner.Session {
	if testCtx.Session == nil {
		testCtx.Observer = newRecorder()
		opts := testCtx.Options
		opts.Observer = testCtx.Observer
		if testCtx.Camera != nil {
			opts.Source = scanner.NewStaticSource(testCtx.Camera)
			opts.GrabRetry = 10 * time.Millisecond
		}
		testCtx.Session = scanner.NewSession(opts)
	}
	return testCtx.Session
}

// awaitFrameRequest waits for the next NeedFrame notification.
func (testCtx *TestContext) awaitFrameRequest() error {
	select {
	case <-testCtx.Observer.needFrame:
		return nil
	case <-time.After(waitTimeout):
		return errors.New("the session never asked for a frame")
	}
}

// awaitCompletion waits for the next Completed notification.
func (testCtx *TestContext) awaitCompletion() (scanner.Completion, error) {
	if testCtx.Observer == nil {
		return scanner.Completion{}, errors.New("no scan was started")
	}
	select {
	case c := <-testCtx.Observer.completed:
		testCtx.LastCompletion = &c
		return c, nil
	case <-time.After(waitTimeout):
		return scanner.Completion{}, errors.New("the scan never completed")
	}
}

// completion returns the last completion, waiting for one if none was seen.
func (testCtx *TestContext) completion() (scanner.Completion, error) {
	if testCtx.LastCompletion != nil {
		return *testCtx.LastCompletion, nil
	}
	return testCtx.awaitCompletion()
}

// eventually polls cond until it holds or waitTimeout passes.
func eventually(cond func() bool, describe func() string) error {
	deadline := time.Now().Add(waitTimeout)
	for {
		if cond() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out: %s", describe())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
