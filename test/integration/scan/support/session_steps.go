package support

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/codereader/internal/barcode"
	"github.com/MeKo-Tech/codereader/internal/config"
	"github.com/MeKo-Tech/codereader/internal/prepare"
	"github.com/MeKo-Tech/codereader/internal/testutil"
	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
)

// markerTolerance is how far a marker may sit outside the drawn code.
const markerTolerance = 12

// qrFrame places a QR code in the middle of a portrait frame.
func qrFrame(text string) (image.Image, image.Rectangle, error) {
	code, err := testutil.EncodeQR(text, 300)
	if err != nil {
		return nil, image.Rectangle{}, err
	}
	frame := testutil.Centered(code, testutil.MediumSize)
	cb := code.Bounds()
	pos := image.Pt((testutil.MediumSize.Width-cb.Dx())/2, (testutil.MediumSize.Height-cb.Dy())/2)
	return frame, cb.Add(pos), nil
}

// cornerFrame places a QR code near the top left corner of a square frame.
func cornerFrame(text string) (image.Image, image.Rectangle, error) {
	code, err := testutil.EncodeQR(text, 250)
	if err != nil {
		return nil, image.Rectangle{}, err
	}
	pos := image.Pt(20, 20)
	frame := testutil.Embed(testutil.CreateTestImage(600, 600, color.White), code, pos)
	return frame, code.Bounds().Add(pos), nil
}

// verticalCode128Frame draws a Code 128 symbol turned on its side.
func verticalCode128Frame(text string) (image.Image, image.Rectangle, error) {
	code, err := testutil.EncodeCode128(text, 400, 120)
	if err != nil {
		return nil, image.Rectangle{}, err
	}
	horizontal := testutil.Embed(testutil.CreateTestImage(520, 240, color.White), code, image.Pt(60, 60))
	frame := imaging.Rotate90(horizontal)
	return frame, frame.Bounds(), nil
}

func blankFrame() image.Image {
	return testutil.GenerateTextImage(testutil.DefaultTestImageConfig())
}

// RegisterSessionSteps registers the scan session step definitions.
func (testCtx *TestContext) RegisterSessionSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a scan session$`, testCtx.aScanSession)
	sc.Step(`^a scan session reading only "([^"]*)" codes$`, testCtx.aScanSessionReadingOnly)
	sc.Step(`^a camera showing a QR code reading "([^"]*)" in the top left corner$`, testCtx.aCameraShowingCornerQR)
	sc.Step(`^the viewfinder is "([^"]*)"$`, testCtx.theViewfinderIs)
	sc.Step(`^the device rotation is (-?\d+) degrees$`, testCtx.theDeviceRotationIs)
	sc.Step(`^the marker color is set to "([^"]*)"$`, testCtx.theMarkerColorIsSetTo)
	sc.Step(`^setting the marker color to "([^"]*)" fails$`, testCtx.settingTheMarkerColorFails)

	sc.Step(`^the scan is started with a timeout of (\d+) ms$`, testCtx.theScanIsStarted)
	sc.Step(`^the scan is started without a timeout$`, testCtx.theScanIsStartedWithoutTimeout)
	sc.Step(`^the scan is stopped$`, testCtx.theScanIsStopped)
	sc.Step(`^the session is closed$`, testCtx.theSessionIsClosed)
	sc.Step(`^the host waits for a frame request$`, testCtx.theHostWaitsForAFrameRequest)
	sc.Step(`^the host answers the next frame request with a QR code reading "([^"]*)"$`, testCtx.answerWithQR)
	sc.Step(`^the host answers the next frame request with a vertical Code 128 reading "([^"]*)"$`, testCtx.answerWithVerticalCode128)
	sc.Step(`^the host answers the next frame request with a blank frame$`, testCtx.answerWithBlankFrame)
	sc.Step(`^delivering a blank frame is rejected$`, testCtx.deliveringIsRejected)

	sc.Step(`^the scan completes with the text "([^"]*)"$`, testCtx.theScanCompletesWithText)
	sc.Step(`^the scan completes without a result$`, testCtx.theScanCompletesWithoutResult)
	sc.Step(`^the result format is "([^"]*)"$`, testCtx.theResultFormatIs)
	sc.Step(`^the decode attempt is "([^"]*)"$`, testCtx.theDecodeAttemptIs)
	sc.Step(`^the scan timed out$`, testCtx.theScanTimedOut)
	sc.Step(`^(\d+) frames? (?:was|were) processed$`, testCtx.framesWereProcessed)
	sc.Step(`^every marker lies on the code$`, testCtx.everyMarkerLiesOnTheCode)
	sc.Step(`^the annotated image is (\d+)x(\d+) pixels$`, testCtx.theAnnotatedImageIs)
	sc.Step(`^the session state is "([^"]*)"$`, testCtx.theSessionStateIs)
	sc.Step(`^the reported states are "([^"]*)"$`, testCtx.theReportedStatesAre)
	sc.Step(`^the reported property changes are "([^"]*)"$`, testCtx.theReportedPropertyChangesAre)
	sc.Step(`^the host was told the camera is grabbing$`, testCtx.theHostWasToldGrabbing)
}

func (testCtx *TestContext) aScanSession() error {
	testCtx.session()
	return nil
}

func (testCtx *TestContext) aScanSessionReadingOnly(list string) error {
	var formats []barcode.Format
	for _, name := range strings.Split(list, ",") {
		f, ok := barcode.ParseFormat(name)
		if !ok {
			return fmt.Errorf("unknown format %q", name)
		}
		formats = append(formats, f)
	}
	testCtx.Options.Engine = barcode.NewEngine(barcode.NewBackend(), barcode.Options{Formats: formats})
	testCtx.session()
	return nil
}

func (testCtx *TestContext) aCameraShowingCornerQR(text string) error {
	frame, code, err := cornerFrame(text)
	if err != nil {
		return err
	}
	testCtx.Camera = frame
	testCtx.LastCode = code
	return nil
}

func (testCtx *TestContext) theViewfinderIs(value string) error {
	r, err := config.ParseViewFinder(value)
	if err != nil {
		return err
	}
	testCtx.session().SetViewFinderRect(r)
	return nil
}

func (testCtx *TestContext) theDeviceRotationIs(degrees int) error {
	testCtx.session().SetRotation(prepare.Rotation(degrees))
	return nil
}

func (testCtx *TestContext) theMarkerColorIsSetTo(value string) error {
	return testCtx.session().SetMarkerColorString(value)
}

func (testCtx *TestContext) settingTheMarkerColorFails(value string) error {
	if err := testCtx.session().SetMarkerColorString(value); err == nil {
		return fmt.Errorf("marker color %q was accepted", value)
	}
	return nil
}

func (testCtx *TestContext) theScanIsStarted(ms int) error {
	testCtx.start(time.Duration(ms) * time.Millisecond)
	return nil
}

func (testCtx *TestContext) theScanIsStartedWithoutTimeout() error {
	testCtx.start(0)
	return nil
}

// start begins a scan, forgetting the previous scan's requests and result.
func (testCtx *TestContext) start(timeout time.Duration) {
	s := testCtx.session()
	testCtx.LastCompletion = nil
	testCtx.Observer.drainFrameRequests()
	s.Start(timeout)
}

func (testCtx *TestContext) theScanIsStopped() error {
	testCtx.session().Stop()
	return nil
}

func (testCtx *TestContext) theSessionIsClosed() error {
	testCtx.session().Close()
	return nil
}

func (testCtx *TestContext) theHostWaitsForAFrameRequest() error {
	testCtx.session()
	return testCtx.awaitFrameRequest()
}

func (testCtx *TestContext) deliver(frame image.Image, code image.Rectangle) error {
	if err := testCtx.awaitFrameRequest(); err != nil {
		return err
	}
	testCtx.LastCode = code
	if !testCtx.Session.DeliverFrame(frame) {
		return errors.New("the session rejected a requested frame")
	}
	return nil
}

func (testCtx *TestContext) answerWithQR(text string) error {
	frame, code, err := qrFrame(text)
	if err != nil {
		return err
	}
	return testCtx.deliver(frame, code)
}

func (testCtx *TestContext) answerWithVerticalCode128(text string) error {
	frame, code, err := verticalCode128Frame(text)
	if err != nil {
		return err
	}
	return testCtx.deliver(frame, code)
}

func (testCtx *TestContext) answerWithBlankFrame() error {
	return testCtx.deliver(blankFrame(), image.Rectangle{})
}

func (testCtx *TestContext) deliveringIsRejected() error {
	if testCtx.session().DeliverFrame(blankFrame()) {
		return errors.New("the session accepted a frame it did not ask for")
	}
	return nil
}

func (testCtx *TestContext) theScanCompletesWithText(text string) error {
	c, err := testCtx.completion()
	if err != nil {
		return err
	}
	if !c.Result.OK {
		return fmt.Errorf("expected %q, nothing was decoded", text)
	}
	if c.Result.Text != text {
		return fmt.Errorf("expected text %q, got %q", text, c.Result.Text)
	}
	if c.Image == nil {
		return errors.New("successful completion carries no annotated image")
	}
	return nil
}

func (testCtx *TestContext) theScanCompletesWithoutResult() error {
	c, err := testCtx.completion()
	if err != nil {
		return err
	}
	if c.Result.OK {
		return fmt.Errorf("expected no result, decoded %q", c.Result.Text)
	}
	if c.Image != nil {
		return errors.New("failed completion carries an image")
	}
	return nil
}

func (testCtx *TestContext) theResultFormatIs(format string) error {
	c, err := testCtx.completion()
	if err != nil {
		return err
	}
	if c.Result.Format != format {
		return fmt.Errorf("expected format %q, got %q", format, c.Result.Format)
	}
	return nil
}

func (testCtx *TestContext) theDecodeAttemptIs(attempt string) error {
	c, err := testCtx.completion()
	if err != nil {
		return err
	}
	if c.Attempt.String() != attempt {
		return fmt.Errorf("expected attempt %q, got %q", attempt, c.Attempt)
	}
	return nil
}

func (testCtx *TestContext) theScanTimedOut() error {
	c, err := testCtx.completion()
	if err != nil {
		return err
	}
	if !c.TimedOut {
		return errors.New("the completion is not marked as timed out")
	}
	return nil
}

func (testCtx *TestContext) framesWereProcessed(n int) error {
	c, err := testCtx.completion()
	if err != nil {
		return err
	}
	if c.Frames != n {
		return fmt.Errorf("expected %d processed frames, got %d", n, c.Frames)
	}
	return nil
}

func (testCtx *TestContext) everyMarkerLiesOnTheCode() error {
	c, err := testCtx.completion()
	if err != nil {
		return err
	}
	if len(c.FramePoints) == 0 {
		return errors.New("no markers were reported")
	}
	area := testCtx.LastCode.Inset(-markerTolerance)
	for _, p := range c.FramePoints {
		pt := image.Pt(int(p.X), int(p.Y))
		if !pt.In(area) {
			return fmt.Errorf("marker %v lies outside the code at %v", pt, testCtx.LastCode)
		}
	}
	return nil
}

func (testCtx *TestContext) theAnnotatedImageIs(width, height int) error {
	c, err := testCtx.completion()
	if err != nil {
		return err
	}
	if c.Image == nil {
		return errors.New("no annotated image")
	}
	if b := c.Image.Bounds(); b.Dx() != width || b.Dy() != height {
		return fmt.Errorf("expected a %dx%d image, got %dx%d", width, height, b.Dx(), b.Dy())
	}
	return nil
}

func (testCtx *TestContext) theSessionStateIs(state string) error {
	s := testCtx.session()
	return eventually(
		func() bool { return s.State().String() == state },
		func() string { return fmt.Sprintf("state is %s, want %s", s.State(), state) },
	)
}

func (testCtx *TestContext) theReportedStatesAre(list string) error {
	want := splitList(list)
	testCtx.session()
	return eventually(
		func() bool { return slices.Equal(testCtx.Observer.stateNames(), want) },
		func() string { return fmt.Sprintf("states %v, want %v", testCtx.Observer.stateNames(), want) },
	)
}

func (testCtx *TestContext) theReportedPropertyChangesAre(list string) error {
	want := splitList(list)
	testCtx.session()
	return eventually(
		func() bool { return slices.Equal(testCtx.Observer.propertyNames(), want) },
		func() string { return fmt.Sprintf("properties %v, want %v", testCtx.Observer.propertyNames(), want) },
	)
}

func (testCtx *TestContext) theHostWasToldGrabbing() error {
	testCtx.session()
	return eventually(testCtx.Observer.sawGrabbing, func() string { return "no grabbing notification" })
}

func splitList(list string) []string {
	var out []string
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
