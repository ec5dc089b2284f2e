package benchmark

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/MeKo-Tech/codereader/internal/barcode"
	"github.com/MeKo-Tech/codereader/internal/prepare"
	"github.com/MeKo-Tech/codereader/internal/scanner"
)

// Case is one frame to benchmark. Want, if set, is the text the frame must
// decode to.
type Case struct {
	Name  string
	Frame image.Image
	Want  string
}

// NewScanSuite adds three benchmarks per case: frame preparation, decoding
// of the prepared frame and a complete one-shot scan.
func NewScanSuite(ctx context.Context, cases []Case, opts scanner.Options, timeout time.Duration) *Suite {
	suite := NewSuite()
	engine := opts.Engine
	if engine == nil {
		engine = barcode.NewEngine(nil, barcode.Options{})
	}
	for _, c := range cases {
		suite.Add(c.Name+"/prepare", func() error {
			_, err := prepare.Prepare(c.Frame, opts.ViewFinderRect, opts.Rotation, opts.Prepare)
			return err
		})

		p, err := prepare.Prepare(c.Frame, opts.ViewFinderRect, opts.Rotation, opts.Prepare)
		suite.Add(c.Name+"/decode", func() error {
			if err != nil {
				return err
			}
			out := engine.DecodeWithRetry(ctx, p.Image)
			if !out.Found() {
				return check(c, false, "")
			}
			return check(c, true, out.Result.Text)
		})

		suite.Add(c.Name+"/scan", func() error {
			comp, err := scanner.ScanImage(ctx, c.Frame, opts, timeout)
			if err != nil {
				return err
			}
			return check(c, comp.Result.OK, comp.Result.Text)
		})
	}
	return suite
}

func check(c Case, found bool, text string) error {
	if c.Want == "" {
		return nil
	}
	if !found {
		return fmt.Errorf("%s: nothing decoded", c.Name)
	}
	if text != c.Want {
		return fmt.Errorf("%s: decoded %q, want %q", c.Name, text, c.Want)
	}
	return nil
}
