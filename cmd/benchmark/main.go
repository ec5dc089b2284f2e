package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/codereader/internal/benchmark"
	"github.com/MeKo-Tech/codereader/internal/scanner"
	"github.com/MeKo-Tech/codereader/internal/testutil"
	"github.com/MeKo-Tech/codereader/internal/utils"
	"github.com/disintegration/imaging"
)

func main() {
	var (
		imagesDir  = flag.String("images", "", "Directory of frames to benchmark (default: synthetic frames)")
		iterations = flag.Int("iterations", 10, "Number of iterations per benchmark")
		timeout    = flag.Duration("timeout", 5*time.Second, "Timeout of each one-shot scan")
		outputFile = flag.String("output", "", "Write results as CSV to this file (optional)")
		verbose    = flag.Bool("verbose", false, "Verbose output")
	)
	flag.Parse()

	fmt.Println("codereader scan pipeline benchmark")
	fmt.Println("==================================")

	var (
		cases []benchmark.Case
		err   error
	)
	if *imagesDir != "" {
		cases, err = loadCases(*imagesDir)
	} else {
		cases, err = syntheticCases()
	}
	if err != nil {
		log.Fatalf("Failed to prepare frames: %v", err)
	}
	if len(cases) == 0 {
		log.Fatalf("No frames to benchmark")
	}
	if *verbose {
		for _, c := range cases {
			b := c.Frame.Bounds()
			fmt.Printf("Frame %s: %dx%d\n", c.Name, b.Dx(), b.Dy())
		}
	}

	fmt.Printf("Running benchmarks with %d iterations per test...\n\n", *iterations)
	suite := benchmark.NewScanSuite(context.Background(), cases, scanner.Options{}, *timeout)
	results := suite.RunAll(*iterations)

	if err := benchmark.WriteText(os.Stdout, results); err != nil {
		log.Fatalf("Failed to print results: %v", err)
	}

	if *outputFile != "" {
		if err := saveResultsToFile(*outputFile, results); err != nil {
			log.Printf("Failed to save results to file: %v", err)
		} else {
			fmt.Printf("Results saved to: %s\n", *outputFile)
		}
	}
}

// loadCases reads every image in dir. A frame whose file name looks like
// "<text>.qr.png" must decode to <text>.
func loadCases(dir string) ([]benchmark.Case, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var cases []benchmark.Case
	for _, e := range entries {
		if e.IsDir() || !utils.IsSupportedImage(e.Name()) {
			continue
		}
		img, _, err := utils.LoadImage(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", e.Name(), err)
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		c := benchmark.Case{Name: name, Frame: img}
		if want, ok := strings.CutSuffix(name, ".qr"); ok {
			c.Want = want
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func syntheticCases() ([]benchmark.Case, error) {
	qr, err := testutil.EncodeQR("https://example.com/benchmark", 300)
	if err != nil {
		return nil, err
	}
	bigQR, err := testutil.EncodeQR("large frame", 600)
	if err != nil {
		return nil, err
	}
	code, err := testutil.EncodeCode128("BENCH-128", 400, 120)
	if err != nil {
		return nil, err
	}
	vertical := imaging.Rotate90(testutil.Embed(testutil.CreateTestImage(520, 240, color.White), code, image.Pt(60, 60)))

	return []benchmark.Case{
		{Name: "qr_medium", Frame: testutil.Centered(qr, testutil.MediumSize), Want: "https://example.com/benchmark"},
		{Name: "qr_large", Frame: testutil.Centered(bigQR, testutil.LargeSize), Want: "large frame"},
		{Name: "code128_vertical", Frame: vertical, Want: "BENCH-128"},
		{Name: "empty", Frame: testutil.GenerateTextImage(testutil.DefaultTestImageConfig())},
	}, nil
}

func saveResultsToFile(filename string, results []benchmark.Result) error {
	file, err := os.Create(filename) //nolint:gosec // G304: output path comes from the command line
	if err != nil {
		return err
	}
	if err := benchmark.WriteCSV(file, results); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
