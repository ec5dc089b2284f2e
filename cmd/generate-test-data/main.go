package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/codereader/internal/testutil"
	"github.com/MeKo-Tech/codereader/internal/utils"
	"github.com/disintegration/imaging"
)

// fixture describes one generated frame and what scanning it must yield.
type fixture struct {
	File       string `json:"file"`
	Text       string `json:"text,omitempty"`
	Format     string `json:"format,omitempty"`
	Rotation   int    `json:"rotation,omitempty"`
	ViewFinder string `json:"viewfinder,omitempty"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir  = flag.String("out", "", "Output directory (default: <project root>/testdata)")
		verbose = flag.Bool("v", false, "Verbose output")
		help    = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic barcode frames for codereader testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	dir := *outDir
	if dir == "" {
		root, err := testutil.GetProjectRoot()
		if err != nil {
			slog.Error("Failed to find project root", "error", err)
			os.Exit(1)
		}
		dir = filepath.Join(root, "testdata")
	}

	slog.Info("Generating test frames", "dir", dir)
	fixtures, err := generate(filepath.Join(dir, "images"), *verbose)
	if err != nil {
		slog.Error("Failed to generate test frames", "error", err)
		os.Exit(1)
	}
	if err := saveManifest(filepath.Join(dir, "fixtures.json"), fixtures); err != nil {
		slog.Error("Failed to write fixture manifest", "error", err)
		os.Exit(1)
	}
	slog.Info("Test data generation completed", "frames", len(fixtures))
}

func generate(dir string, verbose bool) ([]fixture, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	var fixtures []fixture
	save := func(name string, img image.Image, f fixture) error {
		f.File = filepath.Join("images", name)
		if err := utils.SaveImage(filepath.Join(dir, name), img); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
		if verbose {
			slog.Info("Generated frame", "file", f.File, "text", f.Text)
		}
		fixtures = append(fixtures, f)
		return nil
	}

	for _, text := range []string{"hello", "https-example-com", "12345"} {
		qr, err := testutil.EncodeQR(text, 300)
		if err != nil {
			return nil, err
		}
		if err := save(text+".qr.png", testutil.Centered(qr, testutil.MediumSize), fixture{Text: text, Format: "QR_CODE"}); err != nil {
			return nil, err
		}
	}

	// The same code captured at each right angle.
	qr, err := testutil.EncodeQR("turned", 300)
	if err != nil {
		return nil, err
	}
	upright := testutil.Centered(qr, testutil.MediumSize)
	for _, rot := range []int{90, 180, 270} {
		frame := imaging.Rotate(upright, float64(rot), color.White)
		name := fmt.Sprintf("turned_%d.png", rot)
		if err := save(name, frame, fixture{Text: "turned", Format: "QR_CODE", Rotation: rot}); err != nil {
			return nil, err
		}
	}

	corner, err := testutil.EncodeQR("corner", 250)
	if err != nil {
		return nil, err
	}
	cornerFrame := testutil.Embed(testutil.CreateTestImage(600, 600, color.White), corner, image.Pt(20, 20))
	if err := save("corner.png", cornerFrame, fixture{Text: "corner", Format: "QR_CODE", ViewFinder: "0,0,300,300"}); err != nil {
		return nil, err
	}

	code, err := testutil.EncodeCode128("VERTICAL-128", 400, 120)
	if err != nil {
		return nil, err
	}
	vertical := imaging.Rotate90(testutil.Embed(testutil.CreateTestImage(520, 240, color.White), code, image.Pt(60, 60)))
	if err := save("code128_vertical.png", vertical, fixture{Text: "VERTICAL-128", Format: "CODE_128"}); err != nil {
		return nil, err
	}

	if err := save("empty.png", testutil.GenerateTextImage(testutil.DefaultTestImageConfig()), fixture{}); err != nil {
		return nil, err
	}
	return fixtures, nil
}

func saveManifest(path string, fixtures []fixture) error {
	data, err := json.MarshalIndent(fixtures, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
