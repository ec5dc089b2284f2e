package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/codereader/internal/barcode"
	"github.com/MeKo-Tech/codereader/internal/config"
	"github.com/MeKo-Tech/codereader/internal/history"
	"github.com/MeKo-Tech/codereader/internal/scanner"
	"github.com/MeKo-Tech/codereader/internal/utils"
)

// scanReport is the result of scanning one file.
type scanReport struct {
	File          string          `json:"file" yaml:"file"`
	Found         bool            `json:"found" yaml:"found"`
	Text          string          `json:"text,omitempty" yaml:"text,omitempty"`
	DisplayText   string          `json:"display_text,omitempty" yaml:"display_text,omitempty"`
	Format        string          `json:"format,omitempty" yaml:"format,omitempty"`
	DisplayFormat string          `json:"display_format,omitempty" yaml:"display_format,omitempty"`
	IsLink        bool            `json:"is_link,omitempty" yaml:"is_link,omitempty"`
	Attempt       string          `json:"attempt,omitempty" yaml:"attempt,omitempty"`
	Points        []barcode.Point `json:"points,omitempty" yaml:"points,omitempty"`
	TimedOut      bool            `json:"timed_out" yaml:"timed_out"`
	DurationMs    int64           `json:"duration_ms" yaml:"duration_ms"`
	Overlay       string          `json:"overlay,omitempty" yaml:"overlay,omitempty"`
	HistoryID     string          `json:"history_id,omitempty" yaml:"history_id,omitempty"`
	Error         string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan [image files...]",
	Short: "Scan image files for barcodes",
	Long: `Scan one or more image files (PNG, JPEG, BMP) for a barcode.

Each file is treated as a single captured frame: it is rotated upright,
cropped to the viewfinder, downscaled and decoded. When nothing is found
directly, the frame is rotated by 90 degrees and decoded once more.

Examples:
  codereader scan photo.jpg
  codereader scan --format json *.png
  codereader scan --viewfinder 0,200,720,400 --rotation 90 frame.png
  codereader scan --overlay-dir marked/ --save photo.jpg`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}

		format := outputFormat(cmd, cfg)
		overlayDir, _ := cmd.Flags().GetString("overlay-dir")
		save, _ := cmd.Flags().GetBool("save")

		logger := slog.Default()
		opts, err := cfg.ToSessionOptions(logger)
		if err != nil {
			return err
		}

		var store *history.Store
		if save {
			if store, err = history.Open(cfg.ToHistoryOptions(logger)); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reports := make([]scanReport, 0, len(args))
		failed := 0
		for _, path := range args {
			report := scanFile(ctx, path, cfg, opts, overlayDir, store)
			if report.Error != "" || !report.Found {
				failed++
			}
			reports = append(reports, report)
			if errors.Is(ctx.Err(), context.Canceled) {
				break
			}
		}

		out := cmd.OutOrStdout()
		if format == formatText {
			writeScanText(out, reports, len(args) > 1)
		} else if err := writeStructured(out, format, reports); err != nil {
			return err
		}

		if failed == len(args) {
			return errors.New("no barcode found")
		}
		return nil
	},
}

func scanFile(ctx context.Context, path string, cfg *config.Config, opts scanner.Options,
	overlayDir string, store *history.Store,
) scanReport {
	report := scanReport{File: path}

	img, _, err := utils.LoadImage(path)
	if err != nil {
		report.Error = err.Error()
		return report
	}

	c, err := scanner.ScanImage(ctx, img, opts, cfg.Scan.Timeout())
	if err != nil {
		report.Error = err.Error()
		return report
	}

	report.Found = c.Result.OK
	report.TimedOut = c.TimedOut
	report.DurationMs = c.Duration.Milliseconds()
	if !c.Result.OK {
		return report
	}
	report.Text = c.Result.Text
	report.DisplayText = barcode.DisplayText(c.Result.Text)
	report.Format = c.Result.Format
	report.DisplayFormat = barcode.DisplayFormat(c.Result.Format)
	report.IsLink = barcode.IsLink(c.Result.Text)
	report.Attempt = c.Attempt.String()
	report.Points = c.FramePoints

	if overlayDir != "" {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + "_marked.png"
		target := filepath.Join(overlayDir, name)
		if err := utils.SaveImage(target, c.Image); err != nil {
			slog.Warn("Failed to save overlay", "file", target, "error", err)
		} else {
			report.Overlay = target
		}
	}

	if store != nil {
		entry, err := store.Insert(c.Result.Text, c.Result.Format, c.Image)
		if err != nil {
			slog.Warn("Failed to store scan in history", "error", err)
		} else {
			report.HistoryID = entry.ID
		}
	}
	return report
}

func writeScanText(w io.Writer, reports []scanReport, withFile bool) {
	for _, r := range reports {
		prefix := ""
		if withFile {
			prefix = r.File + ": "
		}
		switch {
		case r.Error != "":
			_, _ = fmt.Fprintf(w, "%serror: %s\n", prefix, r.Error)
		case !r.Found && r.TimedOut:
			_, _ = fmt.Fprintf(w, "%sno barcode found (timed out)\n", prefix)
		case !r.Found:
			_, _ = fmt.Fprintf(w, "%sno barcode found\n", prefix)
		default:
			_, _ = fmt.Fprintf(w, "%s%s\t%s\n", prefix, r.DisplayFormat, r.DisplayText)
		}
	}
}

func init() {
	rootCmd.AddCommand(scanCmd)

	defaults := config.DefaultConfig()
	scanCmd.Flags().Int("timeout", defaults.Scan.TimeoutMs, "scan timeout in milliseconds (0 disables)")
	scanCmd.Flags().Int("max-size", defaults.Scan.MaxSize, "longest side of the image handed to the decoder")
	scanCmd.Flags().String("viewfinder", "", "viewfinder rectangle x,y,w,h in display coordinates (default whole frame)")
	scanCmd.Flags().Int("rotation", 0, "device rotation in degrees (0, 90, 180, 270)")
	scanCmd.Flags().String("marker-color", defaults.Scan.MarkerColor, "marker color (#rgb, #rrggbb, #aarrggbb or a color name)")
	scanCmd.Flags().StringSlice("formats", nil, "restrict decoding to these formats (e.g. qr,ean-13)")
	scanCmd.Flags().Bool("try-harder", false, "spend more time looking for a barcode")
	scanCmd.Flags().String("debug-dir", "", "write intermediate images to this directory")
	scanCmd.Flags().StringP("format", "f", formatText, "output format: text, json or yaml (default from output.format)")
	scanCmd.Flags().String("overlay-dir", "", "save annotated images to this directory")
	scanCmd.Flags().Bool("save", false, "store results in the scan history")

	bindFlag("scan.timeout_ms", scanCmd.Flags().Lookup("timeout"))
	bindFlag("scan.max_size", scanCmd.Flags().Lookup("max-size"))
	bindFlag("scan.viewfinder", scanCmd.Flags().Lookup("viewfinder"))
	bindFlag("scan.rotation", scanCmd.Flags().Lookup("rotation"))
	bindFlag("scan.marker_color", scanCmd.Flags().Lookup("marker-color"))
	bindFlag("scan.formats", scanCmd.Flags().Lookup("formats"))
	bindFlag("scan.try_harder", scanCmd.Flags().Lookup("try-harder"))
	bindFlag("scan.debug_dir", scanCmd.Flags().Lookup("debug-dir"))
}
