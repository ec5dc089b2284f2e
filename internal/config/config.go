package config

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/codereader/internal/barcode"
	"github.com/MeKo-Tech/codereader/internal/history"
	"github.com/MeKo-Tech/codereader/internal/overlay"
	"github.com/MeKo-Tech/codereader/internal/prepare"
	"github.com/MeKo-Tech/codereader/internal/scanner"
)

const (
	infoLevel = "info"

	// DefaultScanTimeoutMs is how long a scan runs before it times out.
	DefaultScanTimeoutMs = 20000
)

var (
	validLogLevels = []string{"debug", infoLevel, "warn", "error"}
	validFormats   = []string{"text", "json", "yaml"}
)

// DefaultConfig returns a configuration with sensible default values.
func DefaultConfig() Config {
	return Config{
		LogLevel: infoLevel,
		Verbose:  false,
		Scan: ScanConfig{
			TimeoutMs:   DefaultScanTimeoutMs,
			MaxSize:     prepare.DefaultMaxSize,
			MarkerColor: overlay.FormatColor(overlay.DefaultMarkerColor),
			Rotation:    0,
			ViewFinder:  "",
			Formats:     []string{},
			TryHarder:   false,
			DebugDir:    "",
		},
		History: HistoryConfig{
			Dir:           DefaultHistoryDir(),
			MaxCount:      history.DefaultMaxCount,
			SaveImages:    true,
			PurgeSchedule: history.DefaultPurgeSchedule,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     20,
			ShutdownTimeout: 10,
			MetricsEnabled:  true,
		},
		Output: OutputConfig{
			Format: "text",
		},
	}
}

// DefaultHistoryDir returns $XDG_DATA_HOME/codereader, falling back to
// ~/.local/share/codereader.
func DefaultHistoryDir() string {
	if dataDir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dataDir != "" {
		return filepath.Join(dataDir, "codereader")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "codereader")
	}
	return "codereader-history"
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)",
			c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if c.Output.Format != "" && !contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)",
			c.Output.Format, strings.Join(validFormats, ", "))
	}

	if c.Scan.TimeoutMs < 0 {
		return fmt.Errorf("scan.timeout_ms must be non-negative, got %d", c.Scan.TimeoutMs)
	}
	if c.Scan.MaxSize < 0 {
		return fmt.Errorf("scan.max_size must be non-negative, got %d", c.Scan.MaxSize)
	}
	if _, err := overlay.ParseColor(c.Scan.MarkerColor); err != nil {
		return fmt.Errorf("scan.marker_color: %w", err)
	}
	if !prepare.NormalizeRotation(c.Scan.Rotation).Valid() {
		return fmt.Errorf("scan.rotation must be a multiple of 90, got %d", c.Scan.Rotation)
	}
	if _, err := ParseViewFinder(c.Scan.ViewFinder); err != nil {
		return fmt.Errorf("scan.viewfinder: %w", err)
	}
	if _, err := ParseFormats(c.Scan.Formats); err != nil {
		return fmt.Errorf("scan.formats: %w", err)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.ScansPerMinute < 0 || c.Server.ScansPerHour < 0 {
		return errors.New("server scan rate limits must be non-negative")
	}
	if c.Server.MaxUploadMB < 0 {
		return fmt.Errorf("server.max_upload_mb must be non-negative, got %d", c.Server.MaxUploadMB)
	}

	return nil
}

// Timeout returns the scan timeout.
func (c ScanConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// ToBarcodeOptions converts the scan settings to decoder options.
func (c *Config) ToBarcodeOptions() (barcode.Options, error) {
	formats, err := ParseFormats(c.Scan.Formats)
	if err != nil {
		return barcode.Options{}, err
	}
	return barcode.Options{Formats: formats, TryHarder: c.Scan.TryHarder}, nil
}

// ToSessionOptions builds scan session options. Source and Observer are left
// for the caller.
func (c *Config) ToSessionOptions(logger *slog.Logger) (scanner.Options, error) {
	if logger == nil {
		logger = slog.Default()
	}
	bopts, err := c.ToBarcodeOptions()
	if err != nil {
		return scanner.Options{}, err
	}
	vf, err := ParseViewFinder(c.Scan.ViewFinder)
	if err != nil {
		return scanner.Options{}, err
	}
	markerColor, err := overlay.ParseColor(c.Scan.MarkerColor)
	if err != nil {
		return scanner.Options{}, err
	}

	prep := prepare.DefaultOptions()
	if c.Scan.MaxSize > 0 {
		prep.MaxSize = c.Scan.MaxSize
	}

	return scanner.Options{
		Engine:         barcode.NewEngine(barcode.NewBackend(), bopts).WithLogger(logger),
		Prepare:        prep,
		ViewFinderRect: vf,
		Rotation:       prepare.NormalizeRotation(c.Scan.Rotation),
		MarkerColor:    markerColor,
		DebugDir:       c.Scan.DebugDir,
		Logger:         logger,
	}, nil
}

// ToHistoryOptions converts the history settings to store options.
func (c *Config) ToHistoryOptions(logger *slog.Logger) history.Options {
	return history.Options{
		Dir:        c.History.Dir,
		MaxCount:   c.History.MaxCount,
		SaveImages: c.History.SaveImages,
		Logger:     logger,
	}
}

// ParseViewFinder parses "x,y,w,h". The empty string selects the whole frame.
func ParseViewFinder(s string) (image.Rectangle, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return image.Rectangle{}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("invalid viewfinder %q: want x,y,w,h", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("invalid viewfinder %q: %w", s, err)
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return image.Rectangle{}, errors.New("viewfinder width and height must be positive")
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), nil
}

// ParseFormats converts format names into decoder formats.
func ParseFormats(names []string) ([]barcode.Format, error) {
	var formats []barcode.Format
	for _, name := range names {
		for _, part := range strings.Split(name, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			f, ok := barcode.ParseFormat(part)
			if !ok {
				return nil, fmt.Errorf("unknown barcode format: %s", part)
			}
			formats = append(formats, f)
		}
	}
	return formats, nil
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
