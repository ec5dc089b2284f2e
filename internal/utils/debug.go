package utils

import (
	"image"
	"log/slog"
	"path/filepath"
)

// DebugDumper writes intermediate images as BMP files into a directory.
// The zero value and a nil pointer are disabled dumpers.
type DebugDumper struct {
	Dir    string
	Logger *slog.Logger
}

// NewDebugDumper returns a dumper for dir, or nil when dir is empty.
func NewDebugDumper(dir string, logger *slog.Logger) *DebugDumper {
	if dir == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DebugDumper{Dir: dir, Logger: logger}
}

// Enabled reports whether dumps are written.
func (d *DebugDumper) Enabled() bool { return d != nil && d.Dir != "" }

// Dump stores img as debug_<name>.bmp. Failures are logged, never returned.
func (d *DebugDumper) Dump(name string, img image.Image) {
	if !d.Enabled() || img == nil {
		return
	}
	path := filepath.Join(d.Dir, "debug_"+name+".bmp")
	if err := SaveImage(path, img); err != nil {
		d.Logger.Warn("failed to write debug image", "path", path, "error", err)
	}
}
