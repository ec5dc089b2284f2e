package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
)

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path      string
	Format    string
	SizeBytes int64
	Width     int
	Height    int
}

// LoadImage opens and decodes an image file, returning the image and metadata.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	if path == "" {
		err := &ImageProcessingError{Operation: "load", Err: errors.New("empty path")}
		return nil, ImageMetadata{}, err
	}
	if !IsSupportedImage(path) {
		err := &ImageProcessingError{Operation: "load", Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
		return nil, ImageMetadata{}, err
	}

	f, err := os.Open(path) //nolint:gosec // G304: Reading user-provided image file path is expected
	if err != nil {
		err = &ImageProcessingError{Operation: "load", Err: err}
		return nil, ImageMetadata{}, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing image file: %v\n", err)
		}
	}()

	fi, statErr := f.Stat()
	if statErr != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Err: statErr}
	}

	img, format, decErr := DecodeImage(f)
	if decErr != nil {
		return nil, ImageMetadata{}, decErr
	}

	b := img.Bounds()
	meta := ImageMetadata{
		Path:      path,
		Format:    format,
		SizeBytes: fi.Size(),
		Width:     b.Dx(),
		Height:    b.Dy(),
	}
	return img, meta, nil
}

// DecodeImage decodes a PNG, JPEG or BMP stream.
func DecodeImage(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", &ImageProcessingError{Operation: "decode", Err: err}
	}
	return img, format, nil
}

// EncodeImage writes img to w in the given format ("png", "jpeg" or "bmp").
func EncodeImage(w io.Writer, img image.Image, format string) error {
	var err error
	switch strings.ToLower(format) {
	case "png", "":
		err = png.Encode(w, img)
	case "jpg", "jpeg":
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	case "bmp":
		err = bmp.Encode(w, img)
	default:
		err = fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return &ImageProcessingError{Operation: "encode", Err: err}
	}
	return nil
}

// EncodePNG returns img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeImage(&buf, img, "png"); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveImage encodes img to path, picking the format from the extension.
func SaveImage(path string, img image.Image) error {
	if img == nil {
		return &ImageProcessingError{Operation: "save", Err: errors.New("input image is nil")}
	}
	if !IsSupportedImage(path) {
		return &ImageProcessingError{Operation: "save", Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}

	f, err := os.Create(path) //nolint:gosec // G304: output path is chosen by the caller
	if err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	encErr := EncodeImage(f, img, strings.TrimPrefix(filepath.Ext(path), "."))
	closeErr := f.Close()
	if encErr != nil {
		return encErr
	}
	if closeErr != nil {
		return &ImageProcessingError{Operation: "save", Err: closeErr}
	}
	return nil
}
