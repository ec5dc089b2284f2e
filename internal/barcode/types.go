package barcode

import (
	"context"
	"image"
	"strings"
)

// Format represents a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatQR
	FormatDataMatrix
	FormatAztec
	FormatPDF417
	FormatCode128
	FormatCode39
	FormatCode93
	FormatEAN8
	FormatEAN13
	FormatUPCA
	FormatUPCE
	FormatITF
	FormatCodabar
)

var formatNames = map[Format]string{
	FormatQR:         "QR_CODE",
	FormatDataMatrix: "DATA_MATRIX",
	FormatAztec:      "AZTEC",
	FormatPDF417:     "PDF_417",
	FormatCode128:    "CODE_128",
	FormatCode39:     "CODE_39",
	FormatCode93:     "CODE_93",
	FormatEAN8:       "EAN_8",
	FormatEAN13:      "EAN_13",
	FormatUPCA:       "UPC_A",
	FormatUPCE:       "UPC_E",
	FormatITF:        "ITF",
	FormatCodabar:    "CODABAR",
}

// String returns the symbology tag, e.g. "QR_CODE".
func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return "UNKNOWN"
}

// Linear reports whether the format is a 1D symbology.
func (f Format) Linear() bool {
	switch f {
	case FormatCode128, FormatCode39, FormatCode93, FormatEAN8, FormatEAN13,
		FormatUPCA, FormatUPCE, FormatITF, FormatCodabar:
		return true
	default:
		return false
	}
}

// ParseFormat accepts both symbology tags ("QR_CODE") and the short
// lower-case names used on the command line ("qr", "ean-13"). Only formats
// the backend can read are accepted; gozxing has no PDF417 reader.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "qr", "qr_code", "qrcode":
		return FormatQR, true
	case "datamatrix", "data-matrix", "data_matrix":
		return FormatDataMatrix, true
	case "aztec":
		return FormatAztec, true
	case "code128", "code-128", "code_128":
		return FormatCode128, true
	case "code39", "code-39", "code_39":
		return FormatCode39, true
	case "code93", "code-93", "code_93":
		return FormatCode93, true
	case "ean8", "ean-8", "ean_8":
		return FormatEAN8, true
	case "ean13", "ean-13", "ean_13":
		return FormatEAN13, true
	case "upca", "upc-a", "upc_a":
		return FormatUPCA, true
	case "upce", "upc-e", "upc_e":
		return FormatUPCE, true
	case "itf", "interleaved2of5", "i2/5":
		return FormatITF, true
	case "codabar":
		return FormatCodabar, true
	default:
		return FormatUnknown, false
	}
}

// Options controls backend decoding behavior.
type Options struct {
	// Formats constrains the set of symbologies to search. Empty means all.
	Formats []Format

	// TryHarder enables more exhaustive search (slower but more robust).
	TryHarder bool
}

// Point is a marker point in image coordinates.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Result represents a decoded barcode.
type Result struct {
	Text   string
	Format Format
	Points []Point
}

// Clone returns a deep copy so that callers never share the points slice.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	if r.Points != nil {
		out.Points = append([]Point(nil), r.Points...)
	}
	return &out
}

// Backend is a pluggable barcode decoder implementation. A backend returns
// an empty slice or an error when nothing could be decoded.
type Backend interface {
	Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error)
}

// NewBackend returns the default backend implementation.
func NewBackend() Backend { return newGozxingBackend() }
