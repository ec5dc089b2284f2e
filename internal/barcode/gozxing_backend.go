package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"

	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/aztec"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ErrNotFound is returned by the gozxing backend when no reader matched.
var ErrNotFound = errors.New("barcode: no symbol found")

type gozxingBackend struct{}

func newGozxingBackend() *gozxingBackend { return &gozxingBackend{} }

// readerFactory pairs a symbology with the gozxing reader for it. Readers keep
// per-decode state, so a fresh one is created for every call.
type readerFactory struct {
	format Format
	create func() gozxing.Reader
}

// Linear readers come first, then matrix codes, mirroring the order zxing's
// own multi-format reader tries them in.
var defaultReaders = []readerFactory{
	{FormatEAN13, func() gozxing.Reader { return oned.NewEAN13Reader() }},
	{FormatEAN8, func() gozxing.Reader { return oned.NewEAN8Reader() }},
	{FormatUPCE, func() gozxing.Reader { return oned.NewUPCEReader() }},
	{FormatCode39, func() gozxing.Reader { return oned.NewCode39Reader() }},
	{FormatCode93, func() gozxing.Reader { return oned.NewCode93Reader() }},
	{FormatCode128, func() gozxing.Reader { return oned.NewCode128Reader() }},
	{FormatITF, func() gozxing.Reader { return oned.NewITFReader() }},
	{FormatCodabar, func() gozxing.Reader { return oned.NewCodaBarReader() }},
	{FormatQR, func() gozxing.Reader { return qrcode.NewQRCodeReader() }},
	{FormatDataMatrix, func() gozxing.Reader { return datamatrix.NewDataMatrixReader() }},
	{FormatAztec, func() gozxing.Reader { return aztec.NewAztecReader() }},
}

// upcaReader is only consulted on explicit request: the EAN-13 reader
// already accepts UPC-A symbols.
var upcaReader = readerFactory{FormatUPCA, func() gozxing.Reader { return oned.NewUPCAReader() }}

func (b *gozxingBackend) Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error) {
	if img == nil {
		return nil, errors.New("barcode: nil image")
	}

	bitmap, err := gozxing.NewBinaryBitmapFromImage(Grayscale(img))
	if err != nil {
		return nil, fmt.Errorf("barcode: binarize: %w", err)
	}

	hints := make(map[gozxing.DecodeHintType]interface{})
	if opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	for _, rf := range selectReaders(opts.Formats) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := rf.create().Decode(bitmap, hints)
		if err != nil || r == nil {
			continue
		}
		return []Result{convertResult(r)}, nil
	}
	return nil, ErrNotFound
}

func selectReaders(formats []Format) []readerFactory {
	if len(formats) == 0 {
		return defaultReaders
	}
	want := make(map[Format]bool, len(formats))
	for _, f := range formats {
		want[f] = true
	}
	var out []readerFactory
	for _, rf := range defaultReaders {
		if want[rf.format] {
			out = append(out, rf)
		}
	}
	if want[FormatUPCA] {
		out = append(out, upcaReader)
	}
	return out
}

func convertResult(r *gozxing.Result) Result {
	pts := r.GetResultPoints()
	points := make([]Point, 0, len(pts))
	for _, p := range pts {
		if p == nil {
			continue
		}
		points = append(points, Point{X: p.GetX(), Y: p.GetY()})
	}
	return Result{
		Text:   r.GetText(),
		Format: mapFormatFromZXing(r.GetBarcodeFormat()),
		Points: points,
	}
}

func mapFormatFromZXing(bf gozxing.BarcodeFormat) Format {
	switch bf {
	case gozxing.BarcodeFormat_QR_CODE:
		return FormatQR
	case gozxing.BarcodeFormat_DATA_MATRIX:
		return FormatDataMatrix
	case gozxing.BarcodeFormat_AZTEC:
		return FormatAztec
	case gozxing.BarcodeFormat_PDF_417:
		return FormatPDF417
	case gozxing.BarcodeFormat_CODE_128:
		return FormatCode128
	case gozxing.BarcodeFormat_CODE_39:
		return FormatCode39
	case gozxing.BarcodeFormat_CODE_93:
		return FormatCode93
	case gozxing.BarcodeFormat_EAN_8:
		return FormatEAN8
	case gozxing.BarcodeFormat_EAN_13:
		return FormatEAN13
	case gozxing.BarcodeFormat_UPC_A:
		return FormatUPCA
	case gozxing.BarcodeFormat_UPC_E:
		return FormatUPCE
	case gozxing.BarcodeFormat_ITF:
		return FormatITF
	case gozxing.BarcodeFormat_CODABAR:
		return FormatCodabar
	default:
		return FormatUnknown
	}
}
