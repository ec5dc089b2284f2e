package barcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"qr", FormatQR, true},
		{"QR_CODE", FormatQR, true},
		{" ean-13 ", FormatEAN13, true},
		{"code_128", FormatCode128, true},
		{"datamatrix", FormatDataMatrix, true},
		{"upc-a", FormatUPCA, true},
		{"maxicode", FormatUnknown, false},
		{"pdf417", FormatUnknown, false},
		{"", FormatUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseFormat(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat_StringRoundTrip(t *testing.T) {
	for f := FormatQR; f <= FormatCodabar; f++ {
		if f == FormatPDF417 {
			continue
		}
		parsed, ok := ParseFormat(f.String())
		assert.True(t, ok, f.String())
		assert.Equal(t, f, parsed)
	}
	assert.Equal(t, "UNKNOWN", FormatUnknown.String())
}

func TestFormat_Linear(t *testing.T) {
	assert.True(t, FormatEAN13.Linear())
	assert.True(t, FormatCodabar.Linear())
	assert.False(t, FormatQR.Linear())
	assert.False(t, FormatPDF417.Linear())
}
