package prepare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRotation(t *testing.T) {
	assert.Equal(t, Rotate0, NormalizeRotation(0))
	assert.Equal(t, Rotate0, NormalizeRotation(360))
	assert.Equal(t, Rotate270, NormalizeRotation(-90))
	assert.Equal(t, Rotate90, NormalizeRotation(450))
	assert.Equal(t, Rotation(45), NormalizeRotation(45))
}

func TestParseRotation(t *testing.T) {
	tests := []struct {
		in      string
		want    Rotation
		wantErr bool
	}{
		{"0", Rotate0, false},
		{"90", Rotate90, false},
		{" 180 ", Rotate180, false},
		{"-90", Rotate270, false},
		{"630", Rotate270, false},
		{"45", Rotate0, true},
		{"up", Rotate0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRotation(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRotation_TextMarshalling(t *testing.T) {
	text, err := Rotate270.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "270", string(text))

	var r Rotation
	require.NoError(t, r.UnmarshalText([]byte("-180")))
	assert.Equal(t, Rotate180, r)
	assert.Error(t, r.UnmarshalText([]byte("10")))
}
