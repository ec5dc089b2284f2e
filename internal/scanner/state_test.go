package scanner

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeState(t *testing.T) {
	tests := []struct {
		scanning, abort, timedOut bool
		want                      ScanState
	}{
		{false, false, false, StateIdle},
		{false, true, false, StateIdle},
		{false, false, true, StateTimedOut},
		{false, true, true, StateTimedOut},
		{true, false, false, StateScanning},
		{true, false, true, StateScanning},
		{true, true, false, StateAborting},
		{true, true, true, StateAborting},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, computeState(tt.scanning, tt.abort, tt.timedOut),
			"scanning=%v abort=%v timedOut=%v", tt.scanning, tt.abort, tt.timedOut)
	}
}

func TestScanState_JSON(t *testing.T) {
	data, err := json.Marshal(map[string]ScanState{"state": StateTimedOut})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"timed_out"}`, string(data))

	var s ScanState
	require.NoError(t, s.UnmarshalText([]byte("aborting")))
	assert.Equal(t, StateAborting, s)
	assert.Error(t, s.UnmarshalText([]byte("paused")))
	assert.Equal(t, "ScanState(9)", ScanState(9).String())
}
