package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitor_RunOnce(t *testing.T) {
	s := openStore(t, DefaultMaxCount)
	orphan := filepath.Join(s.Dir(), "images", "gone.png")
	require.NoError(t, os.WriteFile(orphan, []byte("x"), 0o600))

	j, err := NewJanitor(s, "", nil)
	require.NoError(t, err)
	j.RunOnce()

	assert.NoFileExists(t, orphan)
}

func TestJanitor_StartStop(t *testing.T) {
	s := openStore(t, DefaultMaxCount)

	j, err := NewJanitor(s, "@every 1h", nil)
	require.NoError(t, err)
	j.Start()
	j.Stop()
}

func TestNewJanitor_InvalidSchedule(t *testing.T) {
	s := openStore(t, DefaultMaxCount)

	_, err := NewJanitor(s, "every now and then", nil)
	assert.Error(t, err)
}
