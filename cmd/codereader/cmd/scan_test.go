package cmd

import (
	"encoding/json"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/codereader/internal/history"
	"github.com/MeKo-Tech/codereader/internal/testutil"
)

// writeFixtures writes a QR frame and a blank frame to a temp dir.
func writeFixtures(t *testing.T) (qr, blank string) {
	t.Helper()
	dir := t.TempDir()
	qr = filepath.Join(dir, "qr.png")
	blank = filepath.Join(dir, "blank.png")
	testutil.SaveImage(t, testutil.QRFrame(t, "https://example.com/cli", testutil.MediumSize, 300), qr)
	testutil.SaveImage(t, testutil.CreateTestImage(320, 240, color.White), blank)
	return qr, blank
}

func TestScanCommandText(t *testing.T) {
	qr, _ := writeFixtures(t)

	output, err := execute(t, "scan", qr)
	require.NoError(t, err)
	assert.Equal(t, "QR Code\thttps://example.com/cli\n", output)
}

func TestScanCommandJSON(t *testing.T) {
	qr, blank := writeFixtures(t)

	output, err := execute(t, "scan", "--format", "json", qr, blank)
	require.NoError(t, err, "one file decoded is a success")

	var reports []scanReport
	require.NoError(t, json.Unmarshal([]byte(output), &reports))
	require.Len(t, reports, 2)

	assert.True(t, reports[0].Found)
	assert.Equal(t, "QR_CODE", reports[0].Format)
	assert.Equal(t, "direct", reports[0].Attempt)
	assert.True(t, reports[0].IsLink)
	assert.NotEmpty(t, reports[0].Points)

	assert.False(t, reports[1].Found)
	assert.Empty(t, reports[1].Error)
}

func TestScanCommandYAML(t *testing.T) {
	qr, _ := writeFixtures(t)

	output, err := execute(t, "scan", "-f", "yaml", qr)
	require.NoError(t, err)

	var reports []scanReport
	require.NoError(t, yaml.Unmarshal([]byte(output), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "https://example.com/cli", reports[0].Text)
}

func TestScanCommandNothingFound(t *testing.T) {
	_, blank := writeFixtures(t)

	output, err := execute(t, "scan", blank)
	require.Error(t, err)
	assert.Equal(t, "no barcode found\n", output)
}

func TestScanCommandMissingFile(t *testing.T) {
	output, err := execute(t, "scan", "does-not-exist.png")
	require.Error(t, err)
	assert.Contains(t, output, "error:")
}

func TestScanCommandInvalidRotation(t *testing.T) {
	qr, _ := writeFixtures(t)
	_, err := execute(t, "scan", "--rotation", "45", qr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rotation")
}

func TestScanCommandOverlayAndSave(t *testing.T) {
	qr, _ := writeFixtures(t)
	overlayDir := filepath.Join(t.TempDir(), "marked")
	historyDir := filepath.Join(t.TempDir(), "history")

	output, err := execute(t, "scan", "--format", "json", "--save",
		"--history-dir", historyDir, "--overlay-dir", overlayDir, qr)
	require.NoError(t, err)

	var reports []scanReport
	require.NoError(t, json.Unmarshal([]byte(output), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, filepath.Join(overlayDir, "qr_marked.png"), reports[0].Overlay)
	_, err = os.Stat(reports[0].Overlay)
	require.NoError(t, err)

	store, err := history.Open(history.Options{Dir: historyDir})
	require.NoError(t, err)
	entry, err := store.Get(reports[0].HistoryID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/cli", entry.Value)
	assert.True(t, entry.HasImage)
}
