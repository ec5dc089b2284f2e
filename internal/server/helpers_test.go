package server

import (
	"bytes"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/codereader/internal/history"
	"github.com/MeKo-Tech/codereader/internal/utils"
)

// newTestServer builds a server with a history store in a temp directory.
// mutate may adjust the configuration before the server is created.
func newTestServer(t *testing.T, mutate func(*Config)) (*Server, *history.Store) {
	t.Helper()

	store, err := history.Open(history.Options{Dir: t.TempDir(), MaxCount: 10, SaveImages: true})
	require.NoError(t, err)

	cfg := Config{
		CORSOrigin:     "*",
		MaxUploadMB:    5,
		History:        store,
		MetricsEnabled: true,
		Version:        "test",
	}
	if mutate != nil {
		mutate(&cfg)
	}

	s := NewServer(cfg)
	t.Cleanup(func() { _ = s.Close() })
	return s, cfg.History
}

func newMux(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// scanRequest builds a multipart POST /scan request carrying img as PNG.
func scanRequest(t *testing.T, img image.Image, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if img != nil {
		part, err := mw.CreateFormFile("image", "frame.png")
		require.NoError(t, err)
		require.NoError(t, utils.EncodeImage(part, img, "png"))
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/scan", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	data, err := utils.EncodePNG(img)
	require.NoError(t, err)
	return data
}
