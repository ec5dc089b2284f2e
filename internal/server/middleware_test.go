package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORSMiddleware(t *testing.T) {
	server, _ := newTestServer(t, func(c *Config) { c.CORSOrigin = "https://app.example" })

	called := false
	handler := server.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	})

	t.Run("preflight", func(t *testing.T) {
		called = false
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodOptions, "/scan", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.False(t, called)
		assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("request", func(t *testing.T) {
		called = false
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodGet, "/history", nil))

		assert.True(t, called)
		assert.Equal(t, http.StatusTeapot, w.Code)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
	})
}

func TestResponseWriterCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	rw.WriteHeader(http.StatusNotFound)

	assert.Equal(t, http.StatusNotFound, rw.statusCode)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
