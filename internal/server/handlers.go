package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/codereader/internal/config"
	"github.com/MeKo-Tech/codereader/internal/history"
	"github.com/MeKo-Tech/codereader/internal/overlay"
	"github.com/MeKo-Tech/codereader/internal/prepare"
	"github.com/MeKo-Tech/codereader/internal/scanner"
	"github.com/MeKo-Tech/codereader/internal/utils"
)

const (
	formatText    = "text"
	formatOverlay = "overlay"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	s.writeJSON(w, http.StatusOK, response)
}

// scanHandler scans an uploaded still image.
func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	img, _, err := utils.DecodeImage(file)
	if err != nil {
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return
	}

	opts, timeout, err := s.requestSessionOptions(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	c, err := scanner.ScanImage(r.Context(), img, opts, timeout)
	if err != nil {
		scanRequestsTotal.WithLabelValues("http", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Scan failed: %v", err), http.StatusInternalServerError)
		return
	}
	scanRequestsTotal.WithLabelValues("http", outcomeLabel(c)).Inc()

	res := toScanResult(c)
	if c.Result.OK && r.FormValue("save") != "0" {
		res.HistoryID = s.remember(c)
	}

	format := r.FormValue("format")
	if format == "" {
		format = r.URL.Query().Get("format")
	}
	switch format {
	case formatOverlay:
		if c.Image == nil {
			s.writeErrorResponse(w, "No barcode found", http.StatusUnprocessableEntity)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		if err := utils.EncodeImage(w, c.Image, "png"); err != nil {
			s.logger.Error("Error encoding overlay image", "error", err)
		}
	case formatText:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if res.Found {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", res.DisplayFormat, res.DisplayText)
		} else {
			_, _ = fmt.Fprintln(w, "no barcode found")
		}
	default:
		s.writeJSON(w, http.StatusOK, ScanResponse{Success: true, Result: res})
	}
}

// requestSessionOptions applies per-request overrides to the session
// template.
func (s *Server) requestSessionOptions(r *http.Request) (scanner.Options, time.Duration, error) {
	opts := s.session
	timeout := s.scanTimeout
	if timeout <= 0 {
		timeout = defaultScanTimeout
	}

	if v := r.FormValue("viewfinder"); v != "" {
		vf, err := config.ParseViewFinder(v)
		if err != nil {
			return opts, 0, err
		}
		opts.ViewFinderRect = vf
	}
	if v := r.FormValue("rotation"); v != "" {
		rot, err := prepare.ParseRotation(v)
		if err != nil {
			return opts, 0, err
		}
		opts.Rotation = rot
	}
	if v := r.FormValue("marker_color"); v != "" {
		c, err := overlay.ParseColor(v)
		if err != nil {
			return opts, 0, err
		}
		opts.MarkerColor = c
	}
	if v := r.FormValue("timeout_ms"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return opts, 0, fmt.Errorf("invalid timeout_ms: %q", v)
		}
		timeout = time.Duration(ms) * time.Millisecond
	}
	return opts, timeout, nil
}

// remember stores a successful scan in the history and returns the entry ID.
func (s *Server) remember(c scanner.Completion) string {
	if s.history == nil {
		return ""
	}
	entry, err := s.history.Insert(c.Result.Text, c.Result.Format, c.Image)
	if err != nil {
		s.logger.Warn("Failed to store scan in history", "error", err)
		return ""
	}
	return entry.ID
}

// historyHandler lists (GET) or clears (DELETE) the scan history.
func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeErrorResponse(w, "History disabled", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		entries := s.history.List()
		if entries == nil {
			entries = []history.Entry{}
		}
		s.writeJSON(w, http.StatusOK, HistoryResponse{
			Entries: entries,
			Count:   len(entries),
			Max:     s.history.MaxCount(),
		})
	case http.MethodDelete:
		if err := s.history.RemoveAll(); err != nil {
			s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// historyEntryHandler returns (GET) or deletes (DELETE) one history entry.
func (s *Server) historyEntryHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeErrorResponse(w, "History disabled", http.StatusNotFound)
		return
	}
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		entry, err := s.history.Get(id)
		if err != nil {
			s.writeHistoryError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, entry)
	case http.MethodDelete:
		if err := s.history.Remove(id); err != nil {
			s.writeHistoryError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// historyImageHandler serves the annotated image saved with an entry.
func (s *Server) historyImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.history == nil {
		s.writeErrorResponse(w, "History disabled", http.StatusNotFound)
		return
	}

	path, err := s.history.ImagePath(r.PathValue("id"))
	if err != nil {
		s.writeHistoryError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, path)
}

func (s *Server) writeHistoryError(w http.ResponseWriter, err error) {
	if errors.Is(err, history.ErrNotFound) {
		s.writeErrorResponse(w, "History entry not found", http.StatusNotFound)
		return
	}
	s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
}

func outcomeLabel(c scanner.Completion) string {
	switch {
	case c.Result.OK:
		return "found"
	case c.TimedOut:
		return "timed_out"
	default:
		return "not_found"
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Error encoding response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ScanResponse{
		Success: false,
		Error:   strings.TrimSpace(message),
	})
}
