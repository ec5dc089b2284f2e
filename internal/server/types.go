package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/codereader/internal/barcode"
	"github.com/MeKo-Tech/codereader/internal/history"
	"github.com/MeKo-Tech/codereader/internal/scanner"
)

const (
	defaultMaxUploadMB = 20
	defaultScanTimeout = 20 * time.Second
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	session        scanner.Options
	history        *history.Store
	limiter        *RateLimiter
	corsOrigin     string
	maxUploadMB    int64
	scanTimeout    time.Duration
	metricsEnabled bool
	version        string
	logger         *slog.Logger

	mu       sync.Mutex
	sessions map[*scanner.Session]struct{}
	closed   bool
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	// ScanTimeout bounds every scan; zero or less disables the timeout for
	// live scans and selects the default for uploads.
	ScanTimeout time.Duration
	// Session is the template for every scan session. Source and Observer
	// are set per request.
	Session        scanner.Options
	History        *history.Store
	ScansPerMinute int
	ScansPerHour   int
	MetricsEnabled bool
	Version        string
	Logger         *slog.Logger
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// ScanResult is the JSON form of a finished scan. Points are given in the
// coordinates of the image the client sent.
type ScanResult struct {
	Found         bool            `json:"found"`
	Text          string          `json:"text,omitempty"`
	DisplayText   string          `json:"display_text,omitempty"`
	Format        string          `json:"format,omitempty"`
	DisplayFormat string          `json:"display_format,omitempty"`
	IsLink        bool            `json:"is_link,omitempty"`
	Points        []barcode.Point `json:"points,omitempty"`
	Attempt       string          `json:"attempt,omitempty"`
	TimedOut      bool            `json:"timed_out"`
	Frames        int             `json:"frames"`
	DurationMs    int64           `json:"duration_ms"`
	HistoryID     string          `json:"history_id,omitempty"`
}

type ScanResponse struct {
	Success bool        `json:"success"`
	Result  *ScanResult `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
	Count   int             `json:"count"`
	Max     int             `json:"max_count"`
}

// NewServer creates a new scan server instance.
func NewServer(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := config.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadMB
	}
	session := config.Session
	if session.Logger == nil {
		session.Logger = logger
	}
	if session.Engine == nil {
		session.Engine = barcode.NewEngine(barcode.NewBackend(), barcode.Options{}).WithLogger(logger)
	}

	var limiter *RateLimiter
	if config.ScansPerMinute > 0 || config.ScansPerHour > 0 {
		limiter = NewRateLimiter(config.ScansPerMinute, config.ScansPerHour)
	}

	return &Server{
		session:        session,
		history:        config.History,
		limiter:        limiter,
		corsOrigin:     config.CORSOrigin,
		maxUploadMB:    maxUpload,
		scanTimeout:    config.ScanTimeout,
		metricsEnabled: config.MetricsEnabled,
		version:        config.Version,
		logger:         logger,
		sessions:       make(map[*scanner.Session]struct{}),
	}
}

// Close aborts live scans and releases their sessions.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	sessions := make([]*scanner.Session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/scan", s.corsMiddleware(s.rateLimitMiddleware(s.scanHandler)))
	mux.HandleFunc("/history", s.corsMiddleware(s.historyHandler))
	mux.HandleFunc("/history/{id}", s.corsMiddleware(s.historyEntryHandler))
	mux.HandleFunc("/history/{id}/image", s.corsMiddleware(s.historyImageHandler))
	mux.HandleFunc("/ws/scan", s.rateLimitMiddleware(s.scanWebSocketHandler))
	if s.metricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
}

func (s *Server) track(sess *scanner.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.sessions[sess] = struct{}{}
	return true
}

func (s *Server) untrack(sess *scanner.Session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}

// toScanResult converts a completion into its JSON form.
func toScanResult(c scanner.Completion) *ScanResult {
	res := &ScanResult{
		Found:      c.Result.OK,
		TimedOut:   c.TimedOut,
		Frames:     c.Frames,
		DurationMs: c.Duration.Milliseconds(),
	}
	if !c.Result.OK {
		return res
	}
	res.Text = c.Result.Text
	res.DisplayText = barcode.DisplayText(c.Result.Text)
	res.Format = c.Result.Format
	res.DisplayFormat = barcode.DisplayFormat(c.Result.Format)
	res.IsLink = barcode.IsLink(c.Result.Text)
	res.Attempt = c.Attempt.String()
	res.Points = append([]barcode.Point(nil), c.FramePoints...)
	return res
}
