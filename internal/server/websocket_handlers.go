package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/codereader/internal/config"
	"github.com/MeKo-Tech/codereader/internal/overlay"
	"github.com/MeKo-Tech/codereader/internal/prepare"
	"github.com/MeKo-Tech/codereader/internal/scanner"
	"github.com/MeKo-Tech/codereader/internal/utils"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// WebSocket upgrader with reasonable defaults. Frames are sent as binary
// messages, so the read buffer is sized for images.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketMessage represents a message sent to a live scan client.
type WebSocketMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// WebSocketRequest is a control message from a live scan client. Frames are
// not control messages; they arrive as binary PNG, JPEG or BMP messages.
type WebSocketRequest struct {
	Type        string `json:"type"` // "start", "stop" or "settings"
	TimeoutMs   int    `json:"timeout_ms,omitempty"`
	ViewFinder  string `json:"viewfinder,omitempty"`
	Rotation    *int   `json:"rotation,omitempty"`
	MarkerColor string `json:"marker_color,omitempty"`
	Save        *bool  `json:"save,omitempty"`
}

// WebSocketError is the payload of an "error" message.
type WebSocketError struct {
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
}

// PropertyValue is the payload of a "property" message.
type PropertyValue struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// wsWriter serializes writes from the reader loop and the session
// dispatcher.
type wsWriter struct {
	mu   sync.Mutex
	conn WebSocketConnWriter
	s    *Server
}

func (w *wsWriter) send(msg WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		w.s.logger.Error("Failed to marshal WebSocket message", "error", err)
		return
	}

	w.mu.Lock()
	err = w.conn.WriteMessage(websocket.TextMessage, data)
	w.mu.Unlock()
	if err != nil {
		w.s.logger.Debug("Failed to send WebSocket message", "type", msg.Type, "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

func (w *wsWriter) sendError(errorType, message string) {
	w.send(WebSocketMessage{Type: "error", Payload: WebSocketError{ErrorType: errorType, Message: message}})
}

// liveScan binds one WebSocket client to one scan session. The client is the
// session's frame source: every need_frame message is answered with a
// binary frame.
type liveScan struct {
	server  *Server
	out     *wsWriter
	session *scanner.Session
	save    atomic.Bool
}

// scanWebSocketHandler handles WebSocket connections for live scanning.
func (s *Server) scanWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.logger.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(conn)
}

// handleWebSocketConnection runs a live scan session for conn until the
// client disconnects.
func (s *Server) handleWebSocketConnection(conn *websocket.Conn) {
	live := s.newLiveScan(conn)
	if !s.track(live.session) {
		live.session.Close()
		return
	}
	defer func() {
		s.untrack(live.session)
		live.session.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket error", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		websocketMessagesTotal.WithLabelValues("received").Inc()

		switch messageType {
		case websocket.TextMessage:
			live.handleMessage(data)
		case websocket.BinaryMessage:
			live.handleFrame(data)
		}
	}
}

func (s *Server) newLiveScan(conn WebSocketConnWriter) *liveScan {
	live := &liveScan{
		server: s,
		out:    &wsWriter{conn: conn, s: s},
	}
	live.save.Store(true)

	opts := s.session
	opts.Source = nil
	opts.Observer = live
	live.session = scanner.NewSession(opts)
	return live
}

// handleMessage processes a control message.
func (l *liveScan) handleMessage(data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		l.out.sendError("invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	switch req.Type {
	case "start":
		if !l.applySettings(req) {
			return
		}
		timeout := l.server.scanTimeout
		if req.TimeoutMs > 0 {
			timeout = time.Duration(req.TimeoutMs) * time.Millisecond
		}
		l.session.Start(timeout)
	case "stop":
		l.session.Stop()
	case "settings":
		l.applySettings(req)
	default:
		l.out.sendError("invalid_request", "Unsupported request type: "+req.Type)
	}
}

// applySettings applies the optional settings of req. It reports false and
// tells the client when a value is invalid; nothing is applied in that case.
func (l *liveScan) applySettings(req WebSocketRequest) bool {
	var (
		vf  image.Rectangle
		rot prepare.Rotation
		err error
	)
	if req.ViewFinder != "" {
		if vf, err = config.ParseViewFinder(req.ViewFinder); err != nil {
			l.out.sendError("invalid_request", err.Error())
			return false
		}
	}
	if req.Rotation != nil {
		if rot = prepare.NormalizeRotation(*req.Rotation); !rot.Valid() {
			l.out.sendError("invalid_request", fmt.Sprintf("unsupported rotation %d", *req.Rotation))
			return false
		}
	}
	if req.MarkerColor != "" {
		if _, err = overlay.ParseColor(req.MarkerColor); err != nil {
			l.out.sendError("invalid_request", err.Error())
			return false
		}
	}

	if req.ViewFinder != "" {
		l.session.SetViewFinderRect(vf)
	}
	if req.Rotation != nil {
		l.session.SetRotation(rot)
	}
	if req.MarkerColor != "" {
		_ = l.session.SetMarkerColorString(req.MarkerColor)
	}
	if req.Save != nil {
		l.save.Store(*req.Save)
	}
	return true
}

// handleFrame decodes a binary frame and offers it to the session.
func (l *liveScan) handleFrame(data []byte) {
	img, _, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		websocketFramesTotal.WithLabelValues("invalid").Inc()
		l.out.sendError("invalid_frame", err.Error())
		return
	}
	if !l.session.DeliverFrame(img) {
		websocketFramesTotal.WithLabelValues("dropped").Inc()
		l.out.send(WebSocketMessage{Type: "frame_dropped"})
		return
	}
	websocketFramesTotal.WithLabelValues("accepted").Inc()
}

func (l *liveScan) NeedFrame() {
	l.out.send(WebSocketMessage{Type: "need_frame"})
}

func (l *liveScan) StateChanged(state scanner.ScanState) {
	l.out.send(WebSocketMessage{Type: "state", Payload: state})
}

func (l *liveScan) GrabbingChanged(grabbing bool) {
	l.out.send(WebSocketMessage{Type: "grabbing", Payload: grabbing})
}

func (l *liveScan) PropertyChanged(p scanner.Property) {
	value := PropertyValue{Name: p.String()}
	switch p {
	case scanner.PropertyViewFinderRect:
		r := l.session.ViewFinderRect()
		value.Value = fmt.Sprintf("%d,%d,%d,%d", r.Min.X, r.Min.Y, r.Dx(), r.Dy())
	case scanner.PropertyRotation:
		value.Value = int(l.session.Rotation())
	case scanner.PropertyMarkerColor:
		value.Value = overlay.FormatColor(l.session.MarkerColor())
	}
	l.out.send(WebSocketMessage{Type: "property", Payload: value})
}

func (l *liveScan) Completed(c scanner.Completion) {
	scanRequestsTotal.WithLabelValues("websocket", outcomeLabel(c)).Inc()
	res := toScanResult(c)
	if c.Result.OK && l.save.Load() {
		res.HistoryID = l.server.remember(c)
	}
	l.out.send(WebSocketMessage{Type: "completed", Payload: res})
}
