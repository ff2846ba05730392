package detector

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tphakala/okn-go/internal/logger"
)

const (
	// MaxFrameSize bounds a single detector frame.
	MaxFrameSize = 16 << 10

	wsIdleTimeout  = 30 * time.Second
	wsWriteTimeout = 5 * time.Second
)

// WebSocketSource accepts detector frames over websocket connections. It is
// an http.Handler; frames are only accepted while Run is active.
type WebSocketSource struct {
	opts     sourceOptions
	upgrader websocket.Upgrader

	mu    sync.Mutex
	sink  Sink
	conns map[*websocket.Conn]struct{}
}

// NewWebSocketSource creates a websocket detector feed.
func NewWebSocketSource(opts ...Option) *WebSocketSource {
	return &WebSocketSource{
		opts: buildOptions(opts),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

func (s *WebSocketSource) Name() string { return "websocket" }

// Run enables the feed until ctx is cancelled, then closes all connections.
func (s *WebSocketSource) Run(ctx context.Context, sink Sink) error {
	s.mu.Lock()
	if s.sink != nil {
		s.mu.Unlock()
		return ErrSourceRunning
	}
	s.sink = sink
	s.mu.Unlock()

	<-ctx.Done()

	s.mu.Lock()
	s.sink = nil
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	return nil
}

// Clients returns the number of open detector connections.
func (s *WebSocketSource) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *WebSocketSource) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	if sink == nil {
		http.Error(w, "detector feed not running", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.opts.log.Warn("websocket upgrade failed", logger.Error(err))
		return
	}
	if !s.register(conn) {
		_ = conn.Close()
		return
	}
	defer s.unregister(conn)

	s.opts.log.Info("detector connected", logger.String("remote", r.RemoteAddr))
	conn.SetReadLimit(MaxFrameSize)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(wsIdleTimeout)); err != nil {
			return
		}
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.opts.log.Debug("detector connection closed", logger.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		if err := ingest(s.opts, s.Name(), data, sink); err != nil {
			s.opts.log.Debug("rejected detector frame", logger.Error(err))
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if werr := conn.WriteJSON(map[string]string{"error": err.Error()}); werr != nil {
				return
			}
		}
	}
}

// register adds conn unless the feed stopped during the upgrade.
func (s *WebSocketSource) register(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	s.opts.recorder.ClientConnected(s.Name(), 1)
	return true
}

func (s *WebSocketSource) unregister(conn *websocket.Conn) {
	s.mu.Lock()
	if _, ok := s.conns[conn]; ok {
		delete(s.conns, conn)
		s.opts.recorder.ClientConnected(s.Name(), -1)
	}
	s.mu.Unlock()
	_ = conn.Close()
}
