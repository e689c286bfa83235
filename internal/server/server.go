package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"segcheck/internal/config"
	"segcheck/internal/coordinator"
	"segcheck/internal/logging"
	"segcheck/internal/protocol"
	"segcheck/internal/session"
)

// Coordinator is the request handling surface the server drives.
type Coordinator interface {
	Connect(ctx context.Context, sessionID string) (session.Session, error)
	Disconnect(ctx context.Context, sessionID string) ([]string, error)
	Handle(ctx context.Context, sessionID string, req protocol.Request) (protocol.Response, bool)
	Touch(sessionID string)
	Stats(ctx context.Context) (map[string]int, error)
	Status() coordinator.Snapshot
	UnlockAll(ctx context.Context, origin, requestedBy string) (protocol.Response, error)
}

// Server serves the WebSocket endpoint and the operator API.
type Server struct {
	bind                string
	keepAlive           time.Duration
	idleTimeout         time.Duration
	writeTimeout        time.Duration
	maxMessageBytes     int64
	sendBuffer          int
	closeOnSessionError bool
	operatorToken       string

	coord    Coordinator
	hub      *Hub
	logger   *slog.Logger
	router   *mux.Router
	upgrader websocket.Upgrader

	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	closed   bool
	wg       sync.WaitGroup
	listener net.Listener
	http     *http.Server
}

// New builds a server. hub may be shared with the coordinator's notifier.
func New(cfg *config.Config, coord Coordinator, hub *Hub, logger *slog.Logger) (*Server, error) {
	if cfg == nil || coord == nil {
		return nil, errors.New("server requires config and coordinator")
	}
	if hub == nil {
		hub = NewHub()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		bind:                cfg.Server.Bind,
		keepAlive:           cfg.KeepAliveInterval(),
		idleTimeout:         cfg.IdleTimeout(),
		writeTimeout:        cfg.WriteTimeout(),
		maxMessageBytes:     cfg.Server.MaxMessageBytes,
		sendBuffer:          max(cfg.Server.SendBuffer, 1),
		closeOnSessionError: cfg.Server.CloseOnSessionError,
		operatorToken:       cfg.Server.OperatorToken,
		coord:               coord,
		hub:                 hub,
		logger:              logging.NewComponentLogger(logger, "server"),
		ctx:                 ctx,
		cancel:              cancel,
	}
	s.upgrader = websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      originChecker(cfg.Server.AllowedOrigins),
	}
	s.router = s.routes(cfg.Paths.StaticDir)
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the connection hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start listens on the configured bind address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("server listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "server error", "server_failed", logging.Error(err))
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.ctx.Done():
		}
	}()

	s.logger.Info("server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound listener address, or the configured bind before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

// Close stops accepting connections, closes every session and waits for
// their handlers to finish.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.http.Shutdown(shutdownCtx)

	s.hub.mu.RLock()
	for _, c := range s.hub.conns {
		c.shutdown(websocket.CloseGoingAway, "server shutting down")
	}
	s.hub.mu.RUnlock()
	s.wg.Wait()
}

// track registers a connection handler with Close. It reports false once
// Close has started.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.track() {
		s.writeError(w, http.StatusServiceUnavailable, "server shutting down")
		return
	}
	defer s.wg.Done()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed",
			logging.String(logging.FieldRemoteAddr, r.RemoteAddr),
			logging.Error(err),
		)
		return
	}

	ctx := s.ctx
	sess, err := s.coord.Connect(ctx, strings.TrimSpace(r.URL.Query().Get("client_id")))
	if err != nil {
		logging.WarnWithContext(s.logger, "session rejected", "session_rejected",
			logging.String(logging.FieldRemoteAddr, r.RemoteAddr),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "client reused a client_id that is still connected"),
		)
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session rejected")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeTimeout))
		_ = ws.Close()
		return
	}

	ctx = logging.WithSessionID(ctx, sess.ID)
	logger := s.logger.With(
		logging.String(logging.FieldSessionID, sess.ID),
		logging.String(logging.FieldRemoteAddr, r.RemoteAddr),
	)
	c := newConn(sess.ID, ws, s.sendBuffer, logger)
	s.hub.add(c)
	if s.ctx.Err() != nil {
		c.shutdown(websocket.CloseGoingAway, "server shutting down")
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(s.keepAlive, s.writeTimeout)
	}()

	c.offer(protocol.Response{ClientID: sess.ID, MessageType: protocol.TypeInfo, Info: "connected"})
	s.readLoop(ctx, c)

	c.shutdown(websocket.CloseNormalClosure, "")
	s.hub.remove(c)
	if released, err := s.coord.Disconnect(context.WithoutCancel(ctx), sess.ID); err != nil {
		logger.Debug("disconnect failed", logging.Error(err))
	} else if len(released) > 0 {
		logger.Info("session locks released", logging.Any("segments", released))
	}
	<-writerDone
}

// originChecker accepts requests without an Origin header, same-host
// origins, and any origin listed in allowed. "*" allows everything.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}
