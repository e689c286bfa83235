package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"segcheck/internal/coordinator"
	"segcheck/internal/logging"
	"segcheck/internal/protocol"
)

// conn is one WebSocket session. The reader runs on the handler goroutine;
// writeLoop is the only goroutine that writes to ws.
type conn struct {
	id     string
	ws     *websocket.Conn
	send   chan protocol.Response
	done   chan struct{}
	logger *slog.Logger

	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

func newConn(id string, ws *websocket.Conn, buffer int, logger *slog.Logger) *conn {
	return &conn{
		id:     id,
		ws:     ws,
		send:   make(chan protocol.Response, buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// offer queues resp without blocking.
func (c *conn) offer(resp protocol.Response) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- resp:
		return true
	default:
		logging.WarnWithContext(c.logger, "send buffer full, message dropped", "send_buffer_full",
			logging.String(logging.FieldMessageType, string(resp.MessageType)),
			logging.String(logging.FieldErrorHint, "raise server.send_buffer or check the client's network"),
			logging.String(logging.FieldImpact, "client missed a notification"),
		)
		return false
	}
}

// deliver queues resp, waiting for buffer space until the connection closes.
func (c *conn) deliver(resp protocol.Response) bool {
	select {
	case c.send <- resp:
		return true
	case <-c.done:
		return false
	}
}

func (c *conn) shutdown(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
}

func (c *conn) writeLoop(keepAlive, writeTimeout time.Duration) {
	ticker := time.NewTicker(keepAlive)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case resp := <-c.send:
			if err := c.write(resp, writeTimeout); err != nil {
				c.logger.Debug("write failed", logging.Error(err))
				c.shutdown(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ticker.C:
			if err := c.write(protocol.Response{ClientID: c.id, MessageType: protocol.TypeKeepAlive}, writeTimeout); err != nil {
				c.shutdown(websocket.CloseAbnormalClosure, "")
				return
			}
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				c.shutdown(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-c.done:
			c.drain(writeTimeout)
			if c.closeCode != websocket.CloseAbnormalClosure {
				msg := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
				_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
			}
			return
		}
	}
}

func (c *conn) drain(writeTimeout time.Duration) {
	for {
		select {
		case resp := <-c.send:
			if err := c.write(resp, writeTimeout); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *conn) write(resp protocol.Response, timeout time.Duration) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.ws.WriteJSON(resp)
}

// readLoop handles frames until the peer goes away, the idle deadline passes
// or a policy violation closes the session.
func (s *Server) readLoop(ctx context.Context, c *conn) {
	idle := s.idleTimeout
	c.ws.SetReadLimit(s.maxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(idle))
	c.ws.SetPongHandler(func(string) error {
		s.coord.Touch(c.id)
		return c.ws.SetReadDeadline(time.Now().Add(idle))
	})

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			s.logReadError(c, err)
			c.shutdown(websocket.CloseNormalClosure, "")
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(idle))
		if messageType != websocket.TextMessage {
			s.coord.Touch(c.id)
			continue
		}

		req, err := protocol.DecodeRequest(data)
		if err != nil {
			resp := protocol.ErrorResponse(protocol.TypeError, string(coordinator.KindProtocol), err)
			resp.ClientID = c.id
			if !c.deliver(resp) {
				return
			}
			continue
		}
		resp, ok := s.coord.Handle(ctx, c.id, req)
		if !ok {
			continue
		}
		if !c.deliver(resp) {
			return
		}
		if s.closeOnSessionError && resp.ErrorKind == string(coordinator.KindSession) {
			c.shutdown(websocket.ClosePolicyViolation, "session error")
			return
		}
	}
}

func (s *Server) logReadError(c *conn, err error) {
	var netErr interface{ Timeout() bool }
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		c.logger.Debug("connection closed by client")
	case errors.As(err, &netErr) && netErr.Timeout():
		logging.WarnWithContext(c.logger, "connection idle timeout", "connection_idle",
			logging.Duration("idle_timeout", s.idleTimeout),
			logging.String(logging.FieldErrorHint, "client stopped sending keep-alives"),
			logging.String(logging.FieldImpact, "session closed and its segment lock released"),
		)
	default:
		c.logger.Debug("connection read ended", logging.Error(err))
	}
}
