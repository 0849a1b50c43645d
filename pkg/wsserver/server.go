// Package wsserver carries the line protocol over WebSocket. Each inbound
// text frame may hold several newline-separated lines; each outbound line is
// sent as its own text frame.
package wsserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait       = 10 * time.Second
	maxMessageBytes = 8192
	shutdownTimeout = 5 * time.Second
)

// Handler serves one upgraded connection until it returns.
type Handler func(ctx context.Context, conn *Conn)

// Server wraps the HTTP listener that upgrades /ws requests.
type Server struct {
	Addr string

	// Users, if set, is reported by /healthz.
	Users func() int

	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
	conns    sync.WaitGroup
}

// New creates a Server for addr.
func New(addr string, logger zerolog.Logger) *Server {
	return &Server{
		Addr:   addr,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		ready: make(chan struct{}),
	}
}

// ListenAddr blocks until the listener is bound and returns its address.
func (s *Server) ListenAddr() net.Addr {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener.Addr()
}

// Router builds the HTTP routes. Upgraded connections are handed to handler
// with ctx, so cancelling ctx ends them.
func (s *Server) Router(ctx context.Context, handler Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		body := "ok"
		if s.Users != nil {
			body += " users=" + strconv.Itoa(s.Users())
		}
		_, _ = io.WriteString(w, body+"\n")
	})

	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		s.conns.Add(1)
		defer s.conns.Done()

		ws, err := s.upgrader.Upgrade(w, req, nil)
		if err != nil {
			s.logger.Debug().Err(err).Msg("Upgrade failed.")
			return
		}

		conn := newConn(ws)
		defer conn.Close()
		handler(ctx, conn)
	})

	return r
}

// ListenAndServe serves HTTP until ctx is cancelled, then shuts down and
// waits for upgraded connections to finish.
func (s *Server) ListenAndServe(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("wsserver: handler required")
	}

	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("wsserver: listen %q: %w", s.Addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	close(s.ready)

	srv := &http.Server{
		Handler:           s.Router(ctx, handler),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("WebSocket transport listening.")

	select {
	case err := <-serveErr:
		return fmt.Errorf("wsserver: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("HTTP shutdown error.")
	}
	s.conns.Wait()
	return ctx.Err()
}

// Conn is one WebSocket client seen as a sequence of lines.
type Conn struct {
	ws      *websocket.Conn
	pending []string

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newConn(ws *websocket.Conn) *Conn {
	ws.SetReadLimit(maxMessageBytes)
	return &Conn{ws: ws}
}

// ReadLine returns the next line of the next text frame. A normal close
// from the client ends the stream with io.EOF.
func (c *Conn) ReadLine() (string, error) {
	for len(c.pending) == 0 {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return "", io.EOF
			}
			return "", err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.pending = splitLines(string(data))
	}

	line := c.pending[0]
	c.pending = c.pending[1:]
	return line, nil
}

func splitLines(text string) []string {
	text = strings.TrimSuffix(strings.ReplaceAll(text, "\r", ""), "\n")
	return strings.Split(text, "\n")
}

// WriteLine sends line as one text frame.
func (c *Conn) WriteLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(line))
}

// Close sends a close frame when possible and closes the connection.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// RemoteAddr returns the client address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}
