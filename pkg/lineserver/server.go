// Package lineserver serves newline-delimited text over plain TCP, the way
// telnet or netcat clients talk.
package lineserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultMaxLineBytes = 4096
)

// Handler serves one accepted connection until it returns.
type Handler func(ctx context.Context, conn *Conn)

// Server wraps the TCP listener lifecycle.
type Server struct {
	Addr         string
	WriteTimeout time.Duration
	MaxLineBytes int

	logger zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// New creates a Server for addr.
func New(addr string, logger zerolog.Logger) *Server {
	return &Server{
		Addr:         addr,
		WriteTimeout: defaultWriteTimeout,
		MaxLineBytes: defaultMaxLineBytes,
		logger:       logger,
		ready:        make(chan struct{}),
	}
}

// ListenAddr blocks until the listener is bound and returns its address.
func (s *Server) ListenAddr() net.Addr {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener.Addr()
}

// ListenAndServe accepts connections until ctx is cancelled. It waits for
// every handler to return before it does.
func (s *Server) ListenAndServe(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("lineserver: handler required")
	}

	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("lineserver: listen %q: %w", s.Addr, err)
	}
	defer listener.Close()

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	close(s.ready)

	stop := context.AfterFunc(ctx, func() {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn().Err(err).Msg("Listener close error.")
		}
	})
	defer stop()

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("TCP transport listening.")

	var conns sync.WaitGroup
	defer conns.Wait()

	for {
		nc, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn().Err(err).Msg("Accept error.")
			continue
		}

		conns.Add(1)
		go func() {
			defer conns.Done()
			conn := newConn(nc, s.WriteTimeout, s.MaxLineBytes, s.logger)
			defer conn.Close()
			handler(ctx, conn)
		}()
	}
}

// Conn is one TCP client seen as a sequence of lines.
type Conn struct {
	nc           net.Conn
	reader       *bufio.Reader
	maxLine      int
	writeTimeout time.Duration
	logger       zerolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newConn(nc net.Conn, writeTimeout time.Duration, maxLine int, logger zerolog.Logger) *Conn {
	if maxLine <= 0 {
		maxLine = defaultMaxLineBytes
	}
	return &Conn{
		nc:           nc,
		reader:       bufio.NewReader(nc),
		maxLine:      maxLine,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// ReadLine returns the next line with every CR and LF removed, or io.EOF
// once the client closes its side. Lines longer than the limit are skipped.
func (c *Conn) ReadLine() (string, error) {
	var (
		buf     []byte
		tooLong bool
	)
	for {
		frag, isPrefix, err := c.reader.ReadLine()
		if err != nil {
			return "", err
		}
		if !tooLong {
			buf = append(buf, frag...)
			tooLong = len(buf) > c.maxLine
		}
		if isPrefix {
			continue
		}
		if tooLong {
			c.logger.Debug().Int("limit", c.maxLine).Msg("Discarded oversize line.")
			buf, tooLong = buf[:0], false
			continue
		}
		return strings.ReplaceAll(string(buf), "\r", ""), nil
	}
}

// WriteLine writes line followed by a newline.
func (c *Conn) WriteLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(c.nc, line+"\n")
	return err
}

// Close closes the connection. Later calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.nc.Close()
	})
	return c.closeErr
}

// RemoteAddr returns the client address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}
