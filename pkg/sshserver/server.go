// Package sshserver exposes the chat over SSH. Each interactive shell gets a
// Terminal that edits input locally and yields cleaned lines.
package sshserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// Handler serves one interactive terminal until it returns.
type Handler func(ctx context.Context, term *Terminal)

// errShellNotRequested indicates the SSH client closed the request stream without asking for a shell.
var errShellNotRequested = errors.New("shell request not received before channel closed")

// Server wraps the SSH listener lifecycle.
type Server struct {
	Addr   string
	Config *ssh.ServerConfig

	// Status, if set, renders the terminal header line.
	Status func() string

	logger zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// New creates a Server with the provided host signer. Clients are not
// authenticated; users pick their name once the shell starts.
func New(addr string, signer ssh.Signer, logger zerolog.Logger) *Server {
	cfg := &ssh.ServerConfig{
		NoClientAuth: true,
	}
	cfg.AddHostKey(signer)

	return &Server{
		Addr:   addr,
		Config: cfg,
		logger: logger,
		ready:  make(chan struct{}),
	}
}

// ListenAddr blocks until the listener is bound and returns its address.
func (s *Server) ListenAddr() net.Addr {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener.Addr()
}

// ListenAndServe starts the SSH server until the context is cancelled or an error occurs.
func (s *Server) ListenAndServe(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("sshserver: handler required")
	}

	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("sshserver: listen %q: %w", s.Addr, err)
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

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("SSH transport listening.")

	var conns sync.WaitGroup
	defer conns.Wait()

	for {
		conn, err := listener.Accept()
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
			s.handleConn(ctx, conn, handler)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, tcpConn net.Conn, handler Handler) {
	var channels sync.WaitGroup
	defer channels.Wait()
	defer tcpConn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(tcpConn, s.Config)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Handshake failed.")
		return
	}
	defer sshConn.Close()

	logger := s.logger.With().
		Str("remote_addr", sshConn.RemoteAddr().String()).
		Str("client_version", string(sshConn.ClientVersion())).
		Logger()
	logger.Debug().Msg("SSH connection established.")

	go ssh.DiscardRequests(reqs)

	for {
		select {
		case <-ctx.Done():
			return
		case newChannel, ok := <-chans:
			if !ok {
				return
			}
			if newChannel.ChannelType() != "session" {
				newChannel.Reject(ssh.UnknownChannelType, "only session channels are supported")
				continue
			}

			channel, requests, err := newChannel.Accept()
			if err != nil {
				logger.Warn().Err(err).Msg("Channel accept failed.")
				continue
			}

			channels.Add(1)
			go func() {
				defer channels.Done()
				s.serveChannel(ctx, sshConn, channel, requests, handler)
			}()
		}
	}
}

func (s *Server) serveChannel(ctx context.Context, conn *ssh.ServerConn, channel ssh.Channel, requests <-chan *ssh.Request, handler Handler) {
	var pump sync.WaitGroup
	defer pump.Wait()
	defer channel.Close()

	if err := awaitShell(requests); err != nil {
		s.logger.Debug().Err(err).Msg("Session ended before shell.")
		return
	}

	pump.Add(1)
	go func() {
		defer pump.Done()
		for req := range requests {
			handleRequest(req)
		}
	}()

	term := newTerminal(channel, conn.RemoteAddr(), s.Status)
	if err := term.clearScreen(); err != nil {
		s.logger.Debug().Err(err).Msg("Prepare terminal failed.")
		return
	}
	handler(ctx, term)
	_ = term.Close()
}

// awaitShell drains SSH channel requests and blocks until the client requests a shell.
func awaitShell(requests <-chan *ssh.Request) error {
	for req := range requests {
		if handleRequest(req) {
			return nil
		}
	}
	return errShellNotRequested
}

func handleRequest(req *ssh.Request) bool {
	switch req.Type {
	case "shell":
		req.Reply(true, nil)
		return true
	case "pty-req", "env", "window-change", "signal":
		req.Reply(true, nil)
	default:
		req.Reply(false, nil)
	}
	return false
}
