package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const loginPrompt = "Login Name?"

// Conn is what a transport provides for one connection: cleaned input lines,
// line output and close. ReadLine returns io.EOF when the stream ends.
type Conn interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
}

// Serve runs the session for conn until the client quits, the stream ends or
// ctx is cancelled. Cleanup always runs exactly once before Serve returns.
func (s *Service) Serve(ctx context.Context, conn Conn) {
	newSession(s, conn).run(ctx)
}

type session struct {
	svc  *Service
	conn Conn
	user *User

	logger   zerolog.Logger
	farewell string

	relay   sync.WaitGroup
	cleanup sync.Once
}

func newSession(svc *Service, conn Conn) *session {
	logCtx := svc.logger.With().Str("session_id", uuid.NewString())
	if ra, ok := conn.(interface{ RemoteAddr() net.Addr }); ok && ra.RemoteAddr() != nil {
		logCtx = logCtx.Str("remote_addr", ra.RemoteAddr().String())
	}

	return &session{
		svc:    svc,
		conn:   conn,
		user:   newUser(svc.sendQueue),
		logger: logCtx.Logger(),
	}
}

func (s *session) run(ctx context.Context) {
	defer s.cleanupSession()

	// Closing the connection unblocks ReadLine, so cancellation never waits
	// on client input.
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()

	s.logger.Info().Msg("Session started.")
	s.startOutboundRelay()
	s.sendGreeting()

	if err := s.readLoop(); err != nil {
		s.handleReadError(ctx, err)
	}
}

func (s *session) sendGreeting() {
	s.user.SendLines(
		fmt.Sprintf("Welcome to the %s chat server!", s.svc.serverName),
		loginPrompt,
	)
}

func (s *session) startOutboundRelay() {
	// The reader goroutine extends s.logger after login; the relay keeps its own copy.
	logger := s.logger

	s.relay.Add(1)
	go func() {
		defer s.relay.Done()
		defer s.conn.Close()

		for {
			lines, ok := s.user.next()
			if !ok {
				if s.user.Overflowed() {
					logger.Warn().Msg("Outbound backlog exceeded, dropping connection.")
				}
				return
			}
			for _, line := range lines {
				if err := s.conn.WriteLine(line); err != nil {
					logger.Debug().Err(err).Msg("Write failed, stopping relay.")
					s.user.close("")
					return
				}
			}
		}
	}()
}

func (s *session) readLoop() error {
	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if err := s.handleLine(line); err != nil {
			if errors.Is(err, errQuit) {
				s.farewell = "BYE"
				return nil
			}
			return err
		}
	}
}

// handleLine treats input as a login attempt until the user has a name, and
// as a command or chat text afterwards. Protocol conditions become a notice
// and never end the session.
func (s *session) handleLine(line string) error {
	if s.user.Name() == "" {
		return s.handleLogin(line)
	}

	err := s.svc.dispatch(s.user, Parse(line))
	var chatErr *Error
	if errors.As(err, &chatErr) {
		s.logger.Debug().Int("code", int(chatErr.Code)).Msg(chatErr.Message)
		s.user.Send(chatErr.Message)
		return nil
	}
	return err
}

func (s *session) handleLogin(line string) error {
	err := s.svc.login(s.user, line)
	var chatErr *Error
	if errors.As(err, &chatErr) {
		s.user.SendLines(chatErr.Message, loginPrompt)
		return nil
	}
	if err != nil {
		return err
	}

	s.logger = s.logger.With().Str("user", line).Logger()
	s.logger.Info().Msg("User logged in.")
	s.user.Send(fmt.Sprintf("Welcome %s!", line))
	return nil
}

func (s *session) handleReadError(ctx context.Context, err error) {
	switch {
	case ctx.Err() != nil, errors.Is(err, net.ErrClosed):
		return
	default:
		s.logger.Warn().Err(err).Msg("Read error.")
	}
}

// cleanupSession releases the user's room membership and name, flushes any
// farewell line and closes the connection. It runs once per session.
func (s *session) cleanupSession() {
	s.cleanup.Do(func() {
		s.svc.disconnect(s.user)
		s.user.close(s.farewell)
		s.relay.Wait()
		_ = s.conn.Close()
		s.logger.Info().Msg("Session closed.")
	})
}
