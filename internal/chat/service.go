/*
Package chat implements the session and command protocol of a line oriented
chat server.

A Service owns the user and room registries. Transports hand every accepted
connection to Service.Serve, which runs the login state machine, routes
commands and chat text, and guarantees registry cleanup when the connection
ends.
*/
package chat

import (
	"github.com/rs/zerolog"

	"github.com/ledzpl/roomchat/internal/logx"
	"github.com/ledzpl/roomchat/internal/registry"
)

const (
	// DefaultRoom is created at startup unless WithRooms overrides it.
	DefaultRoom = "chat"

	defaultServerName = "Batman"
	defaultSendQueue  = 4096
)

// Service holds the shared state every session consults and mutates.
type Service struct {
	users *registry.Registry[*User]
	rooms *registry.Registry[*Room]

	serverName   string
	sendQueue    int
	defaultRooms []string

	logger zerolog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithServerName sets the name shown in the connection greeting.
func WithServerName(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.serverName = name
		}
	}
}

// WithSendQueue sets how many undelivered lines a connection may accumulate
// before it is dropped.
func WithSendQueue(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sendQueue = n
		}
	}
}

// WithRooms replaces the rooms created at startup.
func WithRooms(names ...string) Option {
	return func(s *Service) {
		s.defaultRooms = append([]string(nil), names...)
	}
}

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService constructs a Service with its startup rooms already created.
func NewService(opts ...Option) *Service {
	s := &Service{
		users:        registry.New[*User](),
		rooms:        registry.New[*Room](),
		serverName:   defaultServerName,
		sendQueue:    defaultSendQueue,
		defaultRooms: []string{DefaultRoom},
		logger:       logx.Component("chat"),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, name := range s.defaultRooms {
		if err := s.rooms.Create(name, newRoom(name)); err != nil {
			s.logger.Warn().Str("room", name).Err(err).Msg("Skipping duplicate startup room.")
			continue
		}
		s.logger.Debug().Str("room", name).Msg("Startup room created.")
	}
	return s
}

// UserCount reports the number of authenticated users.
func (s *Service) UserCount() int {
	return s.users.Len()
}

// User returns the connected user with the given name.
func (s *Service) User(name string) (*User, bool) {
	u, err := s.users.Lookup(name)
	return u, err == nil
}

// Room returns the room with the given name.
func (s *Service) Room(name string) (*Room, bool) {
	r, err := s.rooms.Lookup(name)
	return r, err == nil
}
