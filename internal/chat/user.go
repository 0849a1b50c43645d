package chat

import (
	"sync"
	"unicode"
)

const (
	commandPrefix = '/'
	selfTag       = " (** this is you)"
)

// User is the live state of one connection. The name is empty until login
// succeeds and never changes afterwards.
type User struct {
	mu      sync.RWMutex
	name    string
	room    *Room
	replyTo string

	outMu      sync.Mutex
	closed     bool
	overflowed bool
	pending    []string
	backlog    int
	ready      chan struct{}
}

func newUser(backlog int) *User {
	if backlog <= 0 {
		backlog = defaultSendQueue
	}
	return &User{backlog: backlog, ready: make(chan struct{}, 1)}
}

// Name returns the login name, or "" before authentication.
func (u *User) Name() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.name
}

// Room returns the room the user is in, or nil.
func (u *User) Room() *Room {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.room
}

// ReplyTo returns the name of the last user who sent a private message.
func (u *User) ReplyTo() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.replyTo
}

func (u *User) setName(name string) {
	u.mu.Lock()
	u.name = name
	u.mu.Unlock()
}

// setRoom is only called by Room while it holds its own lock, so membership
// and the back reference change together.
func (u *User) setRoom(r *Room) {
	u.mu.Lock()
	u.room = r
	u.mu.Unlock()
}

func (u *User) setReplyTo(name string) {
	u.mu.Lock()
	u.replyTo = name
	u.mu.Unlock()
}

// Send queues a line without blocking. Lines are discarded only once output
// has stopped: after close, or after the backlog limit cut off a connection
// that stopped reading.
func (u *User) Send(line string) {
	u.outMu.Lock()
	if u.closed {
		u.outMu.Unlock()
		return
	}
	if len(u.pending) >= u.backlog {
		u.overflowed = true
		u.closed = true
		u.pending = nil
	} else {
		u.pending = append(u.pending, line)
	}
	u.outMu.Unlock()
	u.wake()
}

// SendLines queues every line in order.
func (u *User) SendLines(lines ...string) {
	for _, line := range lines {
		u.Send(line)
	}
}

// Overflowed reports whether output was stopped because the backlog limit was
// reached.
func (u *User) Overflowed() bool {
	u.outMu.Lock()
	defer u.outMu.Unlock()
	return u.overflowed
}

// close queues an optional final line and stops accepting output. It is safe
// to call more than once.
func (u *User) close(final string) {
	u.outMu.Lock()
	if u.closed {
		u.outMu.Unlock()
		return
	}
	if final != "" {
		u.pending = append(u.pending, final)
	}
	u.closed = true
	u.outMu.Unlock()
	u.wake()
}

// takePending removes and returns every queued line. open is false once the
// user is closed.
func (u *User) takePending() (lines []string, open bool) {
	u.outMu.Lock()
	defer u.outMu.Unlock()
	lines, u.pending = u.pending, nil
	return lines, !u.closed
}

// next blocks until lines are queued or output has stopped. It returns false
// once the user is closed and nothing is left to write.
func (u *User) next() ([]string, bool) {
	for {
		lines, open := u.takePending()
		if len(lines) > 0 {
			return lines, true
		}
		if !open {
			return nil, false
		}
		<-u.ready
	}
}

func (u *User) wake() {
	select {
	case u.ready <- struct{}{}:
	default:
	}
}

// validName applies the login name policy: letters, digits and underscores,
// never empty, never starting with the command prefix.
func validName(name string) error {
	if name != "" && rune(name[0]) == commandPrefix {
		return newError(CodeReservedPrefix)
	}
	if name == "" {
		return newError(CodeIllegalCharacters)
	}
	for _, r := range name {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return newError(CodeIllegalCharacters)
		}
	}
	return nil
}
