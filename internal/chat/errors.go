package chat

import (
	"errors"
	"fmt"
)

// Code identifies a session-local protocol condition. None of them are fatal
// to the connection or the server; each becomes one notice line.
type Code int

const (
	// Login phase.
	CodeIllegalCharacters Code = iota + 1
	CodeReservedPrefix
	CodeNameTaken

	// Authenticated phase.
	CodeRoomNotFound
	CodeRoomAlreadyExists
	CodeNotInRoom
	CodeTargetNotFound
	CodeNoReplyTarget
	CodeUnknownCommand
	CodeMissingArgument
)

var noticeTemplates = map[Code]string{
	CodeIllegalCharacters: "Sorry, names may only contain letters, digits and underscores.",
	CodeReservedPrefix:    "Sorry, name cannot start with '/'",
	CodeNameTaken:         "Sorry, name taken.",
	CodeRoomNotFound:      "Room '%s' does not exist",
	CodeRoomAlreadyExists: "Room '%s' already exists",
	CodeNotInRoom:         "You are not in a room",
	CodeTargetNotFound:    "User '%s' is not connected",
	CodeNoReplyTarget:     "Nobody to reply to",
	CodeUnknownCommand:    "Unknown command: '/%s'",
	CodeMissingArgument:   "Usage: %s",
}

// Error is a protocol condition reported back to the originating connection.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code Code, args ...any) *Error {
	msg := noticeTemplates[code]
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return &Error{Code: code, Message: msg}
}

// CodeOf returns the protocol code carried by err, or zero.
func CodeOf(err error) Code {
	var chatErr *Error
	if errors.As(err, &chatErr) {
		return chatErr.Code
	}
	return 0
}

// errQuit ends the read loop after an explicit /quit.
var errQuit = errors.New("chat: quit requested")
