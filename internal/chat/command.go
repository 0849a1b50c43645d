package chat

import "strings"

// Kind enumerates the forms an authenticated input line can take.
type Kind int

const (
	KindChat Kind = iota
	KindJoin
	KindLeave
	KindCreate
	KindRooms
	KindMembers
	KindUsers
	KindWhisper
	KindReply
	KindQuit
	KindHelp
	KindUnknown
)

var commandKinds = map[string]Kind{
	"join":    KindJoin,
	"leave":   KindLeave,
	"create":  KindCreate,
	"rooms":   KindRooms,
	"members": KindMembers,
	"users":   KindUsers,
	"w":       KindWhisper,
	"r":       KindReply,
	"quit":    KindQuit,
	"help":    KindHelp,
}

var commandHelp = []string{
	"/join <room>      join a room, leaving the current one",
	"/leave            leave the current room",
	"/create <room>    create a room",
	"/rooms            list rooms and member counts",
	"/members          list members of the current room",
	"/users            list connected users",
	"/w <name> <text>  send a private message",
	"/r <text>         reply to the last private message",
	"/quit             disconnect",
}

// Command is a parsed input line.
type Command struct {
	Kind Kind
	// Token is the command word without the prefix; set for KindUnknown.
	Token string
	// Arg is the room or user name for join, create and whisper.
	Arg string
	// Text is the chat text, or the message body for whisper and reply.
	Text string
}

// Parse classifies a line. It never fails: unrecognized command words
// produce KindUnknown, and a bare prefix yields an empty token.
func Parse(line string) Command {
	if line == "" || rune(line[0]) != commandPrefix {
		return Command{Kind: KindChat, Text: line}
	}

	token, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimLeft(rest, " ")

	kind, ok := commandKinds[token]
	if !ok {
		return Command{Kind: KindUnknown, Token: token}
	}

	cmd := Command{Kind: kind}
	switch kind {
	case KindJoin, KindCreate:
		if fields := strings.Fields(rest); len(fields) > 0 {
			cmd.Arg = fields[0]
		}
	case KindWhisper:
		name, text, _ := strings.Cut(rest, " ")
		cmd.Arg = name
		cmd.Text = strings.TrimLeft(text, " ")
	case KindReply:
		cmd.Text = rest
	}
	return cmd
}
