package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ledzpl/roomchat/internal/registry"
)

const endOfList = "end of list."

// login claims name for u. The name is set before the registry insert so a
// user is never visible to others without one.
func (s *Service) login(u *User, name string) error {
	if err := validName(name); err != nil {
		return err
	}

	u.setName(name)
	if err := s.users.Create(name, u); err != nil {
		u.setName("")
		if errors.Is(err, registry.ErrAlreadyExists) {
			return newError(CodeNameTaken)
		}
		return err
	}
	return nil
}

// dispatch executes one parsed line for an authenticated user.
func (s *Service) dispatch(u *User, cmd Command) error {
	switch cmd.Kind {
	case KindChat:
		s.say(u, cmd.Text)
		return nil
	case KindJoin:
		return s.join(u, cmd.Arg)
	case KindLeave:
		return s.leave(u)
	case KindCreate:
		return s.create(u, cmd.Arg)
	case KindRooms:
		s.listRooms(u)
		return nil
	case KindMembers:
		return s.listMembers(u)
	case KindUsers:
		s.listUsers(u)
		return nil
	case KindWhisper:
		return s.whisper(u, cmd.Arg, cmd.Text)
	case KindReply:
		return s.reply(u, cmd.Text)
	case KindQuit:
		return errQuit
	case KindHelp:
		u.SendLines(commandHelp...)
		u.Send(endOfList)
		return nil
	default:
		return newError(CodeUnknownCommand, cmd.Token)
	}
}

// say broadcasts text to the user's room. Roomless users and blank text
// produce no output at all.
func (s *Service) say(u *User, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	room := u.Room()
	if room == nil {
		return
	}
	room.Broadcast(u, fmt.Sprintf("%s: %s", u.Name(), text))
}

func (s *Service) join(u *User, name string) error {
	if name == "" {
		return newError(CodeMissingArgument, "/join <room>")
	}
	room, err := s.rooms.Lookup(name)
	if err != nil {
		return newError(CodeRoomNotFound, name)
	}

	if current := u.Room(); current != nil {
		current.leave(u)
	}
	room.join(u)
	s.sendMembers(u, room)

	s.logger.Debug().Str("user", u.Name()).Str("room", name).Msg("User joined room.")
	return nil
}

func (s *Service) leave(u *User) error {
	room := u.Room()
	if room == nil || !room.leave(u) {
		return newError(CodeNotInRoom)
	}
	s.logger.Debug().Str("user", u.Name()).Str("room", room.Name).Msg("User left room.")
	return nil
}

func (s *Service) create(u *User, name string) error {
	if name == "" {
		return newError(CodeMissingArgument, "/create <room>")
	}
	if err := validName(name); err != nil {
		return err
	}
	if err := s.rooms.Create(name, newRoom(name)); err != nil {
		return newError(CodeRoomAlreadyExists, name)
	}

	u.Send(fmt.Sprintf("Room '%s' created!", name))
	s.logger.Info().Str("user", u.Name()).Str("room", name).Msg("Room created.")
	return nil
}

func (s *Service) listRooms(u *User) {
	u.Send("Active rooms are:")
	for name, room := range s.rooms.All() {
		u.Send(fmt.Sprintf("* %s (%d)", name, room.Len()))
	}
	u.Send(endOfList)
}

func (s *Service) listMembers(u *User) error {
	room := u.Room()
	if room == nil {
		return newError(CodeNotInRoom)
	}
	s.sendMembers(u, room)
	return nil
}

func (s *Service) sendMembers(u *User, room *Room) {
	for _, m := range room.Members() {
		u.Send(listEntry(m.Name(), m == u))
	}
	u.Send(endOfList)
}

func (s *Service) listUsers(u *User) {
	for name, other := range s.users.All() {
		u.Send(listEntry(name, other == u))
	}
	u.Send(endOfList)
}

func listEntry(name string, self bool) string {
	if self {
		return "* " + name + selfTag
	}
	return "* " + name
}

func (s *Service) whisper(u *User, target, text string) error {
	if target == "" || strings.TrimSpace(text) == "" {
		return newError(CodeMissingArgument, "/w <name> <text>")
	}
	to, err := s.users.Lookup(target)
	if err != nil {
		return newError(CodeTargetNotFound, target)
	}
	s.deliverPrivate(u, to, text)
	return nil
}

func (s *Service) reply(u *User, text string) error {
	if strings.TrimSpace(text) == "" {
		return newError(CodeMissingArgument, "/r <text>")
	}
	target := u.ReplyTo()
	if target == "" {
		return newError(CodeNoReplyTarget)
	}
	to, err := s.users.Lookup(target)
	if err != nil {
		return newError(CodeNoReplyTarget)
	}
	s.deliverPrivate(u, to, text)
	return nil
}

// deliverPrivate sends the tagged line to both ends and records the sender
// as the target's reply address.
func (s *Service) deliverPrivate(from, to *User, text string) {
	line := fmt.Sprintf("* private %s -> %s: %s", from.Name(), to.Name(), text)
	from.Send(line)
	if to != from {
		to.Send(line)
	}
	to.setReplyTo(from.Name())
}

// disconnect leaves the current room and releases the user's name. Running
// it again for the same user has no further effect.
func (s *Service) disconnect(u *User) {
	if room := u.Room(); room != nil {
		room.leave(u)
	}
	if name := u.Name(); name != "" {
		s.users.RemoveIf(name, func(v *User) bool { return v == u })
	}
}
