package chat

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoomJoinAnnouncesToOtherMembers(t *testing.T) {
	room := newRoom("lounge")
	alice := namedUser("alice")
	bob := namedUser("bob")

	require.True(t, room.join(alice))
	require.Equal(t, []string{"entering room: lounge"}, drain(alice))

	require.True(t, room.join(bob))
	require.Equal(t, []string{"* new user joined chat: bob"}, drain(alice))
	require.Equal(t, []string{"entering room: lounge"}, drain(bob))

	require.Same(t, room, bob.Room())
	require.Equal(t, []*User{alice, bob}, room.Members())

	// joining twice keeps a single membership
	require.False(t, room.join(bob))
	require.Equal(t, 2, room.Len())
}

func TestRoomLeaveFlagsLeaver(t *testing.T) {
	room := newRoom("lounge")
	alice := namedUser("alice")
	bob := namedUser("bob")
	room.join(alice)
	room.join(bob)
	drain(alice)
	drain(bob)

	require.True(t, room.leave(bob))
	require.Equal(t, []string{"* user has left chat: bob"}, drain(alice))
	require.Equal(t, []string{"* user has left chat: bob (** this is you)"}, drain(bob))
	require.Nil(t, bob.Room())
	require.False(t, room.Has(bob))

	require.False(t, room.leave(bob))
	require.Empty(t, drain(alice))
}

func TestRoomBroadcastIncludesSender(t *testing.T) {
	room := newRoom("chat")
	alice := namedUser("alice")
	bob := namedUser("bob")
	room.join(alice)
	room.join(bob)
	drain(alice)
	drain(bob)

	room.Broadcast(alice, "alice: hello")
	require.Equal(t, []string{"alice: hello"}, drain(alice))
	require.Equal(t, []string{"alice: hello"}, drain(bob))
}

func TestUserCloseStopsDelivery(t *testing.T) {
	u := namedUser("carol")
	u.Send("one")
	u.close("BYE")
	u.close("again")
	u.Send("two")

	var got []string
	for {
		lines, ok := u.next()
		if !ok {
			break
		}
		got = append(got, lines...)
	}
	require.Equal(t, []string{"one", "BYE"}, got)
}

func TestUserSendKeepsEveryLineBelowBacklog(t *testing.T) {
	u := newUser(300)
	for i := range 300 {
		u.Send(fmt.Sprintf("line %d", i))
	}

	lines := drain(u)
	require.Len(t, lines, 300)
	require.Equal(t, "line 299", lines[299])
	require.False(t, u.Overflowed())
}

func TestUserOverflowStopsOutput(t *testing.T) {
	u := newUser(2)
	u.SendLines("a", "b", "c")
	require.True(t, u.Overflowed())

	lines, ok := u.next()
	require.False(t, ok)
	require.Empty(t, lines)

	u.Send("d")
	require.Empty(t, drain(u))
}

func namedUser(name string) *User {
	u := newUser(64)
	u.setName(name)
	return u
}

// drain returns every queued line without blocking.
func drain(u *User) []string {
	lines, _ := u.takePending()
	return lines
}
