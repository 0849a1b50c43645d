package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		line string
		want Command
	}{
		{"hello there", Command{Kind: KindChat, Text: "hello there"}},
		{"", Command{Kind: KindChat}},
		{"/join lounge", Command{Kind: KindJoin, Arg: "lounge"}},
		{"/join   lounge extra", Command{Kind: KindJoin, Arg: "lounge"}},
		{"/join", Command{Kind: KindJoin}},
		{"/create dev", Command{Kind: KindCreate, Arg: "dev"}},
		{"/leave", Command{Kind: KindLeave}},
		{"/rooms", Command{Kind: KindRooms}},
		{"/members", Command{Kind: KindMembers}},
		{"/users", Command{Kind: KindUsers}},
		{"/w bob hi there  friend", Command{Kind: KindWhisper, Arg: "bob", Text: "hi there  friend"}},
		{"/w bob", Command{Kind: KindWhisper, Arg: "bob"}},
		{"/r yo yo", Command{Kind: KindReply, Text: "yo yo"}},
		{"/quit", Command{Kind: KindQuit}},
		{"/help", Command{Kind: KindHelp}},
		{"/dance now", Command{Kind: KindUnknown, Token: "dance"}},
		{"/JOIN lounge", Command{Kind: KindUnknown, Token: "JOIN"}},
		{"/", Command{Kind: KindUnknown, Token: ""}},
		{"/ join", Command{Kind: KindUnknown, Token: ""}},
	}

	for _, tc := range cases {
		t.Run(tc.line, func(t *testing.T) {
			require.Equal(t, tc.want, Parse(tc.line))
		})
	}
}

func TestValidName(t *testing.T) {
	require.NoError(t, validName("bob"))
	require.NoError(t, validName("Bob_42"))
	require.NoError(t, validName("émile"))

	require.Equal(t, CodeReservedPrefix, CodeOf(validName("/bob")))
	require.Equal(t, CodeIllegalCharacters, CodeOf(validName("")))
	require.Equal(t, CodeIllegalCharacters, CodeOf(validName("bob smith")))
	require.Equal(t, CodeIllegalCharacters, CodeOf(validName("bob!")))
}
