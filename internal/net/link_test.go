package net

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLink(t *testing.T) {
	link, err := ParseLink("sharedboard://192.168.1.4:8888/design-review")
	require.NoError(t, err)
	require.Equal(t, Link{Addr: "192.168.1.4:8888", RoomID: "design-review"}, link)
	require.Equal(t, "ws://192.168.1.4:8888/ws", link.WebSocketURL())
	require.Equal(t, "sharedboard://192.168.1.4:8888/design-review", link.String())
	require.Equal(t, "http://192.168.1.4:8888/rooms/design-review", link.RoomURL())

	for _, raw := range []string{
		"http://host:8888/room",
		"sharedboard:///room",
		"sharedboard://host:8888/",
		"sharedboard://host:8888",
	} {
		_, err := ParseLink(raw)
		require.ErrorIs(t, err, ErrBadLink, raw)
	}
}
