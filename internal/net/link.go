package net

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// LinkScheme prefixes share links handed from one participant to another.
const LinkScheme = "sharedboard"

var ErrBadLink = errors.New("invalid share link")

// Link points at a room on a relay: sharedboard://host:port/room.
type Link struct {
	Addr   string
	RoomID string
}

func ParseLink(raw string) (Link, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Link{}, fmt.Errorf("%w: %w", ErrBadLink, err)
	}
	if u.Scheme != LinkScheme {
		return Link{}, fmt.Errorf("%w: scheme must be %s://", ErrBadLink, LinkScheme)
	}
	if u.Host == "" {
		return Link{}, fmt.Errorf("%w: missing relay address", ErrBadLink)
	}
	room := strings.Trim(u.Path, "/")
	if room == "" {
		return Link{}, fmt.Errorf("%w: missing room", ErrBadLink)
	}
	return Link{Addr: u.Host, RoomID: room}, nil
}

func (l Link) String() string {
	return fmt.Sprintf("%s://%s/%s", LinkScheme, l.Addr, url.PathEscape(l.RoomID))
}

// WebSocketURL is the relay endpoint the link's room is served from.
func (l Link) WebSocketURL() string {
	return (&url.URL{Scheme: "ws", Host: l.Addr, Path: "/ws"}).String()
}

// RoomURL is the relay's HTTP view of the link's room.
func (l Link) RoomURL() string {
	return (&url.URL{Scheme: "http", Host: l.Addr, Path: "/rooms/" + l.RoomID}).String()
}
