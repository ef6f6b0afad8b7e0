// Package protocol defines the messages exchanged between drawing clients
// and the room relay. Every message is a JSON object whose "type" field
// selects one of the concrete types below; Decode rejects anything else.
package protocol

import (
	"SharedBoard/internal/state"
)

// Wire names of the message types.
const (
	TypeJoin         = "join"
	TypeRoomSnapshot = "room-snapshot"
	TypeUserJoined   = "user-joined"
	TypeUserLeft     = "user-left"
	TypeStrokeDelta  = "drawing"
	TypeStrokeRemove = "stroke-remove"
	TypeCursorMove   = "cursor-move"
)

// Message is implemented by every concrete message type.
type Message interface {
	Type() string
	Room() string
}

// Join asks the relay to enter a room.
type Join struct {
	RoomID   string
	Username string
}

// RoomSnapshot bootstraps a newly joined client with the room's strokes.
type RoomSnapshot struct {
	RoomID  string
	Strokes []state.Stroke
}

// UserJoined tells existing members that someone entered.
type UserJoined struct {
	RoomID   string
	Username string
}

// UserLeft tells members that a participant's connection closed.
type UserLeft struct {
	RoomID   string
	Username string
}

// StrokeDelta carries the whole current state of one stroke. Receivers
// upsert it by stroke id.
type StrokeDelta struct {
	RoomID string
	Stroke state.Stroke
}

// StrokeRemove withdraws a stroke, sent when its author undoes it.
type StrokeRemove struct {
	RoomID   string
	StrokeID string
}

// CursorMove is a presence update.
type CursorMove struct {
	RoomID   string
	Username string
	Position state.Point
	Color    string
}

func (Join) Type() string         { return TypeJoin }
func (RoomSnapshot) Type() string { return TypeRoomSnapshot }
func (UserJoined) Type() string   { return TypeUserJoined }
func (UserLeft) Type() string     { return TypeUserLeft }
func (StrokeDelta) Type() string  { return TypeStrokeDelta }
func (StrokeRemove) Type() string { return TypeStrokeRemove }
func (CursorMove) Type() string   { return TypeCursorMove }

func (m Join) Room() string         { return m.RoomID }
func (m RoomSnapshot) Room() string { return m.RoomID }
func (m UserJoined) Room() string   { return m.RoomID }
func (m UserLeft) Room() string     { return m.RoomID }
func (m StrokeDelta) Room() string  { return m.RoomID }
func (m StrokeRemove) Room() string { return m.RoomID }
func (m CursorMove) Room() string   { return m.RoomID }
