package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"SharedBoard/internal/state"
)

var (
	ErrMalformed    = errors.New("malformed message")
	ErrUnknownType  = errors.New("unknown message type")
	ErrMissingField = errors.New("missing required field")
)

// wire is the union of every field any message type uses. Numbers are
// pointers so that a missing coordinate is distinguishable from zero.
type wire struct {
	Type     string          `json:"type"`
	RoomID   string          `json:"roomId,omitempty"`
	Username string          `json:"username,omitempty"`
	Strokes  *[]state.Stroke `json:"strokes,omitempty"`
	Stroke   *state.Stroke   `json:"stroke,omitempty"`
	StrokeID string          `json:"strokeId,omitempty"`
	X        *float64        `json:"x,omitempty"`
	Y        *float64        `json:"y,omitempty"`
	Color    string          `json:"color,omitempty"`
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

// checkStroke validates the fields every renderer needs. Unknown tools pass.
func checkStroke(field string, st state.Stroke) error {
	if len(st.Points) == 0 {
		return missing(field + ".points")
	}
	if st.Color == "" {
		return missing(field + ".color")
	}
	if !(st.Width > 0) {
		return fmt.Errorf("%w: %s.width must be positive, got %v", ErrMalformed, field, st.Width)
	}
	return nil
}

// Encode serializes one of this package's message types.
func Encode(m Message) ([]byte, error) {
	var w wire
	switch m := m.(type) {
	case Join:
		w = wire{Type: TypeJoin, RoomID: m.RoomID, Username: m.Username}
	case RoomSnapshot:
		strokes := m.Strokes
		if strokes == nil {
			strokes = []state.Stroke{}
		}
		w = wire{Type: TypeRoomSnapshot, RoomID: m.RoomID, Strokes: &strokes}
	case UserJoined:
		w = wire{Type: TypeUserJoined, RoomID: m.RoomID, Username: m.Username}
	case UserLeft:
		w = wire{Type: TypeUserLeft, RoomID: m.RoomID, Username: m.Username}
	case StrokeDelta:
		st := m.Stroke
		w = wire{Type: TypeStrokeDelta, RoomID: m.RoomID, Stroke: &st}
	case StrokeRemove:
		w = wire{Type: TypeStrokeRemove, RoomID: m.RoomID, StrokeID: m.StrokeID}
	case CursorMove:
		x, y := m.Position.X, m.Position.Y
		w = wire{Type: TypeCursorMove, RoomID: m.RoomID, Username: m.Username, X: &x, Y: &y, Color: m.Color}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, m)
	}
	return json.Marshal(w)
}

// MustEncode is Encode for messages built by this process, which cannot fail.
func MustEncode(m Message) []byte {
	data, err := Encode(m)
	if err != nil {
		panic(err)
	}
	return data
}

// Decode parses and validates one message.
func Decode(data []byte) (Message, error) {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	switch w.Type {
	case "":
		return nil, missing("type")
	case TypeJoin:
		if w.RoomID == "" {
			return nil, missing("roomId")
		}
		if w.Username == "" {
			return nil, missing("username")
		}
		return Join{RoomID: w.RoomID, Username: w.Username}, nil
	case TypeRoomSnapshot:
		if w.RoomID == "" {
			return nil, missing("roomId")
		}
		if w.Strokes == nil {
			return nil, missing("strokes")
		}
		for i, st := range *w.Strokes {
			if err := checkStroke(fmt.Sprintf("strokes[%d]", i), st); err != nil {
				return nil, err
			}
		}
		return RoomSnapshot{RoomID: w.RoomID, Strokes: *w.Strokes}, nil
	case TypeUserJoined, TypeUserLeft:
		if w.Username == "" {
			return nil, missing("username")
		}
		if w.Type == TypeUserJoined {
			return UserJoined{RoomID: w.RoomID, Username: w.Username}, nil
		}
		return UserLeft{RoomID: w.RoomID, Username: w.Username}, nil
	case TypeStrokeDelta:
		if w.RoomID == "" {
			return nil, missing("roomId")
		}
		if w.Stroke == nil {
			return nil, missing("stroke")
		}
		if err := checkStroke("stroke", *w.Stroke); err != nil {
			return nil, err
		}
		return StrokeDelta{RoomID: w.RoomID, Stroke: *w.Stroke}, nil
	case TypeStrokeRemove:
		if w.RoomID == "" {
			return nil, missing("roomId")
		}
		if w.StrokeID == "" {
			return nil, missing("strokeId")
		}
		return StrokeRemove{RoomID: w.RoomID, StrokeID: w.StrokeID}, nil
	case TypeCursorMove:
		if w.RoomID == "" {
			return nil, missing("roomId")
		}
		if w.Username == "" {
			return nil, missing("username")
		}
		if w.X == nil || w.Y == nil {
			return nil, missing("x/y")
		}
		return CursorMove{
			RoomID:   w.RoomID,
			Username: w.Username,
			Position: state.Point{X: *w.X, Y: *w.Y},
			Color:    w.Color,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, w.Type)
	}
}
