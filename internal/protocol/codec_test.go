package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"SharedBoard/internal/state"
)

func TestEncodeWireShape(t *testing.T) {
	data, err := Encode(StrokeDelta{RoomID: "r1", Stroke: state.Stroke{
		ID: "a-1", Author: "alice", Tool: state.ToolPen, Color: "#000000", Width: 5,
		Points: state.Points{{X: 0, Y: 0}, {X: 1, Y: 1}},
	}})
	require.NoError(t, err)
	require.JSONEq(t, `{
		"type": "drawing",
		"roomId": "r1",
		"stroke": {"id": "a-1", "author": "alice", "tool": "pen", "color": "#000000", "width": 5, "points": [0,0,1,1]}
	}`, string(data))

	data, err = Encode(RoomSnapshot{RoomID: "r1"})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"room-snapshot","roomId":"r1","strokes":[]}`, string(data))

	data, err = Encode(CursorMove{RoomID: "r1", Username: "bob", Color: "#f00"})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"cursor-move","roomId":"r1","username":"bob","x":0,"y":0,"color":"#f00"}`, string(data))
}

func TestDecodeEveryType(t *testing.T) {
	cases := []Message{
		Join{RoomID: "r1", Username: "alice"},
		RoomSnapshot{RoomID: "r1", Strokes: []state.Stroke{{ID: "b-1", Tool: "pen", Color: "#000", Width: 1, Points: state.Points{{X: 1, Y: 2}}}}},
		UserJoined{RoomID: "r1", Username: "bob"},
		UserLeft{RoomID: "r1", Username: "bob"},
		StrokeDelta{RoomID: "r1", Stroke: state.Stroke{ID: "b-2", Tool: state.ToolEraser, Color: "#fff", Width: 20, Points: state.Points{{X: 3, Y: 4}}}},
		StrokeRemove{RoomID: "r1", StrokeID: "b-2"},
		CursorMove{RoomID: "r1", Username: "bob", Position: state.Point{X: 4, Y: 5}, Color: "#0f0"},
	}
	for _, want := range cases {
		t.Run(want.Type(), func(t *testing.T) {
			got, err := Decode(MustEncode(want))
			require.NoError(t, err)
			require.Equal(t, want, got)
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	cases := map[string]struct {
		input string
		err   error
	}{
		"not json":            {`{`, ErrMalformed},
		"no type":             {`{"roomId":"r1"}`, ErrMissingField},
		"unknown type":        {`{"type":"explode"}`, ErrUnknownType},
		"join without user":   {`{"type":"join","roomId":"r1"}`, ErrMissingField},
		"snapshot no strokes": {`{"type":"room-snapshot","roomId":"r1"}`, ErrMissingField},
		"drawing no stroke":   {`{"type":"drawing","roomId":"r1"}`, ErrMissingField},
		"drawing no points":   {`{"type":"drawing","roomId":"r1","stroke":{"tool":"pen","color":"#000","width":1,"points":[]}}`, ErrMissingField},
		"drawing odd points":  {`{"type":"drawing","roomId":"r1","stroke":{"tool":"pen","points":[1,2,3]}}`, ErrMalformed},
		"drawing no color":    {`{"type":"drawing","roomId":"r1","stroke":{"tool":"pen","width":2,"points":[1,1]}}`, ErrMissingField},
		"drawing empty color": {`{"type":"drawing","roomId":"r1","stroke":{"tool":"pen","color":"","width":2,"points":[1,1]}}`, ErrMissingField},
		"drawing no width":    {`{"type":"drawing","roomId":"r1","stroke":{"tool":"pen","color":"#000","points":[1,1]}}`, ErrMalformed},
		"drawing zero width":  {`{"type":"drawing","roomId":"r1","stroke":{"tool":"pen","color":"#000","width":0,"points":[1,1]}}`, ErrMalformed},
		"drawing neg width":   {`{"type":"drawing","roomId":"r1","stroke":{"tool":"spray","color":"#000","width":-3,"points":[1,1]}}`, ErrMalformed},
		"snapshot bad width":  {`{"type":"room-snapshot","roomId":"r1","strokes":[{"tool":"pen","color":"#000","width":1,"points":[1,1]},{"tool":"pen","color":"#000","width":0,"points":[2,2]}]}`, ErrMalformed},
		"snapshot no color":   {`{"type":"room-snapshot","roomId":"r1","strokes":[{"tool":"pen","width":1,"points":[1,1]}]}`, ErrMissingField},
		"cursor without y":    {`{"type":"cursor-move","roomId":"r1","username":"bob","x":1}`, ErrMissingField},
		"remove without id":   {`{"type":"stroke-remove","roomId":"r1"}`, ErrMissingField},
		"wrong field type":    {`{"type":"join","roomId":7,"username":"a"}`, ErrMalformed},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(tc.input))
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.err), "got %v", err)
		})
	}
}

func TestDecodeKeepsUnknownTool(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"drawing","roomId":"r1","stroke":{"id":"c-1","tool":"spray","color":"#123456","width":2,"points":[1,1]}}`))
	require.NoError(t, err)
	st := msg.(StrokeDelta).Stroke
	require.Equal(t, state.Tool("spray"), st.Tool)
	require.Equal(t, state.ToolPen, st.Tool.Effective())
}

func TestEncodeUnknownMessage(t *testing.T) {
	_, err := Encode(&Join{RoomID: "r1", Username: "a"})
	require.True(t, errors.Is(err, ErrUnknownType))
}
