package relay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"SharedBoard/internal/protocol"
	"SharedBoard/internal/state"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBus records publishes and lets tests inject frames from other nodes.
type fakeBus struct {
	mu        sync.Mutex
	published []BusMessage
	in        chan BusMessage
}

func newFakeBus() *fakeBus { return &fakeBus{in: make(chan BusMessage, 16)} }

func (b *fakeBus) Publish(_ context.Context, roomID string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, BusMessage{Room: roomID, Payload: payload})
	return nil
}

func (b *fakeBus) Messages() <-chan BusMessage { return b.in }
func (b *fakeBus) Close() error                { return nil }

func (b *fakeBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, bm := range b.published {
		msg, err := protocol.Decode(bm.Payload)
		if err == nil {
			out = append(out, msg.Type())
		}
	}
	return out
}

func startRelay(t *testing.T, bus Bus) (*Manager, *httptest.Server) {
	t.Helper()
	m := NewManager(bus, quietLogger())
	srv := httptest.NewServer(m.Router())
	t.Cleanup(func() {
		m.Shutdown()
		srv.Close()
	})
	return m, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, m protocol.Message) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, protocol.MustEncode(m)))
}

func read(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := protocol.Decode(data)
	require.NoError(t, err)
	return msg
}

func join(t *testing.T, srv *httptest.Server, roomID, username string) (*websocket.Conn, protocol.RoomSnapshot) {
	t.Helper()
	conn := dial(t, srv)
	send(t, conn, protocol.Join{RoomID: roomID, Username: username})
	snap, ok := read(t, conn).(protocol.RoomSnapshot)
	require.True(t, ok, "first reply to join is the room snapshot")
	return conn, snap
}

func stroke(id, author string, pts ...float64) state.Stroke {
	st := state.Stroke{ID: id, Author: author, Tool: state.ToolPen, Color: "#000000", Width: 2}
	for i := 0; i+1 < len(pts); i += 2 {
		st.Points = append(st.Points, state.Point{X: pts[i], Y: pts[i+1]})
	}
	return st
}

func getRoom(t *testing.T, srv *httptest.Server, roomID string) (RoomView, int) {
	t.Helper()
	resp, err := http.Get(srv.URL + "/rooms/" + roomID)
	require.NoError(t, err)
	defer resp.Body.Close()
	var view RoomView
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	}
	return view, resp.StatusCode
}

func waitForStrokes(t *testing.T, srv *httptest.Server, roomID string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		view, code := getRoom(t, srv, roomID)
		return code == http.StatusOK && len(view.Strokes) == n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJoinGetsSnapshotAndNotifiesOthers(t *testing.T) {
	_, srv := startRelay(t, nil)

	alice, snap := join(t, srv, "room-1", "alice")
	require.Equal(t, "room-1", snap.RoomID)
	require.Empty(t, snap.Strokes)

	send(t, alice, protocol.StrokeDelta{RoomID: "room-1", Stroke: stroke("alice-1", "alice", 0, 0, 5, 5)})
	waitForStrokes(t, srv, "room-1", 1)

	_, snap = join(t, srv, "room-1", "bob")
	require.Len(t, snap.Strokes, 1)
	require.Equal(t, "alice-1", snap.Strokes[0].ID)

	require.Equal(t, protocol.UserJoined{RoomID: "room-1", Username: "bob"}, read(t, alice))
}

func TestStrokesFanOutToOtherMembers(t *testing.T) {
	_, srv := startRelay(t, nil)
	alice, _ := join(t, srv, "room-1", "alice")
	bob, _ := join(t, srv, "room-1", "bob")
	require.IsType(t, protocol.UserJoined{}, read(t, alice))

	st := stroke("bob-1", "bob", 1, 1, 2, 2)
	send(t, bob, protocol.StrokeDelta{RoomID: "room-1", Stroke: st})
	got, ok := read(t, alice).(protocol.StrokeDelta)
	require.True(t, ok)
	require.True(t, got.Stroke.Equal(st))

	send(t, bob, protocol.StrokeRemove{RoomID: "room-1", StrokeID: "bob-1"})
	require.Equal(t, protocol.StrokeRemove{RoomID: "room-1", StrokeID: "bob-1"}, read(t, alice))
	waitForStrokes(t, srv, "room-1", 0)

	send(t, bob, protocol.CursorMove{RoomID: "room-1", Username: "bob", Position: state.Point{X: 3, Y: 4}, Color: "#ff0000"})
	cur, ok := read(t, alice).(protocol.CursorMove)
	require.True(t, ok)
	require.Equal(t, state.Point{X: 3, Y: 4}, cur.Position)
}

func TestFramesForwardedVerbatim(t *testing.T) {
	bus := newFakeBus()
	_, srv := startRelay(t, bus)
	alice, _ := join(t, srv, "room-1", "alice")
	bob, _ := join(t, srv, "room-1", "bob")
	require.IsType(t, protocol.UserJoined{}, read(t, alice))

	frames := [][]byte{
		[]byte(`{"roomId":"room-1","type":"drawing","seq":7,"stroke":{"points":[1,2,3,4],"width":2.5,"color":"#abc","tool":"spray","id":"bob-1"}}`),
		[]byte(`{"type":"cursor-move", "roomId":"room-1","username":"bob","x":1.50,"y":2,"color":"#0f0","pressure":0.3}`),
		[]byte(`{"type":"stroke-remove","strokeId":"bob-1","roomId":"room-1"}`),
	}
	for _, frame := range frames {
		require.NoError(t, bob.WriteMessage(websocket.TextMessage, frame))
		alice.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, got, err := alice.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, string(frame), string(got))
	}

	require.Eventually(t, func() bool {
		bus.mu.Lock()
		defer bus.mu.Unlock()
		return len(bus.published) == 2+len(frames)
	}, 2*time.Second, 10*time.Millisecond)
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for i, frame := range frames {
		require.Equal(t, string(frame), string(bus.published[2+i].Payload))
	}
}

func TestGrowingStrokeReplacesReplicaEntry(t *testing.T) {
	_, srv := startRelay(t, nil)
	alice, _ := join(t, srv, "room-1", "alice")

	send(t, alice, protocol.StrokeDelta{RoomID: "room-1", Stroke: stroke("alice-1", "alice", 0, 0)})
	send(t, alice, protocol.StrokeDelta{RoomID: "room-1", Stroke: stroke("alice-1", "alice", 0, 0, 1, 1)})
	send(t, alice, protocol.StrokeDelta{RoomID: "room-1", Stroke: stroke("alice-1", "alice", 0, 0, 1, 1, 2, 2)})

	require.Eventually(t, func() bool {
		view, _ := getRoom(t, srv, "room-1")
		return len(view.Strokes) == 1 && len(view.Strokes[0].Points) == 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCloseBroadcastsUserLeft(t *testing.T) {
	_, srv := startRelay(t, nil)
	alice, _ := join(t, srv, "room-1", "alice")
	bob, _ := join(t, srv, "room-1", "bob")
	require.IsType(t, protocol.UserJoined{}, read(t, alice))

	bob.Close()
	require.Equal(t, protocol.UserLeft{RoomID: "room-1", Username: "bob"}, read(t, alice))

	view, code := getRoom(t, srv, "room-1")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, []string{"alice"}, view.Members)
}

func TestEmptyRoomIsDiscarded(t *testing.T) {
	_, srv := startRelay(t, nil)
	alice, _ := join(t, srv, "room-1", "alice")
	send(t, alice, protocol.StrokeDelta{RoomID: "room-1", Stroke: stroke("alice-1", "alice", 0, 0)})
	waitForStrokes(t, srv, "room-1", 1)

	alice.Close()
	require.Eventually(t, func() bool {
		_, code := getRoom(t, srv, "room-1")
		return code == http.StatusNotFound
	}, 2*time.Second, 10*time.Millisecond)

	_, snap := join(t, srv, "room-1", "bob")
	require.Empty(t, snap.Strokes)
}

func TestRoomsAreIsolated(t *testing.T) {
	_, srv := startRelay(t, nil)
	alice, _ := join(t, srv, "room-1", "alice")
	bob, _ := join(t, srv, "room-1", "bob")
	require.IsType(t, protocol.UserJoined{}, read(t, alice))
	carol, _ := join(t, srv, "room-2", "carol")

	send(t, carol, protocol.StrokeDelta{RoomID: "room-2", Stroke: stroke("carol-1", "carol", 9, 9)})
	waitForStrokes(t, srv, "room-2", 1)

	// The next frame alice sees is bob's, not carol's.
	send(t, bob, protocol.CursorMove{RoomID: "room-1", Username: "bob", Position: state.Point{X: 1, Y: 1}})
	require.IsType(t, protocol.CursorMove{}, read(t, alice))

	view, _ := getRoom(t, srv, "room-1")
	require.Empty(t, view.Strokes)
}

func TestMessagesBeforeJoinAreDropped(t *testing.T) {
	_, srv := startRelay(t, nil)
	conn := dial(t, srv)

	send(t, conn, protocol.StrokeDelta{RoomID: "room-1", Stroke: stroke("x-1", "mallory", 0, 0)})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"drawing"`)))
	send(t, conn, protocol.Join{RoomID: "room-1", Username: "mallory"})

	snap, ok := read(t, conn).(protocol.RoomSnapshot)
	require.True(t, ok)
	require.Empty(t, snap.Strokes)
}

func TestRelayOnlyTypesFromClientsAreDropped(t *testing.T) {
	_, srv := startRelay(t, nil)
	alice, _ := join(t, srv, "room-1", "alice")
	bob, _ := join(t, srv, "room-1", "bob")
	require.IsType(t, protocol.UserJoined{}, read(t, alice))

	send(t, bob, protocol.UserLeft{RoomID: "room-1", Username: "alice"})
	send(t, bob, protocol.RoomSnapshot{RoomID: "room-1"})
	send(t, bob, protocol.CursorMove{RoomID: "room-1", Username: "bob", Position: state.Point{X: 7, Y: 7}})

	require.IsType(t, protocol.CursorMove{}, read(t, alice))
}

func TestHTTPRoutes(t *testing.T) {
	_, srv := startRelay(t, nil)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, code := getRoom(t, srv, "nowhere")
	require.Equal(t, http.StatusNotFound, code)
}

func TestBusTraffic(t *testing.T) {
	bus := newFakeBus()
	m, srv := startRelay(t, bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	alice, _ := join(t, srv, "room-1", "alice")
	require.Eventually(t, func() bool {
		types := bus.types()
		return len(types) == 1 && types[0] == protocol.TypeUserJoined
	}, 2*time.Second, 10*time.Millisecond)

	// A stroke drawn on another node reaches local members and the replica.
	remote := stroke("dave-1", "dave", 4, 4, 5, 5)
	bus.in <- BusMessage{Room: "room-1", Payload: protocol.MustEncode(protocol.StrokeDelta{RoomID: "room-1", Stroke: remote})}
	got, ok := read(t, alice).(protocol.StrokeDelta)
	require.True(t, ok)
	require.Equal(t, "dave-1", got.Stroke.ID)
	waitForStrokes(t, srv, "room-1", 1)

	// Frames for rooms with no local members and mismatched rooms are ignored.
	bus.in <- BusMessage{Room: "room-9", Payload: protocol.MustEncode(protocol.StrokeDelta{RoomID: "room-9", Stroke: remote})}
	bus.in <- BusMessage{Room: "room-1", Payload: protocol.MustEncode(protocol.StrokeDelta{RoomID: "room-2", Stroke: remote})}
	bus.in <- BusMessage{Room: "room-1", Payload: protocol.MustEncode(protocol.UserLeft{RoomID: "room-1", Username: "dave"})}
	require.Equal(t, protocol.UserLeft{RoomID: "room-1", Username: "dave"}, read(t, alice))

	send(t, alice, protocol.StrokeDelta{RoomID: "room-1", Stroke: stroke("alice-1", "alice", 0, 0)})
	require.Eventually(t, func() bool {
		types := bus.types()
		return len(types) == 2 && types[1] == protocol.TypeStrokeDelta
	}, 2*time.Second, 10*time.Millisecond)
}
