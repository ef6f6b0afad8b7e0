package net

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"SharedBoard/internal/engine"
	"SharedBoard/internal/relay"
	"SharedBoard/internal/state"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startRelay(t *testing.T) string {
	t.Helper()
	m := relay.NewManager(nil, quietLogger())
	srv := httptest.NewServer(m.Router())
	t.Cleanup(func() {
		m.Shutdown()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

type runningClient struct {
	engines chan *engine.Engine
	done    chan error
	cancel  context.CancelFunc
}

func startClient(t *testing.T, cfg SessionConfig) (*engine.Engine, *runningClient) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	rc := &runningClient{engines: make(chan *engine.Engine, 4), done: make(chan error, 1), cancel: cancel}
	c := NewClient(cfg, quietLogger())
	c.OnEngine = func(e *engine.Engine) { rc.engines <- e }
	go func() { rc.done <- c.Run(ctx) }()
	t.Cleanup(cancel)

	var eng *engine.Engine
	select {
	case eng = <-rc.engines:
	case err := <-rc.done:
		t.Fatalf("client stopped before connecting: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not connect")
	}
	waitReady(t, eng)
	return eng, rc
}

func waitReady(t *testing.T, eng *engine.Engine) {
	t.Helper()
	require.Eventually(t, func() bool {
		return eng.Status() == engine.StatusReady
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTwoClientsConverge(t *testing.T) {
	url := startRelay(t)
	alice, _ := startClient(t, SessionConfig{URL: url, RoomID: "room-1", Username: "alice", Color: "#ff0000"})
	bob, _ := startClient(t, SessionConfig{URL: url, RoomID: "room-1", Username: "bob", Color: "#0000ff"})

	alice.PointerDown(state.ToolPen, "#000000", 2, state.Point{X: 1, Y: 1})
	alice.PointerMove(state.Point{X: 2, Y: 2})
	alice.PointerUp()

	require.Eventually(t, func() bool {
		return bob.Sequence().Equal(alice.Sequence())
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, bob.Sequence().Len())

	alice.MoveCursor(state.Point{X: 5, Y: 6})
	require.Eventually(t, func() bool {
		entry, ok := bob.Presence()["alice"]
		return ok && entry.Position == state.Point{X: 5, Y: 6}
	}, 2*time.Second, 10*time.Millisecond)

	alice.Undo()
	require.Eventually(t, func() bool {
		return bob.Sequence().Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLateJoinerGetsSnapshot(t *testing.T) {
	url := startRelay(t)
	alice, _ := startClient(t, SessionConfig{URL: url, RoomID: "room-1", Username: "alice"})
	bob, _ := startClient(t, SessionConfig{URL: url, RoomID: "room-1", Username: "bob"})
	alice.PointerDown(state.ToolEraser, "#ffffff", 8, state.Point{X: 0, Y: 0})
	alice.PointerUp()

	// Once bob has the stroke the relay's replica has it too.
	require.Eventually(t, func() bool {
		return bob.Sequence().Len() == 1
	}, 2*time.Second, 10*time.Millisecond)

	carol, _ := startClient(t, SessionConfig{URL: url, RoomID: "room-1", Username: "carol"})
	require.True(t, carol.Sequence().Equal(alice.Sequence()))
	require.Equal(t, state.ToolEraser, carol.Strokes()[0].Tool)
}

func TestLeaveRemovesPresence(t *testing.T) {
	url := startRelay(t)
	alice, _ := startClient(t, SessionConfig{URL: url, RoomID: "room-1", Username: "alice"})
	bob, bobRun := startClient(t, SessionConfig{URL: url, RoomID: "room-1", Username: "bob"})

	bob.MoveCursor(state.Point{X: 1, Y: 1})
	require.Eventually(t, func() bool {
		_, ok := alice.Presence()["bob"]
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	bobRun.cancel()
	require.NoError(t, <-bobRun.done)
	require.Equal(t, engine.StatusClosed, bob.Status())

	require.Eventually(t, func() bool {
		_, ok := alice.Presence()["bob"]
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReconnectResyncs(t *testing.T) {
	m := relay.NewManager(nil, quietLogger())
	srv := httptest.NewServer(m.Router())
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	var mu sync.Mutex
	var statuses []engine.Status
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := NewClient(SessionConfig{URL: url, RoomID: "room-1", Username: "alice", Reconnect: true}, quietLogger(),
		engine.OnStatus(func(s engine.Status, _ error) {
			mu.Lock()
			statuses = append(statuses, s)
			mu.Unlock()
		}))
	engines := make(chan *engine.Engine, 4)
	c.OnEngine = func(e *engine.Engine) { engines <- e }
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	first := <-engines
	waitReady(t, first)

	// Dropping every connection forces a fresh join.
	m.Shutdown()
	var second *engine.Engine
	select {
	case second = <-engines:
	case <-time.After(5 * time.Second):
		t.Fatal("client did not reconnect")
	}
	waitReady(t, second)
	require.Equal(t, engine.StatusDisconnected, first.Status())

	cancel()
	require.NoError(t, <-done)
	require.Equal(t, engine.StatusClosed, second.Status())

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, statuses, engine.StatusDisconnected)
}

func TestMissingIdentityIsPermanent(t *testing.T) {
	c := NewClient(SessionConfig{URL: "ws://127.0.0.1:1/ws", Reconnect: true}, quietLogger())
	require.ErrorIs(t, c.Run(context.Background()), engine.ErrMissingIdentity)
}
