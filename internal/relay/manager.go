// Package relay is a reference fan-out server for the room contract.
//
// Each websocket connection gets a read pump and a write pump. The manager
// owns the room registry: it answers joins with a snapshot of the room's
// stroke replica, applies stroke changes to that replica and forwards every
// room message verbatim to the other members. An optional Bus carries the
// same frames to relays in other processes.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"SharedBoard/internal/protocol"
	"SharedBoard/internal/state"
)

var (
	websocketUpgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	ErrUnknownEvent = errors.New("unknown event type")
	ErrNotJoined    = errors.New("client has not joined a room")
)

// EventHandler handles one decoded client message. payload is the frame as
// received, already validated by protocol.Decode.
type EventHandler func(msg protocol.Message, payload []byte, c *Client) error

type Manager struct {
	sync.RWMutex
	clients       map[*Client]bool
	rooms         map[string]*room
	eventHandlers map[string]EventHandler
	bus           Bus
	logger        *slog.Logger
}

func NewManager(bus Bus, logger *slog.Logger) *Manager {
	if bus == nil {
		bus = LocalBus()
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		clients:       make(map[*Client]bool),
		rooms:         make(map[string]*room),
		eventHandlers: make(map[string]EventHandler),
		bus:           bus,
		logger:        logger,
	}
	m.setupEventHandlers()
	return m
}

func (m *Manager) setupEventHandlers() {
	m.eventHandlers[protocol.TypeJoin] = m.handleJoin
	m.eventHandlers[protocol.TypeStrokeDelta] = m.handleStroke
	m.eventHandlers[protocol.TypeStrokeRemove] = m.handleStroke
	m.eventHandlers[protocol.TypeCursorMove] = m.handleCursor
}

// Router serves the websocket endpoint, room snapshots and a health check.
func (m *Manager) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", m.ServeWS).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{roomId}", m.serveRoom).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	return r
}

func (m *Manager) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("could not upgrade request", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := newClient(conn, m)
	m.addClient(client)

	go client.readMsgs()
	go client.writeMsgs()
}

// RoomView is the JSON body of GET /rooms/{roomId}.
type RoomView struct {
	RoomID  string         `json:"roomId"`
	Members []string       `json:"members"`
	Strokes []state.Stroke `json:"strokes"`
}

func (m *Manager) serveRoom(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["roomId"]

	m.RLock()
	rm, ok := m.rooms[id]
	var view RoomView
	if ok {
		view = RoomView{RoomID: id, Members: rm.usernames(), Strokes: rm.strokes.Strokes()}
	}
	m.RUnlock()

	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	sort.Strings(view.Members)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(view); err != nil {
		m.logger.Warn("could not write room view", "room", id, "error", err)
	}
}

func (m *Manager) addClient(c *Client) {
	m.Lock()
	defer m.Unlock()

	m.clients[c] = true
	m.logger.Debug("client connected", "remote", c.connection.RemoteAddr().String(), "clients", len(m.clients))
}

// removeClient forgets c and tells the rest of its room it left. Empty rooms
// are discarded.
func (m *Manager) removeClient(c *Client) {
	m.Lock()
	if _, ok := m.clients[c]; !ok {
		m.Unlock()
		return
	}
	delete(m.clients, c)

	var left []byte
	roomID := c.roomID
	if rm, ok := m.rooms[roomID]; ok {
		rm.remove(c)
		left = protocol.MustEncode(protocol.UserLeft{RoomID: roomID, Username: c.username})
		rm.broadcast(left, nil)
		if len(rm.members) == 0 {
			delete(m.rooms, roomID)
			m.logger.Info("room discarded", "room", roomID)
		}
	}
	m.logger.Debug("client disconnected", "room", roomID, "user", c.username, "clients", len(m.clients))
	m.Unlock()

	if left != nil {
		m.publish(roomID, left)
	}
}

// routeEvent decodes a client frame and dispatches it. Malformed frames,
// frames sent before join and relay-only message types are dropped.
func (m *Manager) routeEvent(c *Client, payload []byte) {
	msg, err := protocol.Decode(payload)
	if err != nil {
		c.logger.Warn("dropped malformed message", "error", err)
		return
	}
	handler, ok := m.eventHandlers[msg.Type()]
	if !ok {
		c.logger.Warn("dropped message", "type", msg.Type(), "error", ErrUnknownEvent)
		return
	}
	if err := handler(msg, payload, c); err != nil {
		c.logger.Warn("dropped message", "type", msg.Type(), "error", err)
	}
}

func (m *Manager) handleJoin(msg protocol.Message, _ []byte, c *Client) error {
	join := msg.(protocol.Join)

	m.Lock()
	if c.joined() {
		m.Unlock()
		return errors.New("already joined")
	}
	c.roomID, c.username = join.RoomID, join.Username

	rm, ok := m.rooms[join.RoomID]
	if !ok {
		rm = newRoom(join.RoomID)
		m.rooms[join.RoomID] = rm
	}
	rm.add(c)
	c.enqueue(protocol.MustEncode(protocol.RoomSnapshot{RoomID: rm.id, Strokes: rm.strokes.Strokes()}))
	joined := protocol.MustEncode(protocol.UserJoined{RoomID: rm.id, Username: join.Username})
	rm.broadcast(joined, c)
	m.Unlock()

	m.logger.Info("client joined room", "room", join.RoomID, "user", join.Username)
	m.publish(join.RoomID, joined)
	return nil
}

func (m *Manager) handleStroke(msg protocol.Message, payload []byte, c *Client) error {
	m.Lock()
	rm, err := m.memberRoomLocked(msg, c)
	if err != nil {
		m.Unlock()
		return err
	}
	applyToRoom(rm, msg)
	rm.broadcast(payload, c)
	m.Unlock()

	m.publish(rm.id, payload)
	return nil
}

func (m *Manager) handleCursor(msg protocol.Message, payload []byte, c *Client) error {
	m.RLock()
	rm, err := m.memberRoomLocked(msg, c)
	if err != nil {
		m.RUnlock()
		return err
	}
	rm.broadcast(payload, c)
	m.RUnlock()

	m.publish(rm.id, payload)
	return nil
}

func (m *Manager) memberRoomLocked(msg protocol.Message, c *Client) (*room, error) {
	if !c.joined() {
		return nil, ErrNotJoined
	}
	if msg.Room() != c.roomID {
		return nil, errors.New("message for another room")
	}
	rm, ok := m.rooms[c.roomID]
	if !ok {
		return nil, ErrNotJoined
	}
	return rm, nil
}

// applyToRoom updates the replica for stroke messages.
func applyToRoom(rm *room, msg protocol.Message) {
	switch msg := msg.(type) {
	case protocol.StrokeDelta:
		rm.strokes = rm.strokes.Upsert(msg.Stroke)
	case protocol.StrokeRemove:
		rm.strokes, _ = rm.strokes.Remove(msg.StrokeID)
	}
}

func (m *Manager) publish(roomID string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	if err := m.bus.Publish(ctx, roomID, data); err != nil {
		m.logger.Warn("could not publish to bus", "room", roomID, "error", err)
	}
}

// Run delivers frames from other relay nodes to local members until ctx is
// done or the bus closes. Frames for rooms with no local members are
// ignored.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case bm, ok := <-m.bus.Messages():
			if !ok {
				return
			}
			m.deliver(bm)
		}
	}
}

func (m *Manager) deliver(bm BusMessage) {
	msg, err := protocol.Decode(bm.Payload)
	if err != nil {
		m.logger.Warn("dropped malformed bus message", "room", bm.Room, "error", err)
		return
	}
	if msg.Room() != "" && msg.Room() != bm.Room {
		m.logger.Warn("dropped bus message for another room", "room", bm.Room, "type", msg.Type())
		return
	}

	switch msg.(type) {
	case protocol.Join, protocol.RoomSnapshot:
		m.logger.Warn("dropped bus message", "room", bm.Room, "type", msg.Type(), "error", ErrUnknownEvent)
		return
	}

	m.Lock()
	defer m.Unlock()
	rm, ok := m.rooms[bm.Room]
	if !ok {
		return
	}
	applyToRoom(rm, msg)
	rm.broadcast(bm.Payload, nil)
}

// Shutdown closes every connection and the bus.
func (m *Manager) Shutdown() error {
	m.RLock()
	clients := make([]*Client, 0, len(m.clients))
	for c := range m.clients {
		clients = append(clients, c)
	}
	m.RUnlock()

	for _, c := range clients {
		c.close()
	}
	return m.bus.Close()
}

// Serve runs the relay HTTP server on ln until ctx is done.
func (m *Manager) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go m.Run(ctx)

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	m.logger.Info("relay listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		m.Shutdown()
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if serr := m.Shutdown(); err == nil {
		err = serr
	}
	return err
}
