// Package engine keeps a client's drawing session in step with its room.
//
// Local pointer input is applied to a state.Session and broadcast through a
// Transport; messages arriving from the relay are decoded and applied to the
// same session and to the presence tracker. All work happens under one
// mutex, one event at a time, and nothing inside the engine blocks: sends go
// to the transport's queue and are dropped when it cannot take them.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"SharedBoard/internal/clock"
	"SharedBoard/internal/protocol"
	"SharedBoard/internal/state"
)

var ErrMissingIdentity = errors.New("room id and username are required")

// Transport delivers encoded messages to the relay. Send must not block; it
// returns an error when the message could not be queued.
type Transport interface {
	Send(data []byte) error
	Close() error
}

type Config struct {
	RoomID   string
	Username string
	// Color is the participant's cursor color.
	Color string
	// PresenceTTL hides peers whose cursor has not moved for this long.
	// Zero keeps them until they leave.
	PresenceTTL time.Duration
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithStrokeIDs(ids *state.StrokeIDs) Option {
	return func(e *Engine) { e.ids = ids }
}

// OnChange is called after strokes or presence changed, outside the lock.
func OnChange(f func()) Option {
	return func(e *Engine) { e.onChange = f }
}

// OnStatus is called after every status transition, outside the lock. err
// is set when the engine stopped because of a transport failure.
func OnStatus(f func(Status, error)) Option {
	return func(e *Engine) { e.onStatus = f }
}

type Engine struct {
	mu        sync.Mutex
	cfg       Config
	transport Transport
	logger    *slog.Logger
	clock     clock.Clock
	ids       *state.StrokeIDs
	session   *state.Session
	presence  *state.Presence
	status    Status
	pending   []protocol.Message

	onChange func()
	onStatus func(Status, error)
}

// notice collects what callbacks to fire once the lock is released.
type notice struct {
	changed bool
	status  *Status
	err     error
}

func New(cfg Config, t Transport, opts ...Option) (*Engine, error) {
	if cfg.RoomID == "" || cfg.Username == "" {
		return nil, ErrMissingIdentity
	}
	if t == nil {
		return nil, errors.New("engine: nil transport")
	}
	e := &Engine{cfg: cfg, transport: t}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.clock == nil {
		e.clock = clock.Real()
	}
	if e.ids == nil {
		e.ids = state.NewStrokeIDs()
	}
	e.logger = e.logger.With("room", cfg.RoomID, "user", cfg.Username)
	e.session = state.NewSession(cfg.Username, e.ids)
	e.presence = state.NewPresence(e.clock, cfg.PresenceTTL)
	return e, nil
}

func (e *Engine) fire(n notice) {
	if n.status != nil && e.onStatus != nil {
		e.onStatus(*n.status, n.err)
	}
	if n.changed && e.onChange != nil {
		e.onChange()
	}
}

func (e *Engine) setStatusLocked(s Status, n *notice) {
	if e.status == s {
		return
	}
	e.logger.Info("status changed", "from", e.status, "to", s)
	e.status = s
	n.status = &s
}

// sendLocked encodes and queues m. Failures are logged and the message is
// dropped: delivery is at most once.
func (e *Engine) sendLocked(m protocol.Message) {
	if e.status.Terminal() {
		return
	}
	data, err := protocol.Encode(m)
	if err != nil {
		e.logger.Error("encode outbound message", "type", m.Type(), "error", err)
		return
	}
	if err := e.transport.Send(data); err != nil {
		e.logger.Debug("dropped outbound message", "type", m.Type(), "error", err)
	}
}

// Start sends the join request. Drawing input is ignored until the room
// snapshot has been applied.
func (e *Engine) Start() {
	e.mu.Lock()
	var n notice
	if e.status == StatusIdle {
		e.setStatusLocked(StatusJoining, &n)
		e.sendLocked(protocol.Join{RoomID: e.cfg.RoomID, Username: e.cfg.Username})
	}
	e.mu.Unlock()
	e.fire(n)
}

// HandleMessage decodes and applies one inbound frame. Malformed frames are
// logged and dropped.
func (e *Engine) HandleMessage(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		e.logger.Warn("dropped malformed message", "error", err)
		return
	}
	e.Apply(msg)
}

// Apply applies one decoded inbound message.
func (e *Engine) Apply(msg protocol.Message) {
	e.mu.Lock()
	n := e.applyLocked(msg)
	e.mu.Unlock()
	e.fire(n)
}

func (e *Engine) applyLocked(msg protocol.Message) notice {
	var n notice
	switch e.status {
	case StatusIdle:
		e.logger.Debug("ignored message before start", "type", msg.Type())
		return n
	case StatusDisconnected, StatusClosed:
		return n
	}
	if room := msg.Room(); room != "" && room != e.cfg.RoomID {
		e.logger.Warn("dropped message for another room", "type", msg.Type(), "other_room", room)
		return n
	}

	switch m := msg.(type) {
	case protocol.RoomSnapshot:
		if e.status != StatusJoining {
			e.logger.Warn("ignored repeated room snapshot", "strokes", len(m.Strokes))
			return n
		}
		e.session.Reset(state.NewSequence(m.Strokes...))
		e.logger.Info("room snapshot applied", "strokes", len(m.Strokes), "buffered", len(e.pending))
		e.setStatusLocked(StatusReady, &n)
		pending := e.pending
		e.pending = nil
		for _, p := range pending {
			e.applyStrokeLocked(p)
		}
		n.changed = true
	case protocol.StrokeDelta, protocol.StrokeRemove:
		if e.status == StatusJoining {
			e.pending = append(e.pending, msg)
			return n
		}
		n.changed = e.applyStrokeLocked(msg)
	case protocol.CursorMove:
		if m.Username == e.cfg.Username {
			return n
		}
		e.presence.Update(m.Username, m.Position, m.Color)
		n.changed = true
	case protocol.UserJoined:
		e.logger.Info("participant joined", "participant", m.Username)
	case protocol.UserLeft:
		e.logger.Info("participant left", "participant", m.Username)
		n.changed = e.presence.Remove(m.Username)
	default:
		e.logger.Warn("ignored unexpected message", "type", msg.Type())
	}
	return n
}

func (e *Engine) applyStrokeLocked(msg protocol.Message) bool {
	switch m := msg.(type) {
	case protocol.StrokeDelta:
		if !e.session.ApplyRemote(m.Stroke) {
			e.logger.Debug("ignored echo of own stroke", "stroke", m.Stroke.ID)
			return false
		}
		return true
	case protocol.StrokeRemove:
		return e.session.RemoveRemote(m.StrokeID)
	}
	return false
}

// PointerDown begins a stroke at p and broadcasts it. It is ignored unless
// the engine is ready and idle.
func (e *Engine) PointerDown(tool state.Tool, color string, width float64, p state.Point) {
	e.mu.Lock()
	var n notice
	if e.status == StatusReady {
		st, err := e.session.PointerDown(tool, color, width, p)
		if err != nil {
			e.logger.Debug("pointer down ignored", "error", err)
		} else {
			e.sendLocked(protocol.StrokeDelta{RoomID: e.cfg.RoomID, Stroke: st})
			n.changed = true
		}
	}
	e.mu.Unlock()
	e.fire(n)
}

// PointerMove extends the active stroke and broadcasts the whole stroke.
func (e *Engine) PointerMove(p state.Point) {
	e.mu.Lock()
	var n notice
	if e.status == StatusReady {
		if st, ok := e.session.PointerMove(p); ok {
			e.sendLocked(protocol.StrokeDelta{RoomID: e.cfg.RoomID, Stroke: st})
			n.changed = true
		}
	}
	e.mu.Unlock()
	e.fire(n)
}

// PointerUp commits the active stroke and broadcasts its final form.
func (e *Engine) PointerUp() {
	e.mu.Lock()
	var n notice
	if e.status == StatusReady {
		if st, ok := e.session.PointerUp(); ok {
			e.sendLocked(protocol.StrokeDelta{RoomID: e.cfg.RoomID, Stroke: st})
			n.changed = true
		}
	}
	e.mu.Unlock()
	e.fire(n)
}

// MoveCursor broadcasts the local pointer position.
func (e *Engine) MoveCursor(p state.Point) {
	e.mu.Lock()
	if e.status == StatusReady {
		e.sendLocked(protocol.CursorMove{
			RoomID:   e.cfg.RoomID,
			Username: e.cfg.Username,
			Position: p,
			Color:    e.cfg.Color,
		})
	}
	e.mu.Unlock()
}

func (e *Engine) Undo() { e.history((*state.Session).Undo) }

func (e *Engine) Redo() { e.history((*state.Session).Redo) }

func (e *Engine) history(step func(*state.Session) (state.Sequence, state.Sequence, bool)) {
	e.mu.Lock()
	var n notice
	if e.status == StatusReady {
		if before, after, ok := step(e.session); ok {
			removed, added := e.session.LocalDiff(before, after)
			for _, id := range removed {
				e.sendLocked(protocol.StrokeRemove{RoomID: e.cfg.RoomID, StrokeID: id})
			}
			for _, st := range added {
				e.sendLocked(protocol.StrokeDelta{RoomID: e.cfg.RoomID, Stroke: st})
			}
			n.changed = true
		}
	}
	e.mu.Unlock()
	e.fire(n)
}

// Disconnect records that the transport went away. The engine stops
// sending and reports StatusDisconnected with err; it does not reconnect.
func (e *Engine) Disconnect(err error) {
	e.mu.Lock()
	var n notice
	if !e.status.Terminal() {
		e.setStatusLocked(StatusDisconnected, &n)
		n.err = err
		e.pending = nil
		if err != nil {
			e.logger.Warn("transport closed", "error", err)
		}
	}
	e.mu.Unlock()
	e.fire(n)
}

// Close tears the session down. Later calls of any kind are ignored.
func (e *Engine) Close() error {
	e.mu.Lock()
	var n notice
	var err error
	if !e.status.Terminal() {
		e.setStatusLocked(StatusClosed, &n)
		e.pending = nil
		e.presence.Clear()
		if cerr := e.transport.Close(); cerr != nil {
			err = fmt.Errorf("close transport: %w", cerr)
		}
	}
	e.mu.Unlock()
	e.fire(n)
	return err
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Strokes lists committed strokes, local and remote, in render order.
func (e *Engine) Strokes() []state.Stroke {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Strokes().Strokes()
}

// Sequence is the current immutable stroke sequence.
func (e *Engine) Sequence() state.Sequence {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Strokes()
}

// Render lists what the canvas should show: committed strokes with the
// local stroke in progress on top.
func (e *Engine) Render() []state.Stroke {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.session.Strokes().Strokes()
	if st, ok := e.session.Active(); ok {
		out = append(out, st)
	}
	return out
}

func (e *Engine) Presence() map[string]state.PresenceEntry {
	return e.presence.List()
}

func (e *Engine) Phase() state.Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Phase()
}

func (e *Engine) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.CanUndo()
}

func (e *Engine) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.CanRedo()
}
