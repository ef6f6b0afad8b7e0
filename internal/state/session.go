package state

import "errors"

// Phase is the pointer state of a Session.
type Phase int

const (
	Idle Phase = iota
	Drawing
)

func (p Phase) String() string {
	if p == Drawing {
		return "drawing"
	}
	return "idle"
}

var ErrAlreadyDrawing = errors.New("a stroke is already being drawn")

// Session is one client's drawing state: the stroke under construction, the
// replica of the room's strokes and the linear undo/redo history of strokes
// committed locally. It is not safe for concurrent use; the engine
// serializes access.
type Session struct {
	author  string
	ids     *StrokeIDs
	strokes Sequence
	active  *Stroke
	undo    []Sequence
	redo    []Sequence
}

func NewSession(author string, ids *StrokeIDs) *Session {
	if ids == nil {
		ids = NewStrokeIDs()
	}
	return &Session{author: author, ids: ids}
}

func (s *Session) Phase() Phase {
	if s.active.Active() {
		return Drawing
	}
	return Idle
}

// Strokes is the committed sequence, local and remote.
func (s *Session) Strokes() Sequence { return s.strokes }

// Active returns a copy of the stroke being drawn.
func (s *Session) Active() (Stroke, bool) {
	if !s.active.Active() {
		return Stroke{}, false
	}
	return s.active.Snapshot(), true
}

// IsLocal reports whether st was drawn in this session.
func (s *Session) IsLocal(st Stroke) bool { return s.ids.Owns(st.ID) }

func (s *Session) CanUndo() bool { return len(s.undo) > 0 }
func (s *Session) CanRedo() bool { return len(s.redo) > 0 }

// PointerDown begins a stroke. While another stroke is active it fails with
// ErrAlreadyDrawing and leaves the active stroke alone.
func (s *Session) PointerDown(tool Tool, color string, width float64, p Point) (Stroke, error) {
	if s.active.Active() {
		return Stroke{}, ErrAlreadyDrawing
	}
	s.active = BeginStroke(s.ids.Next(), s.author, tool, color, width, p)
	return s.active.Snapshot(), nil
}

// PointerMove extends the active stroke; it is a no-op while idle.
func (s *Session) PointerMove(p Point) (Stroke, bool) {
	if !s.active.Extend(p) {
		return Stroke{}, false
	}
	return s.active.Snapshot(), true
}

// PointerUp commits the active stroke. The sequence before the commit is
// pushed as an undo checkpoint and the redo history is discarded.
func (s *Session) PointerUp() (Stroke, bool) {
	if !s.active.Active() {
		return Stroke{}, false
	}
	st := s.active.Commit()
	s.active = nil
	s.undo = append(s.undo, s.strokes)
	s.redo = nil
	s.strokes = s.strokes.Append(st)
	return st, true
}

// Undo restores the most recent checkpoint. It returns the sequences before
// and after so the caller can broadcast the difference.
func (s *Session) Undo() (before, after Sequence, ok bool) {
	if len(s.undo) == 0 {
		return s.strokes, s.strokes, false
	}
	checkpoint := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	before = s.strokes
	s.redo = append(s.redo, before)
	s.strokes = rebase(checkpoint, before, s.IsLocal)
	return before, s.strokes, true
}

// Redo is the inverse of Undo.
func (s *Session) Redo() (before, after Sequence, ok bool) {
	if len(s.redo) == 0 {
		return s.strokes, s.strokes, false
	}
	checkpoint := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	before = s.strokes
	s.undo = append(s.undo, before)
	s.strokes = rebase(checkpoint, before, s.IsLocal)
	return before, s.strokes, true
}

// ApplyRemote upserts a stroke received from another participant. Echoes of
// this session's own strokes are ignored so that undo stays authoritative
// for them.
func (s *Session) ApplyRemote(st Stroke) bool {
	if s.IsLocal(st) {
		return false
	}
	s.strokes = s.strokes.Upsert(st)
	return true
}

// RemoveRemote drops a remote stroke by id.
func (s *Session) RemoveRemote(id string) bool {
	if s.ids.Owns(id) {
		return false
	}
	var ok bool
	s.strokes, ok = s.strokes.Remove(id)
	return ok
}

// Reset installs an authoritative sequence and forgets all history and any
// active stroke.
func (s *Session) Reset(seq Sequence) {
	s.strokes = seq
	s.active = nil
	s.undo = nil
	s.redo = nil
}

// LocalDiff lists this session's strokes that disappeared between before and
// after, and those that appeared.
func (s *Session) LocalDiff(before, after Sequence) (removed []string, added []Stroke) {
	for _, st := range before.strokes {
		if s.IsLocal(st) && !after.Contains(st.ID) {
			removed = append(removed, st.ID)
		}
	}
	for _, st := range after.strokes {
		if s.IsLocal(st) && !before.Contains(st.ID) {
			added = append(added, st)
		}
	}
	return removed, added
}
