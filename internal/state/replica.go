package state

// Sequence is an immutable ordered list of strokes. Later strokes render on
// top. Every method that changes content returns a new Sequence backed by a
// fresh array, so a Sequence held as an undo checkpoint never changes.
type Sequence struct {
	strokes []Stroke
}

func NewSequence(strokes ...Stroke) Sequence {
	return Sequence{strokes: append([]Stroke(nil), strokes...)}
}

func (s Sequence) Len() int { return len(s.strokes) }

func (s Sequence) At(i int) Stroke { return s.strokes[i] }

// Strokes returns a copy safe for the caller to keep.
func (s Sequence) Strokes() []Stroke {
	return append([]Stroke(nil), s.strokes...)
}

// Index returns the position of the stroke with the given id, or -1.
// Strokes without an id are never found.
func (s Sequence) Index(id string) int {
	if id == "" {
		return -1
	}
	for i := len(s.strokes) - 1; i >= 0; i-- {
		if s.strokes[i].ID == id {
			return i
		}
	}
	return -1
}

func (s Sequence) Contains(id string) bool { return s.Index(id) >= 0 }

func (s Sequence) Append(st Stroke) Sequence {
	out := make([]Stroke, len(s.strokes), len(s.strokes)+1)
	copy(out, s.strokes)
	return Sequence{strokes: append(out, st)}
}

func (s Sequence) replace(i int, st Stroke) Sequence {
	out := make([]Stroke, len(s.strokes))
	copy(out, s.strokes)
	out[i] = st
	return Sequence{strokes: out}
}

// Upsert replaces the stroke carrying st's id in place, or appends st when
// the id is new.
//
// Strokes from senders that do not tag ids are matched against the tail: an
// anonymous tail entry with the same author, tool, color and width that st
// extends is replaced; anything else starts a new entry.
func (s Sequence) Upsert(st Stroke) Sequence {
	if st.ID != "" {
		if i := s.Index(st.ID); i >= 0 {
			return s.replace(i, st)
		}
		return s.Append(st)
	}
	if n := len(s.strokes); n > 0 {
		tail := s.strokes[n-1]
		if tail.ID == "" && tail.Author == st.Author && tail.Tool == st.Tool &&
			tail.Color == st.Color && tail.Width == st.Width && len(st.Points) >= len(tail.Points) {
			return s.replace(n-1, st)
		}
	}
	return s.Append(st)
}

// Remove drops the stroke with the given id. The second result is false
// when no such stroke exists, in which case s is returned unchanged.
func (s Sequence) Remove(id string) (Sequence, bool) {
	i := s.Index(id)
	if i < 0 {
		return s, false
	}
	out := make([]Stroke, 0, len(s.strokes)-1)
	out = append(out, s.strokes[:i]...)
	out = append(out, s.strokes[i+1:]...)
	return Sequence{strokes: out}, true
}

func (s Sequence) Equal(o Sequence) bool {
	if len(s.strokes) != len(o.strokes) {
		return false
	}
	for i := range s.strokes {
		if !s.strokes[i].Equal(o.strokes[i]) {
			return false
		}
	}
	return true
}

// rebase builds the sequence to show when restoring checkpoint while current
// is on screen. It starts from current: remote strokes, with or without an
// id, stay where they are in their latest version, and local strokes stay
// only if checkpoint has them. Local strokes that checkpoint has and current
// lacks are appended in checkpoint order. Peers receive those as upserts of
// ids they no longer hold and append them the same way, so every replica
// ends up in the same order.
func rebase(checkpoint, current Sequence, local func(Stroke) bool) Sequence {
	out := make([]Stroke, 0, max(checkpoint.Len(), current.Len()))
	for _, st := range current.strokes {
		if local(st) && !checkpoint.Contains(st.ID) {
			continue
		}
		out = append(out, st)
	}
	for _, st := range checkpoint.strokes {
		if local(st) && !current.Contains(st.ID) {
			out = append(out, st)
		}
	}
	return Sequence{strokes: out}
}
