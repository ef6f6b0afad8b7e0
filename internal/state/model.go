package state

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Point is a position in canvas space.
type Point struct{ X, Y float64 }

// Tool decides how a stroke is composited by the renderer.
type Tool string

const (
	ToolPen    Tool = "pen"
	ToolEraser Tool = "eraser"
)

// Effective returns the tool a renderer should use. Strokes with an
// unrecognized (or empty) tool are stored verbatim but draw like a pen.
func (t Tool) Effective() Tool {
	if t == ToolEraser {
		return ToolEraser
	}
	return ToolPen
}

var ErrOddPoints = errors.New("point list has an odd number of coordinates")

// Points marshals as a flat [x0, y0, x1, y1, ...] array, the shape canvas
// clients already speak.
type Points []Point

func (ps Points) MarshalJSON() ([]byte, error) {
	flat := make([]float64, 0, len(ps)*2)
	for _, p := range ps {
		flat = append(flat, p.X, p.Y)
	}
	return json.Marshal(flat)
}

func (ps *Points) UnmarshalJSON(data []byte) error {
	var flat []float64
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	if len(flat)%2 != 0 {
		return fmt.Errorf("%w: %d values", ErrOddPoints, len(flat))
	}
	out := make(Points, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		out = append(out, Point{X: flat[i], Y: flat[i+1]})
	}
	*ps = out
	return nil
}

// Stroke is one continuous pen or eraser gesture.
type Stroke struct {
	ID     string  `json:"id,omitempty"`
	Author string  `json:"author,omitempty"`
	Tool   Tool    `json:"tool"`
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
	Points Points  `json:"points"`

	active bool
}

// BeginStroke starts an active stroke containing exactly origin.
func BeginStroke(id, author string, tool Tool, color string, width float64, origin Point) *Stroke {
	return &Stroke{
		ID:     id,
		Author: author,
		Tool:   tool,
		Color:  color,
		Width:  width,
		Points: Points{origin},
		active: true,
	}
}

// Active reports whether points can still be appended.
func (s *Stroke) Active() bool { return s != nil && s.active }

// Extend appends p. It is a no-op on a committed stroke.
func (s *Stroke) Extend(p Point) bool {
	if !s.Active() {
		return false
	}
	s.Points = append(s.Points, p)
	return true
}

// Commit freezes the stroke and returns a copy that shares no memory with
// the active point buffer.
func (s *Stroke) Commit() Stroke {
	s.active = false
	return s.Snapshot()
}

// Snapshot copies the stroke as it is right now.
func (s *Stroke) Snapshot() Stroke {
	out := *s
	out.active = false
	out.Points = append(Points(nil), s.Points...)
	return out
}

// Equal compares stroke content, ignoring the active flag.
func (s Stroke) Equal(o Stroke) bool {
	if s.ID != o.ID || s.Author != o.Author || s.Tool != o.Tool ||
		s.Color != o.Color || s.Width != o.Width || len(s.Points) != len(o.Points) {
		return false
	}
	for i := range s.Points {
		if s.Points[i] != o.Points[i] {
			return false
		}
	}
	return true
}
