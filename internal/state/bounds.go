package state

// Rect is an axis-aligned area of the canvas.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

func (r Rect) Empty() bool { return r.Width <= 0 && r.Height <= 0 }

// Bounds returns the bounding box of a stroke grown by half its width, so a
// thick line fits entirely inside.
func (s Stroke) Bounds() Rect {
	if len(s.Points) == 0 {
		return Rect{}
	}
	minX, minY := s.Points[0].X, s.Points[0].Y
	maxX, maxY := minX, minY
	for _, p := range s.Points[1:] {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	pad := s.Width / 2
	return Rect{
		X:      minX - pad,
		Y:      minY - pad,
		Width:  maxX - minX + 2*pad,
		Height: maxY - minY + 2*pad,
	}
}

// Union is the smallest rectangle covering both a and b. An empty rectangle
// does not contribute.
func (a Rect) Union(b Rect) Rect {
	if a.Empty() {
		return b
	}
	if b.Empty() {
		return a
	}
	minX, minY := min(a.X, b.X), min(a.Y, b.Y)
	maxX := max(a.X+a.Width, b.X+b.Width)
	maxY := max(a.Y+a.Height, b.Y+b.Height)
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Bounds covers every stroke in the sequence.
func (s Sequence) Bounds() Rect {
	var r Rect
	for _, st := range s.strokes {
		r = r.Union(st.Bounds())
	}
	return r
}
