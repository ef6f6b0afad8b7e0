package ui

import (
	"image/color"
	"sort"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"SharedBoard/internal/state"
)

const (
	gridSize     = 50
	cursorRadius = 5
)

var gridColor = color.NRGBA{R: 220, G: 220, B: 220, A: 100}

// boardRenderer rebuilds its canvas objects from the engine on every
// refresh. Strokes are drawn as line segments in render order, so an eraser
// stroke paints over whatever came before it.
type boardRenderer struct {
	board      *BoardWidget
	background *canvas.Rectangle
	objects    []fyne.CanvasObject
	size       fyne.Size
}

func newBoardRenderer(b *BoardWidget) *boardRenderer {
	r := &boardRenderer{board: b, background: canvas.NewRectangle(background)}
	r.objects = []fyne.CanvasObject{r.background}
	return r
}

func (r *boardRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *boardRenderer) Layout(size fyne.Size) {
	r.size = size
	r.background.Resize(size)
	r.rebuild()
}

func (r *boardRenderer) MinSize() fyne.Size {
	return fyne.NewSize(300, 300)
}

func (r *boardRenderer) Refresh() {
	r.rebuild()
	canvas.Refresh(r.board)
}

func (r *boardRenderer) Destroy() {}

func (r *boardRenderer) rebuild() {
	b := r.board
	b.mu.RLock()
	eng, panX, panY, showGrid := b.engine, b.panX, b.panY, b.showGrid
	b.mu.RUnlock()

	objects := []fyne.CanvasObject{r.background}
	if showGrid {
		objects = append(objects, gridLines(r.size, panX, panY)...)
	}
	if eng != nil {
		for _, st := range eng.Render() {
			objects = append(objects, strokeObjects(st, panX, panY)...)
		}
		objects = append(objects, cursorObjects(eng.Presence(), panX, panY)...)
	}
	r.objects = objects
}

func gridLines(size fyne.Size, panX, panY float32) []fyne.CanvasObject {
	var lines []fyne.CanvasObject
	offX := mod(panX, gridSize)
	offY := mod(panY, gridSize)

	for x := offX; x < size.Width; x += gridSize {
		line := canvas.NewLine(gridColor)
		line.StrokeWidth = 0.5
		line.Position1 = fyne.NewPos(x, 0)
		line.Position2 = fyne.NewPos(x, size.Height)
		lines = append(lines, line)
	}
	for y := offY; y < size.Height; y += gridSize {
		line := canvas.NewLine(gridColor)
		line.StrokeWidth = 0.5
		line.Position1 = fyne.NewPos(0, y)
		line.Position2 = fyne.NewPos(size.Width, y)
		lines = append(lines, line)
	}
	return lines
}

func mod(v, m float32) float32 {
	r := v - m*float32(int(v/m))
	if r < 0 {
		r += m
	}
	return r
}

func toScreen(p state.Point, panX, panY float32) fyne.Position {
	return fyne.NewPos(float32(p.X)+panX, float32(p.Y)+panY)
}

// strokeObjects draws one stroke. A single-point stroke is a dot.
func strokeObjects(st state.Stroke, panX, panY float32) []fyne.CanvasObject {
	c := st.StrokeColor(background)
	width := float32(st.Width)

	if len(st.Points) == 1 {
		center := toScreen(st.Points[0], panX, panY)
		dot := canvas.NewCircle(c)
		dot.Move(fyne.NewPos(center.X-width/2, center.Y-width/2))
		dot.Resize(fyne.NewSize(width, width))
		return []fyne.CanvasObject{dot}
	}

	segments := make([]fyne.CanvasObject, 0, len(st.Points)-1)
	for i := 1; i < len(st.Points); i++ {
		segment := canvas.NewLine(c)
		segment.StrokeWidth = width
		segment.Position1 = toScreen(st.Points[i-1], panX, panY)
		segment.Position2 = toScreen(st.Points[i], panX, panY)
		segments = append(segments, segment)
	}
	return segments
}

// cursorObjects draws each remote participant's pointer with their name.
// Entries are sorted so the draw order is stable between refreshes.
func cursorObjects(presence map[string]state.PresenceEntry, panX, panY float32) []fyne.CanvasObject {
	names := make([]string, 0, len(presence))
	for name := range presence {
		names = append(names, name)
	}
	sort.Strings(names)

	objects := make([]fyne.CanvasObject, 0, 2*len(names))
	for _, name := range names {
		entry := presence[name]
		c, ok := state.ParseColor(entry.Color)
		if !ok {
			c = color.NRGBA{R: 80, G: 80, B: 80, A: 255}
		}
		pos := toScreen(entry.Position, panX, panY)

		dot := canvas.NewCircle(c)
		dot.Move(fyne.NewPos(pos.X-cursorRadius, pos.Y-cursorRadius))
		dot.Resize(fyne.NewSize(2*cursorRadius, 2*cursorRadius))

		label := canvas.NewText(name, c)
		label.TextSize = 11
		label.Resize(label.MinSize())
		label.Move(fyne.NewPos(pos.X+cursorRadius+2, pos.Y-cursorRadius))

		objects = append(objects, dot, label)
	}
	return objects
}
