package ui

import (
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"SharedBoard/internal/state"
)

// Engine is the part of a room session the board drives and draws.
type Engine interface {
	Render() []state.Stroke
	Strokes() []state.Stroke
	Presence() map[string]state.PresenceEntry
	PointerDown(tool state.Tool, color string, width float64, p state.Point)
	PointerMove(p state.Point)
	PointerUp()
	MoveCursor(p state.Point)
	Undo()
	Redo()
}

var background = color.NRGBA{R: 245, G: 246, B: 248, A: 255}

// BoardWidget is the drawing surface. Primary-button drags draw with the
// current tool; other drags and scrolling pan the view.
type BoardWidget struct {
	widget.BaseWidget

	mu         sync.RWMutex
	engine     Engine
	tool       state.Tool
	color      string
	width      float64
	panX, panY float32
	drawing    bool
	showGrid   bool
}

var _ fyne.Widget = (*BoardWidget)(nil)
var _ fyne.Draggable = (*BoardWidget)(nil)
var _ fyne.Scrollable = (*BoardWidget)(nil)
var _ desktop.Mouseable = (*BoardWidget)(nil)
var _ desktop.Hoverable = (*BoardWidget)(nil)

func NewBoardWidget(color string, width float64) *BoardWidget {
	b := &BoardWidget{
		tool:     state.ToolPen,
		color:    color,
		width:    width,
		showGrid: true,
	}
	b.ExtendBaseWidget(b)
	return b
}

// SetEngine attaches the session to draw. A reconnect replaces it.
func (b *BoardWidget) SetEngine(e Engine) {
	b.mu.Lock()
	b.engine = e
	b.drawing = false
	b.mu.Unlock()
	b.Refresh()
}

func (b *BoardWidget) Engine() Engine {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.engine
}

func (b *BoardWidget) SetTool(t state.Tool) {
	b.mu.Lock()
	b.tool = t
	b.mu.Unlock()
}

func (b *BoardWidget) Tool() state.Tool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tool
}

// SetColor selects the pen color and switches back to the pen.
func (b *BoardWidget) SetColor(c color.Color) {
	b.mu.Lock()
	b.color = state.FormatColor(c)
	b.tool = state.ToolPen
	b.mu.Unlock()
}

func (b *BoardWidget) SetStroke(width float64) {
	b.mu.Lock()
	b.width = width
	b.mu.Unlock()
}

func (b *BoardWidget) ToggleGrid() {
	b.mu.Lock()
	b.showGrid = !b.showGrid
	b.mu.Unlock()
	b.Refresh()
}

func (b *BoardWidget) ResetView() {
	b.mu.Lock()
	b.panX, b.panY = 0, 0
	b.mu.Unlock()
	b.Refresh()
}

func (b *BoardWidget) Undo() {
	if e := b.Engine(); e != nil {
		e.Undo()
	}
}

func (b *BoardWidget) Redo() {
	if e := b.Engine(); e != nil {
		e.Redo()
	}
}

// toCanvas maps a widget position to canvas coordinates. Callers hold mu.
func (b *BoardWidget) toCanvas(pos fyne.Position) state.Point {
	return state.Point{X: float64(pos.X - b.panX), Y: float64(pos.Y - b.panY)}
}

func (b *BoardWidget) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	b.mu.Lock()
	eng := b.engine
	if eng == nil {
		b.mu.Unlock()
		return
	}
	b.drawing = true
	tool, c, w, p := b.tool, b.color, b.width, b.toCanvas(e.Position)
	b.mu.Unlock()

	eng.PointerDown(tool, c, w, p)
}

func (b *BoardWidget) MouseUp(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	b.mu.Lock()
	eng, wasDrawing := b.engine, b.drawing
	b.drawing = false
	b.mu.Unlock()

	if wasDrawing && eng != nil {
		eng.PointerUp()
	}
}

func (b *BoardWidget) Dragged(e *fyne.DragEvent) {
	b.mu.Lock()
	eng := b.engine
	if !b.drawing {
		b.panX += e.Dragged.DX
		b.panY += e.Dragged.DY
		b.mu.Unlock()
		b.Refresh()
		return
	}
	p := b.toCanvas(e.Position)
	b.mu.Unlock()

	if eng != nil {
		eng.PointerMove(p)
		eng.MoveCursor(p)
	}
}

func (b *BoardWidget) DragEnd() {}

func (b *BoardWidget) MouseMoved(e *desktop.MouseEvent) {
	b.mu.RLock()
	eng, p := b.engine, b.toCanvas(e.Position)
	b.mu.RUnlock()

	if eng != nil {
		eng.MoveCursor(p)
	}
}

func (b *BoardWidget) MouseIn(*desktop.MouseEvent) {}
func (b *BoardWidget) MouseOut()                   {}

func (b *BoardWidget) Scrolled(e *fyne.ScrollEvent) {
	b.mu.Lock()
	b.panX += e.Scrolled.DX
	b.panY += e.Scrolled.DY
	b.mu.Unlock()
	b.Refresh()
}

func (b *BoardWidget) CreateRenderer() fyne.WidgetRenderer {
	return newBoardRenderer(b)
}
