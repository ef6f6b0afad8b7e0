package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"SharedBoard/internal/state"
)

var palette = []color.Color{
	color.Black,
	color.NRGBA{R: 255, A: 255},         // red
	color.NRGBA{G: 160, A: 255},         // green
	color.NRGBA{B: 255, A: 255},         // blue
	color.NRGBA{R: 255, G: 200, A: 255}, // yellow
}

type colorSwatch struct {
	widget.BaseWidget
	Color    color.Color
	OnTapped func(color.Color)
}

func newColorSwatch(c color.Color, tapped func(color.Color)) *colorSwatch {
	s := &colorSwatch{Color: c, OnTapped: tapped}
	s.ExtendBaseWidget(s)
	return s
}

func (s *colorSwatch) CreateRenderer() fyne.WidgetRenderer {
	rect := canvas.NewRectangle(s.Color)
	rect.SetMinSize(fyne.NewSize(32, 32))

	border := canvas.NewRectangle(color.Transparent)
	border.StrokeColor = color.Gray{Y: 150}
	border.StrokeWidth = 1

	return widget.NewSimpleRenderer(container.NewStack(rect, border))
}

func (s *colorSwatch) Tapped(_ *fyne.PointEvent) {
	if s.OnTapped != nil {
		s.OnTapped(s.Color)
	}
}

// ToolbarActions are the toolbar buttons that reach outside the board.
type ToolbarActions struct {
	Export func()
}

func NewToolbar(board *BoardWidget, initialWidth float64, actions ToolbarActions) fyne.CanvasObject {
	tb := widget.NewToolbar(
		widget.NewToolbarAction(theme.DocumentCreateIcon(), func() {
			board.SetTool(state.ToolPen)
		}),
		widget.NewToolbarAction(theme.ContentClearIcon(), func() {
			board.SetTool(state.ToolEraser)
		}),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentUndoIcon(), board.Undo),
		widget.NewToolbarAction(theme.ContentRedoIcon(), board.Redo),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.GridIcon(), board.ToggleGrid),
		widget.NewToolbarAction(theme.ViewRestoreIcon(), board.ResetView),
	)
	if actions.Export != nil {
		tb.Append(widget.NewToolbarAction(theme.DocumentSaveIcon(), actions.Export))
	}

	swatches := make([]fyne.CanvasObject, 0, len(palette))
	for _, c := range palette {
		swatches = append(swatches, newColorSwatch(c, board.SetColor))
	}
	colorBox := container.NewHBox(swatches...)

	widthSlider := widget.NewSlider(1.0, 50.0)
	widthSlider.SetValue(initialWidth)
	widthSlider.OnChanged = board.SetStroke
	sliderContainer := container.New(layout.NewGridWrapLayout(fyne.NewSize(150, 35)), widthSlider)

	return container.NewHBox(
		widget.NewLabel("Tool:"),
		tb,
		widget.NewSeparator(),
		widget.NewLabel("Color:"),
		colorBox,
		widget.NewSeparator(),
		widget.NewLabel("Size:"),
		sliderContainer,
		layout.NewSpacer(),
	)
}
