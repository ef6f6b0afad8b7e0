package ui

import (
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"SharedBoard/internal/export"
)

// App is the desktop window around a board.
type App struct {
	fyneApp fyne.App
	window  fyne.Window
	Board   *BoardWidget
	status  *widget.Label
	logger  *slog.Logger
}

func NewApp(title, shareLink, penColor string, penWidth float64, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		fyneApp: app.New(),
		Board:   NewBoardWidget(penColor, penWidth),
		status:  widget.NewLabel("Connecting..."),
		logger:  logger,
	}
	a.window = a.fyneApp.NewWindow(title)
	a.window.Resize(fyne.NewSize(1024, 768))

	toolbar := NewToolbar(a.Board, penWidth, ToolbarActions{Export: a.exportPDF})
	bottom := []fyne.CanvasObject{a.status}
	if shareLink != "" {
		link := widget.NewEntry()
		link.SetText(shareLink)
		bottom = append(bottom, widget.NewLabel("Share link:"), link)
	}
	content := container.NewBorder(toolbar, container.NewHBox(bottom...), nil, nil, a.Board)
	a.window.SetContent(content)

	a.window.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { a.Board.Undo() })
	a.window.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyY, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { a.Board.Redo() })
	return a
}

// SetStatus updates the status bar. Safe from any goroutine.
func (a *App) SetStatus(text string) {
	fyne.Do(func() { a.status.SetText(text) })
}

// Attach hands the board a new session. Safe from any goroutine.
func (a *App) Attach(e Engine) {
	fyne.Do(func() { a.Board.SetEngine(e) })
}

// Changed redraws the board. Safe from any goroutine.
func (a *App) Changed() {
	fyne.Do(a.Board.Refresh)
}

// OnClose registers f to run when the window is closed.
func (a *App) OnClose(f func()) {
	a.window.SetOnClosed(f)
}

// Run shows the window and blocks until the app quits.
func (a *App) Run() {
	a.window.ShowAndRun()
}

func (a *App) Quit() {
	fyne.Do(a.fyneApp.Quit)
}

func (a *App) exportPDF() {
	eng := a.Board.Engine()
	if eng == nil {
		a.status.SetText("Nothing to export yet")
		return
	}
	save := dialog.NewFileSave(func(w fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, a.window)
			return
		}
		if w == nil {
			return
		}
		defer w.Close()
		strokes := eng.Strokes()
		if err := export.WritePDF(w, strokes); err != nil {
			a.logger.Error("export failed", "path", w.URI().Path(), "error", err)
			dialog.ShowError(err, a.window)
			return
		}
		a.logger.Info("exported board", "path", w.URI().Path(), "strokes", len(strokes))
		a.status.SetText("Exported " + w.URI().Name())
	}, a.window)
	save.SetFileName("board.pdf")
	save.Show()
}
