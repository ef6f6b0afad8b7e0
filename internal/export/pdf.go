// Package export renders a board to files outside the app.
package export

import (
	"image/color"
	"io"

	"github.com/jung-kurt/gofpdf"

	"SharedBoard/internal/state"
)

const (
	pageWidth  = 210.0 // A4, mm
	pageHeight = 297.0
	margin     = 10.0
)

// Paper is the page background; erasers paint with it.
var Paper = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// PDF writes strokes to a single A4 page at path, scaled to fit the page.
func PDF(path string, strokes []state.Stroke) error {
	p := render(strokes)
	return p.OutputFileAndClose(path)
}

// WritePDF is PDF for an arbitrary writer.
func WritePDF(w io.Writer, strokes []state.Stroke) error {
	return render(strokes).Output(w)
}

func render(strokes []state.Stroke) *gofpdf.Fpdf {
	p := gofpdf.New("P", "mm", "A4", "")
	p.SetTitle("SharedBoard export", true)
	p.AddPage()
	p.SetLineCapStyle("round")
	p.SetLineJoinStyle("round")

	bounds := state.NewSequence(strokes...).Bounds()
	if bounds.Empty() {
		return p
	}
	scale := fit(bounds)
	toPage := func(pt state.Point) (float64, float64) {
		return margin + (pt.X-bounds.X)*scale, margin + (pt.Y-bounds.Y)*scale
	}

	for _, st := range strokes {
		c := st.StrokeColor(Paper)
		p.SetDrawColor(int(c.R), int(c.G), int(c.B))
		p.SetFillColor(int(c.R), int(c.G), int(c.B))
		width := max(st.Width*scale, 0.1)
		p.SetLineWidth(width)

		if len(st.Points) == 1 {
			x, y := toPage(st.Points[0])
			p.Circle(x, y, width/2, "F")
			continue
		}
		for i := 1; i < len(st.Points); i++ {
			x1, y1 := toPage(st.Points[i-1])
			x2, y2 := toPage(st.Points[i])
			p.Line(x1, y1, x2, y2)
		}
	}
	return p
}

// fit scales canvas units to millimetres so bounds fills the printable area
// without enlarging small drawings past one canvas pixel per 0.35mm.
func fit(bounds state.Rect) float64 {
	scale := 0.35
	if bounds.Width > 0 {
		scale = min(scale, (pageWidth-2*margin)/bounds.Width)
	}
	if bounds.Height > 0 {
		scale = min(scale, (pageHeight-2*margin)/bounds.Height)
	}
	return scale
}
