package render

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// letterToPDF renders cover-letter markdown onto an A4 page. Letters are
// prose with the occasional heading or list, so the walker covers exactly
// that subset.
func letterToPDF(markdown string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(22, 24, 22)
	pdf.SetAutoPageBreak(true, 24)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 11)

	source := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	walker := &letterWalker{
		pdf:    pdf,
		source: source,
		font:   "Helvetica",
		size:   11,
	}
	if err := ast.Walk(doc, walker.walk); err != nil {
		return nil, fmt.Errorf("letter layout: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("letter output: %w", err)
	}
	return buf.Bytes(), nil
}

type letterWalker struct {
	pdf    *fpdf.Fpdf
	source []byte
	font   string
	size   float64
	bold   bool
	italic bool
	inList bool
}

func (w *letterWalker) updateFont() {
	style := ""
	if w.bold {
		style += "B"
	}
	if w.italic {
		style += "I"
	}
	w.pdf.SetFont(w.font, style, w.size)
}

func (w *letterWalker) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n.Kind() {
	case ast.KindHeading:
		if entering {
			w.pdf.Ln(4)
			size := 13.0
			if n.(*ast.Heading).Level == 1 {
				size = 15
			}
			w.pdf.SetFont(w.font, "B", size)
		} else {
			w.pdf.Ln(8)
			w.updateFont()
		}
	case ast.KindParagraph:
		if !entering {
			if w.inList {
				w.pdf.Ln(5)
			} else {
				w.pdf.Ln(10)
			}
		}
	case ast.KindText:
		if entering {
			w.pdf.Write(5.5, string(n.(*ast.Text).Text(w.source)))
			if n.(*ast.Text).SoftLineBreak() || n.(*ast.Text).HardLineBreak() {
				w.pdf.Ln(5.5)
			}
		}
	case ast.KindEmphasis:
		if n.(*ast.Emphasis).Level == 2 {
			w.bold = entering
		} else {
			w.italic = entering
		}
		w.updateFont()
	case ast.KindList:
		w.inList = entering
		if !entering {
			w.pdf.Ln(4)
		}
	case ast.KindListItem:
		if entering {
			w.pdf.SetX(26)
			w.pdf.Write(5.5, "- ")
		}
	case ast.KindThematicBreak:
		if entering {
			w.pdf.Ln(3)
			w.pdf.Line(22, w.pdf.GetY(), 188, w.pdf.GetY())
			w.pdf.Ln(3)
		}
	}
	return ast.WalkContinue, nil
}
