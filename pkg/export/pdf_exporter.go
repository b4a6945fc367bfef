package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders datasets as a simple A4 table. Core fonts only
// hold cp1252, so text goes through the unicode translator to keep
// accented Portuguese strings readable.
type PDFExporter struct{}

func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	generated := time.Now().Format("02/01/2006 15:04")
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Gerado em %s", generated)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	usable := pageW - left - right
	colW := usable
	if n := len(data.Headers); n > 0 {
		colW = usable / float64(n)
	}

	writeHeader := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, h := range data.Headers {
			pdf.CellFormat(colW, 7, tr(h), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}
	writeHeader()

	_, pageH := pdf.GetPageSize()
	for _, row := range data.Rows {
		if pdf.GetY() > pageH-25 {
			pdf.AddPage()
			writeHeader()
		}
		for _, h := range data.Headers {
			pdf.CellFormat(colW, 6, tr(row[h]), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetFont("Helvetica", "I", 8)
	pdf.Ln(4)
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("Total de registros: %d", len(data.Rows))), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
