package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

// PDFPrefix is the file name prefix of paginated exports.
const PDFPrefix = "wind_report"

const (
	pageMargin     = 15.0
	lineHeight     = 6.0
	labelWidth     = 80.0
	valueWidth     = 100.0
	pdfChartWidth  = 170.0
	pdfChartHeight = 85.0
)

// WritePDF writes an A4 report: title and metadata, then one heading and
// two-column table per section, then the rendered charts. It returns
// ErrNoData without writing when rows is empty.
func WritePDF(w io.Writer, rows []Row, charts []Chart, meta Meta) error {
	if len(rows) == 0 {
		return ErrNoData
	}
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-pageMargin)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	lines := metaLines(meta)
	pdf.SetTitle(tr(lines[0][1]), true)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, tr(lines[0][1]), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, kv := range lines[1:] {
		pdf.CellFormat(35, lineHeight, tr(kv[0]+":"), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, lineHeight, tr(kv[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	for _, r := range rows {
		if r.Header {
			pdf.Ln(3)
			pdf.SetFont("Helvetica", "B", 13)
			pdf.SetFillColor(220, 232, 245)
			pdf.CellFormat(labelWidth+valueWidth, 8, tr(r.Section), "", 1, "L", true, 0, "")
			pdf.SetFont("Helvetica", "", 10)
			continue
		}
		pdf.CellFormat(labelWidth, lineHeight, tr(r.Label), "B", 0, "L", false, 0, "")
		pdf.CellFormat(valueWidth, lineHeight, tr(r.Value), "B", 1, "L", false, 0, "")
	}

	if len(charts) > 0 {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 8, "Charts", "", 1, "L", false, 0, "")
		for _, c := range charts {
			opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
			pdf.RegisterImageOptionsReader(c.Name, opts, bytes.NewReader(c.PNG))
			if pdf.GetY()+pdfChartHeight > 297-pageMargin {
				pdf.AddPage()
			}
			pdf.ImageOptions(c.Name, pageMargin, pdf.GetY(), pdfChartWidth, pdfChartHeight, true, opts, 0, "")
			pdf.Ln(4)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
