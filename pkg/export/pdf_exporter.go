package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// ClaimStub holds the fields printed on a pickup slip for a ready document.
type ClaimStub struct {
	QueueNumber  string
	StudentName  string
	DocumentType string
	Quantity     int
	TotalAmount  float64
	ReleaseDate  string
}

// PDFExporter renders claim stubs and tabular reports into PDF bytes.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// RenderClaimStub creates a one-page pickup slip the student presents at the
// registrar window.
func (e *PDFExporter) RenderClaimStub(stub ClaimStub) ([]byte, error) {
	if stub.QueueNumber == "" {
		return nil, fmt.Errorf("claim stub requires a queue number")
	}
	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 15, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "REGISTRAR DOCUMENT CLAIM STUB", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 12, stub.QueueNumber, "1", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 10)
	rows := [][2]string{
		{"Student", stub.StudentName},
		{"Document", stub.DocumentType},
		{"Quantity", fmt.Sprintf("%d", stub.Quantity)},
		{"Amount Paid", fmt.Sprintf("PHP %.2f", stub.TotalAmount)},
		{"Target Release", stub.ReleaseDate},
	}
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(40, 8, row[0], "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 8, row[1], "1", 1, "", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "I", 8)
	pdf.MultiCell(0, 4, "Present this stub together with a valid school ID when claiming your document.", "", "L", false)

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render claim stub: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderTable creates a landscape PDF report from a Table with an optional
// title row.
func (e *PDFExporter) RenderTable(t Table, title string) ([]byte, error) {
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("pdf export requires columns")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	pageWidth, _ := pdf.GetPageSize()
	colWidth := (pageWidth - 20) / float64(len(t.Columns))

	pdf.SetFont("Arial", "B", 9)
	for _, column := range t.Columns {
		pdf.CellFormat(colWidth, 8, column, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return nil, fmt.Errorf("pdf row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
		for _, cell := range row {
			pdf.CellFormat(colWidth, 7, cell, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
