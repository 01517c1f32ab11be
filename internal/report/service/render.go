package service

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"

	"github.com/plantmetrics/plant/internal/report/domain"
)

func render(format domain.Format, title string, sheets []sheet) ([]byte, error) {
	switch format {
	case domain.FormatXLSX:
		return renderXLSX(sheets)
	case domain.FormatPDF:
		return renderPDF(title, sheets)
	case domain.FormatCSV:
		return renderCSV(sheets)
	}
	return nil, domain.ErrInvalidFormat
}

func renderXLSX(sheets []sheet) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	for i, sh := range sheets {
		name := sh.Name
		if i == 0 {
			// excelize seeds every workbook with one default sheet.
			if err := file.SetSheetName("Sheet1", name); err != nil {
				return nil, err
			}
		} else if _, err := file.NewSheet(name); err != nil {
			return nil, err
		}

		header := make([]any, len(sh.Headers))
		for j, h := range sh.Headers {
			header[j] = h
		}
		if err := file.SetSheetRow(name, "A1", &header); err != nil {
			return nil, err
		}
		for j, row := range sh.Rows {
			cell, err := excelize.CoordinatesToCellName(1, j+2)
			if err != nil {
				return nil, err
			}
			values := make([]any, len(row))
			for k, v := range row {
				values[k] = v
			}
			if err := file.SetSheetRow(name, cell, &values); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderPDF(title string, sheets []sheet) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)

	for _, sh := range sheets {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(0, 10, fmt.Sprintf("%s - %s", title, sh.Name), "", 1, "L", false, 0, "")
		pdf.Ln(2)

		// Columns share the printable width evenly.
		pageWidth, _ := pdf.GetPageSize()
		left, _, right, _ := pdf.GetMargins()
		colWidth := (pageWidth - left - right) / float64(len(sh.Headers))

		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, header := range sh.Headers {
			pdf.CellFormat(colWidth, 7, header, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Helvetica", "", 9)
		for _, row := range sh.Rows {
			for _, value := range row {
				pdf.CellFormat(colWidth, 6, clip(value, 48), "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderCSV flattens every sheet into one file with a blank line between
// sections.
func renderCSV(sheets []sheet) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	for i, sh := range sheets {
		if i > 0 {
			writer.Flush()
			buf.WriteString("\n")
		}
		if err := writer.Write(append([]string{}, sh.Headers...)); err != nil {
			return nil, err
		}
		for _, row := range sh.Rows {
			if err := writer.Write(row); err != nil {
				return nil, err
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
