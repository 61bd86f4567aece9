package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVParser renders CSV files as a markdown table.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	doc := &Document{Title: trimExt(filename), Markdown: true}
	if len(records) == 0 {
		return doc, nil
	}

	// First row is headers.
	headers := records[0]
	var b strings.Builder
	writeRow(&b, headers, len(headers))
	b.WriteString("|")
	for range headers {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range records[1:] {
		writeRow(&b, row, len(headers))
	}
	doc.Text = b.String()
	return doc, nil
}

// writeRow pads or truncates row to width cells.
func writeRow(b *strings.Builder, row []string, width int) {
	b.WriteString("|")
	for i := 0; i < width; i++ {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		cell = strings.ReplaceAll(cell, "|", `\|`)
		cell = strings.ReplaceAll(cell, "\n", " ")
		b.WriteString(" " + cell + " |")
	}
	b.WriteString("\n")
}
