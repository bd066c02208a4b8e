package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrNoRows signals that an export was requested for an empty result set.
// Exports of nothing are treated as a caller error rather than producing
// an empty file.
var ErrNoRows = errors.New("export: no rows")

// Format identifies a supported export encoding.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
	FormatJSON  Format = "json"
)

// ParseFormat validates a format string from a request path.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatExcel:
		return FormatExcel, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("export: unsupported format %q", raw)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// Extension returns the file extension for the format, without a leading dot.
func (f Format) Extension() string {
	if f == FormatExcel {
		return "xlsx"
	}
	return string(f)
}

// Field describes one exported column: a header name and an extractor.
// Schemas are declared per DTO so the exported column set is explicit
// rather than derived from struct reflection.
type Field[D any] struct {
	Name  string
	Value func(D) string
}

// Schema declares the exportable columns of a DTO type.
type Schema[D any] struct {
	Sheet  string
	Fields []Field[D]
}

// Render encodes rows in the requested format.
func (s Schema[D]) Render(format Format, rows []D) ([]byte, error) {
	switch format {
	case FormatCSV:
		return s.CSV(rows)
	case FormatExcel:
		return s.Excel(rows)
	case FormatJSON:
		return s.JSON(rows)
	default:
		return nil, fmt.Errorf("export: unsupported format %q", format)
	}
}

// CSV renders rows as comma separated values with a header line.
func (s Schema[D]) CSV(rows []D) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		header[i] = f.Name
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("export: write header: %w", err)
	}

	record := make([]string, len(s.Fields))
	for _, row := range rows {
		for i, f := range s.Fields {
			record[i] = f.Value(row)
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("export: write record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Excel renders rows as a single-sheet XLSX workbook.
func (s Schema[D]) Excel(rows []D) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	sheet := s.Sheet
	if sheet == "" {
		sheet = "Export"
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("export: create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if sheet != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	header := make([]interface{}, len(s.Fields))
	for i, field := range s.Fields {
		header[i] = field.Name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("export: write header: %w", err)
	}

	for rowIdx, row := range rows {
		values := make([]interface{}, len(s.Fields))
		for i, field := range s.Fields {
			values[i] = field.Value(row)
		}
		cell, err := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("export: write row %d: %w", rowIdx+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("export: encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// JSON renders rows as a JSON array of the DTOs themselves.
func (s Schema[D]) JSON(rows []D) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return json.Marshal(rows)
}
