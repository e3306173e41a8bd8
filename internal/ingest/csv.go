// Package ingest parses uploaded CSV spreadsheets into in-memory tables and
// merges multi-file batches, stamping origin metadata so duplicate reports
// can attribute rows back to their source files.
//
// Parsing is deliberately forgiving: invalid UTF-8 is replaced, quoting is
// lazy, ragged rows are padded or given generated columns, and cell
// artifacts left by Excel exports are stripped. Numeric and boolean cells
// are coerced conservatively; anything ambiguous stays a string.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/planilimpa/planilimpa/internal/table"
)

// File is one uploaded spreadsheet, already read into memory.
type File struct {
	Name string
	Data []byte
}

// Parse reads a single CSV file into a table. The first row containing any
// non-empty cell is the header; fully empty data rows are skipped.
func Parse(f File) (*table.Table, error) {
	records, err := parseCSV(sanitizeUTF8(f.Data))
	if err != nil {
		return nil, fmt.Errorf("parse csv %s: %w", f.Name, err)
	}

	headerIdx := -1
	for i, row := range records {
		if !rowIsEmpty(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return table.New(), nil
	}

	tbl := table.New(cleanHeader(records[headerIdx])...)
	for _, row := range records[headerIdx+1:] {
		if rowIsEmpty(row) {
			continue
		}
		// Ragged exports happen; extra cells get generated columns rather
		// than being dropped.
		for len(row) > len(tbl.Columns) {
			tbl.AddColumn(fmt.Sprintf("coluna_%d", len(tbl.Columns)+1))
		}
		cells := make([]table.Value, len(row))
		for i, raw := range row {
			cells[i] = CoerceScalar(CleanCell(raw))
		}
		if err := tbl.AppendRow(cells); err != nil {
			return nil, fmt.Errorf("file %s: %w", f.Name, err)
		}
	}
	return tbl, nil
}

// ParseBatch parses every file and merges them into a single table with
// origin metadata. Heterogeneous schemas are expected; the merged column
// set is the union in first-appearance order.
func ParseBatch(files []File) (*table.Table, error) {
	sources := make([]table.Source, 0, len(files))
	for _, f := range files {
		tbl, err := Parse(f)
		if err != nil {
			return nil, err
		}
		sources = append(sources, table.Source{File: f.Name, Table: tbl})
	}
	return table.Merge(sources), nil
}

func parseCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

// sanitizeUTF8 replaces invalid byte sequences with the replacement rune so
// the csv reader never chokes on mixed-encoding exports.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}
	var buf bytes.Buffer
	buf.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}
	return buf.Bytes()
}

// CleanCell removes common CSV artifacts from a cell value: surrounding
// whitespace, the UTF-8 BOM, Excel formula prefixes (="..."), and stray
// surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.Trim(s, `"'`)
}

// cleanHeader cleans every header cell, fills in names for blank headers,
// and disambiguates duplicates so column identity is preserved.
func cleanHeader(row []string) []string {
	out := make([]string, len(row))
	seen := make(map[string]int, len(row))
	for i, h := range row {
		name := CleanCell(h)
		if name == "" {
			name = fmt.Sprintf("coluna_%d", i+1)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		}
		seen[name]++
		out[i] = name
	}
	return out
}

// CoerceScalar converts a cleaned cell into a typed scalar. Only
// unambiguous numbers and booleans are coerced; locale-formatted values
// such as "9,90" stay strings so the enrichment engine sees them verbatim.
// A number is coerced only when it round-trips to the exact input lexeme:
// "0012" (a SKU with leading zeros) and "9.90" (a price with a trailing
// zero) must survive byte-for-byte, so they stay strings.
func CoerceScalar(s string) table.Value {
	if s == "" {
		return table.Empty()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if strconv.FormatFloat(f, 'f', -1, 64) == s {
			return table.Number(f)
		}
		return table.String(s)
	}
	switch strings.ToLower(s) {
	case "true", "false":
		b := strings.EqualFold(s, "true")
		return table.Boolean(b)
	}
	return table.String(s)
}

func rowIsEmpty(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
