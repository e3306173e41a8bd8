// Package export renders enriched tables and duplicate reports into
// downloadable CSV and JSON artifacts. Row-index stability between the
// analyzed table and the duplicate report is guaranteed upstream, so joins
// here are always by position.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/planilimpa/planilimpa/internal/dedupe"
	"github.com/planilimpa/planilimpa/internal/table"
)

// WriteTableCSV writes the table as CSV. Reserved metadata columns are
// omitted unless includeMeta is set.
func WriteTableCSV(w io.Writer, t *table.Table, includeMeta bool) error {
	cols := exportColumns(t, includeMeta)
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	row := make([]string, len(cols))
	for r := 0; r < t.Len(); r++ {
		for i, col := range cols {
			row[i] = t.Value(r, col).Text()
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTableJSON writes the table as an array of objects, preserving column
// order within each object.
func WriteTableJSON(w io.Writer, t *table.Table, includeMeta bool) error {
	cols := exportColumns(t, includeMeta)

	if _, err := io.WriteString(w, "["); err != nil {
		return err
	}
	for r := 0; r < t.Len(); r++ {
		if r > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "{"); err != nil {
			return err
		}
		for i, col := range cols {
			if i > 0 {
				if _, err := io.WriteString(w, ","); err != nil {
					return err
				}
			}
			key, err := json.Marshal(col)
			if err != nil {
				return err
			}
			val, err := json.Marshal(t.Value(r, col))
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s:%s", key, val); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "}"); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "]")
	return err
}

// WriteDuplicatesCSV writes one line per duplicate-group member, joined
// against the analyzed table by row index: group number, match basis,
// score, row references, origin file, then the row's data columns.
//
// Two row references are emitted: "linha" is the zero-based index into the
// analyzed table, identical to the "linhas" values of the JSON report, and
// "linhaArquivo" is the one-based row inside the origin file.
func WriteDuplicatesCSV(w io.Writer, t *table.Table, report *dedupe.Report) error {
	cols := t.DataColumns()
	header := append([]string{"grupo", "tipo", "similaridade", "linha", "linhaArquivo", "arquivo"}, cols...)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for gi, g := range report.Groups {
		for _, r := range g.Linhas {
			rec := make([]string, 0, len(header))
			rec = append(rec,
				strconv.Itoa(gi+1),
				g.Tipo,
				strconv.FormatFloat(g.Similaridade, 'f', 4, 64),
				strconv.Itoa(r),
				t.Value(r, table.ColSourceRow).Text(),
				t.Value(r, table.ColSourceFile).Text(),
			)
			for _, col := range cols {
				rec = append(rec, t.Value(r, col).Text())
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDuplicatesJSON writes the duplicate report as JSON.
func WriteDuplicatesJSON(w io.Writer, report *dedupe.Report) error {
	enc := json.NewEncoder(w)
	return enc.Encode(report)
}

func exportColumns(t *table.Table, includeMeta bool) []string {
	if includeMeta {
		return t.Columns
	}
	return t.DataColumns()
}
