package table

// Source pairs a parsed table with the identity of the file it came from.
type Source struct {
	File  string
	Table *Table
}

// Merge combines tables parsed from several source files into one table.
//
// The merged column order is the first-appearance order across sources, so
// files sharing a schema keep their layout and extra columns from later
// files are appended, never lost. Cells missing from a source are padded
// empty. Each row is stamped with the reserved metadata columns
// (__source_file, __source_row, __batch_index); metadata columns are placed
// after all data columns.
func Merge(sources []Source) *Table {
	merged := New()
	for _, src := range sources {
		for _, col := range src.Table.Columns {
			if !IsMetaColumn(col) {
				merged.AddColumn(col)
			}
		}
	}
	merged.AddColumn(ColSourceFile)
	merged.AddColumn(ColSourceRow)
	merged.AddColumn(ColBatchIndex)

	for batch, src := range sources {
		for r := range src.Table.Rows {
			row := make([]Value, len(merged.Columns))
			for i, col := range merged.Columns {
				if IsMetaColumn(col) {
					continue
				}
				if _, ok := src.Table.ColumnIndex(col); ok {
					row[i] = src.Table.Value(r, col)
				}
			}
			merged.Rows = append(merged.Rows, row)
			idx := len(merged.Rows) - 1
			merged.Set(idx, ColSourceFile, String(src.File))
			merged.Set(idx, ColSourceRow, Number(float64(r+1)))
			merged.Set(idx, ColBatchIndex, Number(float64(batch)))
		}
	}
	return merged
}
