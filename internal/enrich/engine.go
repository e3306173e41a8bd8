package enrich

import (
	"github.com/planilimpa/planilimpa/internal/table"
)

// Stats aggregates the counters produced by one enrichment run. JSON names
// follow the report contract consumed by the export layer.
type Stats struct {
	// FieldsFilled counts empty cells that became non-empty.
	FieldsFilled int `json:"camposPreenchidos"`
	// AbbreviationsCorrected counts individual token substitutions.
	AbbreviationsCorrected int `json:"abreviaturasCorrigidas"`
	// FieldsProtected counts cells left untouched by protection.
	FieldsProtected int `json:"camposProtegidos"`
	// FieldsIgnored counts non-protected cells with the ignore action.
	FieldsIgnored int `json:"camposIgnorados"`
}

// Enrich applies the column policies and abbreviation table to every record
// and returns the enriched table plus aggregate statistics.
//
// The input table is never mutated. Reserved metadata columns are copied
// verbatim and excluded from policy application. Columns without a policy
// default to analyze, unprotected. An empty table yields an empty table and
// zeroed stats.
func Enrich(t *table.Table, policies PolicyMap, abbrevs AbbreviationTable) (*table.Table, Stats, error) {
	var stats Stats

	if err := policies.Validate(); err != nil {
		return nil, stats, err
	}
	if err := t.Validate(); err != nil {
		return nil, stats, err
	}

	out := t.Clone()
	lookup := abbrevs.normalized()

	for _, col := range t.DataColumns() {
		pol := policies.Get(col)
		idx, _ := out.ColumnIndex(col)

		for r := range out.Rows {
			cell := out.Rows[r][idx]

			switch {
			case pol.IsProtected:
				// Protected wins over every action; the cell is already an
				// exact copy of the input.
				stats.FieldsProtected++

			case pol.Action == ActionIgnore:
				stats.FieldsIgnored++

			case pol.Action == ActionDefaultAll:
				wasEmpty := cell.IsEmpty()
				val, subs := lookup.Expand(pol.DefaultValue)
				out.Rows[r][idx] = table.String(val)
				stats.AbbreviationsCorrected += subs
				if wasEmpty {
					stats.FieldsFilled++
				}

			case pol.Action == ActionDefaultEmpty:
				if cell.IsEmpty() {
					out.Rows[r][idx] = table.String(pol.DefaultValue)
					stats.FieldsFilled++
				}

			default: // ActionAnalyze and unknown actions analyze by default
				if cell.Kind != table.KindString || cell.IsEmpty() {
					// Empty analyzed fields are a no-op: semantic enrichment
					// of empty cells belongs to the external oracle, not to
					// this engine.
					continue
				}
				val, subs := lookup.Expand(cell.Str)
				if subs > 0 {
					out.Rows[r][idx] = table.String(val)
					stats.AbbreviationsCorrected += subs
				}
			}
		}
	}

	return out, stats, nil
}
