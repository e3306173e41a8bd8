// Package enrich implements the column-policy enrichment engine: it applies
// per-column policies and abbreviation expansion to normalize product
// records while keeping protected fields byte-identical.
//
// The engine is a pure function over an in-memory table. It performs no
// I/O, calls no external enrichment service, and the same inputs always
// produce the same outputs and statistics.
package enrich

import "fmt"

// Action governs how a column is transformed during enrichment.
type Action string

const (
	// ActionIgnore copies the column unchanged.
	ActionIgnore Action = "ignore"
	// ActionAnalyze runs abbreviation substitution over string values.
	ActionAnalyze Action = "analyze"
	// ActionDefaultAll replaces every value with the policy default.
	ActionDefaultAll Action = "default_all"
	// ActionDefaultEmpty replaces only empty values with the policy default.
	ActionDefaultEmpty Action = "default_empty"
)

// ColumnPolicy configures enrichment for a single column.
//
// IsProtected overrides Action: a protected column is never modified, so
// financial and inventory fields stay byte-identical under all code paths.
type ColumnPolicy struct {
	Action       Action `json:"action"`
	DefaultValue string `json:"defaultValue,omitempty"`
	IsProtected  bool   `json:"isProtected,omitempty"`
}

// PolicyMap assigns one policy per column name. Columns without an entry
// are treated as analyze, unprotected.
type PolicyMap map[string]ColumnPolicy

// Get returns the policy for a column, falling back to the default
// (analyze, unprotected) when none is configured.
func (m PolicyMap) Get(column string) ColumnPolicy {
	if p, ok := m[column]; ok {
		return p
	}
	return ColumnPolicy{Action: ActionAnalyze}
}

// InvalidPolicyError reports a default action configured without a usable
// default value. This is a configuration defect and is raised before any
// row is processed; silently guessing a default could corrupt data.
type InvalidPolicyError struct {
	Column string
	Action Action
}

func (e *InvalidPolicyError) Error() string {
	return fmt.Sprintf("invalid policy for column %q: action %s requires a non-empty defaultValue", e.Column, e.Action)
}

// Validate checks that every non-protected default action carries a
// non-empty default value.
func (m PolicyMap) Validate() error {
	for col, p := range m {
		if p.IsProtected {
			continue
		}
		if p.Action == ActionDefaultAll || p.Action == ActionDefaultEmpty {
			if isBlank(p.DefaultValue) {
				return &InvalidPolicyError{Column: col, Action: p.Action}
			}
		}
	}
	return nil
}
