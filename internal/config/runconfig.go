package config

import (
	"encoding/json"
	"fmt"

	"github.com/planilimpa/planilimpa/internal/enrich"
)

// RunConfig is the caller-supplied pipeline configuration: one policy per
// column, the abbreviation table, and optional detection overrides. It is
// a plain JSON object so users can export a configuration, adjust it, and
// import it back.
type RunConfig struct {
	Policies      enrich.PolicyMap         `json:"politicas"`
	Abbreviations enrich.AbbreviationTable `json:"abreviacoes,omitempty"`
	Threshold     float64                  `json:"limiarSimilaridade,omitempty"`
	NameColumns   []string                 `json:"colunasNome,omitempty"`
	CodeColumns   []string                 `json:"colunasCodigo,omitempty"`
}

// ParseRunConfig decodes and validates a JSON run configuration.
// Configuration defects are fatal to the run, never silently defaulted.
func ParseRunConfig(data []byte) (*RunConfig, error) {
	var rc RunConfig
	if err := json.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("parse run config: %w", err)
	}
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	return &rc, nil
}

// Validate checks action names, required default values, and the threshold
// range.
func (rc *RunConfig) Validate() error {
	for col, p := range rc.Policies {
		switch p.Action {
		case enrich.ActionIgnore, enrich.ActionAnalyze, enrich.ActionDefaultAll, enrich.ActionDefaultEmpty, "":
		default:
			return fmt.Errorf("column %q: unknown action %q", col, p.Action)
		}
	}
	if err := rc.Policies.Validate(); err != nil {
		return err
	}
	if rc.Threshold < 0 || rc.Threshold > 1 {
		return fmt.Errorf("limiarSimilaridade (%v) must be in [0, 1]", rc.Threshold)
	}
	return nil
}

// Export renders the configuration as indented JSON for download.
func (rc *RunConfig) Export() ([]byte, error) {
	return json.MarshalIndent(rc, "", "  ")
}
