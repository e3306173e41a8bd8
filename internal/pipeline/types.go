// Package pipeline orchestrates the cleaning pipeline: parse and merge the
// uploaded spreadsheets, run the enrichment engine, run the duplicate
// detector, and track the whole thing as an asynchronous, cancellable job.
// The engines stay pure; everything stateful lives here.
package pipeline

import (
	"time"

	"github.com/planilimpa/planilimpa/internal/dedupe"
	"github.com/planilimpa/planilimpa/internal/enrich"
	"github.com/planilimpa/planilimpa/internal/table"
)

// Phase indicates the current stage of a pipeline run.
type Phase string

const (
	PhaseStarting  Phase = "starting"
	PhaseParsing   Phase = "parsing"
	PhaseMerging   Phase = "merging"
	PhaseEnriching Phase = "enriching"
	PhaseDetecting Phase = "detecting"
	PhaseComplete  Phase = "complete"
	PhaseFailed    Phase = "failed"
	PhaseCancelled Phase = "cancelled"
)

// Progress is the externally visible state of a run.
type Progress struct {
	JobID     string   `json:"jobId"`
	Phase     Phase    `json:"fase"`
	FileNames []string `json:"arquivos"`
	TotalRows int      `json:"totalLinhas"`
	Error     string   `json:"erro,omitempty"`
}

// Result is the final outcome of a run. Enriched holds the full table for
// export; the JSON view carries the report and statistics only.
type Result struct {
	JobID      string         `json:"jobId"`
	FileNames  []string       `json:"arquivos"`
	TotalRows  int            `json:"totalLinhas"`
	Stats      enrich.Stats   `json:"estatisticas"`
	Duplicates *dedupe.Report `json:"duplicatas"`
	Duration   time.Duration  `json:"-"`
	DurationMs int64          `json:"duracaoMs"`
	Error      string         `json:"erro,omitempty"`

	Enriched *table.Table `json:"-"`
	Analyzed *table.Table `json:"-"`
}
