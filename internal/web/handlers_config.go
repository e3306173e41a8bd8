package web

import (
	"fmt"
	"io"
	"net/http"

	"github.com/planilimpa/planilimpa/internal/config"
	"github.com/planilimpa/planilimpa/internal/enrich"
)

// handleValidateRunConfig parses an uploaded run configuration and echoes
// the normalized form back, so the UI can check a config before starting a
// run with it.
func (s *Server) handleValidateRunConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		respondError(w, r, fmt.Errorf("read config: %w", err), http.StatusBadRequest)
		return
	}
	rc, err := config.ParseRunConfig(body)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, r, rc)
}

// handleRunConfigTemplate returns a starter configuration for download,
// showing one policy of each action plus a small abbreviation table.
func (s *Server) handleRunConfigTemplate(w http.ResponseWriter, r *http.Request) {
	rc := &config.RunConfig{
		Policies: enrich.PolicyMap{
			"nome":      {Action: enrich.ActionAnalyze},
			"sku":       {Action: enrich.ActionAnalyze, IsProtected: true},
			"origem":    {Action: enrich.ActionDefaultEmpty, DefaultValue: "Nacional"},
			"categoria": {Action: enrich.ActionDefaultAll, DefaultValue: "Sem categoria"},
			"notas":     {Action: enrich.ActionIgnore},
		},
		Abbreviations: enrich.AbbreviationTable{
			"cx":   "caixa",
			"un":   "unidade",
			"pct":  "pacote",
			"tam":  "tamanho",
			"qtde": "quantidade",
		},
		Threshold: s.cfg.Detect.Threshold,
	}

	data, err := rc.Export()
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="configuracao.json"`)
	w.Write(data)
}
