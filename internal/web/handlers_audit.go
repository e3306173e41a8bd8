package web

import (
	"fmt"
	"net/http"
	"strconv"
)

// handleHistory returns recent pipeline runs from the audit database,
// newest first. Responds 404 when no audit database is configured.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.service.AuditEnabled() {
		respondError(w, r, fmt.Errorf("run history is not enabled"), http.StatusNotFound)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			respondError(w, r, fmt.Errorf("invalid limit: %q", raw), http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := s.service.RecentRuns(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, map[string]any{"execucoes": runs})
}
