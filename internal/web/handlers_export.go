package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/planilimpa/planilimpa/internal/export"
	"github.com/planilimpa/planilimpa/internal/pipeline"
)

// finishedResult fetches the result of a completed run, or writes the 404.
func (s *Server) finishedResult(w http.ResponseWriter, r *http.Request) (*pipeline.Result, bool) {
	jobID := chi.URLParam(r, "jobID")
	result, ok := s.service.Result(jobID)
	if !ok {
		respondError(w, r, fmt.Errorf("no result for job: %s", jobID), http.StatusNotFound)
		return nil, false
	}
	if result.Enriched == nil {
		respondError(w, r, fmt.Errorf("job %s produced no table", jobID), http.StatusNotFound)
		return nil, false
	}
	return result, true
}

func attachmentHeaders(w http.ResponseWriter, prefix, ext, contentType string) {
	timestamp := time.Now().Format("20060102_150405")
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s_%s.%s"`, prefix, timestamp, ext))
}

// handleDownloadEnrichedCSV streams the enriched table as CSV. Origin
// metadata columns are included with ?meta=1.
func (s *Server) handleDownloadEnrichedCSV(w http.ResponseWriter, r *http.Request) {
	result, ok := s.finishedResult(w, r)
	if !ok {
		return
	}
	includeMeta := r.URL.Query().Get("meta") == "1"

	attachmentHeaders(w, "planilha_limpa", "csv", "text/csv; charset=utf-8")
	if err := export.WriteTableCSV(w, result.Enriched, includeMeta); err != nil {
		// Headers already sent; nothing to do but log.
		logWriteError(r, err)
	}
}

// handleDownloadEnrichedJSON streams the enriched table as a JSON array.
func (s *Server) handleDownloadEnrichedJSON(w http.ResponseWriter, r *http.Request) {
	result, ok := s.finishedResult(w, r)
	if !ok {
		return
	}
	includeMeta := r.URL.Query().Get("meta") == "1"

	attachmentHeaders(w, "planilha_limpa", "json", "application/json")
	if err := export.WriteTableJSON(w, result.Enriched, includeMeta); err != nil {
		logWriteError(r, err)
	}
}

// handleDownloadDuplicatesCSV streams the duplicate report joined against
// the analyzed rows, one line per group member.
func (s *Server) handleDownloadDuplicatesCSV(w http.ResponseWriter, r *http.Request) {
	result, ok := s.finishedResult(w, r)
	if !ok {
		return
	}
	if result.Duplicates == nil {
		respondError(w, r, fmt.Errorf("job produced no duplicate report"), http.StatusNotFound)
		return
	}

	attachmentHeaders(w, "duplicatas", "csv", "text/csv; charset=utf-8")
	if err := export.WriteDuplicatesCSV(w, result.Analyzed, result.Duplicates); err != nil {
		logWriteError(r, err)
	}
}

// handleDownloadDuplicatesJSON streams the duplicate report as JSON.
func (s *Server) handleDownloadDuplicatesJSON(w http.ResponseWriter, r *http.Request) {
	result, ok := s.finishedResult(w, r)
	if !ok {
		return
	}
	if result.Duplicates == nil {
		respondError(w, r, fmt.Errorf("job produced no duplicate report"), http.StatusNotFound)
		return
	}

	attachmentHeaders(w, "duplicatas", "json", "application/json")
	if err := export.WriteDuplicatesJSON(w, result.Duplicates); err != nil {
		logWriteError(r, err)
	}
}
