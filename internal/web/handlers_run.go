package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/planilimpa/planilimpa/internal/config"
	"github.com/planilimpa/planilimpa/internal/ingest"
	"github.com/planilimpa/planilimpa/internal/pipeline"
)

// handleCreateRun accepts a multipart batch of spreadsheet files plus an
// optional "config" part holding the run configuration JSON, and starts a
// pipeline run. The job ID is returned immediately; progress is polled.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	// Whole-batch cap: per-file limits are enforced on submission.
	maxBody := s.cfg.Upload.MaxFileSize * int64(s.cfg.Upload.MaxFiles)
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, r, fmt.Errorf("invalid form or batch too large: %w", err), http.StatusBadRequest)
		return
	}

	var files []ingest.File
	for _, header := range r.MultipartForm.File["files"] {
		f, err := header.Open()
		if err != nil {
			respondError(w, r, fmt.Errorf("open %s: %w", header.Filename, err), http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondError(w, r, fmt.Errorf("read %s: %w", header.Filename, err), http.StatusBadRequest)
			return
		}
		files = append(files, ingest.File{Name: header.Filename, Data: data})
	}

	var rc *config.RunConfig
	if raw := r.FormValue("config"); raw != "" {
		parsed, err := config.ParseRunConfig([]byte(raw))
		if err != nil {
			respondError(w, r, err, http.StatusBadRequest)
			return
		}
		rc = parsed
	}

	jobID, err := s.service.StartRun(r.Context(), files, rc)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, pipeline.ErrTooManyRuns) {
			status = http.StatusTooManyRequests
			w.Header().Set("Retry-After", "10")
		}
		respondError(w, r, err, status)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, r, map[string]string{"jobId": jobID})
}

// handleRunProgress returns the current phase of a run.
func (s *Server) handleRunProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	progress, ok := s.service.Progress(jobID)
	if !ok {
		respondError(w, r, fmt.Errorf("unknown job: %s", jobID), http.StatusNotFound)
		return
	}
	writeJSON(w, r, progress)
}

// handleRunResult returns the final statistics and duplicate report.
// While the run is still in flight this responds 404; clients poll the
// progress endpoint until the phase is terminal.
func (s *Server) handleRunResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	result, ok := s.service.Result(jobID)
	if !ok {
		respondError(w, r, fmt.Errorf("no result for job: %s", jobID), http.StatusNotFound)
		return
	}
	writeJSON(w, r, result)
}

// handleCancelRun aborts the detection phase of a running job. The run
// still completes, keeping the duplicate groups found so far.
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if !s.service.CancelRun(jobID) {
		respondError(w, r, fmt.Errorf("unknown job: %s", jobID), http.StatusNotFound)
		return
	}
	writeJSON(w, r, map[string]string{"status": "cancelling"})
}
