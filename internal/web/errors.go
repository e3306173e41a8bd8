package web

// errors.go provides unified error response handling for the web layer.
// Technical errors are logged server-side with the request ID for
// correlation; clients receive a stable JSON shape with a machine-readable
// code.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/planilimpa/planilimpa/internal/enrich"
	"github.com/planilimpa/planilimpa/internal/table"
)

var errRateLimited = errors.New("rate limit exceeded")

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error string `json:"erro"`
	Code  string `json:"codigo"`
}

// respondError logs the technical error and writes the JSON error body.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	code := errorCode(err, statusCode)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: err.Error(),
		Code:  code,
	})
}

// errorCode maps known error types to stable machine-readable codes.
func errorCode(err error, statusCode int) string {
	var policyErr *enrich.InvalidPolicyError
	if errors.As(err, &policyErr) {
		return "invalid_policy"
	}
	var recordErr *table.MalformedRecordError
	if errors.As(err, &recordErr) {
		return "malformed_record"
	}
	switch statusCode {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "internal"
	}
}

// logWriteError records a failure that happened after headers were sent,
// typically the client going away mid-download.
func logWriteError(r *http.Request, err error) {
	slog.Error("response write error",
		"path", r.URL.Path,
		"error", err,
		"request_id", middleware.GetReqID(r.Context()),
	)
}

// writeJSON encodes v as JSON and writes it to w.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error",
			"error", err,
			"request_id", middleware.GetReqID(r.Context()),
		)
	}
}
