package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"scadenze/internal/core"
	"scadenze/internal/log"
	"scadenze/internal/middleware/trace"
	"scadenze/internal/services"
)

const defaultHistoryLimit = 20

// handleExecutions serves POST /executions (execute now) and
// GET /executions (run history).
func (s *Server) handleExecutions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.executeNow(w, r)
	case http.MethodGet:
		s.listExecutions(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// executeNow triggers one orchestration run and returns its report. A
// run already in flight yields 409 and no report.
func (s *Server) executeNow(w http.ResponseWriter, r *http.Request) {
	report, err := s.runner.RunExecution(r.Context(), time.Now())
	if err != nil {
		if errors.Is(err, services.ErrRunInProgress) {
			writeError(w, http.StatusConflict, "execution run already in progress")
			return
		}
		slog.ErrorContext(r.Context(), "Execution run failed",
			log.FieldComponent, log.ComponentHTTP,
			log.FieldRequestID, trace.RequestIDFromContext(r.Context()),
			log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "execution run failed")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) listExecutions(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusUnprocessableEntity, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	reports, err := s.logs.ListExecutions(r.Context(), limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list executions",
			log.FieldComponent, log.ComponentHTTP,
			log.FieldRequestID, trace.RequestIDFromContext(r.Context()),
			log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to load execution history")
		return
	}
	if reports == nil {
		reports = []core.ExecutionReport{}
	}

	writeJSON(w, http.StatusOK, reports)
}

// handleLastExecution serves GET /executions/last.
func (s *Server) handleLastExecution(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	report, err := s.logs.LastExecution(r.Context())
	if err != nil {
		if errors.Is(err, core.ErrNoExecutions) {
			writeError(w, http.StatusNotFound, "no execution yet")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to load last execution",
			log.FieldComponent, log.ComponentHTTP,
			log.FieldRequestID, trace.RequestIDFromContext(r.Context()),
			log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to load last execution")
		return
	}

	writeJSON(w, http.StatusOK, report)
}
