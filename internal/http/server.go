package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"scadenze/internal/core"
	"scadenze/internal/middleware/trace"
)

// Ports the API surface needs from the engine and the execution log.
type (
	// ExecutionRunner triggers one orchestration run.
	ExecutionRunner interface {
		RunExecution(ctx context.Context, now time.Time) (core.ExecutionReport, error)
	}

	// ExecutionLogReader reads the append-only run history.
	ExecutionLogReader interface {
		LastExecution(ctx context.Context) (core.ExecutionReport, error)
		ListExecutions(ctx context.Context, limit int) ([]core.ExecutionReport, error)
	}
)

type Server struct {
	http.Server
	runner ExecutionRunner
	logs   ExecutionLogReader
	trace  *trace.Middleware
}

func NewServer(addr string, runner ExecutionRunner, logs ExecutionLogReader) *Server {
	s := &Server{
		runner: runner,
		logs:   logs,
		trace:  trace.NewMiddleware(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/executions", s.handleExecutions)
	mux.HandleFunc("/executions/last", s.handleLastExecution)

	s.Server = http.Server{
		Addr:    addr,
		Handler: s.trace.Middleware(mux),
	}

	return s
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleMetrics exposes request counts in a Prometheus-like text format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n", s.trace.TotalRequests())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
