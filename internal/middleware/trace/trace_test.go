package trace

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddlewareSetsRequestID(t *testing.T) {
	m := NewMiddleware()

	var gotID string
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/executions", nil))

	if gotID == "" {
		t.Error("no request id in handler context")
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want the handler's 418", rec.Code)
	}
}

func TestMiddlewareCountsRequests(t *testing.T) {
	m := NewMiddleware()
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	}
	if got := m.TotalRequests(); got != 3 {
		t.Errorf("TotalRequests() = %d, want 3", got)
	}
}

func TestRequestIDFromContextMissing(t *testing.T) {
	if got := RequestIDFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context()); got != "" {
		t.Errorf("RequestIDFromContext() = %q, want empty without middleware", got)
	}
}
