package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"batchd/internal/batcher"
	"batchd/pkg/types"
)

// TestMetricsMiddleware_EmitsRequestCounters verifies that wrapping a handler
// with MetricsMiddleware results in request metrics being exposed via the
// Prometheus /metrics handler.
func TestMetricsMiddleware_EmitsRequestCounters(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	rr := httptest.NewRecorder()
	MetricsMiddleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	mrr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(mrr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if mrr.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", mrr.Code)
	}
	body := mrr.Body.Bytes()
	if !bytes.Contains(body, []byte("batchd_http_requests_total")) {
		previewLen := min(len(body), 200)
		t.Fatalf("expected to find batchd_http_requests_total in metrics; got: %q", string(body[:previewLen]))
	}
}

func TestRoutePatternLabel(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {})
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/items/{id}", http.MethodGet, "200"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/42", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/items/{id}", http.MethodGet, "200"))
	if after-before != 1 {
		t.Fatalf("expected one request under route pattern, got delta %v", after-before)
	}
}

func TestBackpressureCounter_On429(t *testing.T) {
	c := backpressureTotal.WithLabelValues("overloaded")
	before := testutil.ToFloat64(c)
	svc := &mockService{inferFn: func(context.Context, types.InferRequest) (types.InferResponse, error) {
		return types.InferResponse{}, batcher.ErrOverloaded
	}}
	if w := postInfer(t, NewMux(svc), inferBody); w.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", w.Code)
	}
	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Fatalf("backpressure delta=%v", got)
	}
	IncrementBackpressure("")
	if testutil.ToFloat64(backpressureTotal.WithLabelValues("unspecified")) < 1 {
		t.Fatalf("empty reason should count as unspecified")
	}
}
