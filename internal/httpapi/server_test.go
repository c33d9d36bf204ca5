package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"batchd/internal/manager"
	"batchd/pkg/types"
)

func TestModelsHandler(t *testing.T) {
	svc := &mockService{models: []types.Model{{ID: "m1"}, {ID: "m2"}}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff header")
	}
	var body types.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Models) != 2 {
		t.Fatalf("models len=%d", len(body.Models))
	}
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{Backend: "echo", Models: 3}}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Backend != "echo" || body.Models != 3 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHealthzAndReadyz(t *testing.T) {
	cases := []struct {
		path  string
		ready bool
		code  int
		body  string
	}{
		{"/healthz", false, http.StatusOK, "ok"},
		{"/readyz", true, http.StatusOK, "ready"},
		{"/readyz", false, http.StatusServiceUnavailable, "not ready"},
	}
	for _, c := range cases {
		w := httptest.NewRecorder()
		NewMux(&mockService{ready: c.ready}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, c.path, nil))
		if w.Code != c.code || w.Body.String() != c.body {
			t.Fatalf("%s ready=%v: code=%d body=%q", c.path, c.ready, w.Code, w.Body.String())
		}
	}
}

func TestReadyz_Deep(t *testing.T) {
	svc := &sanityService{mockService: mockService{ready: true}, rep: manager.SanityReport{Backend: "nim"}, err: manager.ErrDependencyUnavailable("down")}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz?deep=1", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	svc.err = nil
	svc.rep.Reachable = true
	w = httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz?deep=1", nil))
	var rep manager.SanityReport
	if err := json.Unmarshal(w.Body.Bytes(), &rep); err != nil || w.Code != http.StatusOK || !rep.Reachable {
		t.Fatalf("status=%d rep=%+v err=%v", w.Code, rep, err)
	}
}

func TestInfer_Success(t *testing.T) {
	svc := &mockService{}
	w := postInfer(t, NewMux(svc), inferBody)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp types.InferResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Model != "m" || len(resp.Outputs["input_ids"]) != 1 {
		t.Fatalf("resp=%+v", resp)
	}
	if svc.lastReq.Model != "m" {
		t.Fatalf("service saw %+v", svc.lastReq)
	}
}

func TestInfer_RequestValidation(t *testing.T) {
	h := NewMux(&mockService{})
	cases := []struct {
		name string
		ct   string
		body string
		code int
	}{
		{"no content type", "", inferBody, http.StatusUnsupportedMediaType},
		{"text content type", "text/plain", inferBody, http.StatusUnsupportedMediaType},
		{"bad json", "application/json", "{", http.StatusBadRequest},
		{"no inputs", "application/json", `{"model":"m"}`, http.StatusBadRequest},
		{"negative timeout", "application/json", `{"inputs":{"x":[[1]]},"timeout_ms":-1}`, http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/infer", strings.NewReader(c.body))
			if c.ct != "" {
				req.Header.Set("Content-Type", c.ct)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != c.code {
				t.Fatalf("status=%d want %d body=%s", w.Code, c.code, w.Body.String())
			}
			var er types.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Code != c.code {
				t.Fatalf("error body=%s", w.Body.String())
			}
		})
	}
}

func TestInfer_BodyTooLarge(t *testing.T) {
	SetMaxBodyBytes(16)
	t.Cleanup(func() { SetMaxBodyBytes(0) })
	w := postInfer(t, NewMux(&mockService{}), inferBody)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestInfer_UsesTighterTimeout(t *testing.T) {
	SetInferTimeout(time.Hour)
	t.Cleanup(func() { SetInferTimeout(0) })
	var left time.Duration
	svc := &mockService{inferFn: func(ctx context.Context, req types.InferRequest) (types.InferResponse, error) {
		dl, ok := ctx.Deadline()
		if !ok {
			t.Errorf("expected a deadline")
		}
		left = time.Until(dl)
		return types.InferResponse{}, nil
	}}
	w := postInfer(t, NewMux(svc), `{"inputs":{"x":[[1]]},"timeout_ms":500}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if left <= 0 || left > 500*time.Millisecond {
		t.Fatalf("deadline in %s, want <= 500ms", left)
	}
}

func TestInfer_CallerTimeoutIs504(t *testing.T) {
	svc := &mockService{inferFn: func(ctx context.Context, req types.InferRequest) (types.InferResponse, error) {
		<-ctx.Done()
		return types.InferResponse{}, cancelledErr(ctx)
	}}
	w := postInfer(t, NewMux(svc), `{"inputs":{"x":[[1]]},"timeout_ms":10}`)
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestInfer_ShutdownIs503(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	SetBaseContext(base)
	t.Cleanup(func() { SetBaseContext(nil) })
	svc := &mockService{inferFn: func(ctx context.Context, req types.InferRequest) (types.InferResponse, error) {
		cancel()
		<-ctx.Done()
		return types.InferResponse{}, cancelledErr(ctx)
	}}
	w := postInfer(t, NewMux(svc), inferBody)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestFlushAndUnloadRoutes(t *testing.T) {
	svc := &mockService{}
	h := NewMux(svc)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/models/m1/flush", nil))
	if w.Code != http.StatusAccepted || len(svc.flushed) != 1 || svc.flushed[0] != "m1" {
		t.Fatalf("flush: status=%d flushed=%v", w.Code, svc.flushed)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/models/m2", nil))
	if w.Code != http.StatusOK || len(svc.unloads) != 1 || svc.unloads[0] != "m2" {
		t.Fatalf("unload: status=%d unloads=%v", w.Code, svc.unloads)
	}

	svc.flushErr = manager.ErrModelNotFound("x")
	svc.unloadErr = manager.ErrModelNotFound("x")
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/models/x/flush", nil),
		httptest.NewRequest(http.MethodDelete, "/models/x", nil),
	} {
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s %s: status=%d", req.Method, req.URL.Path, w.Code)
		}
	}
}
