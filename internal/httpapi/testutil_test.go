package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"batchd/internal/batcher"
	"batchd/internal/manager"
	"batchd/pkg/types"
)

type mockService struct {
	models []types.Model
	status types.StatusResponse
	ready  bool

	inferFn   func(ctx context.Context, req types.InferRequest) (types.InferResponse, error)
	flushErr  error
	unloadErr error

	mu      sync.Mutex
	lastReq types.InferRequest
	flushed []string
	unloads []string
}

func (m *mockService) ListModels() []types.Model    { return append([]types.Model(nil), m.models...) }
func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Ready() bool                  { return m.ready }

func (m *mockService) Infer(ctx context.Context, req types.InferRequest) (types.InferResponse, error) {
	m.mu.Lock()
	m.lastReq = req
	m.mu.Unlock()
	if m.inferFn != nil {
		return m.inferFn(ctx, req)
	}
	return types.InferResponse{ID: "r-1", Model: req.Model, Outputs: req.Inputs, BatchID: 1, BatchSize: 1}, nil
}

func (m *mockService) Flush(id string) error {
	m.mu.Lock()
	m.flushed = append(m.flushed, id)
	m.mu.Unlock()
	return m.flushErr
}

func (m *mockService) Unload(id string) error {
	m.mu.Lock()
	m.unloads = append(m.unloads, id)
	m.mu.Unlock()
	return m.unloadErr
}

// sanityService adds a backend probe to mockService.
type sanityService struct {
	mockService
	rep manager.SanityReport
	err error
}

func (s *sanityService) SanityCheck(context.Context) (manager.SanityReport, error) {
	return s.rep, s.err
}

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

const inferBody = `{"model":"m","inputs":{"input_ids":[[1,2]],"attention_mask":[[1,1]]}}`

func postInfer(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/infer", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// cancelledErr mirrors what the batcher returns when the caller's ctx ends.
func cancelledErr(ctx context.Context) error {
	return fmt.Errorf("%w: %v", batcher.ErrCancelled, ctx.Err())
}
