package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"batchd/internal/batcher"
	"batchd/internal/httpapi"
	"batchd/internal/manager"
	"batchd/internal/registry"
	"batchd/pkg/types"
)

// createTempModelsDir creates a temporary directory populated with empty
// model artifacts and returns the directory path.
func createTempModelsDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte(""), 0o644); err != nil {
			t.Fatalf("write temp model %s: %v", p, err)
		}
	}
	return dir
}

// newServerForDir scans modelsDir and serves a manager over it.
func newServerForDir(t *testing.T, modelsDir string, cfg manager.ManagerConfig) (*httptest.Server, *manager.Manager) {
	t.Helper()
	reg, err := registry.LoadDir(modelsDir)
	if err != nil {
		t.Fatalf("scan models: %v", err)
	}
	cfg.Registry = reg
	mgr := manager.NewWithConfig(cfg)
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = mgr.Close(ctx)
		srv.Close()
	})
	return srv, mgr
}

type inferResult struct {
	status int
	resp   types.InferResponse
}

func doInfer(t *testing.T, url string, req types.InferRequest) inferResult {
	t.Helper()
	body, _ := json.Marshal(req)
	hreq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url+"/infer", bytes.NewReader(body))
	if err != nil {
		t.Errorf("new req: %v", err)
		return inferResult{}
	}
	hreq.Header.Set("Content-Type", "application/json")
	hresp, err := http.DefaultClient.Do(hreq)
	if err != nil {
		t.Errorf("do req: %v", err)
		return inferResult{}
	}
	defer hresp.Body.Close()
	out := inferResult{status: hresp.StatusCode}
	if hresp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(hresp.Body).Decode(&out.resp); err != nil {
			t.Errorf("decode: %v", err)
		}
		return out
	}
	_, _ = io.Copy(io.Discard, hresp.Body)
	return out
}

func rowInputs(v float64) map[string][][]float64 {
	return map[string][][]float64{
		"input_ids":      {{v, v}},
		"attention_mask": {{1, 1}},
	}
}

// gate is an echo backend whose calls block until release is closed.
type gate struct {
	release chan struct{}
	entered chan int
}

func newGate() *gate { return &gate{release: make(chan struct{}), entered: make(chan int, 64)} }

func (g *gate) Name() string { return "gate" }

func (g *gate) Infer(ctx context.Context, req batcher.BatchRequest) (batcher.BatchResponse, error) {
	g.entered <- len(req.Boundaries)
	select {
	case <-g.release:
	case <-ctx.Done():
		return batcher.BatchResponse{}, ctx.Err()
	}
	return batcher.BatchResponse{Outputs: req.Inputs}, nil
}
