package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"batchd/internal/batcher"
)

// maxErrorBody caps how much of a non-2xx body is echoed into errors.
const maxErrorBody = 512

// NIMClient implements batcher.Backend by posting merged batches to a
// NIM-style inference service. It never retries; callers see one attempt.
type NIMClient struct {
	baseURL        string
	apiKey         string
	reqTimeout     time.Duration
	connectTimeout time.Duration
	httpClient     *http.Client
}

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend status %d", e.Code)
	}
	return fmt.Sprintf("backend status %d: %s", e.Code, e.Body)
}

// NewNIMClient constructs a client for baseURL.
func NewNIMClient(baseURL, apiKey string, reqTimeout, connectTimeout time.Duration) (*NIMClient, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url must be http(s), got %q", baseURL)
	}
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Timeout=0: every request carries a context deadline instead.
	return &NIMClient{
		baseURL:        strings.TrimRight(u.String(), "/"),
		apiKey:         apiKey,
		reqTimeout:     reqTimeout,
		connectTimeout: connectTimeout,
		httpClient:     &http.Client{Transport: tr, Timeout: 0},
	}, nil
}

func (c *NIMClient) Name() string { return "nim" }

type nimInferRequest struct {
	BatchID    uint64             `json:"batch_id"`
	Inputs     batcher.Payload    `json:"inputs"`
	Boundaries []batcher.Boundary `json:"boundaries"`
}

type nimInferResponse struct {
	Outputs    batcher.Payload    `json:"outputs"`
	Boundaries []batcher.Boundary `json:"boundaries"`
}

// Infer posts the merged batch to {base}/v1/models/{model}/infer.
func (c *NIMClient) Infer(ctx context.Context, req batcher.BatchRequest) (batcher.BatchResponse, error) {
	if c.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.reqTimeout)
		defer cancel()
	}
	body, err := json.Marshal(nimInferRequest{
		BatchID:    req.BatchID,
		Inputs:     req.Inputs,
		Boundaries: req.Boundaries,
	})
	if err != nil {
		return batcher.BatchResponse{}, fmt.Errorf("encode batch: %w", err)
	}
	endpoint := c.baseURL + "/v1/models/" + url.PathEscape(req.Model) + "/infer"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return batcher.BatchResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return batcher.BatchResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return batcher.BatchResponse{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	var out nimInferResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return batcher.BatchResponse{}, fmt.Errorf("malformed backend response: %w", err)
	}
	return batcher.BatchResponse{Outputs: out.Outputs, Boundaries: out.Boundaries}, nil
}

// Ready probes {base}/v1/health/ready.
func (c *NIMClient) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health/ready", nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

func (c *NIMClient) authorize(r *http.Request) {
	if c.apiKey != "" {
		r.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
