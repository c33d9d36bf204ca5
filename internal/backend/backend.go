// Package backend holds batcher.Backend implementations: an HTTP client for
// NIM-style inference services and an in-process echo backend.
package backend

import (
	"fmt"
	"strings"
	"time"

	"batchd/internal/batcher"
)

// Kinds accepted by New.
const (
	KindNIM  = "nim"
	KindEcho = "echo"
)

// Options configures New.
type Options struct {
	Kind           string
	URL            string
	APIKey         string
	Timeout        time.Duration
	ConnectTimeout time.Duration
	// EchoLatency applies to KindEcho only.
	EchoLatency time.Duration
}

// New builds the backend selected by opts.Kind.
func New(opts Options) (batcher.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case KindNIM, "":
		if strings.TrimSpace(opts.URL) == "" {
			return nil, fmt.Errorf("backend %q requires a url", KindNIM)
		}
		return NewNIMClient(opts.URL, opts.APIKey, opts.Timeout, opts.ConnectTimeout)
	case KindEcho:
		return &Echo{Latency: opts.EchoLatency}, nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q (want %s|%s)", opts.Kind, KindNIM, KindEcho)
	}
}
