package batcher

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultInFlightPerSlot = 4
)

// DefaultInputs are the tensor names expected when a model declares none.
var DefaultInputs = []string{"input_ids", "attention_mask"}

// Config encapsulates the tunables of one Batcher.
type Config struct {
	// Model is the backend model identifier; it labels logs and metrics.
	Model string
	// MaxBatchSize closes a batch as soon as it holds this many requests.
	MaxBatchSize int
	// MaxLatency bounds how long the first member of a batch waits before
	// the batch is closed regardless of size. Zero closes on the next tick.
	MaxLatency time.Duration
	// MaxInFlight is the backpressure ceiling on admitted, unfinished requests.
	// Defaults to 4*MaxBatchSize.
	MaxInFlight int
	// DispatchTimeout bounds a single backend call when positive.
	DispatchTimeout time.Duration
	// Inputs lists the tensor names every payload must carry.
	Inputs []string
	// Widths optionally pins the row width of an input. Requests that
	// disagree are rejected at admission.
	Widths map[string]int

	Logger   *zerolog.Logger
	Observer Observer
}

func (c *Config) applyDefaults() error {
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("max batch size must be > 0, got %d", c.MaxBatchSize)
	}
	if c.MaxLatency < 0 {
		return fmt.Errorf("max latency must be >= 0, got %s", c.MaxLatency)
	}
	if c.MaxInFlight < 0 {
		return fmt.Errorf("max in-flight must be > 0, got %d", c.MaxInFlight)
	}
	if c.MaxInFlight == 0 {
		c.MaxInFlight = defaultInFlightPerSlot * c.MaxBatchSize
	}
	if len(c.Inputs) == 0 {
		c.Inputs = append([]string(nil), DefaultInputs...)
	}
	seen := make(map[string]struct{}, len(c.Inputs))
	for _, name := range c.Inputs {
		if name == "" {
			return errors.New("input names must not be empty")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate input name %q", name)
		}
		seen[name] = struct{}{}
	}
	for name, w := range c.Widths {
		if _, ok := seen[name]; !ok {
			return fmt.Errorf("width declared for unknown input %q", name)
		}
		if w < 0 {
			return fmt.Errorf("width of input %q must be >= 0, got %d", name, w)
		}
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	if c.Observer == nil {
		c.Observer = NopObserver{}
	}
	return nil
}
