// Package batcher coalesces independently arriving inference requests into
// bounded batches for a backend that is only efficient when fed batches.
// It is structured into small files by concern:
//
//   - batcher.go: Batcher type, admission gate, current-batch state machine
//     and the per-batch flush deadline.
//   - dispatch.go: merge of member payloads, the backend call, split of the
//     combined result and fan-out to each member's Future.
//   - future.go: Future, the single-assignment result slot.
//   - config.go: Config and package defaults.
//   - errors.go: error kinds and helpers (IsOverloaded, IsBackendFailure, ...).
//   - observer.go: Observer hooks for telemetry sinks.
//
// A batch moves empty -> filling -> closing -> dispatched and never back.
// It closes when it reaches MaxBatchSize or when MaxLatency has elapsed since
// its first member arrived, whichever happens first. Dispatch runs outside the
// accumulator lock so batch N+1 fills while batch N is with the backend.
//
// Every admitted request resolves exactly once: with its slice of the
// backend result, with the batch-wide backend failure, or with ErrCancelled
// when the caller withdraws first.
package batcher
