// Package manager owns one batcher per model and is the orchestration layer
// between the HTTP API and the batching core. It is structured into small
// files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: internal state types (State, Instance, Snapshot).
//   - errors.go: error helpers (IsTooBusy, IsModelNotFound, IsUnavailable, ...).
//   - helpers.go: model lookup and per-model batcher configuration.
//   - ensure.go: EnsureBatcher, lazy per-model batcher creation.
//   - inference.go: Infer, the admission boundary used by the HTTP layer.
//   - unload.go: Unload and Close, draining batchers.
//   - status_report.go: Status/Snapshot/Stats reporting helpers.
//   - ops.go: operational helpers such as Flush and SetRegistry.
//   - sanity.go: backend reachability check.
//
// External packages should treat this package as the orchestration layer and use
// public methods only (e.g., NewWithConfig, Ready, ListModels, Status, Infer).
// Internal types are subject to change.
package manager
