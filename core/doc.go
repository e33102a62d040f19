// Package core provides the foundational domain types and interfaces shared by
// the directive parser, the action runner and the workbench façade. It defines
// the core abstractions for:
//
//   - Actions (file writes and shell commands discovered in a model stream)
//   - Artifacts (named, ordered collections of actions)
//   - Action state (the runner-owned record of status, output and errors)
//   - The sandbox capability (process spawning plus a small filesystem)
//   - The execution journal (best-effort persistence of executed actions)
//
// The package intentionally keeps implementation concerns (parsing, queueing,
// concrete sandboxes, storage backends) out of scope, exposing small
// interfaces so callers can substitute fakes in tests and real backends in
// production.
package core
