// Package runner executes parsed actions against an injected sandbox.
//
// An ActionRunner owns one record per action id and moves it through
//
//	pending -> running -> {complete | aborted | failed}
//
// Side effects are appended to a Queue, a chain of continuations in which each
// unit waits for its predecessor to settle. At most one unit of a queue is in
// flight, so two actions sharing a queue never touch the sandbox at the same
// time. Several runners may share one Queue to serialize a whole sandbox.
//
// # Actions
//   - file: create the parent directory (skipped for bare names) and write the
//     content captured at the action's close.
//   - shell: spawn "<shell> <args...> <command>", stream ANSI-stripped output
//     into the record and wait for exit. Commands matching a long-running
//     pattern (dev servers) complete after a grace period while the process
//     keeps running.
//
// # Cancellation
//
// Every record carries its own context. Abort cancels it, which kills the
// spawned process, and marks the record aborted. A cancelled action is not a
// failure.
//
// State snapshots are values. Change listeners run outside the state lock, in
// update order.
package runner
