// Package sandbox provides implementations of core.Sandbox.
//
//   - Local runs commands as host processes rooted at a working directory.
//     Each process gets its own process group so Kill also terminates the
//     children a shell started (dev servers, watchers).
//   - Memory is an in-process fake with a map filesystem and scripted
//     processes. It never touches the host and backs tests and dry runs.
//   - Deferred resolves a sandbox on first use and reuses it afterwards.
//
// All paths handed to a sandbox filesystem are slash separated and relative to
// the sandbox root. Paths escaping the root are rejected with ErrOutsideRoot.
package sandbox
