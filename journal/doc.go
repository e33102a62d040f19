// Package journal contains implementations of core.ExecutionJournal.
//
// A journal remembers which actions of which message already ran in a given
// chat so a reloaded conversation does not execute them again. Entries are
// keyed by (action id, message id, chat id); recording the same key again
// replaces status, output and exit code.
//
//   - InMemoryStore keeps entries in a map and is meant for tests and single
//     process use.
//   - SQLiteStore persists entries in the executed_actions table of a SQLite
//     database through the pure Go modernc.org/sqlite driver.
package journal
