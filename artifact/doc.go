// Package artifact contains concrete implementations of core.ArtifactStore.
//
// The canonical ArtifactStore interface lives in the core package to avoid
// dependency cycles and keep domain contracts central. The workbench records
// one artifact per message stream here: its identity, the ids of the actions
// discovered inside it and whether its closing tag has been parsed. Runner
// state is not stored; it stays with the runner owning the actions.
package artifact
