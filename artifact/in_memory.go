package artifact

import (
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/actionmesh/core"
)

// InMemoryStore is an in‑process ArtifactStore keeping one artifact state per
// message id in a map guarded by an RWMutex. States are copied on save and
// retrieval so callers never share the action id slice with the store.
//
// Layout: messageID -> artifact state, plus the open order for List.
type InMemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]*core.ArtifactState
	order     []string
}

var _ core.ArtifactStore = (*InMemoryStore)(nil)

// NewInMemoryStore returns an empty in‑memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{artifacts: make(map[string]*core.ArtifactState)}
}

// Open stores the artifact announced for data.MessageID unless one exists.
func (a *InMemoryStore) Open(data core.ArtifactData) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.artifacts[data.MessageID]; exists {
		return nil
	}
	a.artifacts[data.MessageID] = &core.ArtifactState{ArtifactData: data}
	a.order = append(a.order, data.MessageID)
	return nil
}

// AddAction appends actionID to the artifact of messageID. Known ids are
// not appended twice.
func (a *InMemoryStore) AddAction(messageID, actionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.artifacts[messageID]
	if !ok {
		return fmt.Errorf("%w: message %s", ErrNotFound, messageID)
	}
	if !slices.Contains(st.ActionIDs, actionID) {
		st.ActionIDs = append(st.ActionIDs, actionID)
	}
	return nil
}

// Close marks the artifact of messageID closed.
func (a *InMemoryStore) Close(messageID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.artifacts[messageID]
	if !ok {
		return fmt.Errorf("%w: message %s", ErrNotFound, messageID)
	}
	st.Closed = true
	return nil
}

// Get returns a copy of the artifact of messageID or ErrNotFound.
func (a *InMemoryStore) Get(messageID string) (core.ArtifactState, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	st, ok := a.artifacts[messageID]
	if !ok {
		return core.ArtifactState{}, ErrNotFound
	}
	return st.Clone(), nil
}

// List returns copies of every artifact in open order. The slice is a
// snapshot and safe for caller mutation.
func (a *InMemoryStore) List() ([]core.ArtifactState, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]core.ArtifactState, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.artifacts[id].Clone())
	}
	return out, nil
}

// Delete removes the artifact of messageID if present or returns ErrNotFound.
func (a *InMemoryStore) Delete(messageID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.artifacts[messageID]; !ok {
		return ErrNotFound
	}
	delete(a.artifacts, messageID)
	a.order = slices.DeleteFunc(a.order, func(id string) bool { return id == messageID })
	return nil
}

// Reset removes every artifact.
func (a *InMemoryStore) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.artifacts = make(map[string]*core.ArtifactState)
	a.order = nil
}
