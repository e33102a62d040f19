package journal

import (
	"context"
	"sort"
	"sync"

	"github.com/hupe1980/actionmesh/core"
)

// InMemoryStore is a volatile ExecutionJournal backed by a process local map.
// Records are copied on the way in and out.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[core.JournalKey]core.ExecutionRecord
}

var _ core.ExecutionJournal = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in‑memory journal.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[core.JournalKey]core.ExecutionRecord)}
}

// Record upserts rec by its key.
func (s *InMemoryStore) Record(_ context.Context, rec core.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.Key()
	if existing, ok := s.records[key]; ok {
		existing.Status = rec.Status
		existing.Output = rec.Output
		existing.ExitCode = copyCode(rec.ExitCode)
		existing.RecordedAt = rec.RecordedAt
		s.records[key] = existing
		return nil
	}

	rec.ExitCode = copyCode(rec.ExitCode)
	s.records[key] = rec
	return nil
}

// Executed reports whether an entry for key exists.
func (s *InMemoryStore) Executed(_ context.Context, key core.JournalKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[key]
	return ok, nil
}

// Get returns the entry for key or ErrNotFound.
func (s *InMemoryStore) Get(_ context.Context, key core.JournalKey) (core.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return core.ExecutionRecord{}, ErrNotFound
	}
	rec.ExitCode = copyCode(rec.ExitCode)
	return rec, nil
}

// List returns the entries of chatID ordered by recording time.
func (s *InMemoryStore) List(_ context.Context, chatID string) ([]core.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.ExecutionRecord, 0)
	for key, rec := range s.records {
		if key.ChatID != chatID {
			continue
		}
		rec.ExitCode = copyCode(rec.ExitCode)
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	return out, nil
}

func copyCode(code *int) *int {
	if code == nil {
		return nil
	}
	c := *code
	return &c
}
