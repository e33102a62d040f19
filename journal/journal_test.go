package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/actionmesh/core"
)

type store interface {
	core.ExecutionJournal
	Get(ctx context.Context, key core.JournalKey) (core.ExecutionRecord, error)
	List(ctx context.Context, chatID string) ([]core.ExecutionRecord, error)
}

func stores(t *testing.T) map[string]store {
	t.Helper()

	file, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = file.Close() })

	mem, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })

	return map[string]store{
		"in-memory":     NewInMemoryStore(),
		"sqlite-file":   file,
		"sqlite-memory": mem,
	}
}

func record(actionID, messageID, chatID string, status core.ActionStatus, at time.Time) core.ExecutionRecord {
	code := 0
	return core.ExecutionRecord{
		ID:         core.NewID(),
		ActionID:   actionID,
		MessageID:  messageID,
		ArtifactID: "a1",
		ChatID:     chatID,
		Kind:       core.ActionKindShell,
		Content:    "npm install",
		Status:     status,
		Output:     "added 1 package",
		ExitCode:   &code,
		RecordedAt: at,
	}
}

func TestJournal_RecordAndExecuted(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			key := core.JournalKey{ActionID: "0", MessageID: "m1", ChatID: "c1"}

			ok, err := s.Executed(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Record(ctx, record("0", "m1", "c1", core.StatusComplete, now)))

			ok, err = s.Executed(ctx, key)
			require.NoError(t, err)
			assert.True(t, ok)

			for _, other := range []core.JournalKey{
				{ActionID: "0", MessageID: "m1", ChatID: "c2"},
				{ActionID: "0", MessageID: "m2", ChatID: "c1"},
				{ActionID: "1", MessageID: "m1", ChatID: "c1"},
			} {
				ok, err = s.Executed(ctx, other)
				require.NoError(t, err)
				assert.False(t, ok, "%+v", other)
			}

			got, err := s.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, core.StatusComplete, got.Status)
			assert.Equal(t, "npm install", got.Content)
			assert.Equal(t, core.ActionKindShell, got.Kind)
			require.NotNil(t, got.ExitCode)
			assert.Equal(t, 0, *got.ExitCode)
			assert.True(t, now.Equal(got.RecordedAt))
		})
	}
}

func TestJournal_RecordUpserts(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			first := record("0", "m1", "c1", core.StatusRunning, now)
			require.NoError(t, s.Record(ctx, first))

			second := record("0", "m1", "c1", core.StatusFailed, now.Add(time.Second))
			second.Content = "changed"
			second.Output = "boom"
			second.ExitCode = nil
			require.NoError(t, s.Record(ctx, second))

			got, err := s.Get(ctx, first.Key())
			require.NoError(t, err)
			assert.Equal(t, first.ID, got.ID, "identity is kept")
			assert.Equal(t, "npm install", got.Content)
			assert.Equal(t, core.StatusFailed, got.Status)
			assert.Equal(t, "boom", got.Output)
			assert.Nil(t, got.ExitCode)

			list, err := s.List(ctx, "c1")
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestJournal_List(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Record(ctx, record("1", "m1", "c1", core.StatusComplete, base.Add(2*time.Second))))
			require.NoError(t, s.Record(ctx, record("0", "m1", "c1", core.StatusComplete, base)))
			require.NoError(t, s.Record(ctx, record("0", "m1", "c2", core.StatusComplete, base)))

			list, err := s.List(ctx, "c1")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "0", list[0].ActionID)
			assert.Equal(t, "1", list[1].ActionID)

			empty, err := s.List(ctx, "nope")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestJournal_GetMissing(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), core.JournalKey{ActionID: "x"})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestSQLiteStore_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	rec := record("0", "m1", "c1", core.StatusComplete, time.Now().UTC())
	require.NoError(t, s.Record(ctx, rec))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	ok, err := reopened.Executed(ctx, rec.Key())
	require.NoError(t, err)
	assert.True(t, ok)
}
