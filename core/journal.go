package core

import (
	"context"
	"time"
)

// JournalKey identifies one executed action across restarts.
type JournalKey struct {
	ActionID  string `json:"action_id"`
	MessageID string `json:"message_id"`
	ChatID    string `json:"chat_id"`
}

// ExecutionRecord is reported to the journal once an action's execution unit
// settled. ChatID carries the stream (conversation) identifier.
type ExecutionRecord struct {
	ID         string       `json:"id"`
	ActionID   string       `json:"action_id"`
	MessageID  string       `json:"message_id"`
	ArtifactID string       `json:"artifact_id"`
	ChatID     string       `json:"chat_id"`
	Kind       ActionKind   `json:"kind"`
	FilePath   string       `json:"file_path,omitempty"`
	Content    string       `json:"content"`
	Status     ActionStatus `json:"status"`
	Output     string       `json:"output,omitempty"`
	ExitCode   *int         `json:"exit_code,omitempty"`
	RecordedAt time.Time    `json:"recorded_at"`
}

// Key returns the journal key of the record.
func (r ExecutionRecord) Key() JournalKey {
	return JournalKey{ActionID: r.ActionID, MessageID: r.MessageID, ChatID: r.ChatID}
}

// NewExecutionRecord builds a record from callback data and the final state.
func NewExecutionRecord(chatID string, data ActionCallbackData, state ActionState) ExecutionRecord {
	return ExecutionRecord{
		ID:         NewID(),
		ActionID:   data.ActionID,
		MessageID:  data.MessageID,
		ArtifactID: data.ArtifactID,
		ChatID:     chatID,
		Kind:       state.Kind,
		FilePath:   state.FilePath,
		Content:    state.Content,
		Status:     state.Status,
		Output:     state.Output,
		ExitCode:   state.ExitCode,
		RecordedAt: time.Now().UTC(),
	}
}

// ExecutionJournal durably records executed actions. Implementations should be
// thread-safe. Record upserts by Key: status, output and exit code of an
// existing entry are replaced, everything else is kept.
type ExecutionJournal interface {
	Record(ctx context.Context, rec ExecutionRecord) error
	Executed(ctx context.Context, key JournalKey) (bool, error)
}
