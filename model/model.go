package model

import (
	"context"
	"fmt"
	"strings"
)

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request captures the normalized model input.
type Request struct {
	System   string    `json:"system,omitempty"`
	Messages []Message `json:"messages"`
}

// Chunk is a (partial or final) piece of a streamed reply. Partial chunks carry
// a text delta; the final chunk carries the finish reason and no text.
type Chunk struct {
	Text         string `json:"text,omitempty"`
	Final        bool   `json:"final,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"` // "stop", "max_tokens", ...
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", ...
}

// Model streams replies. Both channels are closed when the stream ends; at most
// one error is delivered.
type Model interface {
	Stream(ctx context.Context, req Request) (<-chan Chunk, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Collect drains a stream, calling onDelta with the accumulated text after
// every partial chunk, and returns the full reply.
func Collect(chunks <-chan Chunk, errs <-chan error, onDelta func(full string)) (string, error) {
	var sb strings.Builder
	for ck := range chunks {
		if ck.Text == "" {
			continue
		}
		sb.WriteString(ck.Text)
		if onDelta != nil {
			onDelta(sb.String())
		}
	}
	if err := <-errs; err != nil {
		return sb.String(), err
	}
	return sb.String(), nil
}

// MockModel is a lightweight in‑memory Model useful for tests & examples.
type MockModel struct {
	info      Info
	responses map[string]string
	chunkSize int
}

// NewMockModel constructs a MockModel streaming one rune per chunk.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
		chunkSize: 1,
	}
}

// AddResponse registers a deterministic canned reply for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// SetChunkSize sets how many runes each partial chunk carries.
func (m *MockModel) SetChunkSize(n int) {
	if n > 0 {
		m.chunkSize = n
	}
}

// Stream implements Model; emits the canned reply in chunks then a final chunk.
func (m *MockModel) Stream(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		if len(req.Messages) == 0 {
			errCh <- fmt.Errorf("no messages provided")
			return
		}
		input := req.Messages[len(req.Messages)-1].Content
		full, ok := m.responses[input]
		if !ok {
			full = fmt.Sprintf("Mock response to: %s", input)
		}

		runes := []rune(full)
		for i := 0; i < len(runes); i += m.chunkSize {
			end := min(i+m.chunkSize, len(runes))
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- Chunk{Text: string(runes[i:end])}:
			}
		}
		out <- Chunk{Final: true, FinishReason: "stop"}
	}()

	return out, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
