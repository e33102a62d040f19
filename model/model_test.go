package model

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockModel_Streams(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.AddResponse("hi", "héllo")

	chunks, errs := m.Stream(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})

	var deltas []string
	full, err := Collect(chunks, errs, func(s string) { deltas = append(deltas, s) })
	require.NoError(t, err)
	assert.Equal(t, "héllo", full)
	assert.Equal(t, []string{"h", "hé", "hél", "héll", "héllo"}, deltas)
}

func TestMockModel_ChunkSizeAndFinal(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.SetChunkSize(4)

	chunks, errs := m.Stream(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})

	var got []Chunk
	for ck := range chunks {
		got = append(got, ck)
	}
	require.NoError(t, <-errs)
	require.NotEmpty(t, got)

	last := got[len(got)-1]
	assert.True(t, last.Final)
	assert.Equal(t, "stop", last.FinishReason)

	var sb strings.Builder
	for _, ck := range got[:len(got)-1] {
		assert.LessOrEqual(t, len([]rune(ck.Text)), 4)
		sb.WriteString(ck.Text)
	}
	assert.Equal(t, "Mock response to: x", sb.String())
}

func TestMockModel_Errors(t *testing.T) {
	m := NewMockModel("mock", "mock")

	_, errs := m.Stream(context.Background(), Request{})
	assert.Error(t, <-errs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.AddResponse("long", strings.Repeat("a", 1000))
	chunks, errs := m.Stream(ctx, Request{Messages: []Message{{Role: RoleUser, Content: "long"}}})
	_, err := Collect(chunks, errs, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSystemPromptDescribesGrammar(t *testing.T) {
	assert.Contains(t, SystemPrompt, "<boltArtifact")
	assert.Contains(t, SystemPrompt, `<boltAction type="file"`)
	assert.Contains(t, SystemPrompt, `<boltAction type="shell"`)
}
