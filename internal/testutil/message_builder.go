package testutil

import (
	"fmt"
	"strings"
)

// MessageBuilder provides a fluent helper for constructing model replies that
// embed artifacts. Example:
//
//	msg := NewMessageBuilder().
//		Text("Before ").
//		Artifact("a1", "Demo").File("src/x.txt", "hello").Shell("npm test").End().
//		Text(" after").
//		Build()
type MessageBuilder struct {
	b strings.Builder
}

// NewMessageBuilder creates an empty builder.
func NewMessageBuilder() *MessageBuilder { return &MessageBuilder{} }

// Text appends free-form prose (chainable).
func (m *MessageBuilder) Text(s string) *MessageBuilder { m.b.WriteString(s); return m }

// Artifact opens an artifact and returns a builder for its actions.
func (m *MessageBuilder) Artifact(id, title string) *ArtifactBuilder {
	fmt.Fprintf(&m.b, `<boltArtifact id="%s" title="%s">`, id, title)
	return &ArtifactBuilder{parent: m}
}

// Build returns the assembled message text.
func (m *MessageBuilder) Build() string { return m.b.String() }

// ArtifactBuilder appends actions to an open artifact.
type ArtifactBuilder struct {
	parent *MessageBuilder
}

// File appends a file action (chainable).
func (a *ArtifactBuilder) File(path, content string) *ArtifactBuilder {
	fmt.Fprintf(&a.parent.b, `<boltAction type="file" filePath="%s">%s</boltAction>`, path, content)
	return a
}

// Shell appends a shell action (chainable).
func (a *ArtifactBuilder) Shell(command string) *ArtifactBuilder {
	fmt.Fprintf(&a.parent.b, `<boltAction type="shell">%s</boltAction>`, command)
	return a
}

// Raw appends raw text inside the artifact (chainable).
func (a *ArtifactBuilder) Raw(s string) *ArtifactBuilder { a.parent.b.WriteString(s); return a }

// End closes the artifact and returns the parent builder.
func (a *ArtifactBuilder) End() *MessageBuilder {
	a.parent.b.WriteString("</boltArtifact>")
	return a.parent
}
