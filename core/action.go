package core

import "fmt"

// ActionKind discriminates the side effect an action describes.
type ActionKind string

const (
	// ActionKindFile writes Content to FilePath.
	ActionKindFile ActionKind = "file"
	// ActionKindShell runs Content as a shell command line.
	ActionKindShell ActionKind = "shell"
)

// Valid reports whether k is one of the known action kinds.
func (k ActionKind) Valid() bool {
	return k == ActionKindFile || k == ActionKindShell
}

// Action is a single side-effecting directive. Content is only final once the
// action's close event fired; an action seen at open carries empty content and
// must not be executed.
type Action struct {
	Kind     ActionKind `json:"type"`
	FilePath string     `json:"file_path,omitempty"` // file actions only
	Content  string     `json:"content"`
}

// String renders a compact, log friendly description of the action.
func (a Action) String() string {
	switch a.Kind {
	case ActionKindFile:
		return fmt.Sprintf("file(%s)", a.FilePath)
	case ActionKindShell:
		return fmt.Sprintf("shell(%q)", a.Content)
	default:
		return fmt.Sprintf("%s(?)", a.Kind)
	}
}

// ArtifactData identifies an artifact as announced by its opening tag.
type ArtifactData struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	MessageID string `json:"message_id"`
}

// ActionCallbackData is delivered to action callbacks. ActionID is unique per
// message stream and assigned in document order.
type ActionCallbackData struct {
	ArtifactID string `json:"artifact_id"`
	MessageID  string `json:"message_id"`
	ActionID   string `json:"action_id"`
	Action     Action `json:"action"`
}

// ArtifactState is the workbench view of an artifact: its identity, the ids
// of the actions discovered so far (in order) and whether its closing tag has
// been seen.
type ArtifactState struct {
	ArtifactData
	ActionIDs []string `json:"action_ids"`
	Closed    bool     `json:"closed"`
}

// Clone returns a deep copy safe for caller mutation.
func (a ArtifactState) Clone() ArtifactState {
	cp := a
	cp.ActionIDs = append([]string(nil), a.ActionIDs...)
	return cp
}
