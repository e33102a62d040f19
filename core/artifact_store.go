package core

// ArtifactStore holds the artifact view of every message stream. There is at
// most one artifact per message; implementations should be thread-safe and
// hand out copies.
type ArtifactStore interface {
	// Open records a newly announced artifact. Opening a message that already
	// has an artifact is a no-op.
	Open(data ArtifactData) error
	// AddAction appends an action id to the message's artifact.
	AddAction(messageID, actionID string) error
	// Close marks the message's artifact closed.
	Close(messageID string) error
	Get(messageID string) (ArtifactState, error)
	// List returns every artifact in open order.
	List() ([]ArtifactState, error)
	Delete(messageID string) error
}
