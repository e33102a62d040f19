package parser

import (
	"strconv"
	"strings"
	"sync"

	"github.com/hupe1980/actionmesh/core"
	"github.com/hupe1980/actionmesh/logging"
)

// Callbacks receive lifecycle events. They are invoked synchronously from
// Parse, in document order, while the stream's cursor is locked: a callback
// must not call Parse for the same stream.
type Callbacks struct {
	OnArtifactOpen  func(core.ArtifactData)
	OnArtifactClose func(core.ArtifactData)
	OnActionOpen    func(core.ActionCallbackData)
	OnActionClose   func(core.ActionCallbackData)
}

// Options configures a StreamingParser.
type Options struct {
	Callbacks Callbacks

	// ArtifactElement renders the display placeholder substituted for an
	// artifact. Nil strips the artifact entirely.
	ArtifactElement func(messageID string) string

	Logger logging.Logger
}

// cursor is the per-stream parse state. position only ever advances past
// input that has been fully interpreted.
type cursor struct {
	mu sync.Mutex

	position       int
	insideArtifact bool
	insideAction   bool
	artifact       core.ArtifactData
	action         core.Action
	nextActionID   int
	display        strings.Builder
}

// StreamingParser incrementally recognizes artifact and action directives in
// growing text streams. It is safe for concurrent use across streams.
type StreamingParser struct {
	opts   Options
	logger logging.Logger

	mu      sync.RWMutex
	streams map[string]*cursor
}

// New creates a StreamingParser with optional overrides.
func New(optFns ...func(o *Options)) *StreamingParser {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &StreamingParser{
		opts:    opts,
		logger:  logging.Scoped(opts.Logger, "MessageParser"),
		streams: make(map[string]*cursor),
	}
}

// Parse consumes the full text accumulated so far for streamID and returns the
// display text of the stream with directive markup removed. Text that was
// already interpreted by an earlier call is not re-interpreted, so callbacks
// fire at most once per element. Input must not shrink between calls; a
// shorter input is ignored. A candidate tag at the end of input stays buffered
// until more text arrives; call Finish once the stream has ended.
func (p *StreamingParser) Parse(streamID, input string) string {
	c := p.cursor(streamID)

	c.mu.Lock()
	defer c.mu.Unlock()

	return p.parse(c, streamID, input)
}

// Finish parses the final input of a stream like Parse and then releases text
// still buffered outside of an artifact, such as a trailing "<", into the
// display text. Unterminated artifacts stay hidden.
func (p *StreamingParser) Finish(streamID, input string) string {
	c := p.cursor(streamID)

	c.mu.Lock()
	defer c.mu.Unlock()

	display := p.parse(c, streamID, input)
	if c.insideArtifact || c.position >= len(input) {
		return display
	}

	c.display.WriteString(input[c.position:])
	c.position = len(input)
	return c.display.String()
}

func (p *StreamingParser) parse(c *cursor, streamID, input string) string {
	if len(input) < c.position {
		p.logger.Warn("Input shorter than parsed prefix, ignoring", "message_id", streamID, "position", c.position, "length", len(input))
		return c.display.String()
	}

	i := c.position

loop:
	for i < len(input) {
		switch {
		case c.insideArtifact && c.insideAction:
			closeIndex := indexFrom(input, actionTagClose, i)
			if closeIndex == -1 {
				break loop
			}
			p.closeAction(c, streamID, input[i:closeIndex])
			i = closeIndex + len(actionTagClose)

		case c.insideArtifact:
			actionOpenIndex := indexFrom(input, actionTagOpen, i)
			artifactCloseIndex := indexFrom(input, artifactTagClose, i)

			if actionOpenIndex != -1 && (artifactCloseIndex == -1 || actionOpenIndex < artifactCloseIndex) {
				actionEndIndex := indexFrom(input, ">", actionOpenIndex)
				if actionEndIndex == -1 {
					break loop
				}
				p.openAction(c, streamID, input[actionOpenIndex:actionEndIndex+1])
				i = actionEndIndex + 1
			} else if artifactCloseIndex != -1 {
				p.closeArtifact(c)
				i = artifactCloseIndex + len(artifactTagClose)
			} else {
				break loop
			}

		case input[i] == '<' && (i+1 >= len(input) || input[i+1] != '/'):
			next, wait := p.scanArtifactOpen(c, streamID, input, i)
			if wait {
				break loop
			}
			i = next

		default:
			c.display.WriteByte(input[i])
			i++
		}
	}

	c.position = i

	return c.display.String()
}

// scanArtifactOpen handles a '<' outside of any artifact. It either opens an
// artifact, emits the scanned text verbatim, or asks the caller to wait for
// more input because the candidate tag is still incomplete.
func (p *StreamingParser) scanArtifactOpen(c *cursor, streamID, input string, i int) (int, bool) {
	rest := input[i:]

	k := commonPrefix(rest, artifactTagOpen)
	switch {
	case k < len(artifactTagOpen) && k == len(rest):
		return i, true
	case k < len(artifactTagOpen):
		c.display.WriteString(rest[:k])
		return i + k, false
	}

	after := i + len(artifactTagOpen)
	if after >= len(input) {
		return i, true
	}
	if !isTagBoundary(input[after]) {
		c.display.WriteString(artifactTagOpen)
		return after, false
	}

	openTagEnd := indexFrom(input, ">", after)
	if openTagEnd == -1 {
		return i, true
	}

	tag := input[i : openTagEnd+1]
	artifact := core.ArtifactData{
		ID:        extractAttribute(tag, "id"),
		Title:     extractAttribute(tag, "title"),
		MessageID: streamID,
	}
	if artifact.Title == "" {
		p.logger.Warn("Artifact title missing", "message_id", streamID)
	}
	if artifact.ID == "" {
		p.logger.Warn("Artifact id missing", "message_id", streamID)
	}

	c.insideArtifact = true
	c.artifact = artifact

	if cb := p.opts.Callbacks.OnArtifactOpen; cb != nil {
		cb(artifact)
	}
	if p.opts.ArtifactElement != nil {
		c.display.WriteString(p.opts.ArtifactElement(streamID))
	}

	return openTagEnd + 1, false
}

func (p *StreamingParser) openAction(c *cursor, streamID, tag string) {
	action := core.Action{Kind: core.ActionKind(extractAttribute(tag, "type"))}

	switch action.Kind {
	case core.ActionKindFile:
		action.FilePath = extractAttribute(tag, "filePath")
		if action.FilePath == "" {
			p.logger.Debug("File path not specified", "message_id", streamID)
		}
	case core.ActionKindShell:
	default:
		p.logger.Warn("Unknown action type", "message_id", streamID, "type", string(action.Kind))
	}

	c.insideAction = true
	c.action = action

	id := strconv.Itoa(c.nextActionID)
	c.nextActionID++

	if cb := p.opts.Callbacks.OnActionOpen; cb != nil {
		cb(core.ActionCallbackData{
			ArtifactID: c.artifact.ID,
			MessageID:  streamID,
			ActionID:   id,
			Action:     action,
		})
	}
}

func (p *StreamingParser) closeAction(c *cursor, streamID, raw string) {
	c.action.Content = strings.TrimSpace(raw)

	data := core.ActionCallbackData{
		ArtifactID: c.artifact.ID,
		MessageID:  streamID,
		ActionID:   strconv.Itoa(c.nextActionID - 1),
		Action:     c.action,
	}

	c.insideAction = false
	c.action = core.Action{}

	if cb := p.opts.Callbacks.OnActionClose; cb != nil {
		cb(data)
	}
}

func (p *StreamingParser) closeArtifact(c *cursor) {
	artifact := c.artifact

	c.insideArtifact = false
	c.artifact = core.ArtifactData{}

	if cb := p.opts.Callbacks.OnArtifactClose; cb != nil {
		cb(artifact)
	}
}

func (p *StreamingParser) cursor(streamID string) *cursor {
	p.mu.RLock()
	c, ok := p.streams[streamID]
	p.mu.RUnlock()
	if ok {
		return c
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok = p.streams[streamID]; ok {
		return c
	}
	c = &cursor{}
	p.streams[streamID] = c
	return c
}

// Reset discards the parse state of every stream.
func (p *StreamingParser) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streams = make(map[string]*cursor)
}

// ResetStream discards the parse state of one stream. The next Parse call for
// streamID starts from the beginning of its input.
func (p *StreamingParser) ResetStream(streamID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.streams, streamID)
}

// Streams returns the ids of the streams with live parse state.
func (p *StreamingParser) Streams() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.streams))
	for id := range p.streams {
		ids = append(ids, id)
	}
	return ids
}
