package parser

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/actionmesh/core"
	"github.com/hupe1980/actionmesh/internal/testutil"
)

// recorder captures callback invocations as compact strings.
type recorder struct {
	events []string
	closed []core.ActionCallbackData
}

func (r *recorder) options(o *Options) {
	o.Callbacks = Callbacks{
		OnArtifactOpen: func(a core.ArtifactData) {
			r.events = append(r.events, fmt.Sprintf("artifact-open %s %q %s", a.ID, a.Title, a.MessageID))
		},
		OnArtifactClose: func(a core.ArtifactData) {
			r.events = append(r.events, fmt.Sprintf("artifact-close %s", a.ID))
		},
		OnActionOpen: func(d core.ActionCallbackData) {
			r.events = append(r.events, fmt.Sprintf("action-open %s/%s %s %s %q", d.ArtifactID, d.ActionID, d.Action.Kind, d.Action.FilePath, d.Action.Content))
		},
		OnActionClose: func(d core.ActionCallbackData) {
			r.events = append(r.events, fmt.Sprintf("action-close %s/%s %s %s %q", d.ArtifactID, d.ActionID, d.Action.Kind, d.Action.FilePath, d.Action.Content))
			r.closed = append(r.closed, d)
		},
	}
}

func feed(p *StreamingParser, streamID string, prefixes []string) string {
	var display string
	for _, prefix := range prefixes {
		display = p.Parse(streamID, prefix)
	}
	return display
}

const demoMessage = `Before <boltArtifact id="a1" title="Demo"><boltAction type="file" filePath="src/x.txt">hello</boltAction></boltArtifact> after`

var demoEvents = []string{
	`artifact-open a1 "Demo" m1`,
	`action-open a1/0 file src/x.txt ""`,
	`action-close a1/0 file src/x.txt "hello"`,
	`artifact-close a1`,
}

func TestParse_WholeMessage(t *testing.T) {
	rec := &recorder{}
	p := New(rec.options)

	display := p.Parse("m1", demoMessage)

	assert.Equal(t, "Before  after", display)
	if diff := cmp.Diff(demoEvents, rec.events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_SplitInvariance(t *testing.T) {
	tests := []struct {
		name    string
		offsets []int
	}{
		{name: "inside artifact open tag", offsets: []int{3, 10, 20, 40, 90}},
		{name: "tag boundaries", offsets: []int{7, 8, 48, 49, 102}},
		{name: "inside closing tags", offsets: []int{95, 100, 105, 110, 115}},
		{name: "single bytes at start", offsets: []int{1, 2, 3, 4, 5}},
		{name: "single bytes at end", offsets: []int{len(demoMessage) - 5, len(demoMessage) - 4, len(demoMessage) - 3, len(demoMessage) - 2, len(demoMessage) - 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			p := New(rec.options)

			display := feed(p, "m1", testutil.Prefixes(demoMessage, tt.offsets...))

			assert.Equal(t, "Before  after", display)
			if diff := cmp.Diff(demoEvents, rec.events); diff != "" {
				t.Fatalf("events mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_EveryPrefix(t *testing.T) {
	rec := &recorder{}
	p := New(rec.options)

	display := feed(p, "m1", testutil.EveryPrefix(demoMessage))

	assert.Equal(t, "Before  after", display)
	assert.Equal(t, demoEvents, rec.events)
}

func TestParse_RandomSplitsOfRandomDocuments(t *testing.T) {
	fragments := []string{
		"text ", "<", ">", "/", "<b>", "</b>", "<boltArtifact", "<boltArtifacts", ` id="x"`, ` title='T'`, ">",
		"<boltAction", ` type="file"`, ` type="shell"`, ` filePath="a/b.txt"`, "</boltAction>", "</boltArtifact>",
		"npm run dev", "\n", "  ", "<bolt", "</bolt",
	}
	r := rand.New(rand.NewSource(42))

	for doc := 0; doc < 200; doc++ {
		var sb strings.Builder
		for n := r.Intn(30); n >= 0; n-- {
			sb.WriteString(fragments[r.Intn(len(fragments))])
		}
		text := sb.String()

		whole := &recorder{}
		wantDisplay := New(whole.options).Parse("s", text)

		split := &recorder{}
		gotDisplay := feed(New(split.options), "s", testutil.Prefixes(text, testutil.RandomOffsets(r, len(text), 6)...))

		require.Equal(t, wantDisplay, gotDisplay, "display for %q", text)
		if diff := cmp.Diff(whole.events, split.events); diff != "" {
			t.Fatalf("events for %q mismatch (-whole +split):\n%s", text, diff)
		}
	}
}

func TestParse_NoReEmission(t *testing.T) {
	rec := &recorder{}
	p := New(rec.options)

	first := p.Parse("m1", demoMessage)
	again := p.Parse("m1", demoMessage)
	extended := p.Parse("m1", demoMessage+" and more")

	assert.Equal(t, first, again)
	assert.Equal(t, "Before  after and more", extended)
	assert.Equal(t, demoEvents, rec.events)
}

func TestParse_ShorterInputIgnored(t *testing.T) {
	rec := &recorder{}
	p := New(rec.options)

	full := p.Parse("m1", demoMessage)
	assert.Equal(t, full, p.Parse("m1", demoMessage[:10]))
	assert.Len(t, rec.events, 4)
}

func TestParse_MultipleActions(t *testing.T) {
	msg := testutil.NewMessageBuilder().
		Text("Setting up.\n").
		Artifact("app", "Todo App").
		Raw("\n  ").
		File("package.json", "\n{\"name\": \"todo\"}\n").
		Raw("\n  ").
		Shell("  npm install  ").
		Raw("\n").
		End().
		Text("\nDone.").
		Build()

	rec := &recorder{}
	p := New(rec.options)
	display := feed(p, "m7", testutil.Prefixes(msg, 5, 33, 60, 91, 120))

	assert.Equal(t, "Setting up.\n\nDone.", display)
	assert.Equal(t, []string{
		`artifact-open app "Todo App" m7`,
		`action-open app/0 file package.json ""`,
		`action-close app/0 file package.json "{\"name\": \"todo\"}"`,
		`action-open app/1 shell  ""`,
		`action-close app/1 shell  "npm install"`,
		`artifact-close app`,
	}, rec.events)

	require.Len(t, rec.closed, 2)
	assert.Equal(t, "m7", rec.closed[1].MessageID)
}

func TestParse_ActionIDsContinueAcrossArtifacts(t *testing.T) {
	msg := testutil.NewMessageBuilder().
		Artifact("one", "One").Shell("ls").End().
		Text(" between ").
		Artifact("two", "Two").Shell("pwd").End().
		Build()

	rec := &recorder{}
	p := New(rec.options)
	assert.Equal(t, " between ", p.Parse("m", msg))

	require.Len(t, rec.closed, 2)
	assert.Equal(t, "0", rec.closed[0].ActionID)
	assert.Equal(t, "1", rec.closed[1].ActionID)
	assert.Equal(t, "two", rec.closed[1].ArtifactID)
}

func TestParse_UnrecognizedTagsPassThrough(t *testing.T) {
	rec := &recorder{}
	p := New(rec.options)

	text := "a <b>bold</b> <boltArtifacts x> <<i>> </boltArtifact> end"
	assert.Equal(t, text, feed(p, "m", testutil.EveryPrefix(text)))
	assert.Empty(t, rec.events)
}

func TestParse_UnterminatedTagIsBuffered(t *testing.T) {
	rec := &recorder{}
	p := New(rec.options)

	assert.Equal(t, "Hello ", p.Parse("m", "Hello <boltArt"))
	assert.Equal(t, "Hello ", p.Parse("m", `Hello <boltArtifact id="a" title="t"`))
	assert.Empty(t, rec.events)

	assert.Equal(t, "Hello ", p.Parse("m", `Hello <boltArtifact id="a" title="t">`))
	assert.Equal(t, []string{`artifact-open a "t" m`}, rec.events)
}

func TestFinish_ReleasesTrailingText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lone angle bracket", "a <", "a <"},
		{"partial artifact tag", "Hello <boltArt", "Hello <boltArt"},
		{"incomplete open tag", `Hi <boltArtifact id="a"`, `Hi <boltArtifact id="a"`},
		{"nothing buffered", "plain", "plain"},
		{"unterminated artifact stays hidden", `x <boltArtifact id="a" title="t"><boltAction type="shell">npm`, "x "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			p.Parse("m", tt.input)
			assert.Equal(t, tt.want, p.Finish("m", tt.input))
			assert.Equal(t, tt.want, p.Finish("m", tt.input))
		})
	}
}

func TestFinish_FiresRemainingCallbacks(t *testing.T) {
	rec := &recorder{}
	p := New(rec.options)

	p.Parse("m1", demoMessage[:20])
	assert.Equal(t, "Before  after", p.Finish("m1", demoMessage))
	assert.Equal(t, demoEvents, rec.events)
}

func TestParse_OpenWithoutCloseCarriesNoContent(t *testing.T) {
	rec := &recorder{}
	p := New(rec.options)

	p.Parse("m", `<boltArtifact id="a" title="t"><boltAction type="file" filePath="x.txt">partial cont`)

	assert.Equal(t, []string{
		`artifact-open a "t" m`,
		`action-open a/0 file x.txt ""`,
	}, rec.events)
	assert.Empty(t, rec.closed)
}

func TestParse_ArtifactElement(t *testing.T) {
	rec := &recorder{}
	p := New(rec.options, func(o *Options) {
		o.ArtifactElement = func(messageID string) string {
			return fmt.Sprintf(`<div class="__boltArtifact__" data-message-id="%s"></div>`, messageID)
		}
	})

	display := p.Parse("m1", demoMessage)
	assert.Equal(t, `Before <div class="__boltArtifact__" data-message-id="m1"></div> after`, display)
}

func TestReset(t *testing.T) {
	rec := &recorder{}
	p := New(rec.options)

	p.Parse("m1", demoMessage)
	p.Parse("m2", demoMessage)
	assert.ElementsMatch(t, []string{"m1", "m2"}, p.Streams())

	p.ResetStream("m1")
	assert.Equal(t, []string{"m2"}, p.Streams())

	rec.events = nil
	p.Parse("m1", demoMessage)
	p.Parse("m2", demoMessage)
	assert.Equal(t, demoEvents, rec.events, "only the reset stream emits again")

	p.Reset()
	assert.Empty(t, p.Streams())

	rec.events = nil
	p.Parse("m2", demoMessage)
	assert.Len(t, rec.events, 4)
}

func TestParse_IndependentStreams(t *testing.T) {
	rec := &recorder{}
	p := New(rec.options)

	half := len(demoMessage) / 2
	p.Parse("a", demoMessage[:half])
	p.Parse("b", demoMessage)
	p.Parse("a", demoMessage)

	assert.Len(t, rec.events, 8)
}

func TestExtractAttribute(t *testing.T) {
	tests := []struct {
		tag, name, want string
	}{
		{`<boltArtifact id="a1" title="Demo">`, "id", "a1"},
		{`<boltArtifact id="a1" title="Demo">`, "title", "Demo"},
		{`<boltArtifact data-id="x" id='real'>`, "id", "real"},
		{`<boltArtifact data-id="x">`, "id", ""},
		{`<boltAction type = "file"  filePath="src/a b.ts">`, "filePath", "src/a b.ts"},
		{`<boltAction type="shell">`, "filePath", ""},
		{`<boltAction custom="v">`, "custom", "v"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, extractAttribute(tt.tag, tt.name), "%s in %s", tt.name, tt.tag)
	}
}
