package actionmesh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/actionmesh/core"
	"github.com/hupe1980/actionmesh/internal/testutil"
	"github.com/hupe1980/actionmesh/journal"
	"github.com/hupe1980/actionmesh/runner"
	"github.com/hupe1980/actionmesh/sandbox"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newWorkbench(t *testing.T, sb core.Sandbox, optFns ...func(o *Options)) *Workbench {
	t.Helper()
	fast := func(o *Options) {
		o.RunnerOptions = append(o.RunnerOptions, func(ro *runner.Options) { ro.GracePeriod = 20 * time.Millisecond })
	}
	w := New(sb, append([]func(o *Options){fast}, optFns...)...)
	t.Cleanup(w.Close)
	return w
}

func waitAll(t *testing.T, w *Workbench) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Wait(ctx))
}

const demo = `Before <boltArtifact id="a1" title="Demo"><boltAction type="file" filePath="src/x.txt">hello</boltAction></boltArtifact> after`

func TestWorkbench_ArtifactScenario(t *testing.T) {
	mem := sandbox.NewMemory()
	w := newWorkbench(t, mem)

	var display string
	for _, prefix := range testutil.Prefixes(demo, 10, 45, 70, 90, 110) {
		display = w.Parse("m1", prefix)
	}
	waitAll(t, w)

	assert.Equal(t, "Before  after", display)

	data, ok := mem.File("src/x.txt")
	require.True(t, ok)
	assert.Equal(t, "hello", string(data))

	artifacts := w.Artifacts()
	require.Len(t, artifacts, 1)
	assert.Equal(t, "a1", artifacts[0].ID)
	assert.Equal(t, "Demo", artifacts[0].Title)
	assert.Equal(t, []string{"0"}, artifacts[0].ActionIDs)
	assert.True(t, artifacts[0].Closed)

	actions := w.Actions("m1")
	require.Len(t, actions, 1)
	assert.Equal(t, core.StatusComplete, actions[0].Status)
	assert.Equal(t, "hello", actions[0].Content)
	assert.False(t, w.Failed())
}

func TestWorkbench_FinishReleasesTrailingText(t *testing.T) {
	mem := sandbox.NewMemory()
	w := newWorkbench(t, mem)

	msg := demo + " x <"
	assert.Equal(t, "Before  after x ", w.Parse("m1", msg))
	assert.Equal(t, "Before  after x <", w.Finish("m1", msg))
	waitAll(t, w)

	_, ok := mem.File("src/x.txt")
	assert.True(t, ok)
}

func TestWorkbench_EveryPrefixExecutesOnce(t *testing.T) {
	mem := sandbox.NewMemory()
	w := newWorkbench(t, mem)

	msg := testutil.NewMessageBuilder().
		Text("Setting up.\n").
		Artifact("app", "App").
		File("package.json", `{"name":"app"}`).
		Shell("npm install").
		End().
		Build()

	for _, prefix := range testutil.EveryPrefix(msg) {
		w.Parse("m1", prefix)
	}
	waitAll(t, w)

	assert.Len(t, mem.Spawns(), 1)
	assert.Equal(t, []string{"package.json"}, mem.Files())
	for _, s := range w.Actions("m1") {
		assert.Equal(t, core.StatusComplete, s.Status, s.ID)
	}
}

func TestWorkbench_RegistrationTiming(t *testing.T) {
	mem := sandbox.NewMemory()
	w := newWorkbench(t, mem)

	partial := `<boltArtifact id="a" title="t"><boltAction type="file" filePath="a.txt">par`
	w.Parse("m1", partial)

	actions := w.Actions("m1")
	require.Len(t, actions, 1, "file actions are registered at open")
	assert.False(t, actions[0].Executed)
	assert.Empty(t, actions[0].Content)

	w.Parse("m1", partial+`tial</boltAction><boltAction type="shell">npm `)
	assert.Len(t, w.Actions("m1"), 1, "shell actions wait for their close")

	w.Parse("m1", partial+`tial</boltAction><boltAction type="shell">npm test</boltAction>`)
	waitAll(t, w)

	actions = w.Actions("m1")
	require.Len(t, actions, 2)
	assert.Equal(t, "partial", actions[0].Content)
	assert.Equal(t, "npm test", actions[1].Content)

	st := w.Artifacts()[0]
	assert.Equal(t, []string{"0", "1"}, st.ActionIDs)
	assert.False(t, st.Closed)
}

func TestWorkbench_LongRunningDevServer(t *testing.T) {
	mem := sandbox.NewMemory().Handle("npm run dev", sandbox.Script{Output: []string{"ready"}, Block: true})
	w := newWorkbench(t, mem)

	w.Parse("m1", testutil.NewMessageBuilder().Artifact("a", "t").Shell("npm run dev").End().Build())
	waitAll(t, w)

	actions := w.Actions("m1")
	require.Len(t, actions, 1)
	assert.Equal(t, core.StatusComplete, actions[0].Status)
	assert.True(t, actions[0].LongRunning)
	assert.Equal(t, 1, mem.Running())

	w.Close()
	assert.Eventually(t, func() bool { return mem.Running() == 0 }, time.Second, 5*time.Millisecond)
}

func TestWorkbench_NonZeroExitCompletes(t *testing.T) {
	mem := sandbox.NewMemory().Handle("npm test", sandbox.Script{Output: []string{"1 failing"}, ExitCode: 1})
	w := newWorkbench(t, mem)

	w.Parse("m1", testutil.NewMessageBuilder().Artifact("a", "t").Shell("npm test").End().Build())
	waitAll(t, w)

	s := w.Actions("m1")[0]
	assert.Equal(t, core.StatusComplete, s.Status)
	assert.Equal(t, "1 failing", s.Output)
	require.NotNil(t, s.ExitCode)
	assert.Equal(t, 1, *s.ExitCode)
	assert.False(t, w.Failed())
}

func TestWorkbench_FailedWrite(t *testing.T) {
	mem := sandbox.NewMemory().FailWrite("x.txt", errors.New("read-only"))
	w := newWorkbench(t, mem)

	w.Parse("m1", testutil.NewMessageBuilder().Artifact("a", "t").File("x.txt", "x").Shell("ls").End().Build())
	waitAll(t, w)

	actions := w.Actions("m1")
	require.Len(t, actions, 2)
	assert.Equal(t, core.StatusFailed, actions[0].Status)
	assert.Equal(t, "Action failed", actions[0].Error)
	assert.Equal(t, core.StatusComplete, actions[1].Status, "a failure does not halt later actions")
	assert.True(t, w.Failed())
}

func TestWorkbench_JournalRecording(t *testing.T) {
	j := journal.NewInMemoryStore()
	w := newWorkbench(t, sandbox.NewMemory(), func(o *Options) {
		o.Journal = j
		o.ChatID = "c1"
	})

	w.Parse("m1", testutil.NewMessageBuilder().Artifact("a", "t").File("x.txt", "x").Shell("npm install").End().Build())
	waitAll(t, w)

	list, err := j.List(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, list, 2)

	rec, err := j.Get(context.Background(), core.JournalKey{ActionID: "1", MessageID: "m1", ChatID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, core.StatusComplete, rec.Status)
	assert.Equal(t, "npm install", rec.Content)
	assert.Equal(t, "a", rec.ArtifactID)
	assert.Equal(t, core.ActionKindShell, rec.Kind)
}

func TestWorkbench_RecordDisabled(t *testing.T) {
	j := journal.NewInMemoryStore()
	w := newWorkbench(t, sandbox.NewMemory(), func(o *Options) {
		o.Journal = j
		o.Record = false
	})

	w.Parse("m1", testutil.NewMessageBuilder().Artifact("a", "t").Shell("ls").End().Build())
	waitAll(t, w)

	list, err := j.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWorkbench_SkipExecuted(t *testing.T) {
	ctx := context.Background()
	j := journal.NewInMemoryStore()
	require.NoError(t, j.Record(ctx, core.ExecutionRecord{
		ID: "r0", ActionID: "0", MessageID: "m1", ChatID: "c1", Kind: core.ActionKindShell, Status: core.StatusComplete,
	}))

	mem := sandbox.NewMemory()
	w := newWorkbench(t, mem, func(o *Options) {
		o.Journal = j
		o.ChatID = "c1"
		o.SkipExecuted = true
	})

	w.Parse("m1", testutil.NewMessageBuilder().Artifact("a", "t").Shell("npm install").Shell("npm test").End().Build())
	waitAll(t, w)

	spawns := mem.Spawns()
	require.Len(t, spawns, 1)
	assert.Equal(t, []string{"-c", "npm test"}, spawns[0].Args)

	for _, s := range w.Actions("m1") {
		assert.Equal(t, core.StatusComplete, s.Status, s.ID)
		assert.True(t, s.Executed, s.ID)
	}
}

func TestWorkbench_ResetDoesNotReExecute(t *testing.T) {
	mem := sandbox.NewMemory()
	w := newWorkbench(t, mem)

	msg := testutil.NewMessageBuilder().Artifact("a", "t").Shell("npm install").End().Build()
	w.Parse("m1", msg)
	waitAll(t, w)

	w.Reset()
	w.Parse("m1", msg)
	w.ResetMessage("m1")
	w.Parse("m1", msg)
	waitAll(t, w)

	assert.Len(t, mem.Spawns(), 1)
	assert.Len(t, w.Artifacts(), 1)
}

func TestWorkbench_Listener(t *testing.T) {
	var (
		mu     sync.Mutex
		events []string
	)
	w := newWorkbench(t, sandbox.NewMemory(), func(o *Options) {
		o.Listener = func(messageID string, s core.ActionState) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, messageID+"/"+s.ID+":"+string(s.Status))
		}
	})

	w.Parse("m1", testutil.NewMessageBuilder().Artifact("a", "t").Shell("ls").End().Build())
	waitAll(t, w)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, events, "m1/0:pending")
	assert.Contains(t, events, "m1/0:running")
	assert.Equal(t, "m1/0:complete", events[len(events)-1])
}

func TestWorkbench_Abort(t *testing.T) {
	mem := sandbox.NewMemory().Handle("npm install", sandbox.Script{Block: true})
	w := newWorkbench(t, mem)

	w.Parse("m1", testutil.NewMessageBuilder().Artifact("a", "t").Shell("npm install").End().Build())
	require.Eventually(t, func() bool { return len(mem.Spawns()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Abort("m1", "0"))
	waitAll(t, w)

	assert.Equal(t, core.StatusAborted, w.Actions("m1")[0].Status)
	assert.False(t, w.Failed())

	assert.ErrorIs(t, w.Abort("nope", "0"), ErrUnknownMessage)
	assert.ErrorIs(t, w.Abort("m1", "9"), runner.ErrActionNotFound)
	assert.Nil(t, w.Actions("nope"))
}

func TestWorkbench_MessagesShareOneQueue(t *testing.T) {
	mem := sandbox.NewMemory().Handle("slow", sandbox.Script{Delay: 30 * time.Millisecond})

	var (
		mu       sync.Mutex
		complete []string
	)
	w := newWorkbench(t, mem, func(o *Options) {
		o.Listener = func(messageID string, s core.ActionState) {
			if s.Status == core.StatusComplete {
				mu.Lock()
				complete = append(complete, messageID)
				mu.Unlock()
			}
		}
	})

	w.Parse("m1", testutil.NewMessageBuilder().Artifact("a", "t").Shell("slow").End().Build())
	w.Parse("m2", testutil.NewMessageBuilder().Artifact("b", "t").Shell("fast").End().Build())
	waitAll(t, w)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"m1", "m2"}, complete)
	assert.Len(t, w.Artifacts(), 2)
}

func TestWorkbench_IsolatedQueues(t *testing.T) {
	mem := sandbox.NewMemory().Handle("slow", sandbox.Script{Delay: 200 * time.Millisecond})

	var (
		mu       sync.Mutex
		complete []string
	)
	w := newWorkbench(t, mem, func(o *Options) {
		o.IsolatedQueues = true
		o.Listener = func(messageID string, s core.ActionState) {
			if s.Status == core.StatusComplete {
				mu.Lock()
				complete = append(complete, messageID)
				mu.Unlock()
			}
		}
	})

	w.Parse("m1", testutil.NewMessageBuilder().Artifact("a", "t").Shell("slow").End().Build())
	w.Parse("m2", testutil.NewMessageBuilder().Artifact("b", "t").Shell("fast").End().Build())
	waitAll(t, w)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"m2", "m1"}, complete)
}

func TestWorkbench_ArtifactElement(t *testing.T) {
	w := newWorkbench(t, sandbox.NewMemory(), func(o *Options) {
		o.ArtifactElement = func(messageID string) string { return "[artifact " + messageID + "]" }
	})

	assert.Equal(t, "Before [artifact m1] after", w.Parse("m1", demo))
	waitAll(t, w)
}
