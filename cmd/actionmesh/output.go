package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/hupe1980/actionmesh"
	"github.com/hupe1980/actionmesh/core"
)

const maxTargetWidth = 40

// displayWriter prints the growth of a message's display text.
type displayWriter struct {
	w    io.Writer
	last string
}

func newDisplayWriter(w io.Writer) *displayWriter {
	return &displayWriter{w: w}
}

// Update prints what display adds to the previously printed text. A display
// that does not extend it is printed on a fresh line.
func (d *displayWriter) Update(display string) {
	if rest, ok := strings.CutPrefix(display, d.last); ok {
		fmt.Fprint(d.w, rest)
	} else {
		fmt.Fprint(d.w, "\n", display)
	}
	d.last = display
}

// messageIDs returns the ids of all messages with artifacts, in open order.
func messageIDs(wb *actionmesh.Workbench) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, a := range wb.Artifacts() {
		if !seen[a.MessageID] {
			seen[a.MessageID] = true
			ids = append(ids, a.MessageID)
		}
	}
	return ids
}

// backgroundCount returns the number of long-running processes still alive.
func backgroundCount(wb *actionmesh.Workbench) int {
	n := 0
	for _, id := range messageIDs(wb) {
		for _, s := range wb.Actions(id) {
			if s.InBackground() {
				n++
			}
		}
	}
	return n
}

// printStatus writes one row per action of every message and returns the
// number of long-running processes still alive.
func printStatus(w io.Writer, wb *actionmesh.Workbench) int {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MESSAGE\tACTION\tKIND\tSTATUS\tEXIT\tTARGET\tNOTE")

	running := 0
	for _, id := range messageIDs(wb) {
		for _, s := range wb.Actions(id) {
			if s.InBackground() {
				running++
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				id, s.ID, s.Kind, s.Status, exitCode(s.ExitCode), target(s), note(s))
		}
	}

	_ = tw.Flush()
	return running
}

func exitCode(code *int) string {
	if code == nil {
		return "-"
	}
	return strconv.Itoa(*code)
}

func target(s core.ActionState) string {
	t := s.FilePath
	if s.Kind == core.ActionKindShell {
		t, _, _ = strings.Cut(strings.TrimSpace(s.Content), "\n")
	}
	if r := []rune(t); len(r) > maxTargetWidth {
		t = string(r[:maxTargetWidth-3]) + "..."
	}
	return t
}

func note(s core.ActionState) string {
	switch {
	case s.Error != "":
		return s.Error
	case s.InBackground():
		return "long-running, still running"
	case s.LongRunning:
		return "long-running"
	default:
		return ""
	}
}
