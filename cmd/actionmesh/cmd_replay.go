package main

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runReplay feeds a transcript file through the workbench chunk by chunk.
func runReplay(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	id := messageID
	if id == "" {
		id = filepath.Base(path)
	}

	logger.Info("Replaying transcript",
		zap.String("file", path),
		zap.String("message_id", id),
		zap.Int("bytes", len(data)),
		zap.Int("chunk", chunkSize))

	out := newDisplayWriter(cmd.OutOrStdout())
	text := string(data)
	for _, end := range chunkEnds(text, chunkSize) {
		if ctx.Err() != nil {
			break
		}
		if end == len(text) {
			out.Update(s.wb.Finish(id, text))
		} else {
			out.Update(s.wb.Parse(id, text[:end]))
		}
	}

	return s.finish(ctx, cmd.OutOrStdout())
}

// chunkEnds returns the prefix lengths fed to the parser, each on a rune
// boundary. The last entry is always len(text).
func chunkEnds(text string, size int) []int {
	if size <= 0 || size >= len(text) {
		return []int{len(text)}
	}

	var ends []int
	for end := size; end < len(text); end += size {
		for end < len(text) && !utf8.RuneStart(text[end]) {
			end++
		}
		if n := len(ends); end < len(text) && (n == 0 || ends[n-1] < end) {
			ends = append(ends, end)
		}
	}
	return append(ends, len(text))
}
