package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errIdle = errors.New("idle timeout")

// runWatch re-parses a growing transcript on every write.
func runWatch(cmd *cobra.Command, args []string) error {
	path := filepath.Clean(args[0])

	ctx, stop := signalContext(cmd)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so editors that replace the file are followed.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	id := messageID
	if id == "" {
		id = filepath.Base(path)
	}

	logger.Info("Watching transcript", zap.String("file", path), zap.String("message_id", id), zap.Duration("idle", idle))

	out := newDisplayWriter(cmd.OutOrStdout())
	changes := make(chan struct{}, 1)

	var last string

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(event.Name) != path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				select {
				case changes <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
	})

	g.Go(func() error {
		parse := func() error {
			data, err := os.ReadFile(path)
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read transcript: %w", err)
			}
			last = string(data)
			out.Update(s.wb.Parse(id, last))
			return nil
		}

		if err := parse(); err != nil {
			return err
		}

		var (
			timer *time.Timer
			idleC <-chan time.Time
		)
		if idle > 0 {
			timer = time.NewTimer(idle)
			defer timer.Stop()
			idleC = timer.C
		}

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-changes:
				if err := parse(); err != nil {
					return err
				}
				if timer != nil {
					timer.Reset(idle)
				}
			case <-idleC:
				return errIdle
			}
		}
	})

	if err := g.Wait(); err != nil {
		if !errors.Is(err, errIdle) {
			return err
		}
		logger.Info("No change within idle timeout", zap.Duration("idle", idle))
	}

	out.Update(s.wb.Finish(id, last))

	return s.finish(ctx, cmd.OutOrStdout())
}
