package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/actionmesh/core"
	"github.com/hupe1980/actionmesh/model"
)

// runGenerate streams a model reply into the workbench while it is produced.
func runGenerate(cmd *cobra.Command, _ []string) error {
	m, err := newModel(cfg.Model)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	id := core.NewID()
	info := m.Info()
	logger.Info("Generating reply",
		zap.String("provider", info.Provider),
		zap.String("model", info.Name),
		zap.String("message_id", id))

	out := newDisplayWriter(cmd.OutOrStdout())
	updates := make(chan string)

	g, gctx := errgroup.WithContext(ctx)

	chunks, errs := m.Stream(gctx, model.Request{
		System:   model.SystemPrompt,
		Messages: []model.Message{{Role: model.RoleUser, Content: prompt}},
	})

	// The receiver forwards accumulated text; parsing happens on its own
	// goroutine.
	g.Go(func() error {
		defer close(updates)
		_, err := model.Collect(chunks, errs, func(full string) {
			select {
			case updates <- full:
			case <-gctx.Done():
			}
		})
		if err != nil {
			return fmt.Errorf("stream reply: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var last string
		for full := range updates {
			last = full
			out.Update(s.wb.Parse(id, full))
		}
		out.Update(s.wb.Finish(id, last))
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	return s.finish(ctx, cmd.OutOrStdout())
}
