package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/actionmesh/runner"
)

func runClassify(cmd *cobra.Command, args []string) error {
	line := strings.Join(args, " ")
	c := runner.NewClassifier(cfg.Runner.Patterns())

	kind := "short-lived"
	if c.IsLongRunning(line) {
		kind = "long-running"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", line, kind)
	return nil
}
