//go:build windows

package sandbox

import (
	"errors"
	"os"
	"os/exec"
)

func setupProcessGroup(*exec.Cmd) {}

// killProcessGroup kills the direct child only; Windows has no process groups
// reachable through os/exec.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
