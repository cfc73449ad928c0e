package installer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// CommandRunner executes host commands on behalf of the orchestrator.
// It exists so the bootstrap sequence can be tested without touching the host.
type CommandRunner interface {
	// Run executes a command and waits for it to finish.
	Run(ctx context.Context, name string, args ...string) error

	// Start launches a command detached from the current process and returns
	// without waiting. The started process is not supervised.
	Start(name string, args ...string) error
}

type execRunner struct{}

// NewExecRunner returns a CommandRunner backed by os/exec.
func NewExecRunner() CommandRunner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		msg := bytes.TrimSpace(out.Bytes())
		if len(msg) > 0 {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (execRunner) Start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	// Release the handle; the process outlives us and is never joined.
	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("release %s: %w", name, err)
	}
	return nil
}
