package worker

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/pkg/errors"
)

// CommandResult is the outcome of a subprocess run to completion.
type CommandResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Elapsed  time.Duration
}

// Success reports whether the command exited cleanly.
func (r *CommandResult) Success() bool {
	return r.ExitCode == 0
}

// CommandRunner runs a subprocess to completion in a working directory and
// captures its output. A non-zero exit is a result, not an error; errors are
// reserved for failures to run the command at all.
type CommandRunner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (*CommandResult, error)
}

type execCommandRunner struct{}

// NewExecCommandRunner returns a CommandRunner backed by os/exec.
func NewExecCommandRunner() CommandRunner {
	return &execCommandRunner{}
}

func (r *execCommandRunner) Run(ctx context.Context, dir string, name string, args ...string) (*CommandResult, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	start := time.Now()
	err := cmd.Run()
	result := &CommandResult{
		Stdout:  stdout.Bytes(),
		Stderr:  stderr.Bytes(),
		Elapsed: time.Since(start),
	}
	if err != nil {
		exitErr := &exec.ExitError{}
		if !errors.As(err, &exitErr) {
			return nil, errors.Wrapf(err, "error running %s", name)
		}
		result.ExitCode = exitErr.ExitCode()
	}
	return result, nil
}
