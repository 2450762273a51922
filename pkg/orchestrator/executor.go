package orchestrator

import (
	"context"
	"errors"
	"io"
	"os/exec"

	"github.com/nemanja-m/mrchain/pkg/hadoop"
)

// Executor runs one command to completion and reports its exit status.
// A non-nil error means the command could not be run at all, or was killed
// because ctx ended.
type Executor interface {
	Run(ctx context.Context, cmd hadoop.Command, stdout, stderr io.Writer) (int, error)
}

// ExecExecutor runs commands as subprocesses, streaming their output live.
type ExecExecutor struct{}

func NewExecExecutor() *ExecExecutor {
	return &ExecExecutor{}
}

func (e *ExecExecutor) Run(ctx context.Context, cmd hadoop.Command, stdout, stderr io.Writer) (int, error) {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Stdout = stdout
	c.Stderr = stderr

	err := c.Run()
	if err == nil {
		return 0, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// -1 when the process was killed by a signal.
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
