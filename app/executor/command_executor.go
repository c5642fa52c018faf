package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ExecutionResult represents command execution result. Error is set when the
// process could not be started or was killed by the timeout; ExitCode is -1
// in that case.
type ExecutionResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Error    error
}

// Succeeded reports a clean zero exit
func (r *ExecutionResult) Succeeded() bool {
	return r.Error == nil && r.ExitCode == 0
}

// Runner executes a fixed argv
type Runner interface {
	Run(ctx context.Context, argv []string) *ExecutionResult
}

// Executor executes host processes with a timeout
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates a new command executor
func NewExecutor(timeout time.Duration) *Executor {
	return &Executor{timeout: timeout}
}

// Run executes argv[0] with argv[1:] and captures its full output
func (e *Executor) Run(ctx context.Context, argv []string) *ExecutionResult {
	if len(argv) == 0 {
		return &ExecutionResult{ExitCode: -1, Error: errors.New("empty argv")}
	}

	execCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(execCtx, argv[0], argv[1:]...)
	command.Stdout = &stdout
	command.Stderr = &stderr
	command.WaitDelay = time.Second

	err := command.Run()
	result := &ExecutionResult{Stdout: stdout.String(), Stderr: stderr.String()}

	switch {
	case err == nil:
		result.ExitCode = 0
	case execCtx.Err() != nil:
		result.ExitCode = -1
		result.Error = fmt.Errorf("execution aborted: %w", execCtx.Err())
	default:
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			result.ExitCode = exitError.ExitCode()
		} else {
			result.ExitCode = -1
			result.Error = fmt.Errorf("execution failed: %w", err)
		}
	}
	return result
}
