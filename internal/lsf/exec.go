// Package lsf drives the LSF command line tools: bsub to submit a jobscript
// and bjobs to ask for its status.
package lsf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const DefaultShell = "/bin/bash"

// Runner executes one shell command line and returns what it wrote to stdout
// and stderr. A non-zero exit is reported as an error.
type Runner interface {
	Run(ctx context.Context, command string) (stdout, stderr string, err error)
}

// RunnerFunc adapts a plain function to Runner.
type RunnerFunc func(ctx context.Context, command string) (string, string, error)

func (f RunnerFunc) Run(ctx context.Context, command string) (string, string, error) {
	return f(ctx, command)
}

// CommandError is returned when the command exits non-zero. Stderr is kept
// verbatim so the tool's own message reaches the caller.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q exited with status %d", e.Command, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// ShellRunner runs command lines through Shell -c so quoting in the command
// (single-quoted -R strings, double-quoted paths) is honoured.
type ShellRunner struct {
	Shell string
}

func NewShellRunner(shell string) *ShellRunner {
	if shell == "" {
		shell = DefaultShell
	}
	return &ShellRunner{Shell: shell}
}

func (r *ShellRunner) Run(ctx context.Context, command string) (string, string, error) {
	shell := r.Shell
	if shell == "" {
		shell = DefaultShell
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), stderr.String(), &CommandError{
			Command:  command,
			ExitCode: exitCode(err),
			Stderr:   stderr.String(),
			Err:      err,
		}
	}
	return stdout.String(), stderr.String(), nil
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
