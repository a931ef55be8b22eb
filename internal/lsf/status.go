package lsf

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/snakemake-lsf/internal/process"
)

const (
	DefaultStatusExecutable = "bjobs"
	DefaultStatusRetries    = 6
	DefaultStatusDelay      = 20 * time.Second
)

// statusTable maps bjobs STAT codes to canonical states. Anything else is unknown.
var statusTable = map[string]process.State{
	"PEND":      process.StateRunning,
	"RUN":       process.StateRunning,
	"PSUSP":     process.StateRunning,
	"USUSP":     process.StateRunning,
	"SSUSP":     process.StateRunning,
	"WAIT":      process.StateRunning,
	"DONE":      process.StateSuccess,
	"POST_DONE": process.StateSuccess,
	"EXIT":      process.StateFailed,
	"POST_ERR":  process.StateFailed,
}

// Lookup maps one bjobs status code to its canonical state.
func Lookup(code string) process.State {
	if state, ok := statusTable[code]; ok {
		return state
	}
	return process.StateUnknown
}

// Classify interprets one bjobs response for jobID. It is the only place
// that knows bjobs wording.
func Classify(jobID int, stdout, stderr string) process.State {
	if strings.HasPrefix(stderr, fmt.Sprintf("Job <%d> is not found", jobID)) {
		return process.StateUnknown
	}
	code := strings.TrimSpace(stdout)
	if code == "" {
		return process.StateUnknown
	}
	return Lookup(code)
}

// ParseStatusJobID parses the job id handed to the status command.
func ParseStatusJobID(arg string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, fmt.Errorf("invalid job id %q: %w", arg, err)
	}
	return id, nil
}

// QueryResult is the outcome of a single bjobs call.
type QueryResult struct {
	Stdout string
	Stderr string
	State  process.State
}

// StatusChecker polls bjobs until it gets a definite state or runs out of
// retries. It never returns an error.
type StatusChecker struct {
	Runner     Runner
	Executable string
	Retries    int
	Delay      time.Duration
	// Sleep waits between attempts; nil means a real, context-aware sleep.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
	// OnQuery, if set, observes every query.
	OnQuery func(QueryResult)
}

func NewStatusChecker(r Runner) *StatusChecker {
	return &StatusChecker{
		Runner:     r,
		Executable: DefaultStatusExecutable,
		Retries:    DefaultStatusRetries,
		Delay:      DefaultStatusDelay,
	}
}

// Query runs bjobs once. A failing bjobs invocation folds into unknown.
func (c *StatusChecker) Query(ctx context.Context, jobID int) QueryResult {
	command := fmt.Sprintf("%s -o stat -noheader %d", c.executable(), jobID)
	stdout, stderr, err := c.Runner.Run(ctx, command)
	if err != nil {
		c.logger().Debug("bjobs failed", "job_id", jobID, "err", err)
		return QueryResult{State: process.StateUnknown}
	}
	return QueryResult{
		Stdout: stdout,
		Stderr: stderr,
		State:  Classify(jobID, stdout, stderr),
	}
}

// Check queries once and then retries while the state is unknown, waiting
// Delay between attempts. Cancelling ctx stops the retries early.
func (c *StatusChecker) Check(ctx context.Context, jobID int) process.State {
	logger := c.logger().With("job_id", jobID)

	result := c.query(ctx, jobID)
	for tries := 0; result.State == process.StateUnknown && tries < c.Retries; tries++ {
		logger.Debug("status unknown, retrying", "attempt", tries+1, "delay", c.Delay, "stdout", result.Stdout, "stderr", result.Stderr)
		if err := c.sleep(ctx, c.Delay); err != nil {
			logger.Debug("status retries interrupted", "err", err)
			break
		}
		result = c.query(ctx, jobID)
	}
	logger.Debug("status resolved", "state", result.State)
	return result.State
}

func (c *StatusChecker) query(ctx context.Context, jobID int) QueryResult {
	result := c.Query(ctx, jobID)
	if c.OnQuery != nil {
		c.OnQuery(result)
	}
	return result
}

func (c *StatusChecker) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *StatusChecker) executable() string {
	if c.Executable == "" {
		return DefaultStatusExecutable
	}
	return c.Executable
}

func (c *StatusChecker) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
