package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tendant/snakemake-lsf/internal/config"
	"github.com/tendant/snakemake-lsf/internal/lsf"
	"github.com/tendant/snakemake-lsf/internal/telemetry"
	"github.com/tendant/snakemake-lsf/pkg/schema"
)

type recordingPublisher struct {
	events []any
}

func (p *recordingPublisher) PublishJSON(_ string, v any) error {
	p.events = append(p.events, v)
	return nil
}

func (p *recordingPublisher) Close() {}

func newTestApp(runner lsf.Runner) (*app, *recordingPublisher, *int) {
	sleeps := 0
	checker := lsf.NewStatusChecker(runner)
	checker.Sleep = func(context.Context, time.Duration) error {
		sleeps++
		return nil
	}
	checker.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	pub := &recordingPublisher{}
	return &app{
		cfg:       config.Config{StatusSubject: "lsf.jobs.status"},
		checker:   checker,
		publisher: pub,
		metrics:   telemetry.New(),
		logger:    checker.Logger,
	}, pub, &sleeps
}

func TestRunPrintsState(t *testing.T) {
	var command string
	runner := lsf.RunnerFunc(func(_ context.Context, cmd string) (string, string, error) {
		command = cmd
		return "DONE\n", "", nil
	})
	a, pub, sleeps := newTestApp(runner)

	var out bytes.Buffer
	if err := a.run(context.Background(), []string{"42"}, &out); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if out.String() != "success\n" {
		t.Fatalf("unexpected stdout: %q", out.String())
	}
	if command != "bjobs -o stat -noheader 42" {
		t.Fatalf("unexpected command: %s", command)
	}
	if *sleeps != 0 {
		t.Fatalf("unexpected sleeps: %d", *sleeps)
	}
	evt := pub.events[0].(schema.JobStatusChecked)
	if evt.JobID != 42 || evt.State != "success" || evt.Queries != 1 || evt.LastCode != "DONE" {
		t.Fatalf("unexpected event: %#v", evt)
	}
}

func TestRunUnknownAfterRetries(t *testing.T) {
	calls := 0
	runner := lsf.RunnerFunc(func(context.Context, string) (string, string, error) {
		calls++
		return "", "Job <42> is not found\n", nil
	})
	a, _, sleeps := newTestApp(runner)

	var out bytes.Buffer
	if err := a.run(context.Background(), []string{"42"}, &out); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if out.String() != "unknown\n" {
		t.Fatalf("unexpected stdout: %q", out.String())
	}
	if calls != 7 || *sleeps != 6 {
		t.Fatalf("expected 7 queries and 6 sleeps, got %d and %d", calls, *sleeps)
	}
	if got := testutil.ToFloat64(a.metrics.StatusQueries); got != 7 {
		t.Fatalf("unexpected query counter: %v", got)
	}
}

func TestRunSwallowsBjobsFailure(t *testing.T) {
	calls := 0
	runner := lsf.RunnerFunc(func(context.Context, string) (string, string, error) {
		calls++
		if calls < 3 {
			return "", "", errors.New("exit status 255")
		}
		return "RUN\n", "", nil
	})
	a, _, sleeps := newTestApp(runner)

	var out bytes.Buffer
	if err := a.run(context.Background(), []string{"7"}, &out); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if out.String() != "running\n" || calls != 3 || *sleeps != 2 {
		t.Fatalf("unexpected outcome: stdout=%q calls=%d sleeps=%d", out.String(), calls, *sleeps)
	}
}

func TestRunInvalidJobID(t *testing.T) {
	a, _, _ := newTestApp(lsf.RunnerFunc(func(context.Context, string) (string, string, error) {
		t.Fatal("bjobs must not run for an invalid id")
		return "", "", nil
	}))

	var out bytes.Buffer
	if err := a.run(context.Background(), []string{"not-a-number"}, &out); err == nil {
		t.Fatal("expected error for invalid job id")
	}
	if err := a.run(context.Background(), nil, &out); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("stdout must stay empty: %q", out.String())
	}
}

func fakeBjobs(t *testing.T, output string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bjobs")
	if err := os.WriteFile(path, []byte("#!/bin/sh\necho "+output+"\n"), 0o755); err != nil {
		t.Fatalf("write fake bjobs: %v", err)
	}
	for _, k := range []string{"LSF_STATUS_RETRIES", "LSF_STATUS_DELAY", "LSF_LOG_LEVEL", "LSF_NATS_URL", "LSF_PUSHGATEWAY_URL"} {
		t.Setenv(k, "")
	}
	t.Setenv("LSF_BJOBS", path)
	t.Setenv("LSF_SHELL", "/bin/sh")
}

func TestExecuteInvalidConfigStillReportsState(t *testing.T) {
	fakeBjobs(t, "DONE")
	t.Setenv("LSF_LOG_LEVEL", "verbose")
	t.Setenv("LSF_STATUS_DELAY", "soon")

	var out, errOut bytes.Buffer
	code := execute(context.Background(), []string{"42"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr: %s)", code, errOut.String())
	}
	if out.String() != "success\n" {
		t.Fatalf("unexpected stdout: %q", out.String())
	}
	if !strings.Contains(errOut.String(), "LSF_LOG_LEVEL") {
		t.Fatalf("config problem should be logged on stderr: %q", errOut.String())
	}
}

func TestExecuteInvalidJobIDExitsNonZero(t *testing.T) {
	fakeBjobs(t, "RUN")

	var out, errOut bytes.Buffer
	if code := execute(context.Background(), []string{"job-42"}, &out, &errOut); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if out.Len() != 0 {
		t.Fatalf("stdout must stay empty: %q", out.String())
	}
}
