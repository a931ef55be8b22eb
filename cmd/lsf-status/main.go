// cmd/lsf-status/main.go
//
// lsf-status is the cluster status command for the workflow engine:
//
//	lsf-status <jobid>
//
// It always prints exactly one of success, running, failed or unknown.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/snakemake-lsf/internal/bus"
	"github.com/tendant/snakemake-lsf/internal/config"
	"github.com/tendant/snakemake-lsf/internal/lsf"
	"github.com/tendant/snakemake-lsf/internal/process"
	"github.com/tendant/snakemake-lsf/internal/telemetry"
	"github.com/tendant/snakemake-lsf/pkg/schema"
)

const metricsJob = "lsf_status"

var errUsage = errors.New("usage: lsf-status <jobid>")

type app struct {
	cfg       config.Config
	checker   *lsf.StatusChecker
	publisher bus.Publisher
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// execute wires the adapter from the environment and returns the exit code.
// Bad configuration is only a warning here: the workflow engine reads a
// non-zero exit as a failed job, so only a bad job id may cause one.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, cfgErr := config.Load()
	logger := cfg.Logger(stderr)
	slog.SetDefault(logger)
	if cfgErr != nil {
		logger.Warn("invalid configuration, using defaults", "err", cfgErr)
	}

	checker := lsf.NewStatusChecker(lsf.NewShellRunner(cfg.Shell))
	checker.Executable = cfg.StatusExecutable
	checker.Retries = cfg.StatusRetries
	checker.Delay = cfg.StatusDelay
	checker.Logger = logger

	a := &app{
		cfg:       cfg,
		checker:   checker,
		publisher: connectBus(cfg, logger),
		metrics:   telemetry.New(),
		logger:    logger,
	}

	err := a.run(ctx, args, stdout)
	a.publisher.Close()
	if pushErr := a.metrics.Push(ctx, cfg.PushgatewayURL, metricsJob); pushErr != nil {
		logger.Warn("push metrics failed", "url", cfg.PushgatewayURL, "err", pushErr)
	}
	if err != nil {
		logger.Error("check job status", "err", err)
		return 1
	}
	return 0
}

// run fails only when the job id is missing or not an integer.
func (a *app) run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	jobID, err := lsf.ParseStatusJobID(args[0])
	if err != nil {
		return err
	}

	var (
		queries  int
		lastCode string
	)
	a.checker.OnQuery = func(r lsf.QueryResult) {
		queries++
		lastCode = strings.TrimSpace(r.Stdout)
		a.metrics.StatusQueries.Inc()
	}

	state := a.checker.Check(ctx, jobID)
	if !state.Valid() {
		state = process.StateUnknown
	}
	a.metrics.StatusResults.WithLabelValues(state.String()).Inc()

	evt := schema.JobStatusChecked{
		EventID:    uuid.NewString(),
		JobID:      jobID,
		State:      state.String(),
		Queries:    queries,
		LastCode:   lastCode,
		HappenedAt: time.Now().Unix(),
	}
	if err := a.publisher.PublishJSON(a.cfg.StatusSubject, evt); err != nil {
		a.logger.Warn("publish status event failed", "subject", a.cfg.StatusSubject, "err", err)
	}

	if _, err := fmt.Fprintln(stdout, state); err != nil {
		a.logger.Warn("write status failed", "err", err)
	}
	return nil
}

func connectBus(cfg config.Config, logger *slog.Logger) bus.Publisher {
	if cfg.NATSURL == "" {
		return bus.Noop{}
	}
	nc, err := bus.Connect(cfg.NATSURL)
	if err != nil {
		logger.Warn("connect to NATS failed, events disabled", "nats_url", cfg.NATSURL, "err", err)
		return bus.Noop{}
	}
	return nc
}
