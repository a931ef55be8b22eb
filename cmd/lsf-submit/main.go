// cmd/lsf-submit/main.go
//
// lsf-submit is the cluster submit command for the workflow engine:
//
//	lsf-submit [bsub args...] <jobscript>
//
// It prints the LSF job id on stdout and nothing else.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/snakemake-lsf/internal/bus"
	"github.com/tendant/snakemake-lsf/internal/config"
	"github.com/tendant/snakemake-lsf/internal/lsf"
	"github.com/tendant/snakemake-lsf/internal/telemetry"
	"github.com/tendant/snakemake-lsf/pkg/schema"
)

const metricsJob = "lsf_submit"

var errUsage = errors.New("usage: lsf-submit [bsub args...] <jobscript>")

type app struct {
	cfg       config.Config
	submitter *lsf.Submitter
	publisher bus.Publisher
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal(slog.New(slog.NewTextHandler(os.Stderr, nil)), "load config", err)
	}
	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	a := &app{
		cfg: cfg,
		submitter: &lsf.Submitter{
			Runner:        lsf.NewShellRunner(cfg.Shell),
			Executable:    cfg.SubmitExecutable,
			HostGroup:     cfg.HostGroup,
			DefaultLogDir: cfg.DefaultLogDir,
			Logger:        logger,
		},
		publisher: connectBus(cfg, logger),
		metrics:   telemetry.New(),
		logger:    logger,
	}

	ctx := context.Background()
	err = a.run(ctx, os.Args[1:], os.Stdout)
	a.publisher.Close()
	if pushErr := a.metrics.Push(ctx, cfg.PushgatewayURL, metricsJob); pushErr != nil {
		logger.Warn("push metrics failed", "url", cfg.PushgatewayURL, "err", pushErr)
	}
	if err != nil {
		fatal(logger, "submit job", err)
	}
}

func (a *app) run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	jobscript := args[len(args)-1]
	forwarded := args[:len(args)-1]

	sub, err := a.submitter.Submit(ctx, forwarded, jobscript)
	a.record(jobscript, sub, err)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(stdout, sub.JobID)
	return err
}

func (a *app) record(jobscript string, sub lsf.Submission, cause error) {
	evt := schema.JobSubmitted{
		EventID:    uuid.NewString(),
		Result:     schema.SubmissionSubmitted,
		JobID:      sub.JobID,
		JobName:    sub.JobName,
		Jobscript:  jobscript,
		Command:    sub.Command,
		HappenedAt: time.Now().Unix(),
	}
	if cause != nil {
		evt.Result = schema.SubmissionFailed
		evt.Error = cause.Error()
	}
	a.metrics.Submissions.WithLabelValues(string(evt.Result)).Inc()

	if err := a.publisher.PublishJSON(a.cfg.SubmittedSubject, evt); err != nil {
		a.logger.Warn("publish submission event failed", "subject", a.cfg.SubmittedSubject, "err", err)
	}
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

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
