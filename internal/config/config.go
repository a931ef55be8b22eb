// Package config reads adapter settings from the environment. A .env file in
// the working directory is honoured when present.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tendant/snakemake-lsf/internal/lsf"
)

// Config holds the settings shared by lsf-submit and lsf-status.
type Config struct {
	SubmitExecutable string
	StatusExecutable string
	Shell            string
	HostGroup        string
	DefaultLogDir    string
	StatusRetries    int
	StatusDelay      time.Duration
	LogLevel         slog.Level
	NATSURL          string
	SubmittedSubject string
	StatusSubject    string
	PushgatewayURL   string
}

// Load reads .env (if any) and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from environment variables only. Invalid values
// are reported in the error but keep their defaults in the returned Config,
// so callers that must not fail can still use it.
func FromEnv() (Config, error) {
	cfg := Config{
		SubmitExecutable: getenv("LSF_BSUB", lsf.DefaultSubmitExecutable),
		StatusExecutable: getenv("LSF_BJOBS", lsf.DefaultStatusExecutable),
		Shell:            getenv("LSF_SHELL", lsf.DefaultShell),
		HostGroup:        getenv("LSF_HOST_GROUP", lsf.DefaultHostGroup),
		DefaultLogDir:    getenv("LSF_DEFAULT_LOGDIR", lsf.DefaultLogDir),
		StatusRetries:    lsf.DefaultStatusRetries,
		StatusDelay:      lsf.DefaultStatusDelay,
		LogLevel:         slog.LevelWarn,
		NATSURL:          getenv("LSF_NATS_URL", ""),
		SubmittedSubject: getenv("LSF_SUBJECT_SUBMITTED", "lsf.jobs.submitted"),
		StatusSubject:    getenv("LSF_SUBJECT_STATUS", "lsf.jobs.status"),
		PushgatewayURL:   getenv("LSF_PUSHGATEWAY_URL", ""),
	}

	var errs []error
	if v := getenv("LSF_STATUS_RETRIES", ""); v != "" {
		retries, err := parseNonNegativeInt(v, "LSF_STATUS_RETRIES")
		if err != nil {
			errs = append(errs, err)
		} else {
			cfg.StatusRetries = retries
		}
	}

	if v := getenv("LSF_STATUS_DELAY", ""); v != "" {
		delay, err := time.ParseDuration(v)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("invalid LSF_STATUS_DELAY: %w", err))
		case delay < 0:
			errs = append(errs, fmt.Errorf("LSF_STATUS_DELAY must not be negative (got %s)", delay))
		default:
			cfg.StatusDelay = delay
		}
	}

	if v := getenv("LSF_LOG_LEVEL", ""); v != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("invalid LSF_LOG_LEVEL: %w", err))
		} else {
			cfg.LogLevel = level
		}
	}

	return cfg, errors.Join(errs...)
}

// Logger returns a text logger on w. The CLIs pass stderr; stdout belongs to
// the workflow engine.
func (c Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.LogLevel}))
}

func parseNonNegativeInt(value string, name string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative (got %d)", name, v)
	}
	return v, nil
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
