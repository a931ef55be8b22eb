package lsf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/tendant/snakemake-lsf/internal/jobprops"
)

const (
	DefaultSubmitExecutable = "bsub"
	DefaultHostGroup        = "compute-nx360"
	DefaultLogDir           = "logs/cluster"
)

var (
	ErrJobIDNotFound = errors.New("job id not found in bsub output")

	submittedPattern = regexp.MustCompile(`Job <(\d+)> is submitted`)
)

// Submitter turns a jobscript into one bsub invocation.
type Submitter struct {
	Runner        Runner
	Executable    string
	HostGroup     string
	DefaultLogDir string
	Logger        *slog.Logger
}

// Submission describes a job bsub accepted.
type Submission struct {
	JobID   string
	JobName string
	Command string
	Stdout  string
}

// Submit reads the job properties from jobscript, submits it and returns the
// id LSF assigned. forwarded are passed to bsub verbatim, before the jobscript.
// Nothing is retried.
func (s *Submitter) Submit(ctx context.Context, forwarded []string, jobscript string) (Submission, error) {
	props, err := jobprops.Read(jobscript)
	if err != nil {
		return Submission{}, err
	}

	command, err := s.BuildCommand(props, forwarded, jobscript)
	if err != nil {
		return Submission{}, err
	}
	logger := s.logger().With("jobscript", jobscript, "job_name", props.JobName())
	logger.Debug("submitting job", "command", command)

	stdout, stderr, err := s.Runner.Run(ctx, command)
	if err != nil {
		logger.Debug("bsub failed", "stdout", stdout, "stderr", stderr)
		return Submission{}, err
	}

	jobID, err := ParseJobID(stdout)
	if err != nil {
		logger.Debug("bsub response not understood", "stdout", stdout, "stderr", stderr)
		return Submission{}, err
	}
	logger.Info("job submitted", "job_id", jobID)

	return Submission{
		JobID:   jobID,
		JobName: props.JobName(),
		Command: command,
		Stdout:  stdout,
	}, nil
}

// BuildCommand assembles the bsub command line. It fails without touching
// bsub when the log directory is missing.
func (s *Submitter) BuildCommand(props jobprops.Properties, forwarded []string, jobscript string) (string, error) {
	logs, err := props.ResolveLogPaths(s.defaultLogDir())
	if err != nil {
		return "", err
	}

	parts := []string{
		s.executable(),
		s.resourcesFragment(props),
		fmt.Sprintf(`-o "%s" -e "%s" -J "%s"`, logs.Output, logs.Error, props.JobName()),
	}
	if props.Cluster.Queue != "" {
		parts = append(parts, "-q "+props.Cluster.Queue)
	}
	if extra := strings.Join(forwarded, " "); strings.TrimSpace(extra) != "" {
		parts = append(parts, extra)
	}
	parts = append(parts, jobscript)
	return strings.Join(parts, " "), nil
}

func (s *Submitter) resourcesFragment(props jobprops.Properties) string {
	return fmt.Sprintf(
		"-M %[1]d -n %[2]d -W %[3]s -R 'select[mem>%[1]d] rusage[mem=%[1]d] span[hosts=1]' -m %[4]s",
		props.MemMB, props.Threads, props.Walltime(), s.hostGroup(),
	)
}

// ParseJobID extracts N from bsub's "Job <N> is submitted ..." response.
func ParseJobID(stdout string) (string, error) {
	m := submittedPattern.FindStringSubmatch(stdout)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrJobIDNotFound, strings.TrimSpace(stdout))
	}
	return m[1], nil
}

func (s *Submitter) executable() string {
	if s.Executable == "" {
		return DefaultSubmitExecutable
	}
	return s.Executable
}

func (s *Submitter) hostGroup() string {
	if s.HostGroup == "" {
		return DefaultHostGroup
	}
	return s.HostGroup
}

func (s *Submitter) defaultLogDir() string {
	if s.DefaultLogDir == "" {
		return DefaultLogDir
	}
	return s.DefaultLogDir
}

func (s *Submitter) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
