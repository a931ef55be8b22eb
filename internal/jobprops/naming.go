package jobprops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LogPaths is where bsub writes the job's stdout and stderr.
type LogPaths struct {
	Output string
	Error  string
}

// JobName resolves the name passed to bsub -J. Group jobs are named after the
// group and the first segment of their job id; everything else after the rule
// and its wildcards, unless the cluster settings name the job explicitly.
func (p Properties) JobName() string {
	if p.Type == "group" {
		jobID, _, _ := strings.Cut(p.JobID, "-")
		return p.GroupID + "_" + jobID
	}
	if p.Cluster.JobName != "" {
		return p.Cluster.JobName
	}
	rule := p.Rule
	if rule == "" {
		rule = DefaultRuleName
	}
	return rule + "." + p.Wildcards.String()
}

// Walltime formats the walltime request as HH:MM.
func (p Properties) Walltime() string {
	return FormatWalltime(p.WalltimeMin)
}

func FormatWalltime(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ResolveLogPaths picks the log directory (cluster.logdir or defaultDir),
// checks that it exists and joins the output and error file names under it.
// The directory is never created.
func (p Properties) ResolveLogPaths(defaultDir string) (LogPaths, error) {
	dir := p.Cluster.LogDir
	if dir == "" {
		dir = defaultDir
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return LogPaths{}, fmt.Errorf("resolve log directory %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return LogPaths{}, fmt.Errorf("%w: %s", ErrLogDirNotFound, abs)
	}

	name := p.JobName()
	out := p.Cluster.Output
	if out == "" {
		out = name + ".out"
	}
	errLog := p.Cluster.Error
	if errLog == "" {
		errLog = name + ".err"
	}
	return LogPaths{
		Output: joinLog(dir, out),
		Error:  joinLog(dir, errLog),
	}, nil
}

func joinLog(dir, name string) string {
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	return filepath.Join(dir, name)
}
