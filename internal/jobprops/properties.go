// Package jobprops decodes the job properties the workflow engine embeds in
// every jobscript and resolves them into typed, defaulted values.
package jobprops

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	DefaultThreads     = 1
	DefaultMemMB       = 4000
	DefaultWalltimeMin = 240
	DefaultRuleName    = "jobname"
	DefaultGroupID     = "group"

	propertiesPrefix = "# properties = "
	maxLineSize      = 16 << 20
)

var (
	ErrNoProperties   = errors.New("job properties not found")
	ErrLogDirNotFound = errors.New("log directory does not exist")
)

// Properties is the resolved view of one workflow job. Defaults are already
// applied, so callers never look at optional fields.
type Properties struct {
	Type        string
	Rule        string
	GroupID     string
	JobID       string
	Threads     int
	MemMB       int
	WalltimeMin int
	Wildcards   Wildcards
	Cluster     Cluster
}

// Cluster holds the free-form cluster settings the adapter understands.
// An empty string means "not set": jobname, output and error set to "" fall
// back to their derived defaults instead of being used literally.
type Cluster struct {
	Queue   string
	LogDir  string
	Output  string
	Error   string
	JobName string
}

type document struct {
	Type      string      `json:"type"`
	Rule      string      `json:"rule"`
	GroupID   flexString  `json:"groupid"`
	JobID     flexString  `json:"jobid"`
	Threads   *flexInt    `json:"threads"`
	Resources resourceDoc `json:"resources"`
	Wildcards Wildcards   `json:"wildcards"`
	Cluster   clusterDoc  `json:"cluster"`
}

type resourceDoc struct {
	MemMB       *flexInt `json:"mem_mb"`
	WalltimeMin *flexInt `json:"walltime_min"`
}

type clusterDoc struct {
	MemMB   *flexInt   `json:"mem_mb"`
	Queue   flexString `json:"queue"`
	LogDir  flexString `json:"logdir"`
	Output  flexString `json:"output"`
	Error   flexString `json:"error"`
	JobName flexString `json:"jobname"`
}

// Read scans a jobscript for its "# properties = {...}" line and parses it.
func Read(path string) (Properties, error) {
	f, err := os.Open(path)
	if err != nil {
		return Properties{}, fmt.Errorf("open jobscript: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, propertiesPrefix) {
			props, err := Parse([]byte(strings.TrimPrefix(line, propertiesPrefix)))
			if err != nil {
				return Properties{}, fmt.Errorf("parse properties in %s: %w", path, err)
			}
			return props, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return Properties{}, fmt.Errorf("read jobscript: %w", err)
	}
	return Properties{}, fmt.Errorf("%w in %s", ErrNoProperties, path)
}

// Parse decodes a JSON properties object and applies defaults.
func Parse(data []byte) (Properties, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Properties{}, fmt.Errorf("decode job properties: %w", err)
	}

	props := Properties{
		Type:      doc.Type,
		Rule:      doc.Rule,
		GroupID:   string(doc.GroupID),
		JobID:     string(doc.JobID),
		Wildcards: doc.Wildcards,
		Cluster: Cluster{
			Queue:   string(doc.Cluster.Queue),
			LogDir:  string(doc.Cluster.LogDir),
			Output:  string(doc.Cluster.Output),
			Error:   string(doc.Cluster.Error),
			JobName: string(doc.Cluster.JobName),
		},
	}
	if props.GroupID == "" {
		props.GroupID = DefaultGroupID
	}

	var err error
	if props.Threads, err = positive("threads", DefaultThreads, doc.Threads); err != nil {
		return Properties{}, err
	}
	// resources.mem_mb wins over cluster.mem_mb.
	mem := doc.Resources.MemMB
	if mem == nil {
		mem = doc.Cluster.MemMB
	}
	if props.MemMB, err = positive("mem_mb", DefaultMemMB, mem); err != nil {
		return Properties{}, err
	}
	if props.WalltimeMin, err = positive("walltime_min", DefaultWalltimeMin, doc.Resources.WalltimeMin); err != nil {
		return Properties{}, err
	}
	return props, nil
}

func positive(name string, def int, v *flexInt) (int, error) {
	if v == nil {
		return def, nil
	}
	if *v <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero (got %d)", name, *v)
	}
	return int(*v), nil
}
