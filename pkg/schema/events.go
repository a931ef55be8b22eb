// pkg/schema/events.go
package schema

type SubmissionResult string

const (
	SubmissionSubmitted SubmissionResult = "submitted"
	SubmissionFailed    SubmissionResult = "failed"
)

// JobSubmitted is published after every lsf-submit run, successful or not.
type JobSubmitted struct {
	EventID    string           `json:"event_id"`
	Result     SubmissionResult `json:"result"`
	JobID      string           `json:"job_id,omitempty"`
	JobName    string           `json:"job_name,omitempty"`
	Jobscript  string           `json:"jobscript"`
	Command    string           `json:"command,omitempty"`
	Error      string           `json:"error,omitempty"`
	HappenedAt int64            `json:"happened_at"`
}

// JobStatusChecked is published once lsf-status has settled on a state.
type JobStatusChecked struct {
	EventID    string `json:"event_id"`
	JobID      int    `json:"job_id"`
	State      string `json:"state"`
	Queries    int    `json:"queries"`
	LastCode   string `json:"last_code,omitempty"`
	HappenedAt int64  `json:"happened_at"`
}
