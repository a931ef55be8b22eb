// internal/process/state.go
package process

// State is the canonical job state reported back to the workflow engine.
type State string

const (
	StateSuccess State = "success"
	StateRunning State = "running"
	StateFailed  State = "failed"
	StateUnknown State = "unknown"
)

// Valid reports whether s is one of the four canonical states.
func (s State) Valid() bool {
	switch s {
	case StateSuccess, StateRunning, StateFailed, StateUnknown:
		return true
	}
	return false
}

func (s State) String() string { return string(s) }
