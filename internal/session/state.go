package session

import (
	"errors"
	"time"
)

var (
	// ErrRunActive is returned when a new run is requested while the previous
	// one is still consuming its stream.
	ErrRunActive = errors.New("operation already running")
	// ErrRunTerminal guards reducers against events arriving after a terminal
	// state; such events must not mutate anything until a fresh run starts.
	ErrRunTerminal = errors.New("operation already finished")
)

// Status is the lifecycle of one streamed operation:
// idle -> running -> {completed | failed}. Terminal states only leave through
// a fresh running transition.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is the shared per-operation state machine embedded in every reducer.
type Run struct {
	Status      Status     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	ErrorType   string     `json:"error_type,omitempty"`
	TraceID     string     `json:"trace_id,omitempty"`
}

func newRun() Run {
	return Run{Status: StatusIdle}
}

// begin moves idle or a terminal state into running. A concurrent running run
// is refused; callers retry after the active stream finishes.
func (r *Run) begin() error {
	if r.Status == StatusRunning {
		return ErrRunActive
	}
	now := time.Now().UTC()
	*r = Run{Status: StatusRunning, StartedAt: &now}
	return nil
}

func (r *Run) active() bool {
	return r.Status == StatusRunning
}

func (r *Run) complete() {
	if r.Status != StatusRunning {
		return
	}
	now := time.Now().UTC()
	r.Status = StatusCompleted
	r.CompletedAt = &now
}

func (r *Run) fail(message, errorType, traceID string) {
	if r.Status != StatusRunning {
		return
	}
	now := time.Now().UTC()
	r.Status = StatusFailed
	r.CompletedAt = &now
	r.Error = message
	r.ErrorType = errorType
	r.TraceID = traceID
}
