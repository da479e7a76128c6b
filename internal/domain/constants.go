package domain

// Status is the lifecycle state of a transcription job.
type Status string

// Job status constants
const (
	StatusPending   Status = "PENDING"
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// transitions lists the only legal moves of the state machine.
var transitions = map[Status]Status{
	StatusPending: StatusQueued,
	StatusQueued:  StatusRunning,
}

// IsTerminal reports whether no further transition is permitted.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusQueued, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	}
	return false
}

// EventLabel is the job_events label recorded when a job enters s.
func (s Status) EventLabel() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// CanTransition reports whether from -> to is a forward move of the state machine.
func CanTransition(from, to Status) bool {
	if from == StatusRunning {
		return to == StatusSucceeded || to == StatusFailed
	}
	next, ok := transitions[from]
	return ok && next == to
}
