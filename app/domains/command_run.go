package domains

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a command run
type RunStatus string

const (
	RunQueued  RunStatus = "QUEUED"
	RunRunning RunStatus = "RUNNING"
	RunOK      RunStatus = "OK"
	RunFail    RunStatus = "FAIL"
	RunDenied  RunStatus = "DENIED"
)

// IsTerminal reports whether no further transition is allowed
func (s RunStatus) IsTerminal() bool {
	return s == RunOK || s == RunFail || s == RunDenied
}

// CanTransition reports whether moving from s to next is a legal edge:
// QUEUED -> DENIED, QUEUED -> RUNNING, RUNNING -> OK, RUNNING -> FAIL.
func (s RunStatus) CanTransition(next RunStatus) bool {
	switch s {
	case RunQueued:
		return next == RunDenied || next == RunRunning
	case RunRunning:
		return next == RunOK || next == RunFail
	default:
		return false
	}
}

// CommandRun represents one invocation attempt of an allow-listed command
type CommandRun struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	RequestedBy *string    `db:"requested_by" json:"requested_by,omitempty"`
	RequestedAt time.Time  `db:"requested_at" json:"requested_at"`
	StartedAt   *time.Time `db:"started_at" json:"started_at"`
	FinishedAt  *time.Time `db:"finished_at" json:"finished_at"`
	Status      RunStatus  `db:"status" json:"status"`
	ReturnCode  *int       `db:"return_code" json:"return_code"`
	Stdout      *string    `db:"stdout" json:"stdout"`
	Stderr      *string    `db:"stderr" json:"stderr"`
}
