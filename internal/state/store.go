// Package state persists run history. Every workbook evaluation records a
// run row with node and step counts, so the CLI and the API can answer
// "what ran, when, and did it work" without re-evaluating anything.
package state

import "time"

// RunStatus represents the lifecycle of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one recorded workbook evaluation.
type Run struct {
	ID         string     `json:"id"`
	Workbook   string     `json:"workbook"`
	Status     RunStatus  `json:"status"`
	Nodes      int        `json:"nodes"`
	NodeErrors int        `json:"node_errors"`
	Steps      int        `json:"steps"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Summary carries the counters recorded when a run completes.
type Summary struct {
	Nodes      int
	NodeErrors int
	Steps      int
}

// Store persists and queries run history.
type Store interface {
	CreateRun(workbook string) (*Run, error)
	CompleteRun(id string, status RunStatus, summary Summary, errMsg string) error
	GetRun(id string) (*Run, error)
	GetLatestRun(workbook string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)
	Close() error
}
