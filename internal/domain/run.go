package domain

import "time"

// RunStatus summarizes how a pipeline run ended.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunDegraded  RunStatus = "degraded"
	RunFailed    RunStatus = "failed"
)

// RunRecord is the persisted audit row for one pipeline run.
type RunRecord struct {
	ID            string
	DocumentTitle string
	Status        RunStatus
	TaskCount     int
	ValidCount    int
	OutputPath    string
	FinishedAt    time.Time
}
