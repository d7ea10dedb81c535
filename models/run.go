package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// PipelineRun is the accounting record for one full pipeline invocation.
type PipelineRun struct {
	ID            int64      `json:"id" db:"id"`
	InitialRun    bool       `json:"initial_run" db:"initial_run"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
	Status        RunStatus  `json:"status" db:"status"`
	JobsCreated   int        `json:"jobs_created" db:"jobs_created"`
	JobsReady     int        `json:"jobs_ready" db:"jobs_ready"`
	JobsFailed    int        `json:"jobs_failed" db:"jobs_failed"`
	RetriesRun    int        `json:"retries_run" db:"retries_run"`
	ListingsSeen  int        `json:"listings_seen" db:"listings_seen"`
	PropertiesNew int        `json:"properties_new" db:"properties_new"`
	Transitions   int        `json:"transitions" db:"transitions"`
	Enriched      int        `json:"enriched" db:"enriched"`
	ErrorsCount   int        `json:"errors_count" db:"errors_count"`
}
