package models

import "time"

type JobStatus string

const (
	JobStatusRunning JobStatus = "running"
	JobStatusReady   JobStatus = "ready"
	JobStatusFailed  JobStatus = "failed"
)

// ScrapeJob tracks one attempt to fetch listings for a source. Jobs are never
// deleted; a ready job is retired by setting its consumption flags, so the
// ready status stays visible for audit.
type ScrapeJob struct {
	Key                 string    `json:"key" db:"key"`
	Status              JobStatus `json:"status" db:"status"`
	SourceID            string    `json:"source_id" db:"source_id"`
	SourceURL           string    `json:"source_url" db:"source_url"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	AttemptCount        int       `json:"attempt_count" db:"attempt_count"`
	ResultCount         int       `json:"result_count" db:"result_count"`
	InitialRun          bool      `json:"initial_run" db:"initial_run"`
	ConsumedByIngestion bool      `json:"consumed_by_ingestion" db:"consumed_by_ingestion"`
	ConsumedByDownstream bool     `json:"consumed_by_downstream" db:"consumed_by_downstream"`
}

// FailedJob is one row of the retry worklist snapshot.
type FailedJob struct {
	Key       string `json:"key" db:"key"`
	SourceID  string `json:"source_id" db:"source_id"`
	SourceURL string `json:"source_url" db:"source_url"`
}

// ReadyJob is one row of the ingestion worklist snapshot.
type ReadyJob struct {
	Key       string    `json:"key" db:"key"`
	SourceID  string    `json:"source_id" db:"source_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Source is one saved search the pipeline polls, as handed out by the active
// sources provider.
type Source struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
