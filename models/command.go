package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdRunPipeline CommandType = "run_pipeline"
	CmdPause       CommandType = "pause"
	CmdResume      CommandType = "resume"
)

// Command is one trigger row enqueued by an external process. The scheduler
// polls unprocessed commands and marks them processed after handling.
type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	// Initial selects the one-time bulk run over the recurring incremental run.
	Initial bool `json:"initial,omitempty"`
}
