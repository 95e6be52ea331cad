package models

import "time"

// JobStatus is the terminal-oriented status of a history record.
type JobStatus string

const (
	JobStarted     JobStatus = "started"
	JobCompleted   JobStatus = "completed"
	JobFailed      JobStatus = "failed"
	JobInterrupted JobStatus = "interrupted"
)

// StateStatus is the status of a live job-state checkpoint.
type StateStatus string

const (
	StateRunning     StateStatus = "running"
	StateCompleted   StateStatus = "completed"
	StateFailed      StateStatus = "failed"
	StateInterrupted StateStatus = "interrupted"
)

// JobRecord is one entry of the durable job history, stored as a single JSON
// file per job id.
type JobRecord struct {
	JobID        string            `json:"job_id"`
	JobType      string            `json:"job_type"`
	Status       JobStatus         `json:"status"`
	InputFile    string            `json:"input_file,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	FailedAt     *time.Time        `json:"failed_at,omitempty"`
	Outputs      map[string]string `json:"outputs,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Extra        map[string]any    `json:"extra,omitempty"`
}

// JobState is the live checkpoint of a running job, distinct from the
// history record: state is the running cursor, the record is the history.
type JobState struct {
	JobID     string         `json:"job_id"`
	Status    StateStatus    `json:"status"`
	UpdatedAt time.Time      `json:"updated_at"`
	Fields    map[string]any `json:"fields,omitempty"`
}
