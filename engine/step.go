package engine

import "time"

// StepStatus is the terminal (or in-flight) state of a Step record.
type StepStatus string

const (
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// StepError is the {code, message} pair a failed Step carries.
type StepError struct {
	Code    BlockErrorCode `json:"code"`
	Message string         `json:"message"`
}

// Step is the executed-block record described in the data model: one entry
// per block invocation, sealed with a terminal status regardless of outcome.
type Step struct {
	StepID         string         `json:"step_id"`
	BlockID        string         `json:"block_id"`
	BlockType      BlockType      `json:"block_type"`
	BlockName      string         `json:"block_name"`
	Status         StepStatus     `json:"status"`
	ExecutionOrder int            `json:"execution_order"`
	StartedAt      time.Time      `json:"started_at"`
	DurationMs     int64          `json:"duration_ms"`
	Error          *StepError     `json:"error,omitempty"`
	OutputSnapshot map[string]any `json:"output_snapshot,omitempty"`
}
