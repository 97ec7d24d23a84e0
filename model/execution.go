package model

import "time"

type ExecStatus string

const (
	ExecSucceeded ExecStatus = "succeeded"
	ExecFailed    ExecStatus = "failed"
	ExecTimedOut  ExecStatus = "timed_out"
)

// Execution is the audit record of a single job run.
type Execution struct {
	ID         string     `json:"id"`
	Job        string     `json:"job"`
	Image      string     `json:"image"`
	Command    string     `json:"command,omitempty"`
	Status     ExecStatus `json:"status"`
	ErrorKind  string     `json:"errorKind,omitempty"`
	Message    string     `json:"message,omitempty"`
	ExitCode   int        `json:"exitCode"`
	Output     string     `json:"output,omitempty"`
	DurationMs int64      `json:"durationMs"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Sequence   uint64     `json:"sequence"`
	SagaID     string     `json:"sagaId,omitempty"`
	ArchiveKey string     `json:"archiveKey,omitempty"`
}

// Outcome converts the execution into its ledger entry.
func (e *Execution) Outcome() Outcome {
	if e.Status == ExecSucceeded {
		return Succeeded(e.Image)
	}
	return Failed(e.Image, e.Message)
}
