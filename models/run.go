package models

import (
	"encoding/json"
	"time"
)

type SyncMode string

const (
	SyncModeFull        SyncMode = "full"
	SyncModeIncremental SyncMode = "incremental"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// ScopeAll is the scope value for a fleet run.
const ScopeAll = "all"

// SyncRun is the audit row for one pipeline execution. Created in running
// status at run start and sealed exactly once at run end.
type SyncRun struct {
	ID           int64           `json:"id" db:"id"`
	Scope        string          `json:"scope" db:"scope"`
	PropertyType string          `json:"property_type" db:"property_type"`
	Mode         SyncMode        `json:"mode" db:"mode"`
	TriggeredBy  string          `json:"triggered_by" db:"triggered_by"`
	Status       RunStatus       `json:"status" db:"status"`
	Found        int             `json:"found" db:"found"`
	Added        int             `json:"added" db:"added"`
	Updated      int             `json:"updated" db:"updated"`
	Removed      int             `json:"removed" db:"removed"`
	Unchanged    int             `json:"unchanged" db:"unchanged"`
	Skipped      int             `json:"skipped" db:"skipped"`
	StartedAt    time.Time       `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at" db:"finished_at"`
	Errors       json.RawMessage `json:"errors" db:"errors"`
}

// RunError is one accumulated failure inside a run. Failures are collected
// here rather than thrown; callers inspect the list to decide on retry.
type RunError struct {
	Scope   string `json:"scope"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// MarshalRunErrors renders the error list for the audit row, nil for none.
func MarshalRunErrors(errs []RunError) json.RawMessage {
	if len(errs) == 0 {
		return nil
	}
	data, _ := json.Marshal(errs)
	return data
}
