package model

import (
	"time"

	"github.com/google/uuid"
)

// BulkRunStatus is the lifecycle state of a bulk creation run.
type BulkRunStatus string

const (
	BulkRunQueued    BulkRunStatus = "queued"
	BulkRunRunning   BulkRunStatus = "running"
	BulkRunSucceeded BulkRunStatus = "succeeded"
	BulkRunFailed    BulkRunStatus = "failed"
)

// BulkCreatedProblem is one problem a run created.
type BulkCreatedProblem struct {
	Index int    `json:"index"`
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// BulkRun is the persisted record of a bulk creation run. Created problems
// stay created even when the run fails.
type BulkRun struct {
	ID           uuid.UUID            `json:"id"`
	Author       string               `json:"author"`
	AssignmentID *int64               `json:"assignment_id,omitempty"`
	Status       BulkRunStatus        `json:"status"`
	Total        int                  `json:"total"`
	Created      []BulkCreatedProblem `json:"created"`
	FailedAt     *int                 `json:"failed_at,omitempty"`
	Error        *string              `json:"error,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
	FinishedAt   *time.Time           `json:"finished_at,omitempty"`
}
