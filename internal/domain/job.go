package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobType identifies the kind of background job.
// Params: sla constant; further types share the same lifecycle.
// Returns: worker routing key.
type JobType string

// JobTypeSla marks an SLA computation job.
const JobTypeSla JobType = "sla"

// JobState is lifecycle state of one background job.
// Params: queued/running/done/failed closed set.
// Returns: terminal on done/failed.
type JobState string

const (
	// JobStateQueued marks a job waiting for a worker.
	JobStateQueued JobState = "queued"
	// JobStateRunning marks a job claimed by a worker.
	JobStateRunning JobState = "running"
	// JobStateDone marks a completed job with a result blob.
	JobStateDone JobState = "done"
	// JobStateFailed marks an aborted job with recorded error detail.
	JobStateFailed JobState = "failed"
)

// Terminal reports whether the state ends the job lifecycle.
// Params: none.
// Returns: true for done/failed.
func (s JobState) Terminal() bool {
	return s == JobStateDone || s == JobStateFailed
}

// SlaScope selects history rows for one SLA computation.
// Params: element id or component type; exactly one should be set.
// Returns: history query scope.
type SlaScope struct {
	ElementID     string `json:"elementId,omitempty"`
	ComponentType string `json:"componentType,omitempty"`
}

// SlaRequest is the input of one SLA job.
// Params: scope, date range, and warning handling toggle.
// Returns: deterministic computation input.
type SlaRequest struct {
	Scope           SlaScope  `json:"scope"`
	StartDate       time.Time `json:"startDate"`
	EndDate         time.Time `json:"endDate"`
	IncludeWarnings bool      `json:"includeWarnings"`
}

// InternalJob is one background task record.
// Params: type, lifecycle state, request payload, and result blob.
// Returns: job row created by API request and consumed by a worker.
type InternalJob struct {
	ID                        uuid.UUID       `json:"id"`
	Type                      JobType         `json:"type"`
	State                     JobState        `json:"state"`
	EnvironmentSubscriptionID string          `json:"environmentSubscriptionId"`
	Request                   SlaRequest      `json:"request"`
	Result                    json.RawMessage `json:"result,omitempty"`
	Error                     string          `json:"error,omitempty"`
	CreatedAt                 time.Time       `json:"createdAt"`
	StartedAt                 *time.Time      `json:"startedAt,omitempty"`
	FinishedAt                *time.Time      `json:"finishedAt,omitempty"`
}
