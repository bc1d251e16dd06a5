package domain

import "github.com/google/uuid"

// OutcomeStatus classifies one processed intake message.
// Params: accepted/ignored/rejected closed set.
// Returns: per-message intake result reported to the caller.
type OutcomeStatus string

const (
	// OutcomeAccepted marks an admitted message (including deduplicated
	// replays and dropped out-of-order updates).
	OutcomeAccepted OutcomeStatus = "accepted"
	// OutcomeIgnored marks a message suppressed by an ignore rule.
	OutcomeIgnored OutcomeStatus = "ignored"
	// OutcomeRejected marks a message failed by validation.
	OutcomeRejected OutcomeStatus = "rejected"
)

// Outcome is one per-message intake result.
// Params: record id, status, and optional reject reason.
// Returns: batch response entry.
type Outcome struct {
	RecordID uuid.UUID     `json:"recordId"`
	Status   OutcomeStatus `json:"status"`
	Reason   string        `json:"reason,omitempty"`
}

// Accepted builds an accepted outcome.
// Params: processed record id.
// Returns: outcome with accepted status.
func Accepted(recordID uuid.UUID) Outcome {
	return Outcome{RecordID: recordID, Status: OutcomeAccepted}
}

// Ignored builds an ignored outcome.
// Params: record id and matched ignore rule name.
// Returns: outcome with ignored status.
func Ignored(recordID uuid.UUID, ruleName string) Outcome {
	return Outcome{RecordID: recordID, Status: OutcomeIgnored, Reason: ruleName}
}

// Rejected builds a rejected outcome.
// Params: record id and rejection reason.
// Returns: outcome with rejected status.
func Rejected(recordID uuid.UUID, reason string) Outcome {
	return Outcome{RecordID: recordID, Status: OutcomeRejected, Reason: reason}
}
