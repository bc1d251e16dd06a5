package domain

import (
	"time"

	"github.com/google/uuid"
)

// ElementState is the current state of one stream on a topology element.
// Params: state, timestamps, custom fields, and root-cause markers.
// Returns: mutable stream state mutated only by intake and escalation.
type ElementState struct {
	State              State             `json:"state"`
	SourceTimestamp    time.Time         `json:"sourceTimestamp"`
	GeneratedTimestamp time.Time         `json:"generatedTimestamp"`
	CustomFields       map[string]string `json:"customFields,omitempty"`

	// triggeredBy* name the leaf check/alert that caused this state,
	// for root-cause display on aggregated ancestors.
	TriggeredByElementID string `json:"triggeredByElementId,omitempty"`
	TriggeredByCheckID   string `json:"triggeredByCheckId,omitempty"`
	TriggeredByAlertName string `json:"triggeredByAlertName,omitempty"`

	// Escalated marks a state produced by the escalation engine; it is
	// cleared when the stream returns to ok.
	Escalated bool `json:"escalated,omitempty"`
}

// StateTransition is one immutable recorded state change of a stream.
// Params: correlation guid, stream identity, and full state snapshot.
// Returns: append-only record for history, notifications, and push events.
type StateTransition struct {
	GUID                      uuid.UUID     `json:"guid"`
	RecordID                  uuid.UUID     `json:"recordId,omitempty"`
	EnvironmentSubscriptionID string        `json:"environmentSubscriptionId"`
	EnvironmentName           string        `json:"environmentName"`
	ElementID                 string        `json:"elementId"`
	CheckID                   string        `json:"checkId"`
	AlertName                 string        `json:"alertName"`
	ComponentType             string        `json:"componentType,omitempty"`
	ElementState              ElementState  `json:"elementState"`
	ProgressState             ProgressState `json:"progressState,omitempty"`
}

// Stream returns stream identity of the transition.
// Params: none.
// Returns: stream key of the changed stream.
func (t StateTransition) Stream() StreamKey {
	return StreamKey{ElementID: t.ElementID, CheckID: t.CheckID, AlertName: t.AlertName}
}

// HistoryInterval is one time range during which a stream held one state.
// Params: stream identity, state, and [start, end) bounds.
// Returns: derived history record; EndDate nil marks the open interval.
type HistoryInterval struct {
	EnvironmentSubscriptionID string     `json:"environmentSubscriptionId"`
	ElementID                 string     `json:"elementId"`
	CheckID                   string     `json:"checkId"`
	AlertName                 string     `json:"alertName"`
	ComponentType             string     `json:"componentType,omitempty"`
	State                     State      `json:"state"`
	StartDate                 time.Time  `json:"startDate"`
	EndDate                   *time.Time `json:"endDate,omitempty"`
}

// Stream returns stream identity of the interval.
// Params: none.
// Returns: stream key of the tracked stream.
func (h HistoryInterval) Stream() StreamKey {
	return StreamKey{ElementID: h.ElementID, CheckID: h.CheckID, AlertName: h.AlertName}
}

// Open reports whether the interval is the stream's current open interval.
// Params: none.
// Returns: true when EndDate is unset.
func (h HistoryInterval) Open() bool {
	return h.EndDate == nil
}

// IgnoreAudit records one alert suppressed by an ignore rule.
// Params: suppressed message, matched rule name, and suppression time.
// Returns: audit row persisted for operator review.
type IgnoreAudit struct {
	RecordID                  uuid.UUID `json:"recordId"`
	EnvironmentSubscriptionID string    `json:"environmentSubscriptionId"`
	ElementID                 string    `json:"elementId"`
	CheckID                   string    `json:"checkId"`
	AlertName                 string    `json:"alertName"`
	RuleName                  string    `json:"ruleName"`
	State                     State     `json:"state"`
	IgnoredAt                 time.Time `json:"ignoredAt"`
}
