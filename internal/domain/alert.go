package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StreamKey identifies one independently tracked alert stream.
// Params: element id plus check id and alert name sub-keys.
// Returns: stable identity for state, history, and escalation.
type StreamKey struct {
	ElementID string `json:"elementId"`
	CheckID   string `json:"checkId"`
	AlertName string `json:"alertName"`
}

// String renders stream key in element/check/alert form.
// Params: none.
// Returns: slash-joined key for logging and map keys.
func (k StreamKey) String() string {
	return k.ElementID + "/" + k.CheckID + "/" + k.AlertName
}

// AlertMessage is one external check result reported by a monitoring agent.
// Params: wire fields from the ingestion contract.
// Returns: validated intake unit.
type AlertMessage struct {
	RecordID        uuid.UUID `json:"recordId"`
	SubscriptionID  string    `json:"subscriptionId"`
	ComponentID     string    `json:"componentId"`
	CheckID         string    `json:"checkId"`
	AlertName       string    `json:"alertName"`
	State           State     `json:"state"`
	SourceTimestamp time.Time `json:"sourceTimestamp"`
	TimeGenerated   time.Time `json:"timeGenerated"`
	Custom1         string    `json:"custom1,omitempty"`
	Custom2         string    `json:"custom2,omitempty"`
	Custom3         string    `json:"custom3,omitempty"`
	Custom4         string    `json:"custom4,omitempty"`
	Custom5         string    `json:"custom5,omitempty"`
}

// Stream returns stream identity of the message.
// Params: none.
// Returns: stream key built from componentId/checkId/alertName.
func (m AlertMessage) Stream() StreamKey {
	return StreamKey{ElementID: m.ComponentID, CheckID: m.CheckID, AlertName: m.AlertName}
}

// CustomFields collects non-empty custom columns into a map.
// Params: none.
// Returns: custom1..custom5 keyed map without empty values.
func (m AlertMessage) CustomFields() map[string]string {
	fields := make(map[string]string, 5)
	for key, value := range map[string]string{
		"custom1": m.Custom1,
		"custom2": m.Custom2,
		"custom3": m.Custom3,
		"custom4": m.Custom4,
		"custom5": m.Custom5,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Validate validates one alert message against the intake contract.
// Params: fields parsed from transport.
// Returns: *ValidationError when the schema is violated.
func (m AlertMessage) Validate() error {
	if m.RecordID == uuid.Nil {
		return &ValidationError{RecordID: m.RecordID, Reason: "recordId is required"}
	}
	if strings.TrimSpace(m.SubscriptionID) == "" {
		return &ValidationError{RecordID: m.RecordID, Reason: "subscriptionId is required"}
	}
	if strings.TrimSpace(m.ComponentID) == "" {
		return &ValidationError{RecordID: m.RecordID, Reason: "componentId is required"}
	}
	if strings.TrimSpace(m.CheckID) == "" {
		return &ValidationError{RecordID: m.RecordID, Reason: "checkId is required"}
	}
	if !m.State.Valid() {
		return &ValidationError{RecordID: m.RecordID, Reason: fmt.Sprintf("unsupported state %q", m.State)}
	}
	if m.SourceTimestamp.IsZero() {
		return &ValidationError{RecordID: m.RecordID, Reason: "sourceTimestamp is required"}
	}
	return nil
}

// DecodeAlertBatch decodes one alert batch payload.
// Params: JSON array bytes from transport.
// Returns: decoded batch or decode error; per-message schema violations are
// reported later as per-message outcomes, not as a batch failure.
func DecodeAlertBatch(raw []byte) ([]AlertMessage, error) {
	var messages []AlertMessage
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("decode alert batch: %w", err)
	}
	if len(messages) == 0 {
		return nil, errors.New("alert batch must contain at least one message")
	}
	return messages, nil
}

// UnmarshalJSON decodes one alert message leniently: the state token is
// parsed case-insensitively, and a malformed recordId, state, or timestamp
// is kept as a zero value so Validate rejects this message only instead of
// failing the whole batch.
// Params: raw JSON of one alert message.
// Returns: decode error on a malformed envelope.
func (m *AlertMessage) UnmarshalJSON(raw []byte) error {
	type wireAlert AlertMessage
	aux := struct {
		*wireAlert
		RecordID        json.RawMessage `json:"recordId"`
		State           json.RawMessage `json:"state"`
		SourceTimestamp json.RawMessage `json:"sourceTimestamp"`
		TimeGenerated   json.RawMessage `json:"timeGenerated"`
	}{wireAlert: (*wireAlert)(m)}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return err
	}

	m.RecordID = parseWireUUID(aux.RecordID)
	m.SourceTimestamp = parseWireTime(aux.SourceTimestamp)
	m.TimeGenerated = parseWireTime(aux.TimeGenerated)

	var token string
	_ = json.Unmarshal(aux.State, &token)
	if parsed, err := ParseState(token); err == nil {
		m.State = parsed
	} else {
		// Keep the invalid token so Validate reports it for this message only.
		m.State = State(token)
	}
	return nil
}

func parseWireUUID(raw json.RawMessage) uuid.UUID {
	var value string
	if len(raw) == 0 || json.Unmarshal(raw, &value) != nil {
		return uuid.Nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func parseWireTime(raw json.RawMessage) time.Time {
	var value time.Time
	if len(raw) == 0 || json.Unmarshal(raw, &value) != nil {
		return time.Time{}
	}
	return value
}
