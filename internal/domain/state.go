package domain

import (
	"fmt"
	"strings"
)

// State is monitoring state of one stream or aggregated element.
// Params: ok/warning/error closed set.
// Returns: ordered severity used by propagation and SLA math.
type State string

const (
	// StateOk indicates healthy stream.
	StateOk State = "ok"
	// StateWarning indicates degraded stream.
	StateWarning State = "warning"
	// StateError indicates failing stream.
	StateError State = "error"
)

// stateRank orders severity for worst-state-wins aggregation.
var stateRank = map[State]int{
	StateOk:      0,
	StateWarning: 1,
	StateError:   2,
}

// ParseState normalizes external state token into closed state set.
// Params: raw state token from transport payload.
// Returns: parsed state or error for unknown token.
func ParseState(raw string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ok":
		return StateOk, nil
	case "warning", "warn":
		return StateWarning, nil
	case "error", "critical":
		return StateError, nil
	default:
		return "", fmt.Errorf("unsupported state %q", raw)
	}
}

// Rank returns numeric severity of state.
// Params: none.
// Returns: 0 for ok, 1 for warning, 2 for error, -1 for unknown.
func (s State) Rank() int {
	rank, ok := stateRank[s]
	if !ok {
		return -1
	}
	return rank
}

// Valid reports whether state belongs to the closed set.
// Params: none.
// Returns: true for ok/warning/error.
func (s State) Valid() bool {
	_, ok := stateRank[s]
	return ok
}

// WorseThan compares severity of two states.
// Params: other state.
// Returns: true when receiver is strictly more severe.
func (s State) WorseThan(other State) bool {
	return s.Rank() > other.Rank()
}

// WorstState returns the most severe state among candidates.
// Params: candidate state list.
// Returns: worst state or ok for empty input.
func WorstState(states ...State) State {
	worst := StateOk
	for _, candidate := range states {
		if candidate.WorseThan(worst) {
			worst = candidate
		}
	}
	return worst
}

// ProgressState is operator triage overlay on a recorded transition.
// Params: new/acknowledged/done closed set.
// Returns: triage status separate from monitoring state.
type ProgressState string

const (
	// ProgressStateNew marks untriaged transition.
	ProgressStateNew ProgressState = "new"
	// ProgressStateAcknowledged marks transition claimed by an operator.
	ProgressStateAcknowledged ProgressState = "acknowledged"
	// ProgressStateDone marks triage completed.
	ProgressStateDone ProgressState = "done"
)
