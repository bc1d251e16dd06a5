package notify

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"providence/internal/domain"
	"providence/internal/templatefmt"
)

// Entry is one transition summarized inside a notification batch.
// Params: stream identity, new state, and root-cause markers.
// Returns: recipient-facing line item.
type Entry struct {
	ElementID            string       `json:"elementId"`
	ElementName          string       `json:"elementName,omitempty"`
	CheckID              string       `json:"checkId"`
	AlertName            string       `json:"alertName"`
	ComponentType        string       `json:"componentType,omitempty"`
	State                domain.State `json:"state"`
	SourceTimestamp      time.Time    `json:"sourceTimestamp"`
	TriggeredByElementID string       `json:"triggeredByElementId,omitempty"`
	TriggeredByAlertName string       `json:"triggeredByAlertName,omitempty"`
	Escalated            bool         `json:"escalated,omitempty"`
}

// Batch is one dispatch unit collected for a notification rule.
// Params: rule identity, recipients, environment scope, and entries in
// arrival order.
// Returns: payload handed to every configured channel sender.
type Batch struct {
	RuleID          string    `json:"ruleId"`
	EmailAddresses  []string  `json:"emailAddresses"`
	EnvironmentName string    `json:"environmentName"`
	Entries         []Entry   `json:"entries"`
	CollectedAt     time.Time `json:"collectedAt"`
}

const defaultBatchTemplate = `State changes in {{.EnvironmentName}}:
{{range .Entries}}- [{{.State}}] {{if .ElementName}}{{.ElementName}} ({{.ElementID}}){{else}}{{.ElementID}}{{end}} {{.CheckID}}/{{.AlertName}} at {{fmtTime .SourceTimestamp}}{{if .Escalated}} (escalated){{end}}
{{end}}Collected over {{fmtDuration .Window}} at {{fmtTime .CollectedAt}}.
`

var batchTemplate = template.Must(
	templatefmt.ParseNotificationTemplate("batch", defaultBatchTemplate))

// Window reports the span from the oldest entry to collection time.
// Params: none.
// Returns: batching window duration, zero for empty batches.
func (b Batch) Window() time.Duration {
	var oldest time.Time
	for _, entry := range b.Entries {
		if oldest.IsZero() || entry.SourceTimestamp.Before(oldest) {
			oldest = entry.SourceTimestamp
		}
	}
	if oldest.IsZero() || b.CollectedAt.Before(oldest) {
		return 0
	}
	return b.CollectedAt.Sub(oldest)
}

// Render formats the batch into the recipient-facing message body.
// Params: none.
// Returns: rendered text or template execution error.
func (b Batch) Render() (string, error) {
	var builder strings.Builder
	if err := batchTemplate.Execute(&builder, b); err != nil {
		return "", fmt.Errorf("render notification batch: %w", err)
	}
	return builder.String(), nil
}

// Subject builds a short summary line for subject-bearing channels.
// Params: none.
// Returns: one-line batch summary.
func (b Batch) Subject() string {
	worst := domain.StateOk
	for _, entry := range b.Entries {
		if entry.State.WorseThan(worst) {
			worst = entry.State
		}
	}
	return fmt.Sprintf("[%s] %s: %d state change(s)", strings.ToUpper(string(worst)), b.EnvironmentName, len(b.Entries))
}
