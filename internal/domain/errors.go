package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ValidationError marks a malformed or unresolvable alert message.
// Params: offending record id and reason text.
// Returns: per-message rejection; never aborts the rest of a batch.
type ValidationError struct {
	RecordID uuid.UUID
	Reason   string
}

// Error returns validation failure description.
// Params: none.
// Returns: string with record id and reason.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("alert %s rejected: %s", e.RecordID, e.Reason)
}

// OrphanAlertError marks an alert whose elementId resolves to no node.
// Params: unresolved element id and its environment subscription.
// Returns: warning-logged drop, not a batch failure.
type OrphanAlertError struct {
	SubscriptionID string
	ElementID      string
}

// Error returns orphan drop description.
// Params: none.
// Returns: string naming the unresolved element.
func (e *OrphanAlertError) Error() string {
	return fmt.Sprintf("orphan alert: element %q unknown in environment %q", e.ElementID, e.SubscriptionID)
}

// RuleEvaluationError marks a malformed ignore/escalation/notification rule.
// Params: rule name and wrapped cause.
// Returns: skip-and-log classification; never blocks unrelated alerts.
type RuleEvaluationError struct {
	RuleName string
	Err      error
}

// Error returns rule evaluation failure description.
// Params: none.
// Returns: string with rule name and cause.
func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule %q evaluation failed: %v", e.RuleName, e.Err)
}

// Unwrap exposes the wrapped cause.
// Params: none.
// Returns: wrapped error.
func (e *RuleEvaluationError) Unwrap() error {
	return e.Err
}

// PersistenceFailure marks a collaborator write that failed after retries.
// Params: failed operation name and wrapped cause.
// Returns: alert-not-admitted classification; caller may retry the recordId.
type PersistenceFailure struct {
	Op  string
	Err error
}

// Error returns persistence failure description.
// Params: none.
// Returns: string with operation and cause.
func (e *PersistenceFailure) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

// Unwrap exposes the wrapped cause.
// Params: none.
// Returns: wrapped error.
func (e *PersistenceFailure) Unwrap() error {
	return e.Err
}

// IsValidation reports whether the error is a per-message validation reject.
// Params: candidate error.
// Returns: true for *ValidationError anywhere in the chain.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsOrphan reports whether the error is an orphan-alert drop.
// Params: candidate error.
// Returns: true for *OrphanAlertError anywhere in the chain.
func IsOrphan(err error) bool {
	var target *OrphanAlertError
	return errors.As(err, &target)
}
