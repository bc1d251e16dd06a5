package domain

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// IgnoreCondition is a structured predicate over alert stream identity.
// Params: glob patterns per field; empty pattern matches everything.
// Returns: pure match function input for ignore-rule evaluation.
type IgnoreCondition struct {
	ElementIDPattern string `json:"elementIdPattern,omitempty"`
	CheckIDPattern   string `json:"checkIdPattern,omitempty"`
	AlertNamePattern string `json:"alertNamePattern,omitempty"`
}

// Validate checks that all patterns are parseable globs.
// Params: none.
// Returns: error naming the malformed pattern.
func (c IgnoreCondition) Validate() error {
	for name, pattern := range map[string]string{
		"elementId": c.ElementIDPattern,
		"checkId":   c.CheckIDPattern,
		"alertName": c.AlertNamePattern,
	} {
		if pattern == "" {
			continue
		}
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("%s pattern %q: %w", name, pattern, err)
		}
	}
	return nil
}

// Matches evaluates the condition against one stream identity.
// Params: stream key from an admitted alert.
// Returns: match flag, or error for a malformed pattern.
func (c IgnoreCondition) Matches(key StreamKey) (bool, error) {
	for pattern, value := range map[string]string{
		c.ElementIDPattern: key.ElementID,
		c.CheckIDPattern:   key.CheckID,
		c.AlertNamePattern: key.AlertName,
	} {
		if pattern == "" {
			continue
		}
		matched, err := path.Match(pattern, value)
		if err != nil {
			return false, fmt.Errorf("ignore pattern %q: %w", pattern, err)
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

// AlertIgnoreRule suppresses matching alerts during its validity window.
// Params: rule identity, validity bounds, and structured condition.
// Returns: operator-managed suppression rule evaluated at match time.
type AlertIgnoreRule struct {
	Name                      string          `json:"name"`
	EnvironmentSubscriptionID string          `json:"environmentSubscriptionId"`
	CreationDate              time.Time       `json:"creationDate"`
	ExpirationDate            time.Time       `json:"expirationDate"`
	IgnoreCondition           IgnoreCondition `json:"ignoreCondition"`
}

// Validate enforces the creationDate < expirationDate invariant.
// Params: none.
// Returns: validation error for inverted window or bad condition.
func (r AlertIgnoreRule) Validate() error {
	if !r.CreationDate.Before(r.ExpirationDate) {
		return errors.New("creationDate must be before expirationDate")
	}
	return r.IgnoreCondition.Validate()
}

// ActiveAt reports whether the rule applies at the given instant.
// Params: evaluation time.
// Returns: true inside [creationDate, expirationDate).
func (r AlertIgnoreRule) ActiveAt(now time.Time) bool {
	return !now.Before(r.CreationDate) && now.Before(r.ExpirationDate)
}

// StateIncreaseRule promotes a stream stuck in a non-ok state.
// Params: optional stream selectors and dwell time in seconds.
// Returns: escalation rule; empty selectors widen the match scope.
type StateIncreaseRule struct {
	EnvironmentSubscriptionID string `json:"environmentSubscriptionId"`
	ComponentID               string `json:"componentId,omitempty"`
	CheckID                   string `json:"checkId,omitempty"`
	AlertName                 string `json:"alertName,omitempty"`
	TriggerTimeSeconds        int    `json:"triggerTimeSeconds"`
	IsActive                  bool   `json:"isActive"`
}

// Matches reports whether the rule selects the given stream.
// Params: stream key of a non-ok stream.
// Returns: true when all non-empty selectors equal the stream fields.
func (r StateIncreaseRule) Matches(key StreamKey) bool {
	if r.ComponentID != "" && r.ComponentID != key.ElementID {
		return false
	}
	if r.CheckID != "" && r.CheckID != key.CheckID {
		return false
	}
	if r.AlertName != "" && r.AlertName != key.AlertName {
		return false
	}
	return true
}

// Specificity scores the rule for most-specific-wins selection.
// Params: none.
// Returns: weighted score; componentId outweighs checkId outweighs alertName.
func (r StateIncreaseRule) Specificity() int {
	score := 0
	if r.ComponentID != "" {
		score += 4
	}
	if r.CheckID != "" {
		score += 2
	}
	if r.AlertName != "" {
		score++
	}
	return score
}

// TriggerTime converts the dwell threshold into a duration.
// Params: none.
// Returns: dwell duration before escalation fires.
func (r StateIncreaseRule) TriggerTime() time.Duration {
	return time.Duration(r.TriggerTimeSeconds) * time.Second
}

// BestIncreaseRule selects the most specific active rule for a stream.
// Params: candidate rules and the stream key.
// Returns: winning rule and found flag; inactive rules are skipped.
func BestIncreaseRule(rules []StateIncreaseRule, key StreamKey) (StateIncreaseRule, bool) {
	var best StateIncreaseRule
	bestScore := -1
	for _, rule := range rules {
		if !rule.IsActive || !rule.Matches(key) {
			continue
		}
		if score := rule.Specificity(); score > bestScore {
			best = rule
			bestScore = score
		}
	}
	return best, bestScore >= 0
}

// NotificationConfiguration routes matching transitions to recipients.
// Params: recipients, batching interval, and match selectors.
// Returns: notification rule evaluated per accepted transition.
type NotificationConfiguration struct {
	ID                          string   `json:"id"`
	EmailAddresses              []string `json:"emailAddresses"`
	IsActive                    bool     `json:"isActive"`
	NotificationIntervalSeconds int      `json:"notificationIntervalSeconds"`
	EnvironmentSubscriptionID   string   `json:"environmentSubscriptionId"`
	ComponentTypes              []string `json:"componentTypes"`
	States                      []State  `json:"states"`
}

// Matches reports whether the rule selects one transition.
// Params: environment subscription id, element component type, and new state.
// Returns: true when environment, componentTypes, and states all match;
// empty selector lists match everything.
func (n NotificationConfiguration) Matches(subscriptionID, componentType string, state State) bool {
	if !n.IsActive {
		return false
	}
	if n.EnvironmentSubscriptionID != subscriptionID {
		return false
	}
	if len(n.ComponentTypes) > 0 && !containsFold(n.ComponentTypes, componentType) {
		return false
	}
	if len(n.States) > 0 {
		found := false
		for _, candidate := range n.States {
			if candidate == state {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Interval returns the effective batching interval.
// Params: fallback default in seconds for unset rule values.
// Returns: per-rule batching duration.
func (n NotificationConfiguration) Interval(defaultSeconds int) time.Duration {
	seconds := n.NotificationIntervalSeconds
	if seconds <= 0 {
		seconds = defaultSeconds
	}
	if seconds <= 0 {
		seconds = 60
	}
	return time.Duration(seconds) * time.Second
}

func containsFold(values []string, candidate string) bool {
	for _, value := range values {
		if strings.EqualFold(value, candidate) {
			return true
		}
	}
	return false
}
