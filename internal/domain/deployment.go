package domain

import "time"

// RepeatType is recurrence mode of a deployment window.
// Params: none/daily/weekly closed set.
// Returns: recurrence projection rule for window evaluation.
type RepeatType string

const (
	// RepeatNone marks a one-shot window.
	RepeatNone RepeatType = "none"
	// RepeatDaily repeats the window every day at the same time.
	RepeatDaily RepeatType = "daily"
	// RepeatWeekly repeats the window every week on the same weekday.
	RepeatWeekly RepeatType = "weekly"
)

// RepeatInformation describes optional recurrence of a deployment window.
// Params: repeat type; period is derived from the type.
// Returns: recurrence settings for ActiveAt evaluation.
type RepeatInformation struct {
	Type RepeatType `json:"type"`
}

// Deployment is a planned maintenance window for a set of elements.
// Params: covered element ids, window bounds, and optional recurrence.
// Returns: suppression window; matching transitions are recorded in history
// but excluded from notification dispatch.
type Deployment struct {
	ID                        string             `json:"id"`
	EnvironmentSubscriptionID string             `json:"environmentSubscriptionId"`
	ElementIDs                []string           `json:"elementIds"`
	StartDate                 time.Time          `json:"startDate"`
	EndDate                   *time.Time         `json:"endDate,omitempty"`
	RepeatInformation         *RepeatInformation `json:"repeatInformation,omitempty"`
}

// Covers reports whether the deployment lists the element.
// Params: element id from an accepted transition.
// Returns: true when the element belongs to the window.
func (d Deployment) Covers(elementID string) bool {
	for _, id := range d.ElementIDs {
		if id == elementID {
			return true
		}
	}
	return false
}

// ActiveAt reports whether the window covers the instant, honoring recurrence.
// Params: evaluation time.
// Returns: true inside the (possibly projected) window.
func (d Deployment) ActiveAt(now time.Time) bool {
	if now.Before(d.StartDate) {
		return false
	}
	if d.EndDate == nil {
		// Open-ended window: active from start until the deployment is closed.
		return true
	}
	if d.RepeatInformation == nil || d.RepeatInformation.Type == RepeatNone || d.RepeatInformation.Type == "" {
		return now.Before(*d.EndDate)
	}

	period := d.repeatPeriod()
	if period <= 0 {
		return now.Before(*d.EndDate)
	}
	duration := d.EndDate.Sub(d.StartDate)
	if duration <= 0 || duration > period {
		return now.Before(*d.EndDate)
	}
	offset := now.Sub(d.StartDate) % period
	return offset < duration
}

func (d Deployment) repeatPeriod() time.Duration {
	switch d.RepeatInformation.Type {
	case RepeatDaily:
		return 24 * time.Hour
	case RepeatWeekly:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// InDeploymentWindow reports whether any deployment suppresses the element now.
// Params: deployment list, element id, and evaluation time.
// Returns: true when one active window covers the element.
func InDeploymentWindow(deployments []Deployment, elementID string, now time.Time) bool {
	for _, deployment := range deployments {
		if deployment.Covers(elementID) && deployment.ActiveAt(now) {
			return true
		}
	}
	return false
}
