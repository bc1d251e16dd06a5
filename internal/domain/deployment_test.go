package domain

import (
	"testing"
	"time"
)

func deploymentWindow(start time.Time, end *time.Time, repeat *RepeatInformation) Deployment {
	return Deployment{
		ID:                        "dep-1",
		EnvironmentSubscriptionID: "sub-1",
		ElementIDs:                []string{"comp-a", "chk-1"},
		StartDate:                 start,
		EndDate:                   end,
		RepeatInformation:         repeat,
	}
}

func TestDeploymentOneShotWindow(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 4, 1, 22, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	deployment := deploymentWindow(start, &end, nil)

	if deployment.ActiveAt(start.Add(-time.Minute)) {
		t.Fatalf("active before start")
	}
	if !deployment.ActiveAt(start.Add(time.Hour)) {
		t.Fatalf("inactive inside window")
	}
	// End bound is exclusive.
	if deployment.ActiveAt(end) {
		t.Fatalf("active at end instant")
	}
	if deployment.ActiveAt(end.Add(24 * time.Hour)) {
		t.Fatalf("one-shot window recurred")
	}
}

func TestDeploymentOpenEndedWindow(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 4, 1, 22, 0, 0, 0, time.UTC)
	deployment := deploymentWindow(start, nil, nil)
	if !deployment.ActiveAt(start.Add(30 * 24 * time.Hour)) {
		t.Fatalf("open-ended window expired")
	}
}

func TestDeploymentDailyRecurrence(t *testing.T) {
	t.Parallel()

	// Nightly 22:00-23:00 window.
	start := time.Date(2026, 4, 1, 22, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	deployment := deploymentWindow(start, &end, &RepeatInformation{Type: RepeatDaily})

	if !deployment.ActiveAt(time.Date(2026, 4, 5, 22, 30, 0, 0, time.UTC)) {
		t.Fatalf("daily recurrence inactive four days later")
	}
	if deployment.ActiveAt(time.Date(2026, 4, 5, 23, 30, 0, 0, time.UTC)) {
		t.Fatalf("daily recurrence active outside the projected hour")
	}
	if deployment.ActiveAt(start.Add(-time.Hour)) {
		t.Fatalf("recurrence active before the first window")
	}
}

func TestDeploymentWeeklyRecurrence(t *testing.T) {
	t.Parallel()

	// Wednesday 22:00-23:00, weekly.
	start := time.Date(2026, 4, 1, 22, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	deployment := deploymentWindow(start, &end, &RepeatInformation{Type: RepeatWeekly})

	if !deployment.ActiveAt(time.Date(2026, 4, 8, 22, 30, 0, 0, time.UTC)) {
		t.Fatalf("weekly recurrence inactive one week later")
	}
	if deployment.ActiveAt(time.Date(2026, 4, 6, 22, 30, 0, 0, time.UTC)) {
		t.Fatalf("weekly recurrence active on the wrong weekday")
	}
}

func TestInDeploymentWindowChecksCoverage(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 4, 1, 22, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	deployments := []Deployment{deploymentWindow(start, &end, nil)}
	inside := start.Add(30 * time.Minute)

	if !InDeploymentWindow(deployments, "comp-a", inside) {
		t.Fatalf("covered element not suppressed")
	}
	if InDeploymentWindow(deployments, "comp-z", inside) {
		t.Fatalf("uncovered element suppressed")
	}
	if InDeploymentWindow(deployments, "comp-a", end.Add(time.Minute)) {
		t.Fatalf("suppressed outside the window")
	}
}
