package sla

import (
	"math"
	"testing"
	"time"

	"providence/internal/domain"
)

func ts(hour, minute int) time.Time {
	return time.Date(2026, 4, 1, hour, minute, 0, 0, time.UTC)
}

func tsPtr(hour, minute int) *time.Time {
	value := ts(hour, minute)
	return &value
}

func interval(state domain.State, start time.Time, end *time.Time) domain.HistoryInterval {
	return domain.HistoryInterval{
		EnvironmentSubscriptionID: "sub-1",
		ElementID:                 "comp-a",
		CheckID:                   "http",
		AlertName:                 "latency",
		State:                     state,
		StartDate:                 start,
		EndDate:                   end,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeHalfHourOutageInTwoHourWindow(t *testing.T) {
	t.Parallel()

	// 09:00-11:00 window with a 09:30-10:00 error gives 0.75 availability.
	request := domain.SlaRequest{
		Scope:     domain.SlaScope{ElementID: "comp-a"},
		StartDate: ts(9, 0),
		EndDate:   ts(11, 0),
	}
	intervals := []domain.HistoryInterval{
		interval(domain.StateOk, ts(8, 0), tsPtr(9, 30)),
		interval(domain.StateError, ts(9, 30), tsPtr(10, 0)),
		interval(domain.StateOk, ts(10, 0), nil),
	}

	result, err := Compute(request, intervals, ts(12, 0))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !almostEqual(result.TotalSeconds, 7200) {
		t.Fatalf("total = %v", result.TotalSeconds)
	}
	if !almostEqual(result.DownSeconds, 1800) {
		t.Fatalf("down = %v", result.DownSeconds)
	}
	if !almostEqual(result.CalculatedValue, 0.75) {
		t.Fatalf("availability = %v, want 0.75", result.CalculatedValue)
	}
	if len(result.Days) != 1 || !almostEqual(result.Days[0].CalculatedValue, 0.75) {
		t.Fatalf("day buckets = %+v", result.Days)
	}
}

func TestComputeWarningsCountOnlyWhenRequested(t *testing.T) {
	t.Parallel()

	intervals := []domain.HistoryInterval{
		interval(domain.StateWarning, ts(9, 0), tsPtr(10, 0)),
	}
	request := domain.SlaRequest{
		Scope:     domain.SlaScope{ElementID: "comp-a"},
		StartDate: ts(9, 0),
		EndDate:   ts(11, 0),
	}

	withoutWarnings, err := Compute(request, intervals, ts(12, 0))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !almostEqual(withoutWarnings.CalculatedValue, 1.0) {
		t.Fatalf("warnings lowered availability: %v", withoutWarnings.CalculatedValue)
	}

	request.IncludeWarnings = true
	withWarnings, err := Compute(request, intervals, ts(12, 0))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !almostEqual(withWarnings.CalculatedValue, 0.5) {
		t.Fatalf("availability with warnings = %v, want 0.5", withWarnings.CalculatedValue)
	}
}

func TestComputeMergesOverlappingStreams(t *testing.T) {
	t.Parallel()

	// Two streams down at overlapping times count once.
	intervals := []domain.HistoryInterval{
		interval(domain.StateError, ts(9, 0), tsPtr(9, 40)),
		{
			EnvironmentSubscriptionID: "sub-1",
			ElementID:                 "comp-b",
			CheckID:                   "disk",
			AlertName:                 "full",
			State:                     domain.StateError,
			StartDate:                 ts(9, 20),
			EndDate:                   tsPtr(10, 0),
		},
	}
	request := domain.SlaRequest{
		Scope:     domain.SlaScope{ComponentType: "webshop"},
		StartDate: ts(9, 0),
		EndDate:   ts(11, 0),
	}

	result, err := Compute(request, intervals, ts(12, 0))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !almostEqual(result.DownSeconds, 3600) {
		t.Fatalf("down = %v, want 3600 for merged 09:00-10:00", result.DownSeconds)
	}
}

func TestComputeClipsOpenIntervalsAndFutureEnd(t *testing.T) {
	t.Parallel()

	// Open error interval counts only up to now, and the range end is
	// clipped to now as well.
	intervals := []domain.HistoryInterval{
		interval(domain.StateError, ts(9, 0), nil),
	}
	request := domain.SlaRequest{
		Scope:     domain.SlaScope{ElementID: "comp-a"},
		StartDate: ts(8, 0),
		EndDate:   ts(20, 0),
	}

	result, err := Compute(request, intervals, ts(10, 0))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !almostEqual(result.TotalSeconds, 7200) {
		t.Fatalf("total = %v, want clipped 2h", result.TotalSeconds)
	}
	if !almostEqual(result.DownSeconds, 3600) {
		t.Fatalf("down = %v, want 1h", result.DownSeconds)
	}
	if !almostEqual(result.CalculatedValue, 0.5) {
		t.Fatalf("availability = %v", result.CalculatedValue)
	}
}

func TestComputeSplitsMultiDayRanges(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	end := time.Date(2026, 4, 3, 12, 0, 0, 0, time.UTC)
	outageEnd := time.Date(2026, 4, 2, 6, 0, 0, 0, time.UTC)
	intervals := []domain.HistoryInterval{
		interval(domain.StateError, time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC), &outageEnd),
	}
	request := domain.SlaRequest{
		Scope:     domain.SlaScope{ElementID: "comp-a"},
		StartDate: start,
		EndDate:   end,
	}

	result, err := Compute(request, intervals, end.Add(time.Hour))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(result.Days) != 3 {
		t.Fatalf("days = %d, want 3", len(result.Days))
	}
	if !almostEqual(result.Days[0].DownSeconds, 0) {
		t.Fatalf("day 1 down = %v", result.Days[0].DownSeconds)
	}
	if !almostEqual(result.Days[1].DownSeconds, 6*3600) {
		t.Fatalf("day 2 down = %v", result.Days[1].DownSeconds)
	}
	if !almostEqual(result.Days[1].TotalSeconds, 24*3600) {
		t.Fatalf("day 2 total = %v", result.Days[1].TotalSeconds)
	}
	if !almostEqual(result.Days[2].DownSeconds, 0) {
		t.Fatalf("day 3 down = %v", result.Days[2].DownSeconds)
	}
}

func TestComputeRejectsInvertedRange(t *testing.T) {
	t.Parallel()

	request := domain.SlaRequest{
		Scope:     domain.SlaScope{ElementID: "comp-a"},
		StartDate: ts(11, 0),
		EndDate:   ts(9, 0),
	}
	if _, err := Compute(request, nil, ts(12, 0)); err == nil {
		t.Fatalf("expected error for inverted range")
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	t.Parallel()

	intervals := []domain.HistoryInterval{
		interval(domain.StateError, ts(9, 30), tsPtr(10, 0)),
		interval(domain.StateWarning, ts(10, 15), tsPtr(10, 45)),
	}
	request := domain.SlaRequest{
		Scope:           domain.SlaScope{ElementID: "comp-a"},
		StartDate:       ts(9, 0),
		EndDate:         ts(11, 0),
		IncludeWarnings: true,
	}

	first, err := Compute(request, intervals, ts(12, 0))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	// Reversed input order must not change anything.
	reversed := []domain.HistoryInterval{intervals[1], intervals[0]}
	second, err := Compute(request, reversed, ts(12, 0))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if first.CalculatedValue != second.CalculatedValue || first.DownSeconds != second.DownSeconds {
		t.Fatalf("results differ: %+v vs %+v", first, second)
	}
}
