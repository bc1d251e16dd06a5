package sla

import (
	"errors"
	"sort"
	"time"

	"providence/internal/domain"
)

// Result is the outcome of one SLA computation.
// Params: echoed request fields plus aggregate and per-day availability.
// Returns: JSON-encodable job result.
type Result struct {
	Scope           domain.SlaScope `json:"scope"`
	StartDate       time.Time       `json:"startDate"`
	EndDate         time.Time       `json:"endDate"`
	IncludeWarnings bool            `json:"includeWarnings"`
	TotalSeconds    float64         `json:"totalSeconds"`
	UpSeconds       float64         `json:"upTimeSeconds"`
	DownSeconds     float64         `json:"downTimeSeconds"`
	CalculatedValue float64         `json:"calculatedValue"`
	Days            []DayResult     `json:"days"`
}

// DayResult is availability of one calendar day inside the range.
// Params: UTC day start plus the same accumulators as the aggregate.
// Returns: per-day bucket; partial edge days cover only the in-range part.
type DayResult struct {
	Date            time.Time `json:"date"`
	TotalSeconds    float64   `json:"totalSeconds"`
	UpSeconds       float64   `json:"upTimeSeconds"`
	DownSeconds     float64   `json:"downTimeSeconds"`
	CalculatedValue float64   `json:"calculatedValue"`
}

// window is one half-open [start, end) downtime span.
type window struct {
	start time.Time
	end   time.Time
}

// Compute derives availability from history intervals.
// Params: request with range and scope, overlapping intervals from the
// store, and the evaluation instant used to clip open intervals.
// Returns: deterministic result; identical inputs always produce identical
// output.
func Compute(request domain.SlaRequest, intervals []domain.HistoryInterval, now time.Time) (Result, error) {
	if !request.StartDate.Before(request.EndDate) {
		return Result{}, errors.New("startDate must be before endDate")
	}

	start := request.StartDate.UTC()
	end := request.EndDate.UTC()
	if end.After(now) {
		end = now.UTC()
	}
	if !start.Before(end) {
		return Result{}, errors.New("range lies entirely in the future")
	}

	down := mergeWindows(downWindows(request, intervals, start, end))

	result := Result{
		Scope:           request.Scope,
		StartDate:       start,
		EndDate:         end,
		IncludeWarnings: request.IncludeWarnings,
		TotalSeconds:    end.Sub(start).Seconds(),
		DownSeconds:     sumWindows(down, start, end),
	}
	result.UpSeconds = result.TotalSeconds - result.DownSeconds
	result.CalculatedValue = availability(result.UpSeconds, result.TotalSeconds)
	result.Days = dayBuckets(down, start, end)
	return result, nil
}

// downWindows clips matching intervals to the range.
// Params: request, interval rows, and clipped range bounds.
// Returns: unclipped-state windows inside [start, end).
func downWindows(request domain.SlaRequest, intervals []domain.HistoryInterval, start, end time.Time) []window {
	windows := make([]window, 0, len(intervals))
	for _, interval := range intervals {
		if !countsAsDown(interval.State, request.IncludeWarnings) {
			continue
		}
		from := interval.StartDate.UTC()
		if from.Before(start) {
			from = start
		}
		to := end
		if interval.EndDate != nil && interval.EndDate.UTC().Before(end) {
			to = interval.EndDate.UTC()
		}
		if from.Before(to) {
			windows = append(windows, window{start: from, end: to})
		}
	}
	return windows
}

// countsAsDown classifies one state for availability.
// Params: interval state and warning toggle.
// Returns: true when the span reduces availability.
func countsAsDown(state domain.State, includeWarnings bool) bool {
	if state == domain.StateError {
		return true
	}
	return includeWarnings && state == domain.StateWarning
}

// mergeWindows merges overlapping windows into a disjoint sorted set.
// Params: clipped windows in any order.
// Returns: non-overlapping windows sorted by start.
func mergeWindows(windows []window) []window {
	if len(windows) <= 1 {
		return windows
	}
	sort.Slice(windows, func(i, j int) bool {
		return windows[i].start.Before(windows[j].start)
	})
	merged := windows[:1]
	for _, next := range windows[1:] {
		last := &merged[len(merged)-1]
		if !next.start.After(last.end) {
			if next.end.After(last.end) {
				last.end = next.end
			}
			continue
		}
		merged = append(merged, next)
	}
	return merged
}

// sumWindows accumulates window seconds inside the bounds.
// Params: disjoint windows and range bounds.
// Returns: covered seconds.
func sumWindows(windows []window, start, end time.Time) float64 {
	total := 0.0
	for _, w := range windows {
		from, to := w.start, w.end
		if from.Before(start) {
			from = start
		}
		if to.After(end) {
			to = end
		}
		if from.Before(to) {
			total += to.Sub(from).Seconds()
		}
	}
	return total
}

// dayBuckets splits the range into UTC calendar-day buckets.
// Params: disjoint downtime windows and range bounds.
// Returns: one bucket per touched day; edge days cover the in-range part.
func dayBuckets(down []window, start, end time.Time) []DayResult {
	days := make([]DayResult, 0, int(end.Sub(start).Hours()/24)+1)
	for dayStart := start.Truncate(24 * time.Hour); dayStart.Before(end); dayStart = dayStart.Add(24 * time.Hour) {
		from := dayStart
		if from.Before(start) {
			from = start
		}
		to := dayStart.Add(24 * time.Hour)
		if to.After(end) {
			to = end
		}
		bucket := DayResult{
			Date:         dayStart,
			TotalSeconds: to.Sub(from).Seconds(),
			DownSeconds:  sumWindows(down, from, to),
		}
		bucket.UpSeconds = bucket.TotalSeconds - bucket.DownSeconds
		bucket.CalculatedValue = availability(bucket.UpSeconds, bucket.TotalSeconds)
		days = append(days, bucket)
	}
	return days
}

// availability computes the up ratio guarding empty ranges.
// Params: up and total seconds.
// Returns: ratio in [0, 1].
func availability(up, total float64) float64 {
	if total <= 0 {
		return 1
	}
	return up / total
}
