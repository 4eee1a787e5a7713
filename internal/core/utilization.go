// Package core holds the scheduling domain model plus the pure calculations
// built on it: monthly utilization from batch date ranges and the month-level
// revenue/quantity aggregation.
package core

import (
	"math"
	"sort"
	"time"
)

// dayInterval is a closed 1-indexed day-of-month range.
type dayInterval struct {
	start, end int
}

// Utilization returns the percentage of the month's calendar days covered by
// the union of the batches' date ranges.
//
// Each batch is clipped to the month; batches with malformed dates, no
// intersection, or a reversed range contribute zero days. Overlapping and
// adjacent intervals count once. The result is not capped at 100: with
// correct clipping and merging it cannot exceed 100, so a larger value
// signals a calculation defect (see UtilizationInRange).
func Utilization(batches []Batch, month Month) float64 {
	totalDays := month.Days()
	if totalDays == 0 || len(batches) == 0 {
		return 0
	}
	monthStart, monthEnd := month.Bounds()

	intervals := make([]dayInterval, 0, len(batches))
	for _, b := range batches {
		iv, ok := clipToMonth(b, monthStart, monthEnd)
		if !ok {
			continue
		}
		intervals = append(intervals, iv)
	}
	occupied := mergedDays(intervals)
	return float64(occupied) / float64(totalDays) * 100
}

// clipToMonth clips a batch's date range to [monthStart, monthEnd] and
// converts it to a day-of-month interval.
func clipToMonth(b Batch, monthStart, monthEnd time.Time) (dayInterval, bool) {
	start, ok := ParseDate(b.StartDate)
	if !ok {
		return dayInterval{}, false
	}
	end, ok := ParseDate(b.EndDate)
	if !ok {
		return dayInterval{}, false
	}
	if end.Before(start) {
		// Reversed range: zero occupied days, never negative.
		return dayInterval{}, false
	}
	if end.Before(monthStart) || start.After(monthEnd) {
		return dayInterval{}, false
	}
	if start.Before(monthStart) {
		start = monthStart
	}
	if end.After(monthEnd) {
		end = monthEnd
	}
	return dayInterval{start: start.Day(), end: end.Day()}, true
}

// mergedDays merges sorted intervals left to right and sums their lengths.
// An interval starting at runningEnd+1 is contiguous: adjacency counts, not
// just overlap.
func mergedDays(intervals []dayInterval) int {
	if len(intervals) == 0 {
		return 0
	}
	sort.Slice(intervals, func(i, j int) bool {
		if intervals[i].start != intervals[j].start {
			return intervals[i].start < intervals[j].start
		}
		return intervals[i].end < intervals[j].end
	})

	days := 0
	run := intervals[0]
	for _, iv := range intervals[1:] {
		if iv.start <= run.end+1 {
			if iv.end > run.end {
				run.end = iv.end
			}
			continue
		}
		days += run.end - run.start + 1
		run = iv
	}
	days += run.end - run.start + 1
	return days
}

// Round1 rounds a percentage to one decimal for display. Internal values are
// carried at full precision.
func Round1(pct float64) float64 {
	return math.Round(pct*10) / 10
}

// UtilizationInRange reports whether a computed utilization is plausible.
// Values above 100 (plus float tolerance) indicate a merge defect and must be
// surfaced loudly by callers, never clamped.
func UtilizationInRange(pct float64) bool {
	return pct >= 0 && pct <= 100+1e-9
}
