package availability

import (
	"sort"
	"time"

	"github.com/clinicbook/clinicbook/services/clinic-api/internal/model"
)

// Interval is a half-open [Start, End) span of wall-clock time.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// AvailableSlots enumerates candidate slots of the given duration inside
// [windowStart, windowEnd), advancing by step, and drops any candidate
// that has already started relative to now or that overlaps a busy
// interval. Busy intervals need not be sorted.
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, now time.Time) []Interval {
	if duration <= 0 || step <= 0 {
		return nil
	}

	var slots []Interval
	for start := windowStart; !start.Add(duration).After(windowEnd); start = start.Add(step) {
		if start.Before(now) {
			continue
		}
		candidate := Interval{Start: start, End: start.Add(duration)}
		if overlapsAny(candidate, busy) {
			continue
		}
		slots = append(slots, candidate)
	}
	return slots
}

func overlapsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

// DayWindows converts the minute-of-day working intervals for one local
// calendar day into absolute intervals. day must be midnight in loc.
// Offsets are added as durations so the math stays correct across DST
// transitions, matching how the clinic clock actually moves.
func DayWindows(day time.Time, intervals []model.MinuteInterval) []Interval {
	var windows []Interval
	for _, iv := range intervals {
		if iv.End <= iv.Start {
			continue
		}
		windows = append(windows, Interval{
			Start: day.Add(time.Duration(iv.Start) * time.Minute),
			End:   day.Add(time.Duration(iv.End) * time.Minute),
		})
	}
	return windows
}

// SubtractBlocks removes the blocked spans from each window and returns
// the remaining open intervals, sorted by start. Blocks may overlap each
// other and may extend past the windows.
func SubtractBlocks(windows, blocks []Interval) []Interval {
	if len(blocks) == 0 {
		return windows
	}

	merged := mergeIntervals(blocks)

	var open []Interval
	for _, w := range windows {
		cursor := w.Start
		for _, b := range merged {
			if !b.Start.Before(w.End) {
				break
			}
			if !b.End.After(cursor) {
				continue
			}
			if b.Start.After(cursor) {
				open = append(open, Interval{Start: cursor, End: minTime(b.Start, w.End)})
			}
			if b.End.After(cursor) {
				cursor = b.End
			}
			if !cursor.Before(w.End) {
				break
			}
		}
		if cursor.Before(w.End) {
			open = append(open, Interval{Start: cursor, End: w.End})
		}
	}
	return open
}

func mergeIntervals(intervals []Interval) []Interval {
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	var merged []Interval
	for _, iv := range sorted {
		if iv.End.Before(iv.Start) || iv.End.Equal(iv.Start) {
			continue
		}
		if len(merged) > 0 && !iv.Start.After(merged[len(merged)-1].End) {
			if iv.End.After(merged[len(merged)-1].End) {
				merged[len(merged)-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
