package availability

import (
	"testing"
	"time"

	"github.com/clinicbook/clinicbook/services/clinic-api/internal/model"
)

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

func TestAvailableSlotsEmptyCalendar(t *testing.T) {
	start := mustParse(t, "2024-06-03T09:00:00Z")
	end := mustParse(t, "2024-06-03T12:00:00Z")
	now := mustParse(t, "2024-06-01T00:00:00Z")

	slots := AvailableSlots(start, end, 30*time.Minute, 30*time.Minute, nil, now)
	if len(slots) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(start) {
		t.Errorf("first slot starts at %v, want %v", slots[0].Start, start)
	}
	last := slots[len(slots)-1]
	if !last.End.Equal(end) {
		t.Errorf("last slot ends at %v, want %v", last.End, end)
	}
}

func TestAvailableSlotsExcludesBusy(t *testing.T) {
	start := mustParse(t, "2024-06-03T09:00:00Z")
	end := mustParse(t, "2024-06-03T11:00:00Z")
	now := mustParse(t, "2024-06-01T00:00:00Z")
	busy := []Interval{
		{Start: mustParse(t, "2024-06-03T09:30:00Z"), End: mustParse(t, "2024-06-03T10:00:00Z")},
	}

	slots := AvailableSlots(start, end, 30*time.Minute, 30*time.Minute, busy, now)
	for _, s := range slots {
		if s.Overlaps(busy[0]) {
			t.Errorf("slot %v-%v overlaps busy interval", s.Start, s.End)
		}
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
}

func TestAvailableSlotsBackToBackNotConflicting(t *testing.T) {
	start := mustParse(t, "2024-06-03T09:00:00Z")
	end := mustParse(t, "2024-06-03T10:00:00Z")
	now := mustParse(t, "2024-06-01T00:00:00Z")
	busy := []Interval{
		{Start: mustParse(t, "2024-06-03T09:00:00Z"), End: mustParse(t, "2024-06-03T09:30:00Z")},
	}

	slots := AvailableSlots(start, end, 30*time.Minute, 30*time.Minute, busy, now)
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	if !slots[0].Start.Equal(busy[0].End) {
		t.Errorf("slot starts at %v, want %v (adjacent to busy end)", slots[0].Start, busy[0].End)
	}
}

func TestAvailableSlotsSkipsPast(t *testing.T) {
	start := mustParse(t, "2024-06-03T09:00:00Z")
	end := mustParse(t, "2024-06-03T11:00:00Z")
	now := mustParse(t, "2024-06-03T09:45:00Z")

	slots := AvailableSlots(start, end, 30*time.Minute, 30*time.Minute, nil, now)
	for _, s := range slots {
		if s.Start.Before(now) {
			t.Errorf("slot %v starts in the past (now=%v)", s.Start, now)
		}
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 future slots, got %d", len(slots))
	}
}

func TestAvailableSlotsDurationLongerThanWindow(t *testing.T) {
	start := mustParse(t, "2024-06-03T09:00:00Z")
	end := mustParse(t, "2024-06-03T09:30:00Z")
	now := mustParse(t, "2024-06-01T00:00:00Z")

	slots := AvailableSlots(start, end, time.Hour, 30*time.Minute, nil, now)
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %d", len(slots))
	}
}

func TestDayWindows(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, loc)

	windows := DayWindows(day, []model.MinuteInterval{
		{Start: 9 * 60, End: 12 * 60},
		{Start: 13 * 60, End: 17 * 60},
		{Start: 18 * 60, End: 18 * 60}, // empty, dropped
	})
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}
	if got := windows[0].Start.In(loc).Hour(); got != 9 {
		t.Errorf("first window starts at local hour %d, want 9", got)
	}
	if got := windows[1].End.In(loc).Hour(); got != 17 {
		t.Errorf("second window ends at local hour %d, want 17", got)
	}
}

func TestSubtractBlocks(t *testing.T) {
	windows := []Interval{
		{Start: mustParse(t, "2024-06-03T09:00:00Z"), End: mustParse(t, "2024-06-03T17:00:00Z")},
	}
	blocks := []Interval{
		{Start: mustParse(t, "2024-06-03T12:00:00Z"), End: mustParse(t, "2024-06-03T13:00:00Z")},
		{Start: mustParse(t, "2024-06-03T12:30:00Z"), End: mustParse(t, "2024-06-03T13:30:00Z")}, // overlaps previous
		{Start: mustParse(t, "2024-06-03T16:00:00Z"), End: mustParse(t, "2024-06-03T18:00:00Z")}, // extends past window
	}

	open := SubtractBlocks(windows, blocks)
	if len(open) != 2 {
		t.Fatalf("expected 2 open intervals, got %d: %v", len(open), open)
	}
	if !open[0].End.Equal(mustParse(t, "2024-06-03T12:00:00Z")) {
		t.Errorf("first open interval ends at %v", open[0].End)
	}
	if !open[1].Start.Equal(mustParse(t, "2024-06-03T13:30:00Z")) || !open[1].End.Equal(mustParse(t, "2024-06-03T16:00:00Z")) {
		t.Errorf("second open interval %v-%v", open[1].Start, open[1].End)
	}
}

func TestSubtractBlocksCoveringWholeWindow(t *testing.T) {
	windows := []Interval{
		{Start: mustParse(t, "2024-06-03T09:00:00Z"), End: mustParse(t, "2024-06-03T12:00:00Z")},
	}
	blocks := []Interval{
		{Start: mustParse(t, "2024-06-03T08:00:00Z"), End: mustParse(t, "2024-06-03T13:00:00Z")},
	}
	if open := SubtractBlocks(windows, blocks); len(open) != 0 {
		t.Fatalf("expected no open intervals, got %v", open)
	}
}
