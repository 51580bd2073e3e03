package domain

import (
	"errors"
	"fmt"
	"time"
)

// DateWindow is a closed calendar-date range. Baseline and assessment windows
// must not overlap within one analysis.
type DateWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateWindow builds a window, rejecting end-before-start ranges.
func NewDateWindow(start, end time.Time) (DateWindow, error) {
	if end.Before(start) {
		return DateWindow{}, fmt.Errorf("date window end %s before start %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return DateWindow{Start: start, End: end}, nil
}

func (w DateWindow) String() string {
	return w.Start.Format(time.DateOnly) + ".." + w.End.Format(time.DateOnly)
}

// Contains reports whether t falls inside the window, inclusive on both ends.
func (w DateWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Overlaps reports whether two windows share any instant.
func (w DateWindow) Overlaps(o DateWindow) bool {
	return !w.End.Before(o.Start) && !o.End.Before(w.Start)
}

// ValidateWindows checks the baseline/assessment pair used by an analysis.
func ValidateWindows(baseline, assessment DateWindow) error {
	if baseline.Overlaps(assessment) {
		return errors.New("baseline and assessment windows overlap")
	}
	return nil
}
