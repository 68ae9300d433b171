package solver

import "sort"

// Interval is a closed-open busy span [Start, End) on an agent's timeline.
type Interval struct {
	Start int
	End   int
}

// Timeline keeps one agent's assigned intervals sorted by start time so that
// fit checks and undo operations stay cheap during search.
type Timeline struct {
	intervals []Interval
}

// EarliestFit returns the earliest start >= ready at which an interval of
// the given duration fits without overlapping any assigned interval. The
// scan advances past each conflicting interval's end; appending after the
// last interval always succeeds, so a fit always exists.
func (tl *Timeline) EarliestFit(ready, duration int) int {
	start := ready
	for _, iv := range tl.intervals {
		if iv.End <= start {
			continue
		}
		if start+duration <= iv.Start {
			return start
		}
		start = iv.End
	}
	return start
}

// Insert adds an interval, keeping the list sorted by start time.
func (tl *Timeline) Insert(iv Interval) {
	i := sort.Search(len(tl.intervals), func(j int) bool {
		return tl.intervals[j].Start >= iv.Start
	})
	tl.intervals = append(tl.intervals, Interval{})
	copy(tl.intervals[i+1:], tl.intervals[i:])
	tl.intervals[i] = iv
}

// Remove deletes a previously inserted interval. Used to undo an assignment
// on backtrack.
func (tl *Timeline) Remove(iv Interval) {
	i := sort.Search(len(tl.intervals), func(j int) bool {
		return tl.intervals[j].Start >= iv.Start
	})
	for i < len(tl.intervals) && tl.intervals[i].Start == iv.Start {
		if tl.intervals[i] == iv {
			tl.intervals = append(tl.intervals[:i], tl.intervals[i+1:]...)
			return
		}
		i++
	}
}

// Len reports the number of assigned intervals.
func (tl *Timeline) Len() int {
	return len(tl.intervals)
}
