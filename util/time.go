// util/time.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"time"
)

// TimeInterval represents a time interval with start and end times.
type TimeInterval [2]time.Time

// Start returns the start time of the interval.
func (ti TimeInterval) Start() time.Time {
	return ti[0]
}

// End returns the end time of the interval.
func (ti TimeInterval) End() time.Time {
	return ti[1]
}

// Duration returns the duration of the interval.
func (ti TimeInterval) Duration() time.Duration {
	return ti[1].Sub(ti[0])
}

// IsZero reports whether the interval has no extent.
func (ti TimeInterval) IsZero() bool {
	return !ti[1].After(ti[0])
}

// Contains checks if the interval contains the given time; both endpoints
// are included.
func (ti TimeInterval) Contains(t time.Time) bool {
	return !t.Before(ti[0]) && !t.After(ti[1])
}

// Overlaps reports whether the two intervals share any instant, treating
// both as half-open [start, end).
func (ti TimeInterval) Overlaps(other TimeInterval) bool {
	return ti[0].Before(other[1]) && other[0].Before(ti[1])
}

// Clamp returns the part of the interval lying within bounds; the second
// result is false if nothing remains.
func (ti TimeInterval) Clamp(bounds TimeInterval) (TimeInterval, bool) {
	start, end := ti[0], ti[1]
	if start.Before(bounds[0]) {
		start = bounds[0]
	}
	if end.After(bounds[1]) {
		end = bounds[1]
	}
	if !start.Before(end) {
		return TimeInterval{}, false
	}
	return TimeInterval{start, end}, true
}

