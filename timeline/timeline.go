// timeline/timeline.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package timeline

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/bcl1713/starlink-dashboard-sub010/transport"
	"github.com/bcl1713/starlink-dashboard-sub010/util"
)

///////////////////////////////////////////////////////////////////////////
// Status

// Status grades a segment by how many transports are impaired: none is
// NOMINAL, exactly one DEGRADED, two or more CRITICAL.
type Status int8

const (
	Nominal Status = iota
	Degraded
	Critical
)

// StatusOf maps an impaired-transport count to the segment status.
func StatusOf(bad int) Status {
	switch {
	case bad <= 0:
		return Nominal
	case bad == 1:
		return Degraded
	default:
		return Critical
	}
}

func (s Status) String() string {
	switch s {
	case Nominal:
		return "NOMINAL"
	case Degraded:
		return "DEGRADED"
	case Critical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "NOMINAL":
		*s = Nominal
	case "DEGRADED":
		*s = Degraded
	case "CRITICAL":
		*s = Critical
	default:
		return fmt.Errorf("%q: unknown timeline status", string(b))
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////
// Segment

// SatelliteMetadata names the satellites serving the steered transports
// during a segment: the active X satellite and the covering Ka set.
type SatelliteMetadata struct {
	X  string   `json:"X,omitempty"`
	Ka []string `json:"Ka,omitempty"`
}

type SegmentMetadata struct {
	Satellites SatelliteMetadata `json:"satellites"`
}

// Segment is one maximal stretch of the mission over which every
// transport state is constant. Spans are half-open [start, end); a
// timeline's segments are contiguous, non-overlapping, and cover the
// mission span exactly.
type Segment struct {
	Start    time.Time        `json:"start"`
	End      time.Time        `json:"end"`
	XState   transport.State  `json:"x_state"`
	KaState  transport.State  `json:"ka_state"`
	KuState  transport.State  `json:"ku_state"`
	Status   Status           `json:"status"`
	Impacted []transport.Band `json:"impacted_transports,omitempty"`
	Reasons  []string         `json:"reasons,omitempty"` // sorted, deduped
	Metadata SegmentMetadata  `json:"metadata"`
}

func (s *Segment) Span() util.TimeInterval {
	return util.TimeInterval{s.Start, s.End}
}

func (s *Segment) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// StateOf returns the segment's state for one transport band.
func (s *Segment) StateOf(b transport.Band) transport.State {
	switch b {
	case transport.BandX:
		return s.XState
	case transport.BandKa:
		return s.KaState
	default:
		return s.KuState
	}
}

///////////////////////////////////////////////////////////////////////////
// Merger

// Merge flattens the three per-transport series into the combined segment
// list. All three series must cover the same span. Segment boundaries are
// drawn only from input breakpoints, never resampled, so identical inputs
// merge to identical output.
func Merge(set transport.SeriesSet) []Segment {
	bps := slices.Concat(set.X.Breakpoints(), set.Ka.Breakpoints(), set.Ku.Breakpoints())
	slices.SortFunc(bps, func(a, b time.Time) int { return a.Compare(b) })
	bps = slices.CompactFunc(bps, func(a, b time.Time) bool { return a.Equal(b) })

	out := make([]Segment, 0, len(bps))
	for i := 0; i+1 < len(bps); i++ {
		x, ka, ku := set.X.At(bps[i]), set.Ka.At(bps[i]), set.Ku.At(bps[i])
		seg := Segment{
			Start:   bps[i],
			End:     bps[i+1],
			XState:  x.State,
			KaState: ka.State,
			KuState: ku.State,
		}
		if x.State.Bad() {
			seg.Impacted = append(seg.Impacted, transport.BandX)
		}
		if ka.State.Bad() {
			seg.Impacted = append(seg.Impacted, transport.BandKa)
		}
		if ku.State.Bad() {
			seg.Impacted = append(seg.Impacted, transport.BandKu)
		}
		seg.Status = StatusOf(len(seg.Impacted))
		seg.Reasons = util.SortedUnique(slices.Concat(x.Reasons, ka.Reasons, ku.Reasons))
		if len(x.Satellites) > 0 {
			seg.Metadata.Satellites.X = x.Satellites[0]
		}
		seg.Metadata.Satellites.Ka = ka.Satellites
		out = append(out, seg)
	}

	// Coalesce neighbors identical in every labeled field; status and
	// impacted transports are derived from the states, so the tuple below
	// covers them.
	merged := out[:0]
	for _, seg := range out {
		if n := len(merged); n > 0 {
			prev := &merged[n-1]
			if prev.XState == seg.XState && prev.KaState == seg.KaState && prev.KuState == seg.KuState &&
				prev.Metadata.Satellites.X == seg.Metadata.Satellites.X &&
				slices.Equal(prev.Metadata.Satellites.Ka, seg.Metadata.Satellites.Ka) &&
				slices.Equal(prev.Reasons, seg.Reasons) {
				prev.End = seg.End
				continue
			}
		}
		merged = append(merged, seg)
	}
	return merged
}

///////////////////////////////////////////////////////////////////////////
// Snapshot

// Snapshot is the published result of one timeline computation: the
// combined segments, the advisories derived from them, and the input
// versions they were computed from. Snapshots are immutable once
// published.
type Snapshot struct {
	LegID         string     `json:"leg_id"`
	RouteID       string     `json:"route_id"`
	RouteVersion  int64      `json:"route_version"`
	ConfigVersion int64      `json:"config_version"`
	MissionStart  time.Time  `json:"mission_start"`
	MissionEnd    time.Time  `json:"mission_end"`
	Segments      []Segment  `json:"segments"`
	Advisories    []Advisory `json:"advisories"`
	ComputedAt    time.Time  `json:"computed_at"`
}

// At returns the segment containing t. Times outside the mission span
// clamp to the first or last segment.
func (s *Snapshot) At(t time.Time) *Segment {
	i := sort.Search(len(s.Segments), func(i int) bool {
		return s.Segments[i].Start.After(t)
	}) - 1
	if i < 0 {
		i = 0
	}
	return &s.Segments[i]
}

// SegmentTotals sums segment durations by status.
func (s *Snapshot) SegmentTotals() map[Status]time.Duration {
	totals := make(map[Status]time.Duration)
	for i := range s.Segments {
		totals[s.Segments[i].Status] += s.Segments[i].Duration()
	}
	return totals
}

// NextConflict returns the first segment at or after t whose status is at
// least min, including one already in progress at t.
func (s *Snapshot) NextConflict(t time.Time, min Status) (*Segment, bool) {
	for i := range s.Segments {
		seg := &s.Segments[i]
		if seg.Status >= min && seg.End.After(t) {
			return seg, true
		}
	}
	return nil, false
}
