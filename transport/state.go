// transport/state.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package transport

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/bcl1713/starlink-dashboard-sub010/util"
)

///////////////////////////////////////////////////////////////////////////
// Band

// Band identifies one of the three communication transports.
type Band int8

const (
	BandX Band = iota
	BandKa
	BandKu
)

func (b Band) String() string {
	switch b {
	case BandX:
		return "X"
	case BandKa:
		return "Ka"
	case BandKu:
		return "Ku"
	default:
		return fmt.Sprintf("Band(%d)", int(b))
	}
}

func (b Band) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Band) UnmarshalText(s []byte) error {
	switch string(s) {
	case "X":
		*b = BandX
	case "Ka":
		*b = BandKa
	case "Ku":
		*b = BandKu
	default:
		return fmt.Errorf("%q: unknown transport band", string(s))
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////
// State

// State is a transport's condition at an instant. Severity increases with
// the value: composition takes the maximum of contributing states.
type State int8

const (
	Available State = iota
	Degraded
	Offline
)

func (s State) String() string {
	switch s {
	case Available:
		return "AVAILABLE"
	case Degraded:
		return "DEGRADED"
	case Offline:
		return "OFFLINE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "AVAILABLE":
		*s = Available
	case "DEGRADED":
		*s = Degraded
	case "OFFLINE":
		*s = Offline
	default:
		return fmt.Errorf("%q: unknown transport state", string(b))
	}
	return nil
}

// Bad reports whether the state counts against the combined timeline
// status.
func (s State) Bad() bool { return s != Available }

///////////////////////////////////////////////////////////////////////////
// Reason tags

const (
	ReasonAARRefuel       = "aar_refuel"
	ReasonAzimuthConflict = "azimuth_conflict"
	ReasonEvaluatorError  = "evaluator_error"
	ReasonKaHandoff       = "ka_handoff"
	ReasonKaNoCoverage    = "ka_no_coverage"
	ReasonKaOutage        = "ka_outage"
	ReasonXTransition     = "x_transition"
)

///////////////////////////////////////////////////////////////////////////
// Series

// Interval is one constant-state stretch of a transport series. Spans are
// half-open [start, end).
type Interval struct {
	Span       util.TimeInterval `json:"span"`
	State      State             `json:"state"`
	Reasons    []string          `json:"reasons,omitempty"`    // sorted, deduped
	Satellites []string          `json:"satellites,omitempty"` // X: the active satellite; Ka: the covering set
}

// Handoff records one resolved steered X transition.
type Handoff struct {
	Time time.Time `json:"time"`
	From string    `json:"from"`
	To   string    `json:"to"`
}

// ReasonSpan is one resolved contributing window, clamped to the mission
// span: a transition buffer, refueling window, outage, coverage gap, or
// conflict run. Downstream advisory generation reads these rather than
// reverse-engineering window edges from the composed intervals.
type ReasonSpan struct {
	Span   util.TimeInterval `json:"span"`
	Reason string            `json:"reason"`
}

// Series is the composed piecewise-constant state of one transport over
// the mission span: intervals are contiguous, non-overlapping, and cover
// the span exactly.
type Series struct {
	Band      Band              `json:"band"`
	Span      util.TimeInterval `json:"span"`
	Intervals []Interval        `json:"intervals"`
	Handoffs  []Handoff         `json:"handoffs,omitempty"` // X only
	Sources   []ReasonSpan      `json:"sources,omitempty"`
}

// At returns the interval containing t. Times outside the span clamp to
// the first or last interval.
func (s *Series) At(t time.Time) *Interval {
	i := sort.Search(len(s.Intervals), func(i int) bool {
		return s.Intervals[i].Span.Start().After(t)
	}) - 1
	if i < 0 {
		i = 0
	}
	return &s.Intervals[i]
}

// Breakpoints returns every interval boundary including the span ends.
func (s *Series) Breakpoints() []time.Time {
	bp := make([]time.Time, 0, len(s.Intervals)+1)
	for _, iv := range s.Intervals {
		bp = append(bp, iv.Span.Start())
	}
	bp = append(bp, s.Span.End())
	return bp
}

// SeriesSet bundles the three per-transport series handed to the merger.
type SeriesSet struct {
	X  *Series
	Ka *Series
	Ku *Series
}

func (ss SeriesSet) ByBand(b Band) *Series {
	switch b {
	case BandX:
		return ss.X
	case BandKa:
		return ss.Ka
	default:
		return ss.Ku
	}
}

///////////////////////////////////////////////////////////////////////////
// Composition

// contribution is one cause pinning a transport at a state over a span.
// Spans are half-open except when closedEnd is set: then the reason also
// tags the boundary instant at span end, provided some other contribution
// keeps the transport impaired there.
type contribution struct {
	span      util.TimeInterval
	state     State
	reason    string
	closedEnd bool
}

// snapTime rounds interval endpoints to whole seconds so that identical
// inputs always produce byte-identical series.
func snapTime(t time.Time) time.Time {
	return t.Round(time.Second).UTC()
}

func snapInterval(ti util.TimeInterval) util.TimeInterval {
	return util.TimeInterval{snapTime(ti.Start()), snapTime(ti.End())}
}

// compose flattens overlapping contributions into a Series: the state at
// any instant is the maximum of the covering contributions' states and
// the reasons are the sorted union of their tags. satsAt supplies the
// per-interval satellite metadata; it may be nil.
func compose(band Band, span util.TimeInterval, contribs []contribution,
	satsAt func(time.Time) []string) *Series {
	// Clamp contributions to the span; collect breakpoints and sources.
	bps := []time.Time{span.Start(), span.End()}
	var srcs []ReasonSpan
	clamped := contribs[:0]
	for _, c := range contribs {
		cl, ok := c.span.Clamp(span)
		if !ok || !cl.End().After(cl.Start()) {
			continue
		}
		c.span = cl
		clamped = append(clamped, c)
		bps = append(bps, cl.Start(), cl.End())
		if c.reason != "" {
			srcs = append(srcs, ReasonSpan{Span: cl, Reason: c.reason})
		}
	}
	slices.SortFunc(bps, func(a, b time.Time) int { return a.Compare(b) })
	bps = slices.CompactFunc(bps, func(a, b time.Time) bool { return a.Equal(b) })

	var out []Interval
	for i := 0; i+1 < len(bps); i++ {
		x, y := bps[i], bps[i+1]
		iv := Interval{Span: util.TimeInterval{x, y}}

		covered := false
		for _, c := range clamped {
			if c.span.Start().Before(y) && c.span.End().After(x) {
				covered = true
				if c.state > iv.State {
					iv.State = c.state
				}
				if c.reason != "" {
					iv.Reasons = append(iv.Reasons, c.reason)
				}
			}
		}
		if covered {
			// A closed-ended window also tags the instant where it ends.
			for _, c := range clamped {
				if c.closedEnd && c.span.End().Equal(x) && c.reason != "" {
					iv.Reasons = append(iv.Reasons, c.reason)
				}
			}
		}
		iv.Reasons = util.SortedUnique(iv.Reasons)
		if satsAt != nil {
			iv.Satellites = satsAt(x)
		}
		out = append(out, iv)
	}

	// Coalesce neighbors whose full tuples match.
	coalesced := out[:0]
	for _, iv := range out {
		if n := len(coalesced); n > 0 {
			prev := &coalesced[n-1]
			if prev.State == iv.State &&
				slices.Equal(prev.Reasons, iv.Reasons) &&
				slices.Equal(prev.Satellites, iv.Satellites) {
				prev.Span[1] = iv.Span.End()
				continue
			}
		}
		coalesced = append(coalesced, iv)
	}

	return &Series{Band: band, Span: span, Intervals: coalesced, Sources: srcs}
}
