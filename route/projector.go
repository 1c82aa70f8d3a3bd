// route/projector.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package route

import (
	"fmt"
	"sort"
	"time"

	"github.com/bcl1713/starlink-dashboard-sub010/geo"
)

///////////////////////////////////////////////////////////////////////////
// Projector

// Projector answers position/time/progress queries against an immutable
// route. It precomputes cumulative along-track distances and the indices
// of timed points at construction; all methods are safe for concurrent
// use. Time-based queries operate on adjusted timestamps: every expected
// arrival has the projector's departure offset added to it. A change to
// the adjusted departure time yields a new Projector via Adjusted.
type Projector struct {
	route *Route
	delta time.Duration
	cum   []float64 // cum[i]: meters along the route from point 0 to point i
	timed []int     // indices of timed points, ascending
}

func NewProjector(r *Route) (*Projector, error) {
	if r == nil || len(r.Points) < 2 {
		return nil, ErrEmptyRoute
	}

	p := &Projector{route: r}
	p.cum = make([]float64, len(r.Points))
	for i := 1; i < len(r.Points); i++ {
		p.cum[i] = p.cum[i-1] + geo.DistanceM(r.Points[i-1].Pos, r.Points[i].Pos)
	}
	for i, pt := range r.Points {
		if pt.Timed() {
			p.timed = append(p.timed, i)
		}
	}
	return p, nil
}

// Adjusted returns a Projector whose time-based queries include the
// uniform offset implied by the given adjusted departure time. A zero
// time, or a route without timing data, returns the receiver unchanged.
// The route geometry is shared; only the offset differs.
func (p *Projector) Adjusted(adjusted time.Time) *Projector {
	if adjusted.IsZero() {
		return p
	}
	tp := p.route.Timing()
	if tp.DepartureTime.IsZero() {
		return p
	}
	q := *p
	q.delta = adjusted.Sub(tp.DepartureTime)
	return &q
}

func (p *Projector) Route() *Route { return p.route }

// Delta is the offset added to every expected arrival, zero unless an
// adjusted departure time is in effect.
func (p *Projector) Delta() time.Duration { return p.delta }

func (p *Projector) TotalDistanceM() float64 { return p.cum[len(p.cum)-1] }

func (p *Projector) HasTimingData() bool { return len(p.timed) >= 2 }

// CumulativeM returns the along-track distance from the route start to
// point i.
func (p *Projector) CumulativeM(i int) float64 { return p.cum[i] }

// SegmentSpeedKn returns the expected speed on the segment departing
// point i, or 0 if the route doesn't carry one there.
func (p *Projector) SegmentSpeedKn(i int) float64 {
	return p.route.Points[i].SpeedKn
}

// Timing returns the route's timing profile with the departure offset
// applied.
func (p *Projector) Timing() TimingProfile {
	tp := p.route.Timing()
	if !tp.DepartureTime.IsZero() {
		tp.DepartureTime = tp.DepartureTime.Add(p.delta)
	}
	if !tp.ArrivalTime.IsZero() {
		tp.ArrivalTime = tp.ArrivalTime.Add(p.delta)
	}
	return tp
}

// PointTime returns the adjusted expected arrival at point i. For an
// untimed point it interpolates from the surrounding timed points; ok is
// false if no time can be established.
func (p *Projector) PointTime(i int) (time.Time, bool) {
	if p.route.Points[i].Timed() {
		return p.route.Points[i].ExpectedArrival.Add(p.delta), true
	}
	t, err := p.TimeAtDistance(p.cum[i])
	return t, err == nil
}

// WaypointTime resolves a waypoint name to its adjusted timestamp.
func (p *Projector) WaypointTime(name string) (time.Time, error) {
	wp, ok := p.route.FindWaypoint(name)
	if !ok {
		return time.Time{}, fmt.Errorf("%q: %w", name, ErrUnknownWaypoint)
	}
	if t, ok := p.PointTime(wp.Index); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("waypoint %q: %w", name, ErrUntimedRoute)
}

///////////////////////////////////////////////////////////////////////////
// Time-based queries

// timedArrival returns the adjusted arrival at timed index k.
func (p *Projector) timedArrival(k int) time.Time {
	return p.route.Points[p.timed[k]].ExpectedArrival.Add(p.delta)
}

// DistanceAt returns the along-track distance at time t.
func (p *Projector) DistanceAt(t time.Time) (float64, error) {
	if !p.HasTimingData() {
		return 0, ErrUntimedRoute
	}
	first, last := p.timedArrival(0), p.timedArrival(len(p.timed)-1)
	if t.Before(first) || t.After(last) {
		return 0, fmt.Errorf("%v outside [%v, %v]: %w", t.UTC(), first.UTC(),
			last.UTC(), ErrOutOfRangeTime)
	}

	// Last timed point whose arrival is <= t.
	k := sort.Search(len(p.timed), func(i int) bool {
		return p.timedArrival(i).After(t)
	}) - 1

	dk := p.cum[p.timed[k]]
	if k == len(p.timed)-1 {
		return dk, nil
	}
	tk, tj := p.timedArrival(k), p.timedArrival(k+1)
	f := t.Sub(tk).Seconds() / tj.Sub(tk).Seconds()
	return dk + f*(p.cum[p.timed[k+1]]-dk), nil
}

// PositionAt returns the interpolated position and altitude at time t.
func (p *Projector) PositionAt(t time.Time) (geo.Point2LL, float64, error) {
	d, err := p.DistanceAt(t)
	if err != nil {
		return geo.Point2LL{}, 0, err
	}
	pos, alt := p.positionAtDistance(d)
	return pos, alt, nil
}

// HeadingAt returns the course over ground at time t, degrees true.
func (p *Projector) HeadingAt(t time.Time) (float64, error) {
	d, err := p.DistanceAt(t)
	if err != nil {
		return 0, err
	}
	return p.headingAtDistance(d), nil
}

// ProgressAt returns along-route progress in [0,1] at time t.
func (p *Projector) ProgressAt(t time.Time) (float64, error) {
	d, err := p.DistanceAt(t)
	if err != nil {
		return 0, err
	}
	if total := p.TotalDistanceM(); total > 0 {
		return d / total, nil
	}
	return 0, nil
}

// TimeAtDistance inverts the time-at-distance mapping by linear
// interpolation between the bracketing timed points. Distances outside
// the timed span clamp to its boundary times.
func (p *Projector) TimeAtDistance(d float64) (time.Time, error) {
	if !p.HasTimingData() {
		return time.Time{}, ErrUntimedRoute
	}
	d0, d1 := p.cum[p.timed[0]], p.cum[p.timed[len(p.timed)-1]]
	if d <= d0 {
		return p.timedArrival(0), nil
	}
	if d >= d1 {
		return p.timedArrival(len(p.timed) - 1), nil
	}

	// Last timed point at or before distance d.
	k := sort.Search(len(p.timed), func(i int) bool {
		return p.cum[p.timed[i]] > d
	}) - 1

	dk, dj := p.cum[p.timed[k]], p.cum[p.timed[k+1]]
	tk, tj := p.timedArrival(k), p.timedArrival(k+1)
	if dj <= dk {
		return tk, nil
	}
	f := (d - dk) / (dj - dk)
	return tk.Add(time.Duration(f * float64(tj.Sub(tk)))), nil
}

// TimeAtProgress returns the time at along-route progress f in [0,1].
func (p *Projector) TimeAtProgress(f float64) (time.Time, error) {
	return p.TimeAtDistance(clampf(f, 0, 1) * p.TotalDistanceM())
}

///////////////////////////////////////////////////////////////////////////
// Distance-based queries

// PositionAtProgress returns the position and altitude at along-route
// progress f, clamped to [0,1]. It never fails; untimed routes are fine.
func (p *Projector) PositionAtProgress(f float64) (geo.Point2LL, float64) {
	return p.positionAtDistance(clampf(f, 0, 1) * p.TotalDistanceM())
}

// PositionAtElapsed is the untimed fallback: the position after flying
// the route for the given elapsed time at the given speed.
func (p *Projector) PositionAtElapsed(elapsed time.Duration, speedKn float64) (geo.Point2LL, float64) {
	d := speedKn * geo.KnotsToMetersPerSec * elapsed.Seconds()
	return p.positionAtDistance(d)
}

// segmentAt locates the segment containing along-track distance d and the
// fraction within it. d is clamped to [0, total].
func (p *Projector) segmentAt(d float64) (int, float64) {
	n := len(p.cum)
	if d <= 0 {
		return 0, 0
	}
	if d >= p.cum[n-1] {
		return n - 2, 1
	}
	i := sort.SearchFloat64s(p.cum, d)
	if i > 0 && p.cum[i] > d {
		i--
	}
	if i >= n-1 {
		i = n - 2
	}
	span := p.cum[i+1] - p.cum[i]
	if span <= 0 {
		return i, 0
	}
	return i, (d - p.cum[i]) / span
}

func (p *Projector) positionAtDistance(d float64) (geo.Point2LL, float64) {
	i, f := p.segmentAt(d)
	a, b := p.route.Points[i], p.route.Points[i+1]
	pos := geo.Slerp(a.Pos, b.Pos, f)
	alt := a.AltM + f*(b.AltM-a.AltM)
	return pos, alt
}

func (p *Projector) headingAtDistance(d float64) float64 {
	i, f := p.segmentAt(d)
	a, b := p.route.Points[i], p.route.Points[i+1]
	if f > 0.999 {
		// At the segment end the forward bearing degenerates; use the
		// inbound course instead.
		return geo.NormalizeHeading(geo.InitialBearing(b.Pos, a.Pos) + 180)
	}
	pos := geo.Slerp(a.Pos, b.Pos, f)
	return geo.InitialBearing(pos, b.Pos)
}

///////////////////////////////////////////////////////////////////////////
// Point projection

// RouteProjection is the result of projecting a geographic point onto the
// route polyline.
type RouteProjection struct {
	SegmentIndex int     // i: the projection lies on (points[i], points[i+1])
	Progress     float64 // along-route progress in [0,1]
	AlongTrackM  float64
	CrossTrackM  float64 // unsigned, meters
	Point        geo.Point2LL
	Clamped      bool // projection fell outside its segment's arc
}

// Project finds the route segment nearest to q. Ties go to the smaller
// segment index.
func (p *Projector) Project(q geo.Point2LL) RouteProjection {
	best := RouteProjection{SegmentIndex: -1}
	for i := 0; i < len(p.route.Points)-1; i++ {
		pr := geo.ProjectOntoSegment(q, p.route.Points[i].Pos, p.route.Points[i+1].Pos)
		if best.SegmentIndex < 0 || pr.CrossM < best.CrossTrackM {
			best = RouteProjection{
				SegmentIndex: i,
				AlongTrackM:  p.cum[i] + pr.AlongM,
				CrossTrackM:  pr.CrossM,
				Point:        pr.Point,
				Clamped:      pr.ClampedToEnd,
			}
		}
	}
	if total := p.TotalDistanceM(); total > 0 {
		best.Progress = best.AlongTrackM / total
	}
	return best
}

// TimeAtPoint projects q onto the route and returns the time the route
// passes the projected point.
func (p *Projector) TimeAtPoint(q geo.Point2LL) (time.Time, error) {
	return p.TimeAtDistance(p.Project(q).AlongTrackM)
}

func clampf(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
