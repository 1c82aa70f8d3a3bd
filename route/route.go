// route/route.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package route

import (
	"fmt"
	"time"

	"github.com/bcl1713/starlink-dashboard-sub010/geo"
)

///////////////////////////////////////////////////////////////////////////
// RoutePoint

type WaypointRole int8

const (
	RoleNone WaypointRole = iota
	RoleDeparture
	RoleArrival
	RoleEvent
)

func (r WaypointRole) String() string {
	switch r {
	case RoleDeparture:
		return "departure"
	case RoleArrival:
		return "arrival"
	case RoleEvent:
		return "event"
	default:
		return "none"
	}
}

func (r WaypointRole) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *WaypointRole) UnmarshalText(b []byte) error {
	switch string(b) {
	case "", "none":
		*r = RoleNone
	case "departure":
		*r = RoleDeparture
	case "arrival":
		*r = RoleArrival
	case "event":
		*r = RoleEvent
	default:
		return fmt.Errorf("%q: unknown waypoint role", string(b))
	}
	return nil
}

// RoutePoint is one vertex of a route polyline. A point with a non-empty
// Name is a waypoint; a point with a zero ExpectedArrival is untimed.
type RoutePoint struct {
	Pos             geo.Point2LL `json:"pos"`
	AltM            float64      `json:"alt_m,omitempty"`
	Seq             int          `json:"seq"`
	ExpectedArrival time.Time    `json:"expected_arrival,omitempty"`
	SpeedKn         float64      `json:"expected_segment_speed_knots,omitempty"`
	Name            string       `json:"name,omitempty"`
	Role            WaypointRole `json:"role,omitempty"`
}

func (p RoutePoint) Timed() bool {
	return !p.ExpectedArrival.IsZero()
}

func (p RoutePoint) IsWaypoint() bool {
	return p.Name != ""
}

///////////////////////////////////////////////////////////////////////////
// Route

// Route is an immutable ordered sequence of points. Points live in a
// single contiguous slice; everything downstream refers to them by index.
// Routes are never mutated after construction: a route update replaces
// the whole Route and bumps Version.
type Route struct {
	ID      string       `json:"id"`
	Version int64        `json:"version"`
	Points  []RoutePoint `json:"points"`
}

// NewRoute validates the points, clears expected arrivals that do not
// strictly increase (such points are treated as untimed), and returns the
// assembled route.
func NewRoute(id string, version int64, pts []RoutePoint) (*Route, error) {
	r := &Route{ID: id, Version: version, Points: pts}
	if err := r.validate(); err != nil {
		return nil, err
	}
	r.normalizeTiming()
	return r, nil
}

func (r *Route) validate() error {
	if len(r.Points) < 2 {
		return ErrEmptyRoute
	}
	for i, p := range r.Points {
		if !p.Pos.Valid() {
			return fmt.Errorf("point %d %v: %w", i, p.Pos, ErrInvalidCoordinates)
		}
		if i > 0 && p.Seq <= r.Points[i-1].Seq {
			return fmt.Errorf("point %d seq %d after seq %d: %w", i, p.Seq,
				r.Points[i-1].Seq, ErrNonIncreasingSeq)
		}
	}
	return nil
}

// normalizeTiming clears any expected arrival that is not strictly after
// the previous timed point's arrival.
func (r *Route) normalizeTiming() {
	var last time.Time
	for i := range r.Points {
		p := &r.Points[i]
		if !p.Timed() {
			continue
		}
		if !last.IsZero() && !p.ExpectedArrival.After(last) {
			p.ExpectedArrival = time.Time{}
			continue
		}
		last = p.ExpectedArrival
	}
}

// TimingProfile summarizes the timing information a route carries.
// HasTimingData requires at least two timed points; with fewer, time-based
// queries are refused and callers fall back to distance-based ones.
type TimingProfile struct {
	DepartureTime         time.Time     `json:"departure_time,omitempty"`
	ArrivalTime           time.Time     `json:"arrival_time,omitempty"`
	TotalExpectedDuration time.Duration `json:"total_expected_duration,omitempty"`
	HasTimingData         bool          `json:"has_timing_data"`
}

func (r *Route) Timing() TimingProfile {
	var tp TimingProfile
	n := 0
	for _, p := range r.Points {
		if !p.Timed() {
			continue
		}
		if n == 0 {
			tp.DepartureTime = p.ExpectedArrival
		}
		tp.ArrivalTime = p.ExpectedArrival
		n++
	}
	if n >= 2 {
		tp.HasTimingData = true
		tp.TotalExpectedDuration = tp.ArrivalTime.Sub(tp.DepartureTime)
	}
	return tp
}

///////////////////////////////////////////////////////////////////////////
// Waypoint

// Waypoint is the named-point view of a RoutePoint.
type Waypoint struct {
	Index           int
	Name            string
	Role            WaypointRole
	Pos             geo.Point2LL
	ExpectedArrival time.Time
}

// Waypoints returns the route's named points in route order.
func (r *Route) Waypoints() []Waypoint {
	var wps []Waypoint
	for i, p := range r.Points {
		if p.IsWaypoint() {
			wps = append(wps, Waypoint{
				Index:           i,
				Name:            p.Name,
				Role:            p.Role,
				Pos:             p.Pos,
				ExpectedArrival: p.ExpectedArrival,
			})
		}
	}
	return wps
}

// FindWaypoint returns the waypoint with the given name, taking the first
// match in route order.
func (r *Route) FindWaypoint(name string) (Waypoint, bool) {
	for i, p := range r.Points {
		if p.Name == name {
			return Waypoint{
				Index:           i,
				Name:            p.Name,
				Role:            p.Role,
				Pos:             p.Pos,
				ExpectedArrival: p.ExpectedArrival,
			}, true
		}
	}
	return Waypoint{}, false
}

func (r *Route) LastPoint() RoutePoint {
	return r.Points[len(r.Points)-1]
}
