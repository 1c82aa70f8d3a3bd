// flight/eta.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flight

import (
	"errors"
	"time"

	"github.com/bcl1713/starlink-dashboard-sub010/geo"
	"github.com/bcl1713/starlink-dashboard-sub010/route"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

var (
	ErrNoActiveRoute = errors.New("No active route")
	ErrWaypointIndex = errors.New("Waypoint index out of range")
)

///////////////////////////////////////////////////////////////////////////
// ETA

const (
	DefaultETABlendAlpha     = 0.5
	DefaultOnRouteToleranceM = 5000
	DefaultReachedRadiusM    = 100
	DefaultSpeedFloorMPS     = 1
	DefaultETACacheSize      = 100
	DefaultETACacheTTL       = 5 * time.Second
)

// Sample is the platform state an ETA query runs against.
type Sample struct {
	Pos        geo.Point2LL
	Time       time.Time
	SpeedKn    float64
	HeadingDeg float64
}

// ETA is one estimate. Mode reports the formula family selected by the
// flight phase; a PRE_DEPARTURE estimate against an untimed route still
// reads ANTICIPATED even though it had to fall back to dead reckoning.
type ETA struct {
	Seconds   float64   `json:"eta_seconds"`
	Time      time.Time `json:"eta_time_gmt"`
	Mode      ETAMode   `json:"eta_mode"`
	DistanceM float64   `json:"distance_m"`
}

// POI is a named point of interest, not necessarily on the route.
type POI struct {
	ID   string       `json:"id"`
	Name string       `json:"name,omitempty"`
	Pos  geo.Point2LL `json:"pos"`
}

// CourseStatus classifies progress toward a point of interest.
type CourseStatus string

const (
	CourseDeparting   CourseStatus = "departing"
	CourseOffCourse   CourseStatus = "off_course"
	CourseOnCourse    CourseStatus = "on_course"
	CoursePassed      CourseStatus = "passed"
	CourseReached     CourseStatus = "reached"
	CourseSlightlyOff CourseStatus = "slightly_off"
)

// POIStatus is the full answer to "how are we doing against this POI".
type POIStatus struct {
	POIID       string       `json:"poi_id"`
	ETA         ETA          `json:"eta"`
	DistanceM   float64      `json:"distance_m"` // great-circle to the POI itself
	CrossTrackM float64      `json:"cross_track_m"`
	OnRoute     bool         `json:"on_route"`
	Course      CourseStatus `json:"course_status"`
}

///////////////////////////////////////////////////////////////////////////
// Engine

type etaKey struct {
	routeVersion int64
	poiID        string
	adjustedNs   int64
	phase        Phase
	bucket       int64
}

// Engine answers waypoint and POI ETA queries against the active route.
// POI answers are memoized per (route version, poi, departure adjustment,
// phase, 5-second time bucket); the memo is purged whenever any of those
// change out from under the keys. Mutation (SetProjector) must be
// serialized by the caller; queries themselves are read-only.
type Engine struct {
	Alpha             float64
	OnRouteToleranceM float64
	ReachedRadiusM    float64
	SpeedFloorMPS     float64
	CacheBucket       time.Duration

	proj  *route.Projector
	cache *expirable.LRU[etaKey, POIStatus]
}

func NewEngine(p *route.Projector, cacheSize int, ttl time.Duration) *Engine {
	if cacheSize <= 0 {
		cacheSize = DefaultETACacheSize
	}
	if ttl <= 0 {
		ttl = DefaultETACacheTTL
	}
	return &Engine{
		Alpha:             DefaultETABlendAlpha,
		OnRouteToleranceM: DefaultOnRouteToleranceM,
		ReachedRadiusM:    DefaultReachedRadiusM,
		SpeedFloorMPS:     DefaultSpeedFloorMPS,
		CacheBucket:       ttl,
		proj:              p,
		cache:             expirable.NewLRU[etaKey, POIStatus](cacheSize, nil, ttl),
	}
}

func (e *Engine) Projector() *route.Projector { return e.proj }

// SetProjector swaps the active route (or its adjusted-departure variant)
// and drops every memoized answer.
func (e *Engine) SetProjector(p *route.Projector) {
	e.proj = p
	e.cache.Purge()
}

// Invalidate drops every memoized answer; the coordinator calls it on
// phase changes.
func (e *Engine) Invalidate() { e.cache.Purge() }

func (e *Engine) CacheLen() int { return e.cache.Len() }

// WaypointETA estimates arrival at route point idx.
func (e *Engine) WaypointETA(s Sample, phase Phase, idx int) (ETA, error) {
	if e.proj == nil {
		return ETA{}, ErrNoActiveRoute
	}
	r := e.proj.Route()
	if idx < 0 || idx >= len(r.Points) {
		return ETA{}, ErrWaypointIndex
	}
	d := e.proj.CumulativeM(idx) - e.proj.Project(s.Pos).AlongTrackM
	if d < 0 {
		d = 0
	}
	var expected time.Time
	if t, ok := e.proj.PointTime(idx); ok {
		expected = t
	}
	return e.eta(s, phase, d, expected), nil
}

// POIStatus estimates arrival at a point of interest and classifies the
// platform's course toward it.
func (e *Engine) POIStatus(s Sample, phase Phase, poi POI) (POIStatus, error) {
	if e.proj == nil {
		return POIStatus{}, ErrNoActiveRoute
	}
	key := etaKey{
		routeVersion: e.proj.Route().Version,
		poiID:        poi.ID,
		adjustedNs:   e.proj.Delta().Nanoseconds(),
		phase:        phase,
		bucket:       s.Time.UnixNano() / int64(e.CacheBucket),
	}
	if st, ok := e.cache.Get(key); ok {
		return st, nil
	}
	st := e.poiStatus(s, phase, poi)
	e.cache.Add(key, st)
	return st, nil
}

func (e *Engine) poiStatus(s Sample, phase Phase, poi POI) POIStatus {
	cur := e.proj.Project(s.Pos)
	pp := e.proj.Project(poi.Pos)
	direct := geo.DistanceM(s.Pos, poi.Pos)

	st := POIStatus{
		POIID:       poi.ID,
		DistanceM:   direct,
		CrossTrackM: pp.CrossTrackM,
		OnRoute:     pp.CrossTrackM <= e.OnRouteToleranceM,
	}
	if st.OnRoute {
		d := pp.AlongTrackM - cur.AlongTrackM
		if d < 0 {
			d = 0
		}
		var expected time.Time
		if t, err := e.proj.TimeAtDistance(pp.AlongTrackM); err == nil {
			expected = t
		}
		st.ETA = e.eta(s, phase, d, expected)
	} else {
		st.ETA = e.eta(s, phase, direct, time.Time{})
	}

	switch {
	case direct <= e.ReachedRadiusM:
		st.Course = CourseReached
	case st.OnRoute && pp.AlongTrackM < cur.AlongTrackM:
		st.Course = CoursePassed
	default:
		diff := geo.HeadingDifference(s.HeadingDeg, geo.InitialBearing(s.Pos, poi.Pos))
		switch {
		case diff <= 15:
			st.Course = CourseOnCourse
		case diff <= 30:
			st.Course = CourseSlightlyOff
		case diff <= 90:
			st.Course = CourseOffCourse
		default:
			st.Course = CourseDeparting
		}
	}
	return st
}

// eta applies the mode formulas: anticipated reads the plan, estimated
// blends dead reckoning with the plan when one exists. A missing expected
// time falls back to dead reckoning in either mode; the reported mode
// still follows the phase. Estimates never go negative even when the
// plan time is already past.
func (e *Engine) eta(s Sample, phase Phase, dM float64, expected time.Time) ETA {
	var sec float64
	switch {
	case phase.Mode() == Anticipated && !expected.IsZero():
		sec = max(0, expected.Sub(s.Time).Seconds())
	default:
		v := max(s.SpeedKn*geo.KnotsToMetersPerSec, e.SpeedFloorMPS)
		sec = dM / v
		if !expected.IsZero() {
			sec = max(0, e.Alpha*sec+(1-e.Alpha)*expected.Sub(s.Time).Seconds())
		}
	}
	return ETA{
		Seconds:   sec,
		Time:      s.Time.Add(time.Duration(sec * float64(time.Second))),
		Mode:      phase.Mode(),
		DistanceM: dM,
	}
}
