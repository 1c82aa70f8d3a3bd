// mission/source.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package mission

import (
	"sync"
	"time"

	"github.com/bcl1713/starlink-dashboard-sub010/geo"
	"github.com/bcl1713/starlink-dashboard-sub010/route"
)

// PositionSample is one position-source reading.
type PositionSample struct {
	Pos       geo.Point2LL `json:"pos"`
	AltitudeM float64      `json:"altitude_m,omitempty"`
	Time      time.Time    `json:"time"`
}

// PositionSource supplies the coordinator tick with position samples.
// Implementations return ok=false when nothing new is available; sample
// timestamps must be monotonic or the coordinator rejects them.
type PositionSource interface {
	NextPosition(now time.Time) (PositionSample, bool)
}

///////////////////////////////////////////////////////////////////////////
// SimulatedSource

// SimulatedSource flies the active route. With timing data it
// interpolates position from the waypoint schedule, which reproduces the
// per-segment expected speeds; before departure and after arrival it
// holds at the route ends. Untimed routes advance at CruiseSpeedKn from
// the first sample onward.
type SimulatedSource struct {
	CruiseSpeedKn float64

	mu      sync.Mutex
	proj    *route.Projector
	started time.Time
}

func NewSimulatedSource(proj *route.Projector, cruiseKn float64) *SimulatedSource {
	return &SimulatedSource{CruiseSpeedKn: cruiseKn, proj: proj}
}

// SetProjector points the simulator at a new route, restarting the
// untimed clock.
func (s *SimulatedSource) SetProjector(proj *route.Projector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proj = proj
	s.started = time.Time{}
}

func (s *SimulatedSource) NextPosition(now time.Time) (PositionSample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proj == nil {
		return PositionSample{}, false
	}

	if s.proj.HasTimingData() {
		tp := s.proj.Timing()
		var pos geo.Point2LL
		var alt float64
		switch {
		case now.Before(tp.DepartureTime):
			pos, alt = s.proj.PositionAtProgress(0)
		case now.After(tp.ArrivalTime):
			pos, alt = s.proj.PositionAtProgress(1)
		default:
			var err error
			if pos, alt, err = s.proj.PositionAt(now); err != nil {
				return PositionSample{}, false
			}
		}
		return PositionSample{Pos: pos, AltitudeM: alt, Time: now}, true
	}

	if s.started.IsZero() {
		s.started = now
	}
	pos, alt := s.proj.PositionAtElapsed(now.Sub(s.started), s.CruiseSpeedKn)
	return PositionSample{Pos: pos, AltitudeM: alt, Time: now}, true
}
