// flight/smoother.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flight

import (
	"math"
	"time"

	"github.com/bcl1713/starlink-dashboard-sub010/geo"
)

const (
	DefaultSmootherWindow = 120 * time.Second
	DefaultSmootherMinGap = time.Second
)

// Smoother derives ground speed and track heading from raw position
// samples. Speed is an exponentially weighted average whose weight per
// sample follows the elapsed gap, so irregular feeds converge the same
// way a steady one does. Samples closer together than MinGap are
// discarded; their quantization noise would dominate the estimate.
type Smoother struct {
	Window time.Duration
	MinGap time.Duration

	lastPos   geo.Point2LL
	lastTime  time.Time
	speedKn   float64
	headingDg float64
	primed    bool
	haveSpeed bool
}

func NewSmoother() *Smoother {
	return &Smoother{Window: DefaultSmootherWindow, MinGap: DefaultSmootherMinGap}
}

// Observe folds a position sample into the estimate and reports whether
// the sample was used. Out-of-order samples are discarded here as well;
// the coordinator rejects them upstream with an error.
func (s *Smoother) Observe(p geo.Point2LL, t time.Time) bool {
	if !s.primed {
		s.lastPos, s.lastTime, s.primed = p, t, true
		return true
	}
	dt := t.Sub(s.lastTime)
	if dt < s.MinGap {
		return false
	}

	distM := geo.DistanceM(s.lastPos, p)
	vKn := distM / dt.Seconds() / geo.KnotsToMetersPerSec
	if distM > 0 {
		s.headingDg = geo.InitialBearing(s.lastPos, p)
	}
	if !s.haveSpeed {
		s.speedKn, s.haveSpeed = vKn, true
	} else {
		alpha := 1 - math.Exp(-dt.Seconds()/s.Window.Seconds())
		s.speedKn += alpha * (vKn - s.speedKn)
	}
	s.lastPos, s.lastTime = p, t
	return true
}

// SpeedKn returns the smoothed ground speed in knots; zero until two
// samples have been observed.
func (s *Smoother) SpeedKn() float64 { return s.speedKn }

// HeadingDeg returns the most recent track heading in [0, 360); zero
// until the platform has moved.
func (s *Smoother) HeadingDeg() float64 { return s.headingDg }

// Last returns the most recently accepted sample.
func (s *Smoother) Last() (geo.Point2LL, time.Time, bool) {
	return s.lastPos, s.lastTime, s.primed
}

func (s *Smoother) Reset() {
	*s = Smoother{Window: s.Window, MinGap: s.MinGap}
}
