// flight/phase.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flight

import (
	"fmt"
	"time"
)

///////////////////////////////////////////////////////////////////////////
// Phase

// Phase is the platform's position in the flight lifecycle. It only ever
// advances PRE_DEPARTURE -> IN_FLIGHT -> POST_ARRIVAL; Reset returns it
// to PRE_DEPARTURE.
type Phase int8

const (
	PreDeparture Phase = iota
	InFlight
	PostArrival
)

func (p Phase) String() string {
	switch p {
	case PreDeparture:
		return "PRE_DEPARTURE"
	case InFlight:
		return "IN_FLIGHT"
	case PostArrival:
		return "POST_ARRIVAL"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	switch string(b) {
	case "PRE_DEPARTURE":
		*p = PreDeparture
	case "IN_FLIGHT":
		*p = InFlight
	case "POST_ARRIVAL":
		*p = PostArrival
	default:
		return fmt.Errorf("%q: unknown flight phase", string(b))
	}
	return nil
}

// ETAMode selects the ETA formula. Anticipated holds if and only if the
// phase is PRE_DEPARTURE.
type ETAMode int8

const (
	Anticipated ETAMode = iota
	Estimated
)

func (m ETAMode) String() string {
	switch m {
	case Anticipated:
		return "ANTICIPATED"
	case Estimated:
		return "ESTIMATED"
	default:
		return fmt.Sprintf("ETAMode(%d)", int(m))
	}
}

func (m ETAMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *ETAMode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "ANTICIPATED":
		*m = Anticipated
	case "ESTIMATED":
		*m = Estimated
	default:
		return fmt.Errorf("%q: unknown ETA mode", string(b))
	}
	return nil
}

func (p Phase) Mode() ETAMode {
	if p == PreDeparture {
		return Anticipated
	}
	return Estimated
}

///////////////////////////////////////////////////////////////////////////
// Machine

const (
	DefaultDepartureThresholdKn = 40
	DefaultDepartureDwell       = 5 * time.Second
	DefaultArrivalRadiusM       = 100
	DefaultArrivalDwell         = time.Minute
)

// Machine advances the flight phase from observed motion: sustained
// ground speed above the departure threshold takes off, a sustained dwell
// inside the arrival radius of the last waypoint lands. Explicit
// Depart/Arrive overrides skip the dwell. Machine is not safe for
// concurrent use; the coordinator serializes access.
type Machine struct {
	DepartureThresholdKn float64
	DepartureDwell       time.Duration
	ArrivalRadiusM       float64
	ArrivalDwell         time.Duration

	phase     Phase
	fastSince time.Time
	nearSince time.Time
	departed  time.Time
	arrived   time.Time
}

func NewMachine() *Machine {
	return &Machine{
		DepartureThresholdKn: DefaultDepartureThresholdKn,
		DepartureDwell:       DefaultDepartureDwell,
		ArrivalRadiusM:       DefaultArrivalRadiusM,
		ArrivalDwell:         DefaultArrivalDwell,
	}
}

func (m *Machine) Phase() Phase { return m.phase }

func (m *Machine) Mode() ETAMode { return m.phase.Mode() }

// ActualDeparture returns the stamped departure time once the platform
// has left PRE_DEPARTURE.
func (m *Machine) ActualDeparture() (time.Time, bool) {
	return m.departed, !m.departed.IsZero()
}

func (m *Machine) ActualArrival() (time.Time, bool) {
	return m.arrived, !m.arrived.IsZero()
}

// Observe folds one smoothed sample into the machine: speedKn drives the
// departure dwell, distToArrivalM (to the route's last waypoint) drives
// the arrival dwell. It reports whether the phase changed.
func (m *Machine) Observe(now time.Time, speedKn, distToArrivalM float64) bool {
	switch m.phase {
	case PreDeparture:
		if speedKn <= m.DepartureThresholdKn {
			m.fastSince = time.Time{}
			return false
		}
		if m.fastSince.IsZero() {
			m.fastSince = now
		}
		if now.Sub(m.fastSince) >= m.DepartureDwell {
			return m.Depart(now)
		}
	case InFlight:
		if distToArrivalM > m.ArrivalRadiusM {
			m.nearSince = time.Time{}
			return false
		}
		if m.nearSince.IsZero() {
			m.nearSince = now
		}
		if now.Sub(m.nearSince) >= m.ArrivalDwell {
			return m.Arrive(now)
		}
	}
	return false
}

// Depart forces the PRE_DEPARTURE -> IN_FLIGHT transition and stamps the
// actual departure time. It is a no-op in any other phase.
func (m *Machine) Depart(now time.Time) bool {
	if m.phase != PreDeparture {
		return false
	}
	m.phase = InFlight
	m.departed = now
	m.fastSince = time.Time{}
	return true
}

// Arrive forces the IN_FLIGHT -> POST_ARRIVAL transition and stamps the
// actual arrival time. It is a no-op in any other phase.
func (m *Machine) Arrive(now time.Time) bool {
	if m.phase != InFlight {
		return false
	}
	m.phase = PostArrival
	m.arrived = now
	m.nearSince = time.Time{}
	return true
}

// Reset returns the machine to PRE_DEPARTURE from any phase and clears
// the stamped times; route deactivation resets the same way.
func (m *Machine) Reset() bool {
	changed := m.phase != PreDeparture
	*m = Machine{
		DepartureThresholdKn: m.DepartureThresholdKn,
		DepartureDwell:       m.DepartureDwell,
		ArrivalRadiusM:       m.ArrivalRadiusM,
		ArrivalDwell:         m.ArrivalDwell,
	}
	return changed
}
