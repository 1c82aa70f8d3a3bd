// transport/config.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package transport

import (
	"fmt"
	"time"

	"github.com/bcl1713/starlink-dashboard-sub010/coverage"
	"github.com/bcl1713/starlink-dashboard-sub010/geo"
	"github.com/bcl1713/starlink-dashboard-sub010/util"
)

///////////////////////////////////////////////////////////////////////////
// Config DTOs

// XTransition is a planned X-band handoff. The handoff instant is the
// time the route passes the projection of Pos onto the route geometry;
// within [handoff - pre, handoff + post) the transport is degraded. Zero
// buffers take the mission-wide defaults.
type XTransition struct {
	Pos               geo.Point2LL `json:"pos"`
	TargetSatelliteID string       `json:"target_satellite_id"`
	PreBufferS        int          `json:"pre_buffer_s,omitempty"`
	PostBufferS       int          `json:"post_buffer_s,omitempty"`
}

// TimeWindow is a [start, end) span, UTC.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w TimeWindow) Interval() util.TimeInterval {
	return util.TimeInterval{w.Start, w.End}
}

func (w TimeWindow) IsZeroLength() bool {
	return !w.End.After(w.Start)
}

// KuOverride forces the Ku transport offline over a window, with an
// operator-supplied reason tag.
type KuOverride struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason"`
}

// AARWindow names the waypoints bounding an air-to-air refueling segment.
// The window resolves to times via the waypoints' (adjusted) timestamps
// and is closed on both ends.
type AARWindow struct {
	StartWaypointName string `json:"start_waypoint_name"`
	EndWaypointName   string `json:"end_waypoint_name"`
}

func (w AARWindow) String() string {
	return fmt.Sprintf("(%s,%s)", w.StartWaypointName, w.EndWaypointName)
}

// AzimuthRange is a compass interval in degrees, inclusive on both ends.
// From > To denotes a range wrapping through north (e.g. [350, 10]).
type AzimuthRange struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
}

func (r AzimuthRange) Contains(az float64) bool {
	az = geo.NormalizeHeading(az)
	if r.From <= r.To {
		return az >= r.From && az <= r.To
	}
	return az >= r.From || az <= r.To
}

// DeadZone is a union of azimuth ranges in which the platform antenna
// cannot acquire the active X satellite.
type DeadZone []AzimuthRange

func (dz DeadZone) Contains(az float64) bool {
	for _, r := range dz {
		if r.Contains(az) {
			return true
		}
	}
	return false
}

///////////////////////////////////////////////////////////////////////////
// LegConfig

// LegConfig is a mission leg's transport configuration. It is owned by
// the leg and replaced wholesale on update; Version increments with every
// accepted mutation and backs optimistic concurrency checks.
type LegConfig struct {
	LegID   string `json:"leg_id"`
	RouteID string `json:"route_id"`
	Version int64  `json:"version"`

	InitialXSatelliteID   string                `json:"initial_x_satellite_id"`
	XTransitions          []XTransition         `json:"x_transitions,omitempty"`
	XAzimuthDeadZone      DeadZone              `json:"x_azimuth_deadzone,omitempty"`
	KaInitialSatelliteIDs []string              `json:"ka_initial_satellite_ids,omitempty"`
	KaOutages             []TimeWindow          `json:"ka_outages,omitempty"`
	KaFootprints          coverage.FootprintMap `json:"ka_footprints,omitempty"`
	KuOverrides           []KuOverride          `json:"ku_overrides,omitempty"`
	AARWindows            []AARWindow           `json:"aar_windows,omitempty"`
	AdjustedDepartureTime time.Time             `json:"adjusted_departure_time,omitempty"`
}

// Validate checks everything that can be checked without the route:
// coordinates, azimuth ranges, satellite ids against the footprints and
// the ephemeris. AAR waypoint names are validated against the route by
// the coordinator, which owns both.
func (c *LegConfig) Validate(eph AzimuthProvider) error {
	if c.InitialXSatelliteID == "" {
		return ErrNoInitialXSatellite
	}
	if eph != nil {
		if !eph.HasSatellite(c.InitialXSatelliteID) {
			return fmt.Errorf("initial X satellite %q: %w", c.InitialXSatelliteID, ErrUnknownSatellite)
		}
		for _, tr := range c.XTransitions {
			if !eph.HasSatellite(tr.TargetSatelliteID) {
				return fmt.Errorf("transition target %q: %w", tr.TargetSatelliteID, ErrUnknownSatellite)
			}
		}
	}
	for i, tr := range c.XTransitions {
		if !tr.Pos.Valid() {
			return fmt.Errorf("transition %d at %v: invalid coordinates", i, tr.Pos)
		}
	}
	if len(c.XAzimuthDeadZone) > 0 && eph == nil {
		return ErrNoAzimuthProvider
	}
	for _, r := range c.XAzimuthDeadZone {
		if r.From < 0 || r.From >= 360 || r.To < 0 || r.To >= 360 {
			return fmt.Errorf("[%v,%v]: %w", r.From, r.To, ErrInvalidAzimuthRange)
		}
	}
	if err := c.KaFootprints.Validate(); err != nil {
		return err
	}
	for _, id := range c.KaInitialSatelliteIDs {
		if _, ok := c.KaFootprints.Get(id); !ok {
			return fmt.Errorf("Ka satellite %q: %w", id, ErrUnknownSatellite)
		}
	}
	for i, w := range c.KaOutages {
		if w.End.Before(w.Start) {
			return fmt.Errorf("Ka outage %d: %w", i, ErrInvalidWindow)
		}
	}
	for i, o := range c.KuOverrides {
		if o.End.Before(o.Start) {
			return fmt.Errorf("Ku override %d: %w", i, ErrInvalidWindow)
		}
	}
	return nil
}

// KaQuerySet returns the satellite ids whose coverage is considered:
// the configured initial set, or every footprinted satellite when the
// initial set is empty.
func (c *LegConfig) KaQuerySet() []string {
	if len(c.KaInitialSatelliteIDs) > 0 {
		return c.KaInitialSatelliteIDs
	}
	return c.KaFootprints.Keys
}
