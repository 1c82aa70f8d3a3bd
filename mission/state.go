// mission/state.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package mission

import (
	"time"

	"github.com/bcl1713/starlink-dashboard-sub010/flight"
	"github.com/bcl1713/starlink-dashboard-sub010/geo"
	"github.com/bcl1713/starlink-dashboard-sub010/timeline"
)

// StateSnapshot is the coordinator's published view: the active leg, the
// platform's flight state, and the last computed timeline. A snapshot is
// immutable once published; the coordinator swaps in a fresh deep copy
// and readers share the pointer.
type StateSnapshot struct {
	LegID         string `json:"leg_id,omitempty"`
	RouteID       string `json:"route_id,omitempty"`
	RouteVersion  int64  `json:"route_version,omitempty"`
	ConfigVersion int64  `json:"config_version,omitempty"`

	Phase           flight.Phase   `json:"phase"`
	ETAMode         flight.ETAMode `json:"eta_mode"`
	Position        geo.Point2LL   `json:"position"`
	AltitudeM       float64        `json:"altitude_m"`
	SpeedKn         float64        `json:"speed_knots"`
	HeadingDeg      float64        `json:"heading_degrees"`
	SampleTime      time.Time      `json:"sample_time"`
	ActualDeparture *time.Time     `json:"actual_departure,omitempty"`
	ActualArrival   *time.Time     `json:"actual_arrival,omitempty"`

	Timeline    *timeline.Snapshot `json:"timeline,omitempty"`
	PublishedAt time.Time          `json:"published_at"`
}
