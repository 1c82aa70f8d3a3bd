// transport/ephemeris.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package transport

import (
	"fmt"
	"time"

	"github.com/bcl1713/starlink-dashboard-sub010/geo"
)

// AzimuthProvider reports the compass azimuth from a platform position to
// a satellite at a given time.
type AzimuthProvider interface {
	Azimuth(p geo.Point2LL, satID string, t time.Time) (float64, error)
	HasSatellite(satID string) bool
}

// GeostationaryEphemeris places each X satellite at a fixed longitude
// slot on the geostationary arc. The azimuth to a satellite is the
// great-circle bearing to its subsatellite point, which is what the
// antenna steering cares about; elevation is not modeled.
type GeostationaryEphemeris struct {
	Slots map[string]float64 `json:"slots"` // satellite id -> slot longitude, degrees east
}

func (e GeostationaryEphemeris) HasSatellite(satID string) bool {
	_, ok := e.Slots[satID]
	return ok
}

func (e GeostationaryEphemeris) Azimuth(p geo.Point2LL, satID string, t time.Time) (float64, error) {
	lon, ok := e.Slots[satID]
	if !ok {
		return 0, fmt.Errorf("%q: %w", satID, ErrUnknownSatellite)
	}
	return geo.InitialBearing(p, geo.MakePoint2LL(0, lon)), nil
}
