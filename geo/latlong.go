// geo/latlong.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package geo

import (
	"encoding/json"
	"fmt"
	"math"
)

// EarthRadiusM is the WGS84 mean Earth radius used for all spherical
// approximations, in meters.
const EarthRadiusM = 6371008.8

const (
	MetersPerNauticalMile = 1852.0
	KnotsToMetersPerSec   = MetersPerNauticalMile / 3600.0
)

// Point2LL represents a point on the Earth in latitude-longitude.
// Important: 0 (x) is longitude, 1 (y) is latitude, matching GeoJSON
// position order.
type Point2LL [2]float64

func MakePoint2LL(lat, lon float64) Point2LL {
	return Point2LL{lon, lat}
}

func (p Point2LL) Longitude() float64 {
	return p[0]
}

func (p Point2LL) Latitude() float64 {
	return p[1]
}

func (p Point2LL) IsZero() bool {
	return p[0] == 0 && p[1] == 0
}

func (p Point2LL) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p[1], p[0])
}

// Valid reports whether the point holds plausible geographic coordinates.
func (p Point2LL) Valid() bool {
	return p[1] >= -90 && p[1] <= 90 && p[0] >= -180 && p[0] <= 180 &&
		!math.IsNaN(p[0]) && !math.IsNaN(p[1])
}

// Points marshal as [lon, lat] arrays so they are directly
// GeoJSON-position compatible.
func (p Point2LL) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64(p))
}

func (p *Point2LL) UnmarshalJSON(b []byte) error {
	var pt [2]float64
	if err := json.Unmarshal(b, &pt); err != nil {
		return err
	}
	*p = pt
	return nil
}

func Radians(d float64) float64 {
	return d / 180 * math.Pi
}

func Degrees(r float64) float64 {
	return r / math.Pi * 180
}

// NormalizeHeading reduces a heading (or azimuth) to [0,360).
func NormalizeHeading(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// HeadingDifference returns the minimum difference between two
// headings. (i.e., the result is always in the range [0,180].)
func HeadingDifference(a, b float64) float64 {
	var d float64
	if a > b {
		d = a - b
	} else {
		d = b - a
	}
	if d > 180 {
		d = 360 - d
	}
	return d
}

// WrapLongitude reduces a longitude to [-180,180].
func WrapLongitude(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

// UnwrapLongitude shifts lon by a multiple of 360 so that it lies within
// 180 degrees of ref; used to interpolate across the antimeridian without
// a discontinuity.
func UnwrapLongitude(lon, ref float64) float64 {
	for lon-ref > 180 {
		lon -= 360
	}
	for lon-ref < -180 {
		lon += 360
	}
	return lon
}
