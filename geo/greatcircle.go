// geo/greatcircle.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package geo

import (
	"math"
)

// DistanceM returns the great-circle distance between two points in
// meters, using the haversine formula on the spherical Earth
// approximation.
func DistanceM(a, b Point2LL) float64 {
	lat1, lon1 := Radians(a.Latitude()), Radians(a.Longitude())
	lat2, lon2 := Radians(b.Latitude()), Radians(b.Longitude())
	dlat, dlon := lat2-lat1, lon2-lon1

	s := sqr(math.Sin(dlat/2)) + math.Cos(lat1)*math.Cos(lat2)*sqr(math.Sin(dlon/2))
	return EarthRadiusM * 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
}

// AngularDistance returns the central angle between two points in radians.
func AngularDistance(a, b Point2LL) float64 {
	return DistanceM(a, b) / EarthRadiusM
}

// InitialBearing returns the initial great-circle bearing from a to b in
// degrees from true north, normalized to [0,360).
func InitialBearing(a, b Point2LL) float64 {
	lat1, lon1 := Radians(a.Latitude()), Radians(a.Longitude())
	lat2, lon2 := Radians(b.Latitude()), Radians(b.Longitude())
	dlon := lon2 - lon1

	y := math.Sin(dlon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dlon)
	return NormalizeHeading(Degrees(math.Atan2(y, x)))
}

// Slerp spherically interpolates between a and b: f=0 gives a, f=1 gives
// b, intermediate values follow the great circle. Longitudes are unwrapped
// around the antimeridian so a route from +170 to -170 interpolates
// through 180 rather than the long way around; the result is re-wrapped to
// [-180,180].
func Slerp(a, b Point2LL, f float64) Point2LL {
	d := AngularDistance(a, b)
	if d < 1e-9 {
		// Degenerate segment: linear interpolation with unwrap is exact
		// enough and avoids dividing by sin(d).
		lon := a.Longitude() + f*(UnwrapLongitude(b.Longitude(), a.Longitude())-a.Longitude())
		lat := a.Latitude() + f*(b.Latitude()-a.Latitude())
		return Point2LL{WrapLongitude(lon), lat}
	}

	va, vb := toUnitVector(a), toUnitVector(b)
	sinD := math.Sin(d)
	wa := math.Sin((1-f)*d) / sinD
	wb := math.Sin(f*d) / sinD

	v := [3]float64{
		wa*va[0] + wb*vb[0],
		wa*va[1] + wb*vb[1],
		wa*va[2] + wb*vb[2],
	}
	return fromUnitVector(v)
}

// CrossTrackM returns the signed cross-track distance in meters of point p
// from the great circle through a and b (positive when p lies to the right
// of the a->b direction).
func CrossTrackM(p, a, b Point2LL) float64 {
	d13 := AngularDistance(a, p)
	t13 := Radians(InitialBearing(a, p))
	t12 := Radians(InitialBearing(a, b))
	return math.Asin(math.Sin(d13)*math.Sin(t13-t12)) * EarthRadiusM
}

// Projection describes the result of projecting a point onto a
// great-circle segment.
type Projection struct {
	Fraction     float64  // position of the foot along the segment in [0,1]
	AlongM       float64  // distance from the segment start to the foot, meters
	CrossM       float64  // unsigned distance from the point to the foot, meters
	Point        Point2LL // the foot itself
	ClampedToEnd bool     // foot fell outside the arc and was clamped
}

// ProjectOntoSegment computes the foot of the perpendicular from p onto
// the great-circle arc a->b. If the foot falls outside the arc it is
// clamped to the nearest endpoint and CrossM becomes the distance to that
// endpoint.
func ProjectOntoSegment(p, a, b Point2LL) Projection {
	d12 := AngularDistance(a, b)
	if d12 < 1e-9 {
		return Projection{
			Fraction: 0,
			AlongM:   0,
			CrossM:   DistanceM(a, p),
			Point:    a,
		}
	}

	d13 := AngularDistance(a, p)
	t13 := Radians(InitialBearing(a, p))
	t12 := Radians(InitialBearing(a, b))

	dxt := math.Asin(math.Sin(d13) * math.Sin(t13-t12))

	// Foot is behind the start of the arc.
	if math.Cos(t13-t12) < 0 {
		return Projection{
			Fraction:     0,
			AlongM:       0,
			CrossM:       DistanceM(a, p),
			Point:        a,
			ClampedToEnd: true,
		}
	}

	dat := math.Acos(clamp(math.Cos(d13)/math.Cos(dxt), -1, 1))
	if dat > d12 {
		// Foot is beyond the end of the arc.
		return Projection{
			Fraction:     1,
			AlongM:       d12 * EarthRadiusM,
			CrossM:       DistanceM(b, p),
			Point:        b,
			ClampedToEnd: true,
		}
	}

	f := dat / d12
	foot := Slerp(a, b, f)
	return Projection{
		Fraction: f,
		AlongM:   dat * EarthRadiusM,
		CrossM:   math.Abs(dxt) * EarthRadiusM,
		Point:    foot,
	}
}

func toUnitVector(p Point2LL) [3]float64 {
	lat, lon := Radians(p.Latitude()), Radians(p.Longitude())
	return [3]float64{
		math.Cos(lat) * math.Cos(lon),
		math.Cos(lat) * math.Sin(lon),
		math.Sin(lat),
	}
}

func fromUnitVector(v [3]float64) Point2LL {
	lat := math.Atan2(v[2], math.Sqrt(v[0]*v[0]+v[1]*v[1]))
	lon := math.Atan2(v[1], v[0])
	return Point2LL{Degrees(lon), Degrees(lat)}
}

func sqr(x float64) float64 { return x * x }

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
