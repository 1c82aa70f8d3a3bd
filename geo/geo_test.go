// geo/geo_test.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package geo

import (
	"math"
	"testing"
)

func TestDistanceM(t *testing.T) {
	// One degree of arc along the equator.
	a := MakePoint2LL(0, 0)
	b := MakePoint2LL(0, 1)
	want := 2 * math.Pi * EarthRadiusM / 360
	if d := DistanceM(a, b); math.Abs(d-want) > 1 {
		t.Errorf("equatorial degree: got %.2f m, expected %.2f m", d, want)
	}

	// Symmetric in its arguments.
	jfk := MakePoint2LL(40.6413, -73.7781)
	lhr := MakePoint2LL(51.4700, -0.4543)
	if d1, d2 := DistanceM(jfk, lhr), DistanceM(lhr, jfk); math.Abs(d1-d2) > 1e-6 {
		t.Errorf("asymmetric distance: %f vs %f", d1, d2)
	}

	// JFK-LHR is about 5540 km great circle.
	if d := DistanceM(jfk, lhr); d < 5.5e6 || d > 5.6e6 {
		t.Errorf("JFK-LHR distance %f m outside expected range", d)
	}

	if d := DistanceM(jfk, jfk); d != 0 {
		t.Errorf("distance to self: got %f, expected 0", d)
	}
}

func TestInitialBearing(t *testing.T) {
	tests := []struct {
		name string
		a, b Point2LL
		want float64
	}{
		{"due north", MakePoint2LL(0, 0), MakePoint2LL(10, 0), 0},
		{"due east on equator", MakePoint2LL(0, 0), MakePoint2LL(0, 10), 90},
		{"due south", MakePoint2LL(10, 0), MakePoint2LL(0, 0), 180},
		{"due west on equator", MakePoint2LL(0, 10), MakePoint2LL(0, 0), 270},
	}
	for _, tc := range tests {
		if got := InitialBearing(tc.a, tc.b); math.Abs(got-tc.want) > 1e-6 {
			t.Errorf("%s: got %f, expected %f", tc.name, got, tc.want)
		}
	}
}

func TestSlerp(t *testing.T) {
	a := MakePoint2LL(0, 0)
	b := MakePoint2LL(0, 10)

	if p := Slerp(a, b, 0); DistanceM(p, a) > 0.01 {
		t.Errorf("f=0: got %v, expected %v", p, a)
	}
	if p := Slerp(a, b, 1); DistanceM(p, b) > 0.01 {
		t.Errorf("f=1: got %v, expected %v", p, b)
	}

	mid := Slerp(a, b, 0.5)
	if math.Abs(mid.Longitude()-5) > 1e-6 || math.Abs(mid.Latitude()) > 1e-6 {
		t.Errorf("midpoint: got %v, expected (0, 5)", mid)
	}
}

func TestSlerpDateLine(t *testing.T) {
	// A route crossing the antimeridian must interpolate through 180, not
	// the long way around through 0.
	a := MakePoint2LL(10, 170)
	b := MakePoint2LL(10, -170)

	mid := Slerp(a, b, 0.5)
	if math.Abs(math.Abs(mid.Longitude())-180) > 1e-6 {
		t.Errorf("midpoint longitude: got %f, expected +/-180", mid.Longitude())
	}

	// No cartesian discontinuity around the crossing.
	before := Slerp(a, b, 0.5-1e-3)
	after := Slerp(a, b, 0.5+1e-3)
	straddle := DistanceM(before, after)
	step := DistanceM(Slerp(a, b, 0.25), Slerp(a, b, 0.25+2e-3))
	if straddle > 2*step {
		t.Errorf("discontinuity at date line: straddling step %f m vs reference %f m", straddle, step)
	}

	// Output longitudes stay wrapped.
	for f := 0.0; f <= 1.0; f += 0.05 {
		p := Slerp(a, b, f)
		if p.Longitude() < -180 || p.Longitude() > 180 {
			t.Errorf("f=%.2f: longitude %f not wrapped", f, p.Longitude())
		}
	}
}

func TestProjectOntoSegment(t *testing.T) {
	a := MakePoint2LL(0, 0)
	b := MakePoint2LL(0, 10)

	// Point abeam the middle of the segment.
	p := MakePoint2LL(1, 5)
	proj := ProjectOntoSegment(p, a, b)
	if math.Abs(proj.Fraction-0.5) > 0.01 {
		t.Errorf("abeam midpoint: fraction %f, expected ~0.5", proj.Fraction)
	}
	if proj.ClampedToEnd {
		t.Errorf("abeam midpoint unexpectedly clamped")
	}
	wantCross := DistanceM(MakePoint2LL(0, 5), p)
	if math.Abs(proj.CrossM-wantCross) > wantCross*0.01 {
		t.Errorf("cross-track: got %f, expected ~%f", proj.CrossM, wantCross)
	}

	// Behind the start.
	behind := MakePoint2LL(0.5, -2)
	proj = ProjectOntoSegment(behind, a, b)
	if proj.Fraction != 0 || !proj.ClampedToEnd {
		t.Errorf("behind start: fraction %f clamped %v, expected 0/true", proj.Fraction, proj.ClampedToEnd)
	}

	// Beyond the end.
	beyond := MakePoint2LL(0.5, 12)
	proj = ProjectOntoSegment(beyond, a, b)
	if proj.Fraction != 1 || !proj.ClampedToEnd {
		t.Errorf("beyond end: fraction %f clamped %v, expected 1/true", proj.Fraction, proj.ClampedToEnd)
	}

	// On the segment itself.
	on := Slerp(a, b, 0.3)
	proj = ProjectOntoSegment(on, a, b)
	if math.Abs(proj.Fraction-0.3) > 0.01 || proj.CrossM > 1 {
		t.Errorf("on segment: fraction %f cross %f", proj.Fraction, proj.CrossM)
	}
}

func TestNormalizeHeading(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0}, {360, 0}, {720, 0}, {-90, 270}, {450, 90}, {359.5, 359.5},
	}
	for _, tc := range tests {
		if got := NormalizeHeading(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("NormalizeHeading(%f): got %f, expected %f", tc.in, got, tc.want)
		}
	}
}

func TestHeadingDifference(t *testing.T) {
	tests := []struct{ a, b, want float64 }{
		{0, 10, 10}, {10, 0, 10}, {350, 10, 20}, {180, 0, 180}, {90, 270, 180},
	}
	for _, tc := range tests {
		if got := HeadingDifference(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("HeadingDifference(%f, %f): got %f, expected %f", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestWrapUnwrapLongitude(t *testing.T) {
	if got := WrapLongitude(190); got != -170 {
		t.Errorf("WrapLongitude(190): got %f, expected -170", got)
	}
	if got := WrapLongitude(-190); got != 170 {
		t.Errorf("WrapLongitude(-190): got %f, expected 170", got)
	}
	if got := UnwrapLongitude(-170, 170); got != 190 {
		t.Errorf("UnwrapLongitude(-170, 170): got %f, expected 190", got)
	}
	if got := UnwrapLongitude(170, -170); got != -190 {
		t.Errorf("UnwrapLongitude(170, -170): got %f, expected -190", got)
	}
}
