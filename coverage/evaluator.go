// coverage/evaluator.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package coverage

import (
	"maps"
	"math"
	"slices"
	"time"

	"github.com/bcl1713/starlink-dashboard-sub010/geo"
)

///////////////////////////////////////////////////////////////////////////
// Evaluator

// Evaluator answers point-in-footprint queries for the configured Ka
// satellites. Footprints are loaded once at construction and never
// change; the evaluator is safe for concurrent use.
type Evaluator struct {
	sats []string // configuration order
	fps  map[string]FootprintSpec
}

func NewEvaluator(fm FootprintMap) (*Evaluator, error) {
	if err := fm.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{
		sats: slices.Clone(fm.Keys),
		fps:  maps.Clone(fm.Specs),
	}, nil
}

// Satellites returns the configured satellite ids in configuration order.
func (e *Evaluator) Satellites() []string { return e.sats }

func (e *Evaluator) HasSatellite(satID string) bool {
	_, ok := e.fps[satID]
	return ok
}

// IsCovered reports whether satID's footprint contains p at time t.
// Unknown satellites and expired footprints cover nothing.
func (e *Evaluator) IsCovered(satID string, p geo.Point2LL, t time.Time) bool {
	fs, ok := e.fps[satID]
	if !ok || !fs.ValidAt(t) {
		return false
	}
	return geometryContains(fs.Polygon, p)
}

// Covering returns the subset of satIDs whose footprints contain p at
// time t, in configuration order. A nil satIDs queries all configured
// satellites.
func (e *Evaluator) Covering(p geo.Point2LL, t time.Time, satIDs []string) []string {
	var out []string
	for _, id := range e.sats {
		if satIDs != nil && !slices.Contains(satIDs, id) {
			continue
		}
		if e.IsCovered(id, p, t) {
			out = append(out, id)
		}
	}
	return out
}

///////////////////////////////////////////////////////////////////////////
// Geodesic point-in-polygon

// geometryContains reports whether any member polygon contains q. Within
// one polygon the winding numbers of all rings are summed, so holes wound
// opposite to their exterior (the GeoJSON convention) subtract.
func geometryContains(g Geometry, q geo.Point2LL) bool {
	for _, rings := range g.Polygons {
		wn := 0
		for _, ring := range rings {
			wn += windingNumber(q, ring)
		}
		if wn != 0 {
			return true
		}
	}
	return false
}

// windingNumber counts signed crossings of q's meridian, northward of q,
// by the ring's edges. Each edge is treated as a great-circle arc; vertex
// longitudes are unwrapped into q's frame so rings straddling the
// antimeridian work. Rings that enclose a pole are not supported.
func windingNumber(q geo.Point2LL, ring Ring) int {
	wn := 0
	n := len(ring)
	for i := 0; i < n; i++ {
		a, b := ring[i], ring[(i+1)%n]
		da := geo.WrapLongitude(a.Longitude() - q.Longitude())
		db := geo.WrapLongitude(b.Longitude() - q.Longitude())

		// An edge spanning 180 degrees or more of relative longitude
		// passes behind q, not across its meridian.
		if math.Abs(da-db) >= 180 {
			continue
		}

		// Half-open on the east side so a vertex exactly on the meridian
		// is counted once.
		eastward := da < 0 && db >= 0
		westward := db < 0 && da >= 0
		if !eastward && !westward {
			continue
		}

		if latAtMeridian(a, b, da, db) > q.Latitude() {
			if eastward {
				wn++
			} else {
				wn--
			}
		}
	}
	return wn
}

// latAtMeridian returns the latitude at which the great circle through a
// and b crosses the meridian their relative longitudes da and db are
// measured against.
func latAtMeridian(a, b geo.Point2LL, da, db float64) float64 {
	den := math.Sin(geo.Radians(da - db))
	if den == 0 {
		// Degenerate edge along the meridian itself.
		return (a.Latitude() + b.Latitude()) / 2
	}
	lat1, lat2 := geo.Radians(a.Latitude()), geo.Radians(b.Latitude())
	t := (math.Tan(lat2)*math.Sin(geo.Radians(da)) -
		math.Tan(lat1)*math.Sin(geo.Radians(db))) / den
	return geo.Degrees(math.Atan(t))
}
