// coverage/footprint.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package coverage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bcl1713/starlink-dashboard-sub010/geo"
	"github.com/iancoleman/orderedmap"
)

///////////////////////////////////////////////////////////////////////////
// Geometry

// Ring is a closed loop of vertices. The GeoJSON closing vertex (a repeat
// of the first) is dropped at parse time.
type Ring []geo.Point2LL

// Geometry is a GeoJSON Polygon or MultiPolygon in canonical form: one or
// more polygons, each an exterior ring followed by optional holes.
// Vertices are [lon, lat] pairs on the wire, matching geo.Point2LL.
type Geometry struct {
	Polygons [][]Ring
}

func (g *Geometry) UnmarshalJSON(b []byte) error {
	var raw struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	switch raw.Type {
	case "Polygon":
		var rings []Ring
		if err := json.Unmarshal(raw.Coordinates, &rings); err != nil {
			return err
		}
		g.Polygons = [][]Ring{rings}
	case "MultiPolygon":
		if err := json.Unmarshal(raw.Coordinates, &g.Polygons); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%q: unsupported geometry type", raw.Type)
	}

	for pi, rings := range g.Polygons {
		for ri, ring := range rings {
			g.Polygons[pi][ri] = dropClosingVertex(ring)
		}
	}
	return nil
}

func (g Geometry) MarshalJSON() ([]byte, error) {
	closed := make([][]Ring, len(g.Polygons))
	for pi, rings := range g.Polygons {
		closed[pi] = make([]Ring, len(rings))
		for ri, ring := range rings {
			c := make(Ring, len(ring), len(ring)+1)
			copy(c, ring)
			if len(ring) > 0 {
				c = append(c, ring[0])
			}
			closed[pi][ri] = c
		}
	}

	if len(closed) == 1 {
		return json.Marshal(struct {
			Type        string `json:"type"`
			Coordinates []Ring `json:"coordinates"`
		}{"Polygon", closed[0]})
	}
	return json.Marshal(struct {
		Type        string   `json:"type"`
		Coordinates [][]Ring `json:"coordinates"`
	}{"MultiPolygon", closed})
}

func dropClosingVertex(r Ring) Ring {
	if len(r) > 1 && r[0] == r[len(r)-1] {
		return r[:len(r)-1]
	}
	return r
}

// Validate checks every ring for degeneracy and bad coordinates.
func (g Geometry) Validate() error {
	for pi, rings := range g.Polygons {
		if len(rings) == 0 {
			return fmt.Errorf("polygon %d has no rings: %w", pi, ErrDegeneratePolygon)
		}
		for ri, ring := range rings {
			if len(ring) < 3 {
				return fmt.Errorf("polygon %d ring %d: %w", pi, ri, ErrDegeneratePolygon)
			}
			for vi, v := range ring {
				if !v.Valid() {
					return fmt.Errorf("polygon %d ring %d vertex %d %v: %w",
						pi, ri, vi, v, ErrInvalidVertex)
				}
			}
		}
	}
	if len(g.Polygons) == 0 {
		return ErrDegeneratePolygon
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////
// FootprintSpec

// FootprintSpec is one satellite's coverage area plus an optional validity
// window; outside the window the satellite covers nothing.
type FootprintSpec struct {
	Polygon    Geometry  `json:"polygon"`
	ValidFrom  time.Time `json:"valid_from,omitempty"`
	ValidUntil time.Time `json:"valid_until,omitempty"`
}

// ValidAt reports whether the footprint may be used at time t. The window
// is closed on both ends.
func (fs *FootprintSpec) ValidAt(t time.Time) bool {
	if !fs.ValidFrom.IsZero() && t.Before(fs.ValidFrom) {
		return false
	}
	if !fs.ValidUntil.IsZero() && t.After(fs.ValidUntil) {
		return false
	}
	return true
}

///////////////////////////////////////////////////////////////////////////
// FootprintMap

// FootprintMap maps satellite ids to footprint specs, remembering the
// order in which the ids appeared in the configuration file. Covering
// sets are reported in that order, which keeps recomputation output
// stable across runs.
type FootprintMap struct {
	Keys  []string
	Specs map[string]FootprintSpec
}

func (fm FootprintMap) Len() int { return len(fm.Keys) }

func (fm FootprintMap) Get(satID string) (FootprintSpec, bool) {
	fs, ok := fm.Specs[satID]
	return fs, ok
}

func (fm *FootprintMap) Set(satID string, fs FootprintSpec) {
	if fm.Specs == nil {
		fm.Specs = make(map[string]FootprintSpec)
	}
	if _, ok := fm.Specs[satID]; !ok {
		fm.Keys = append(fm.Keys, satID)
	}
	fm.Specs[satID] = fs
}

func (fm FootprintMap) Validate() error {
	for _, id := range fm.Keys {
		fs := fm.Specs[id]
		if err := fs.Polygon.Validate(); err != nil {
			return fmt.Errorf("footprint %q: %w", id, err)
		}
	}
	return nil
}

// MarshalJSON writes a JSON object whose keys appear in configuration
// order.
func (fm FootprintMap) MarshalJSON() ([]byte, error) {
	om := orderedmap.New()
	for _, id := range fm.Keys {
		om.Set(id, fm.Specs[id])
	}
	return json.Marshal(om)
}

// UnmarshalJSON reads a JSON object, preserving key order.
func (fm *FootprintMap) UnmarshalJSON(b []byte) error {
	om := orderedmap.New()
	if err := json.Unmarshal(b, om); err != nil {
		return err
	}

	fm.Keys = nil
	fm.Specs = make(map[string]FootprintSpec)
	for _, id := range om.Keys() {
		v, _ := om.Get(id)
		enc, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("footprint %q: %w", id, err)
		}
		var fs FootprintSpec
		if err := json.Unmarshal(enc, &fs); err != nil {
			return fmt.Errorf("footprint %q: %w", id, err)
		}
		fm.Keys = append(fm.Keys, id)
		fm.Specs[id] = fs
	}
	return nil
}
