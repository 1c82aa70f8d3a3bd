// metrics/metrics.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package metrics defines the sink the mission coordinator publishes
// gauges through, with a null implementation, an in-memory recorder, and
// a Prometheus adapter.
package metrics

import (
	"slices"
	"sync"

	"golang.org/x/exp/maps"
)

// Gauge names published by the mission coordinator. Label keys, where a
// gauge carries any, are noted alongside.
const (
	GaugeDishAltitudeMeters          = "dish_altitude_meters"
	GaugeDishHeadingDegrees          = "dish_heading_degrees"
	GaugeDishLatitudeDegrees         = "dish_latitude_degrees"
	GaugeDishLongitudeDegrees        = "dish_longitude_degrees"
	GaugeDishSpeedKnots              = "dish_speed_knots"
	GaugeDistanceToPOIMeters         = "distance_to_poi_meters"          // poi_id
	GaugeDistanceToWaypointMeters    = "distance_to_waypoint_meters"     // waypoint_index
	GaugeETAPOISeconds               = "eta_poi_seconds"                 // poi_id
	GaugeFlightPhase                 = "flight_phase"                    // 0=pre-departure 1=in-flight 2=post-arrival
	GaugeMissionNextConflictSeconds  = "mission_next_conflict_seconds"   // status
	GaugeMissionSegmentTotalsSeconds = "mission_segment_totals_seconds"  // status
	GaugeMissionStatus               = "mission_status"                  // transport; 0=available 1=degraded 2=offline
	GaugeRouteProgressPercent        = "route_progress_percent"
)

// Sink receives mission telemetry. Implementations must be safe for
// concurrent use; publishing must never block the coordinator tick.
type Sink interface {
	SetGauge(name string, value float64, labels map[string]string)
	IncCounter(name string, labels map[string]string)
}

///////////////////////////////////////////////////////////////////////////
// NullSink

// NullSink discards everything. It is the default when no metrics
// backend is configured.
type NullSink struct{}

var _ Sink = NullSink{}

func (NullSink) SetGauge(string, float64, map[string]string) {}

func (NullSink) IncCounter(string, map[string]string) {}

///////////////////////////////////////////////////////////////////////////
// Recorder

type recordKey struct {
	Name   string
	Labels string
}

// Recorder keeps the last value of every gauge and a running count per
// counter, keyed by name plus canonicalized labels. Tests and debug dumps
// read it back with Gauge and Counter.
type Recorder struct {
	mu       sync.Mutex
	gauges   map[recordKey]float64
	counters map[recordKey]int
}

var _ Sink = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{
		gauges:   make(map[recordKey]float64),
		counters: make(map[recordKey]int),
	}
}

func canonicalLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	s := ""
	keys := maps.Keys(labels)
	slices.Sort(keys)
	for _, k := range keys {
		s += k + "=" + labels[k] + ","
	}
	return s
}

func (r *Recorder) SetGauge(name string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[recordKey{name, canonicalLabels(labels)}] = value
}

func (r *Recorder) IncCounter(name string, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[recordKey{name, canonicalLabels(labels)}]++
}

// Gauge returns the last value set for name with exactly the given labels.
func (r *Recorder) Gauge(name string, labels map[string]string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.gauges[recordKey{name, canonicalLabels(labels)}]
	return v, ok
}

func (r *Recorder) Counter(name string, labels map[string]string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[recordKey{name, canonicalLabels(labels)}]
}

// GaugeNames returns the distinct gauge names seen so far, sorted.
func (r *Recorder) GaugeNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for k := range r.gauges {
		names = append(names, k.Name)
	}
	slices.Sort(names)
	return slices.Compact(names)
}
