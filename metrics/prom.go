// metrics/prom.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package metrics

import (
	"errors"
	"slices"
	"sync"

	"golang.org/x/exp/maps"

	"github.com/bcl1713/starlink-dashboard-sub010/log"

	"github.com/prometheus/client_golang/prometheus"
)

var gaugeHelp = map[string]string{
	GaugeDishAltitudeMeters:          "Platform altitude, meters above mean sea level.",
	GaugeDishHeadingDegrees:          "Platform heading, degrees true.",
	GaugeDishLatitudeDegrees:         "Platform latitude, degrees north.",
	GaugeDishLongitudeDegrees:        "Platform longitude, degrees east.",
	GaugeDishSpeedKnots:              "Smoothed platform ground speed, knots.",
	GaugeDistanceToPOIMeters:         "Great-circle distance to the point of interest, meters.",
	GaugeDistanceToWaypointMeters:    "Along-track distance to the route waypoint, meters.",
	GaugeETAPOISeconds:               "Estimated time of arrival at the point of interest, seconds.",
	GaugeFlightPhase:                 "Flight phase: 0 pre-departure, 1 in-flight, 2 post-arrival.",
	GaugeMissionNextConflictSeconds:  "Seconds until the next timeline segment at or above the labeled status.",
	GaugeMissionSegmentTotalsSeconds: "Total mission time spent at the labeled status, seconds.",
	GaugeMissionStatus:               "Transport state: 0=available, 1=degraded, 2=offline.",
	GaugeRouteProgressPercent:        "Along-track progress over the active route, percent.",
}

// PromSink adapts Sink onto Prometheus vectors, creating each vector
// lazily with the label keys of the first publication and registering it
// on the supplied registerer.
type PromSink struct {
	reg prometheus.Registerer
	lg  *log.Logger

	mu       sync.Mutex
	gauges   map[string]*prometheus.GaugeVec
	counters map[string]*prometheus.CounterVec
}

var _ Sink = (*PromSink)(nil)

func NewPromSink(reg prometheus.Registerer, lg *log.Logger) *PromSink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PromSink{
		reg:      reg,
		lg:       lg,
		gauges:   make(map[string]*prometheus.GaugeVec),
		counters: make(map[string]*prometheus.CounterVec),
	}
}

func (s *PromSink) SetGauge(name string, value float64, labels map[string]string) {
	vec, err := s.gaugeVec(name, labels)
	if err == nil {
		var g prometheus.Gauge
		if g, err = vec.GetMetricWith(labels); err == nil {
			g.Set(value)
			return
		}
	}
	s.lg.Warnf("%s: gauge dropped: %v", name, err)
}

func (s *PromSink) IncCounter(name string, labels map[string]string) {
	vec, err := s.counterVec(name, labels)
	if err == nil {
		var c prometheus.Counter
		if c, err = vec.GetMetricWith(labels); err == nil {
			c.Inc()
			return
		}
	}
	s.lg.Warnf("%s: counter dropped: %v", name, err)
}

func (s *PromSink) gaugeVec(name string, labels map[string]string) (*prometheus.GaugeVec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.gauges[name]; ok {
		return v, nil
	}
	v := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: gaugeHelp[name]},
		slices.Sorted(maps.Keys(labels)))
	if err := s.register(v); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if ev, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				s.gauges[name] = ev
				return ev, nil
			}
		}
		return nil, err
	}
	s.gauges[name] = v
	return v, nil
}

func (s *PromSink) counterVec(name string, labels map[string]string) (*prometheus.CounterVec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.counters[name]; ok {
		return v, nil
	}
	v := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name},
		slices.Sorted(maps.Keys(labels)))
	if err := s.register(v); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if ev, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				s.counters[name] = ev
				return ev, nil
			}
		}
		return nil, err
	}
	s.counters[name] = v
	return v, nil
}

func (s *PromSink) register(c prometheus.Collector) error {
	return s.reg.Register(c)
}
