// mission/config.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package mission

import (
	"time"

	"github.com/bcl1713/starlink-dashboard-sub010/flight"
)

// Config carries the planner's tunables. The CLI unmarshals a JSON file
// over MakeDefaultConfig(), so absent fields keep their defaults.
type Config struct {
	TickIntervalMs               int     `json:"tick_interval_ms"`
	XHandoffPreS                 int     `json:"x_handoff_pre_s"`
	XHandoffPostS                int     `json:"x_handoff_post_s"`
	XSamplingPeriodS             int     `json:"x_sampling_period_s"`
	KaHandoffDegradationS        int     `json:"ka_handoff_degradation_s"`
	DepartureThresholdKn         float64 `json:"departure_threshold_kn"`
	ArrivalRadiusM               float64 `json:"arrival_radius_m"`
	ArrivalDwellS                int     `json:"arrival_dwell_s"`
	ETABlendingAlpha             float64 `json:"eta_blending_alpha"`
	OnRouteToleranceM            float64 `json:"on_route_tolerance_m"`
	TimeAdjustmentWarnThresholdS int     `json:"time_adjustment_warn_threshold_s"`
	RouteCacheSize               int     `json:"route_cache_size"`
	TimelineCacheSize            int     `json:"timeline_cache_size"`
	ETACacheSize                 int     `json:"eta_cache_size"`
	ETACacheTTLS                 int     `json:"eta_cache_ttl_s"`
}

func MakeDefaultConfig() Config {
	return Config{
		TickIntervalMs:               1000,
		XHandoffPreS:                 900,
		XHandoffPostS:                900,
		XSamplingPeriodS:             30,
		KaHandoffDegradationS:        1,
		DepartureThresholdKn:         flight.DefaultDepartureThresholdKn,
		ArrivalRadiusM:               flight.DefaultArrivalRadiusM,
		ArrivalDwellS:                60,
		ETABlendingAlpha:             flight.DefaultETABlendAlpha,
		OnRouteToleranceM:            flight.DefaultOnRouteToleranceM,
		TimeAdjustmentWarnThresholdS: 28800,
		RouteCacheSize:               32,
		TimelineCacheSize:            32,
		ETACacheSize:                 flight.DefaultETACacheSize,
		ETACacheTTLS:                 5,
	}
}

func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

func (c Config) XPreBuffer() time.Duration {
	return time.Duration(c.XHandoffPreS) * time.Second
}

func (c Config) XPostBuffer() time.Duration {
	return time.Duration(c.XHandoffPostS) * time.Second
}

func (c Config) SamplingPeriod() time.Duration {
	return time.Duration(c.XSamplingPeriodS) * time.Second
}

func (c Config) KaHandoffDegradation() time.Duration {
	return time.Duration(c.KaHandoffDegradationS) * time.Second
}

func (c Config) ArrivalDwell() time.Duration {
	return time.Duration(c.ArrivalDwellS) * time.Second
}

func (c Config) ETACacheTTL() time.Duration {
	return time.Duration(c.ETACacheTTLS) * time.Second
}

func (c Config) TimeAdjustmentWarnThreshold() time.Duration {
	return time.Duration(c.TimeAdjustmentWarnThresholdS) * time.Second
}
