// transport/build.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package transport

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bcl1713/starlink-dashboard-sub010/coverage"
	"github.com/bcl1713/starlink-dashboard-sub010/log"
	"github.com/bcl1713/starlink-dashboard-sub010/route"
	"github.com/bcl1713/starlink-dashboard-sub010/util"
)

///////////////////////////////////////////////////////////////////////////
// Builder

// Builder computes the per-transport state series for one mission leg.
// The projector must already carry the leg's adjusted departure offset.
// Builders check ctx once per route sample, so a superseded recomputation
// stops at the next sample boundary.
type Builder struct {
	Projector *route.Projector
	Evaluator *coverage.Evaluator
	Azimuth   AzimuthProvider

	SamplingPeriod       time.Duration
	DefaultPreBuffer     time.Duration
	DefaultPostBuffer    time.Duration
	KaHandoffDegradation time.Duration

	Lg *log.Logger
}

// sampleTimes returns whole-second sample instants covering the span at
// the builder's cadence, always including the span end.
func (b *Builder) sampleTimes(span util.TimeInterval) []time.Time {
	var ts []time.Time
	for t := span.Start(); !t.After(span.End()); t = t.Add(b.SamplingPeriod) {
		ts = append(ts, t)
	}
	if ts[len(ts)-1].Before(span.End()) {
		ts = append(ts, span.End())
	}
	return ts
}

// runContribution expands the sample run times[i..j] by half a sample
// period on each side, which keeps a state flip detected at one sample
// from jittering between recomputations.
func (b *Builder) runContribution(times []time.Time, i, j int, state State, reason string) contribution {
	return contribution{
		span: snapInterval(util.TimeInterval{
			times[i].Add(-b.SamplingPeriod / 2),
			times[j].Add(b.SamplingPeriod / 2),
		}),
		state:  state,
		reason: reason,
	}
}

///////////////////////////////////////////////////////////////////////////
// X

type xHandoff struct {
	t      time.Time
	target string
}

// BuildX computes the X-band series: degraded windows around each
// steered handoff, degraded refueling windows, and offline stretches
// where the antenna's azimuth to the active satellite falls in a dead
// zone.
func (b *Builder) BuildX(ctx context.Context, cfg *LegConfig, span util.TimeInterval) (*Series, error) {
	if !span.End().After(span.Start()) {
		return nil, ErrMissionSpanEmpty
	}

	// Resolve transition positions to handoff instants.
	handoffs := make([]xHandoff, len(cfg.XTransitions))
	var contribs []contribution
	for i, tr := range cfg.XTransitions {
		ti, err := b.Projector.TimeAtPoint(tr.Pos)
		if err != nil {
			return nil, fmt.Errorf("transition %d: %w", i, err)
		}
		handoffs[i] = xHandoff{t: snapTime(ti), target: tr.TargetSatelliteID}

		pre, post := b.DefaultPreBuffer, b.DefaultPostBuffer
		if tr.PreBufferS > 0 {
			pre = time.Duration(tr.PreBufferS) * time.Second
		}
		if tr.PostBufferS > 0 {
			post = time.Duration(tr.PostBufferS) * time.Second
		}
		contribs = append(contribs, contribution{
			span:   util.TimeInterval{handoffs[i].t.Add(-pre), handoffs[i].t.Add(post)},
			state:  Degraded,
			reason: ReasonXTransition,
		})
	}
	sort.SliceStable(handoffs, func(i, j int) bool { return handoffs[i].t.Before(handoffs[j].t) })

	resolved := make([]Handoff, len(handoffs))
	active := cfg.InitialXSatelliteID
	for i, h := range handoffs {
		resolved[i] = Handoff{Time: h.t, From: active, To: h.target}
		active = h.target
	}

	activeAt := func(t time.Time) string {
		active := cfg.InitialXSatelliteID
		for _, h := range handoffs {
			if h.t.After(t) {
				break
			}
			active = h.target
		}
		return active
	}

	// Refueling windows, resolved through the (adjusted) waypoint times.
	for _, w := range cfg.AARWindows {
		ts, err := b.Projector.WaypointTime(w.StartWaypointName)
		if err != nil {
			return nil, fmt.Errorf("AAR window %s: %w", w, err)
		}
		te, err := b.Projector.WaypointTime(w.EndWaypointName)
		if err != nil {
			return nil, fmt.Errorf("AAR window %s: %w", w, err)
		}
		ts, te = snapTime(ts), snapTime(te)
		if !te.After(ts) {
			b.Lg.Infof("AAR window %s is zero-length, discarding", w)
			continue
		}
		contribs = append(contribs, contribution{
			span:      util.TimeInterval{ts, te},
			state:     Degraded,
			reason:    ReasonAARRefuel,
			closedEnd: true,
		})
	}

	// Sample the relative azimuth to the active satellite along the
	// route and mark dead-zone stretches offline.
	if len(cfg.XAzimuthDeadZone) > 0 {
		if b.Azimuth == nil {
			return nil, ErrNoAzimuthProvider
		}
		times := b.sampleTimes(span)
		tags := make([]string, len(times))
		for i, t := range times {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			pos, _, err := b.Projector.PositionAt(t)
			if err != nil {
				tags[i] = ReasonEvaluatorError
				b.Lg.Warnf("position at %v: %v", t, err)
				continue
			}
			az, err := b.Azimuth.Azimuth(pos, activeAt(t), t)
			if err != nil {
				tags[i] = ReasonEvaluatorError
				b.Lg.Warnf("azimuth at %v: %v", t, err)
				continue
			}
			if cfg.XAzimuthDeadZone.Contains(az) {
				tags[i] = ReasonAzimuthConflict
			}
		}

		for i := 0; i < len(times); {
			if tags[i] == "" {
				i++
				continue
			}
			j := i
			for j+1 < len(times) && tags[j+1] == tags[i] {
				j++
			}
			contribs = append(contribs, b.runContribution(times, i, j, Offline, tags[i]))
			i = j + 1
		}
	}

	s := compose(BandX, span, contribs, func(t time.Time) []string {
		return []string{activeAt(t)}
	})
	s.Handoffs = resolved
	return s, nil
}

///////////////////////////////////////////////////////////////////////////
// Ka

// BuildKa computes the Ka-band series from sampled footprint coverage,
// configured outages, and handoff micro-degradations at covering-set
// changes. With no footprints configured the transport has no coverage
// model and stays available.
func (b *Builder) BuildKa(ctx context.Context, cfg *LegConfig, span util.TimeInterval) (*Series, error) {
	if !span.End().After(span.Start()) {
		return nil, ErrMissionSpanEmpty
	}

	var contribs []contribution
	for i, w := range cfg.KaOutages {
		if w.IsZeroLength() {
			b.Lg.Infof("Ka outage %d is zero-length, discarding", i)
			continue
		}
		contribs = append(contribs, contribution{
			span:   snapInterval(w.Interval()),
			state:  Offline,
			reason: ReasonKaOutage,
		})
	}

	if cfg.KaFootprints.Len() == 0 {
		return compose(BandKa, span, contribs, nil), nil
	}

	query := cfg.KaQuerySet()
	times := b.sampleTimes(span)
	sets := make([][]string, len(times))
	errs := make([]bool, len(times))
	for i, t := range times {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pos, _, err := b.Projector.PositionAt(t)
		if err != nil {
			errs[i] = true
			b.Lg.Warnf("position at %v: %v", t, err)
			continue
		}
		sets[i] = b.Evaluator.Covering(pos, t, query)
	}

	// Coverage gaps and evaluator failures, run by run.
	for i := 0; i < len(times); {
		var reason string
		switch {
		case errs[i]:
			reason = ReasonEvaluatorError
		case len(sets[i]) == 0:
			reason = ReasonKaNoCoverage
		default:
			i++
			continue
		}
		j := i
		same := func(k int) bool {
			if reason == ReasonEvaluatorError {
				return errs[k]
			}
			return !errs[k] && len(sets[k]) == 0
		}
		for j+1 < len(times) && same(j+1) {
			j++
		}
		contribs = append(contribs, b.runContribution(times, i, j, Offline, reason))
		i = j + 1
	}

	// A handoff within Ka is a covering-set change with no satellites in
	// common: a short degradation centered between the two samples.
	for i := 0; i+1 < len(times); i++ {
		a, c := sets[i], sets[i+1]
		if len(a) == 0 || len(c) == 0 || intersects(a, c) {
			continue
		}
		mid := times[i].Add(times[i+1].Sub(times[i]) / 2)
		half := b.KaHandoffDegradation / 2
		contribs = append(contribs, contribution{
			span:   snapInterval(util.TimeInterval{mid.Add(-half), mid.Add(b.KaHandoffDegradation - half)}),
			state:  Degraded,
			reason: ReasonKaHandoff,
		})
	}

	// Covering sets change between samples; an interval opening after a
	// set change must already report the new set, so look up the first
	// sample at or after the interval start.
	satsAt := func(t time.Time) []string {
		k := sort.Search(len(times), func(i int) bool { return !times[i].Before(t) })
		if k >= len(times) {
			k = len(times) - 1
		}
		return sets[k]
	}
	return compose(BandKa, span, contribs, satsAt), nil
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

///////////////////////////////////////////////////////////////////////////
// Ku

// BuildKu computes the Ku-band series: available except where an
// operator override forces it offline.
func (b *Builder) BuildKu(ctx context.Context, cfg *LegConfig, span util.TimeInterval) (*Series, error) {
	if !span.End().After(span.Start()) {
		return nil, ErrMissionSpanEmpty
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var contribs []contribution
	for i, o := range cfg.KuOverrides {
		if !o.End.After(o.Start) {
			b.Lg.Infof("Ku override %d is zero-length, discarding", i)
			continue
		}
		reason := o.Reason
		if reason == "" {
			reason = "ku_override"
		}
		contribs = append(contribs, contribution{
			span:   snapInterval(util.TimeInterval{o.Start, o.End}),
			state:  Offline,
			reason: reason,
		})
	}
	return compose(BandKu, span, contribs, nil), nil
}
