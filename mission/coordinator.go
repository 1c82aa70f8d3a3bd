// mission/coordinator.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package mission owns the single mutable view of the running mission:
// the active leg's route, transport config, position, flight phase, and
// last computed timeline. A 1 Hz tick ingests positions and publishes
// gauges; mutations persist, recompute synchronously, and publish a new
// immutable snapshot before returning.
package mission

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bcl1713/starlink-dashboard-sub010/coverage"
	"github.com/bcl1713/starlink-dashboard-sub010/flight"
	"github.com/bcl1713/starlink-dashboard-sub010/geo"
	"github.com/bcl1713/starlink-dashboard-sub010/log"
	"github.com/bcl1713/starlink-dashboard-sub010/metrics"
	"github.com/bcl1713/starlink-dashboard-sub010/route"
	"github.com/bcl1713/starlink-dashboard-sub010/storage"
	"github.com/bcl1713/starlink-dashboard-sub010/timeline"
	"github.com/bcl1713/starlink-dashboard-sub010/transport"
	"github.com/bcl1713/starlink-dashboard-sub010/util"

	"github.com/brunoga/deep"
	lru "github.com/hashicorp/golang-lru/v2"
)

// CoordinatorConfig gathers the coordinator's collaborators. Sink may be
// nil (telemetry discarded); Azimuth may be nil (no X ephemeris; azimuth
// conflict checks then fail the X builder, which degrades X to offline);
// Footprints are the process-wide Ka footprints used when a leg config
// carries none.
type CoordinatorConfig struct {
	Config     Config
	Store      storage.Store
	Source     PositionSource
	Sink       metrics.Sink
	Azimuth    transport.AzimuthProvider
	Footprints coverage.FootprintMap
	POIs       []flight.POI
}

// activeLeg is the flight state of the leg the platform is currently
// flying. Guarded by Coordinator.stateMu.
type activeLeg struct {
	id         string
	config     *transport.LegConfig
	route      *route.Route
	proj       *route.Projector
	smoother   *flight.Smoother
	machine    *flight.Machine
	engine     *flight.Engine
	lastSample PositionSample
	haveSample bool
}

type recomputeJob struct {
	legID string
	seq   int64
}

type Coordinator struct {
	cfg        Config
	store      storage.Store
	source     PositionSource
	sink       metrics.Sink
	azimuth    transport.AzimuthProvider
	footprints coverage.FootprintMap
	lg         *log.Logger

	routes    *lru.Cache[string, *route.Route]
	timelines *lru.Cache[string, *timeline.Snapshot]

	// Published snapshot; readers copy the pointer under mu.
	mu        sync.RWMutex
	published *StateSnapshot

	// Mutable working state.
	stateMu sync.Mutex
	active  *activeLeg
	pending *PositionSample
	pois    []flight.POI

	// Per-leg serialization of mutations and recomputes.
	legMu    sync.Mutex
	legLocks map[string]*sync.Mutex

	// Latest-wins recompute slot for the background worker.
	jobMu     sync.Mutex
	jobSeq    int64
	job       *recomputeJob
	jobReady  chan struct{}
	inFlight  string
	cancelJob context.CancelFunc
}

func NewCoordinator(cc CoordinatorConfig, lg *log.Logger) (*Coordinator, error) {
	if cc.Store == nil {
		return nil, errors.New("coordinator requires a store")
	}
	sink := cc.Sink
	if sink == nil {
		sink = metrics.NullSink{}
	}
	routes, err := lru.New[string, *route.Route](max(1, cc.Config.RouteCacheSize))
	if err != nil {
		return nil, err
	}
	timelines, err := lru.New[string, *timeline.Snapshot](max(1, cc.Config.TimelineCacheSize))
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		cfg:        cc.Config,
		store:      cc.Store,
		source:     cc.Source,
		sink:       sink,
		azimuth:    cc.Azimuth,
		footprints: cc.Footprints,
		lg:         lg,
		routes:     routes,
		timelines:  timelines,
		published:  &StateSnapshot{PublishedAt: time.Now().UTC()},
		pois:       slices.Clone(cc.POIs),
		legLocks:   make(map[string]*sync.Mutex),
		jobReady:   make(chan struct{}, 1),
	}, nil
}

// Snapshot returns the current published state. The snapshot is immutable;
// callers may hold it as long as they like.
func (c *Coordinator) Snapshot() *StateSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.published
}

// Timeline returns the leg's last computed timeline, falling back to the
// persisted one when nothing has been computed this process.
func (c *Coordinator) Timeline(legID string) (*timeline.Snapshot, error) {
	if snap, ok := c.timelines.Get(legID); ok {
		return snap, nil
	}
	snap, err := c.store.LoadTimeline(legID)
	if err != nil {
		return nil, err
	}
	c.timelines.Add(legID, snap)
	return snap, nil
}

// SaveTimeline persists the leg's last computed timeline. This is the only
// path that writes timelines to storage.
func (c *Coordinator) SaveTimeline(legID string) error {
	snap, ok := c.timelines.Get(legID)
	if !ok {
		return fmt.Errorf("%q: %w", legID, storage.ErrTimelineNotFound)
	}
	return c.store.SaveTimeline(snap)
}

func (c *Coordinator) SetPOIs(pois []flight.POI) {
	c.stateMu.Lock()
	c.pois = slices.Clone(pois)
	c.stateMu.Unlock()
}

///////////////////////////////////////////////////////////////////////////
// Leg activation and loading

func (c *Coordinator) legLock(legID string) *sync.Mutex {
	c.legMu.Lock()
	defer c.legMu.Unlock()
	m, ok := c.legLocks[legID]
	if !ok {
		m = &sync.Mutex{}
		c.legLocks[legID] = m
	}
	return m
}

func (c *Coordinator) loadRoute(id string) (*route.Route, error) {
	if r, ok := c.routes.Get(id); ok {
		return r, nil
	}
	r, err := c.store.LoadRoute(id)
	if err != nil {
		return nil, err
	}
	c.routes.Add(id, r)
	return r, nil
}

func (c *Coordinator) projectorFor(cfg *transport.LegConfig, r *route.Route) (*route.Projector, error) {
	proj, err := route.NewProjector(r)
	if err != nil {
		return nil, err
	}
	if !cfg.AdjustedDepartureTime.IsZero() {
		proj = proj.Adjusted(cfg.AdjustedDepartureTime)
	}
	return proj, nil
}

// ActivateLeg makes legID the leg the platform is flying: flight state is
// reset, the position simulator (if any) is rerouted, and a background
// recompute is enqueued.
func (c *Coordinator) ActivateLeg(legID string) error {
	lock := c.legLock(legID)
	lock.Lock()
	defer lock.Unlock()

	cfg, err := c.store.LoadLegConfig(legID)
	if err != nil {
		return err
	}
	r, err := c.loadRoute(cfg.RouteID)
	if err != nil {
		return err
	}
	proj, err := c.projectorFor(cfg, r)
	if err != nil {
		return err
	}

	machine := flight.NewMachine()
	machine.DepartureThresholdKn = c.cfg.DepartureThresholdKn
	machine.ArrivalRadiusM = c.cfg.ArrivalRadiusM
	machine.ArrivalDwell = c.cfg.ArrivalDwell()
	engine := flight.NewEngine(proj, c.cfg.ETACacheSize, c.cfg.ETACacheTTL())
	engine.Alpha = c.cfg.ETABlendingAlpha
	engine.OnRouteToleranceM = c.cfg.OnRouteToleranceM
	engine.ReachedRadiusM = c.cfg.ArrivalRadiusM

	c.stateMu.Lock()
	c.active = &activeLeg{
		id:       legID,
		config:   cfg,
		route:    r,
		proj:     proj,
		smoother: flight.NewSmoother(),
		machine:  machine,
		engine:   engine,
	}
	c.pending = nil
	c.stateMu.Unlock()

	c.retargetSource(proj)
	c.lg.Infof("leg %s: activated with route %s v%d", legID, r.ID, r.Version)
	c.enqueueRecompute(legID)
	c.publish()
	return nil
}

// retargetSource points a route-following source at the new projector.
func (c *Coordinator) retargetSource(proj *route.Projector) {
	type projectorSink interface{ SetProjector(*route.Projector) }
	if s, ok := c.source.(projectorSink); ok {
		s.SetProjector(proj)
	}
}

///////////////////////////////////////////////////////////////////////////
// Timeline computation

// computeTimeline computes the leg's timeline from cfg over r. It does not
// persist or publish anything.
func (c *Coordinator) computeTimeline(ctx context.Context, cfg *transport.LegConfig,
	r *route.Route) (*timeline.Snapshot, error) {
	proj, err := c.projectorFor(cfg, r)
	if err != nil {
		return nil, err
	}
	tp := proj.Timing()
	if !tp.HasTimingData {
		return nil, fmt.Errorf("route %s: %w", r.ID, route.ErrUntimedRoute)
	}

	fm := cfg.KaFootprints
	if len(fm.Keys) == 0 {
		fm = c.footprints
	}
	ev, err := coverage.NewEvaluator(fm)
	if err != nil {
		return nil, fmt.Errorf("leg %s: %w: %v", cfg.LegID, ErrComputationFailed, err)
	}

	b := &transport.Builder{
		Projector:            proj,
		Evaluator:            ev,
		Azimuth:              c.azimuth,
		SamplingPeriod:       c.cfg.SamplingPeriod(),
		DefaultPreBuffer:     c.cfg.XPreBuffer(),
		DefaultPostBuffer:    c.cfg.XPostBuffer(),
		KaHandoffDegradation: c.cfg.KaHandoffDegradation(),
		Lg:                   c.lg,
	}
	snap, err := timeline.Compute(ctx, timeline.Request{
		LegID:   cfg.LegID,
		Builder: b,
		Config:  cfg,
		Span:    util.TimeInterval{tp.DepartureTime, tp.ArrivalTime},
		Lg:      c.lg,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("leg %s: %w", cfg.LegID, ErrRecomputeCancelled)
		}
		return nil, fmt.Errorf("leg %s: %w: %v", cfg.LegID, ErrComputationFailed, err)
	}
	return snap, nil
}

// recomputeLocked recomputes and publishes under the caller-held leg lock.
// On failure the previous timeline is retained.
func (c *Coordinator) recomputeLocked(ctx context.Context, cfg *transport.LegConfig,
	r *route.Route) (*timeline.Snapshot, error) {
	c.supersede(cfg.LegID)
	snap, err := c.computeTimeline(ctx, cfg, r)
	if err != nil {
		c.lg.Errorf("leg %s: recompute failed, keeping previous timeline: %v", cfg.LegID, err)
		return nil, err
	}
	c.publishTimeline(cfg, r, snap)
	return snap, nil
}

// publishTimeline installs a freshly computed timeline: the cache is
// updated, and if the leg is active its projector and ETA engine are
// refreshed before the state snapshot is republished.
func (c *Coordinator) publishTimeline(cfg *transport.LegConfig, r *route.Route, snap *timeline.Snapshot) {
	c.timelines.Add(cfg.LegID, snap)

	c.stateMu.Lock()
	if a := c.active; a != nil && a.id == cfg.LegID {
		a.config = cfg
		a.route = r
		if proj, err := c.projectorFor(cfg, r); err == nil {
			a.proj = proj
			a.engine.SetProjector(proj)
			c.retargetSource(proj)
		}
	}
	c.stateMu.Unlock()

	c.sink.IncCounter("timeline_recomputes_total", map[string]string{"leg_id": cfg.LegID})
	c.publish()
}

// publish rebuilds the published StateSnapshot from the working state.
func (c *Coordinator) publish() {
	snap := StateSnapshot{PublishedAt: time.Now().UTC()}

	c.stateMu.Lock()
	if a := c.active; a != nil {
		snap.LegID = a.id
		snap.RouteID = a.route.ID
		snap.RouteVersion = a.route.Version
		snap.ConfigVersion = a.config.Version
		snap.Phase = a.machine.Phase()
		snap.ETAMode = a.machine.Mode()
		if t, ok := a.machine.ActualDeparture(); ok {
			snap.ActualDeparture = &t
		}
		if t, ok := a.machine.ActualArrival(); ok {
			snap.ActualArrival = &t
		}
		if a.haveSample {
			snap.Position = a.lastSample.Pos
			snap.AltitudeM = a.lastSample.AltitudeM
			snap.SampleTime = a.lastSample.Time
			snap.SpeedKn = a.smoother.SpeedKn()
			snap.HeadingDeg = a.smoother.HeadingDeg()
		}
		if tl, ok := c.timelines.Get(a.id); ok {
			snap.Timeline = tl
		}
	}
	c.stateMu.Unlock()

	published := deep.MustCopy(snap)
	c.mu.Lock()
	c.published = &published
	c.mu.Unlock()
}

///////////////////////////////////////////////////////////////////////////
// Operations

// PreviewRequest describes a what-if timeline computation. A nil Config
// means the saved config; AdjustedDepartureTime, when non-nil, overrides
// the config's value for the preview only.
type PreviewRequest struct {
	LegID                 string
	Config                *transport.LegConfig
	AdjustedDepartureTime *time.Time
}

// PreviewTimeline computes a timeline without persisting or publishing
// anything: storage and the published snapshot are untouched even on
// success.
func (c *Coordinator) PreviewTimeline(ctx context.Context, req PreviewRequest) (*timeline.Snapshot, []Warning, error) {
	var cfg transport.LegConfig
	if req.Config != nil {
		cfg = *req.Config
	} else {
		loaded, err := c.store.LoadLegConfig(req.LegID)
		if err != nil {
			return nil, nil, err
		}
		cfg = *loaded
	}
	if req.AdjustedDepartureTime != nil {
		cfg.AdjustedDepartureTime = req.AdjustedDepartureTime.UTC()
	}
	cfg.LegID = req.LegID
	if cfg.RouteID == "" {
		stored, err := c.store.LoadLegConfig(req.LegID)
		if err != nil {
			return nil, nil, err
		}
		cfg.RouteID = stored.RouteID
	}

	r, err := c.loadRoute(cfg.RouteID)
	if err != nil {
		return nil, nil, err
	}
	warnings, err := c.validateConfig(&cfg, r)
	if err != nil {
		return nil, nil, err
	}
	snap, err := c.computeTimeline(ctx, &cfg, r)
	if err != nil {
		return nil, warnings, err
	}
	return snap, warnings, nil
}

// UpdateLegConfigRequest replaces the leg's config wholesale. The embedded
// Version must match the stored one (optimistic concurrency); the stored
// config's version is bumped on success.
type UpdateLegConfigRequest struct {
	LegID  string
	Config transport.LegConfig
}

func (c *Coordinator) UpdateLegConfig(ctx context.Context, req UpdateLegConfigRequest) (*timeline.Snapshot, []Warning, error) {
	c.supersede(req.LegID)
	lock := c.legLock(req.LegID)
	lock.Lock()
	defer lock.Unlock()

	stored, err := c.store.LoadLegConfig(req.LegID)
	if err != nil {
		return nil, nil, err
	}
	if req.Config.Version != stored.Version {
		return nil, nil, fmt.Errorf("leg %s: got v%d, stored v%d: %w",
			req.LegID, req.Config.Version, stored.Version, ErrConfigVersionConflict)
	}

	cfg := req.Config
	cfg.LegID = req.LegID
	if cfg.RouteID == "" {
		cfg.RouteID = stored.RouteID
	}
	r, err := c.loadRoute(cfg.RouteID)
	if err != nil {
		return nil, nil, err
	}
	warnings, err := c.validateConfig(&cfg, r)
	if err != nil {
		return nil, nil, err
	}

	cfg.Version = stored.Version + 1
	if err := c.store.SaveLegConfig(&cfg); err != nil {
		return nil, nil, err
	}
	snap, err := c.recomputeLocked(ctx, &cfg, r)
	if err != nil {
		return nil, warnings, err
	}
	return snap, warnings, nil
}

// ReplaceRouteRequest swaps the leg's route for a new one. The new route's
// version is assigned by the coordinator (previous version + 1).
type ReplaceRouteRequest struct {
	LegID string
	Route *route.Route
}

type RouteResult struct {
	Route    *route.Route
	Timeline *timeline.Snapshot
}

// ReplaceRoute installs a new route on the leg. The adjusted departure
// time is cleared, and AAR windows whose waypoints no longer exist are
// dropped with a warning naming each missing waypoint. If the leg is
// active its flight state resets to pre-departure.
func (c *Coordinator) ReplaceRoute(ctx context.Context, req ReplaceRouteRequest) (*RouteResult, []Warning, error) {
	c.supersede(req.LegID)
	lock := c.legLock(req.LegID)
	lock.Lock()
	defer lock.Unlock()

	cfg, err := c.store.LoadLegConfig(req.LegID)
	if err != nil {
		return nil, nil, err
	}

	version := int64(1)
	if old, err := c.loadRoute(req.Route.ID); err == nil {
		version = old.Version + 1
	} else if !errors.Is(err, storage.ErrRouteNotFound) {
		return nil, nil, err
	}
	newRoute, err := route.NewRoute(req.Route.ID, version, req.Route.Points)
	if err != nil {
		return nil, nil, err
	}

	var warnings []Warning
	cfg.AARWindows = util.FilterSlice(cfg.AARWindows, func(w transport.AARWindow) bool {
		missing := util.FilterSlice([]string{w.StartWaypointName, w.EndWaypointName},
			func(name string) bool { _, ok := newRoute.FindWaypoint(name); return !ok })
		if len(missing) > 0 {
			warnings = append(warnings, Warning(fmt.Sprintf("AAR window %s dropped: %s missing",
				w, strings.Join(missing, ", "))))
			return false
		}
		return true
	})
	cfg.AdjustedDepartureTime = time.Time{}
	cfg.RouteID = newRoute.ID
	cfg.Version++

	if err := c.store.SaveRoute(newRoute); err != nil {
		return nil, warnings, err
	}
	c.routes.Add(newRoute.ID, newRoute)
	if err := c.store.SaveLegConfig(cfg); err != nil {
		return nil, warnings, err
	}

	c.resetFlightIfActive(req.LegID)
	snap, err := c.recomputeLocked(ctx, cfg, newRoute)
	if err != nil {
		return nil, warnings, err
	}
	return &RouteResult{Route: newRoute, Timeline: snap}, warnings, nil
}

// SetAdjustedDeparture moves (or, with a nil t, clears) the leg's adjusted
// departure time. Setting the value it already has is a no-op; adjustments
// beyond the warn threshold succeed with a warning.
func (c *Coordinator) SetAdjustedDeparture(ctx context.Context, legID string, t *time.Time) ([]Warning, error) {
	c.supersede(legID)
	lock := c.legLock(legID)
	lock.Lock()
	defer lock.Unlock()

	cfg, err := c.store.LoadLegConfig(legID)
	if err != nil {
		return nil, err
	}
	r, err := c.loadRoute(cfg.RouteID)
	if err != nil {
		return nil, err
	}

	var want time.Time
	if t != nil {
		want = t.UTC()
	}
	probe := *cfg
	probe.AdjustedDepartureTime = want
	warnings := c.adjustmentWarnings(&probe, r)

	if cfg.AdjustedDepartureTime.Equal(want) {
		return warnings, nil
	}
	cfg.AdjustedDepartureTime = want
	cfg.Version++
	if err := c.store.SaveLegConfig(cfg); err != nil {
		return nil, err
	}
	if _, err := c.recomputeLocked(ctx, cfg, r); err != nil {
		return warnings, err
	}
	return warnings, nil
}

// validateConfig checks the config against the ephemeris and the route.
// Ka satellite ids are checked against the effective footprints, i.e. the
// process-wide ones when the config carries none. It returns the
// non-fatal warnings the config carries.
func (c *Coordinator) validateConfig(cfg *transport.LegConfig, r *route.Route) ([]Warning, error) {
	eff := *cfg
	if len(eff.KaFootprints.Keys) == 0 {
		eff.KaFootprints = c.footprints
	}
	if err := eff.Validate(c.azimuth); err != nil {
		return nil, err
	}
	for _, w := range cfg.AARWindows {
		for _, name := range []string{w.StartWaypointName, w.EndWaypointName} {
			if _, ok := r.FindWaypoint(name); !ok {
				return nil, fmt.Errorf("AAR window %s: %q: %w", w, name, route.ErrUnknownWaypoint)
			}
		}
	}
	return c.adjustmentWarnings(cfg, r), nil
}

func (c *Coordinator) adjustmentWarnings(cfg *transport.LegConfig, r *route.Route) []Warning {
	if cfg.AdjustedDepartureTime.IsZero() {
		return nil
	}
	tp := r.Timing()
	if !tp.HasTimingData {
		return nil
	}
	delta := cfg.AdjustedDepartureTime.Sub(tp.DepartureTime)
	if threshold := c.cfg.TimeAdjustmentWarnThreshold(); delta.Abs() > threshold {
		return []Warning{Warning(fmt.Sprintf("time adjustment %s exceeds %s", delta, threshold))}
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////
// Flight-phase overrides

// Depart forces the departure transition on the active leg.
func (c *Coordinator) Depart(legID string) error {
	if err := c.overrideFlight(legID, func(a *activeLeg) bool {
		return a.machine.Depart(time.Now().UTC())
	}); err != nil {
		return err
	}
	c.publish()
	return nil
}

// Arrive forces the arrival transition on the active leg.
func (c *Coordinator) Arrive(legID string) error {
	if err := c.overrideFlight(legID, func(a *activeLeg) bool {
		return a.machine.Arrive(time.Now().UTC())
	}); err != nil {
		return err
	}
	c.publish()
	return nil
}

// ResetFlight returns the active leg to pre-departure and clears the
// actual departure and arrival stamps.
func (c *Coordinator) ResetFlight(legID string) error {
	if err := c.overrideFlight(legID, func(a *activeLeg) bool {
		return a.machine.Reset()
	}); err != nil {
		return err
	}
	c.publish()
	return nil
}

func (c *Coordinator) overrideFlight(legID string, f func(*activeLeg) bool) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	a := c.active
	if a == nil || a.id != legID {
		return fmt.Errorf("%q: %w", legID, ErrLegNotActive)
	}
	if f(a) {
		a.engine.Invalidate()
		c.sink.IncCounter("flight_phase_changes_total",
			map[string]string{"phase": a.machine.Phase().String()})
		c.lg.Infof("leg %s: flight phase %s", a.id, a.machine.Phase())
	}
	return nil
}

func (c *Coordinator) resetFlightIfActive(legID string) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if a := c.active; a != nil && a.id == legID {
		if a.machine.Reset() {
			c.lg.Infof("leg %s: flight phase %s", a.id, a.machine.Phase())
		}
		a.engine.Invalidate()
	}
}

///////////////////////////////////////////////////////////////////////////
// Position ingestion and the tick

// IngestPosition feeds a pushed position sample to the next tick. Samples
// must be newer than the last accepted one.
func (c *Coordinator) IngestPosition(s PositionSample) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	a := c.active
	if a == nil {
		return fmt.Errorf("no active leg: %w", ErrLegNotActive)
	}
	if a.haveSample && !s.Time.After(a.lastSample.Time) {
		return fmt.Errorf("%v is not after %v: %w", s.Time.UTC(), a.lastSample.Time.UTC(),
			ErrNonMonotonicTimestamps)
	}
	c.pending = &s
	return nil
}

// Run drives the coordinator: the recompute worker plus the tick loop.
// It returns when ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	go c.recomputeWorker(ctx)

	ticker := time.NewTicker(c.cfg.TickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-ticker.C:
			c.tick(t.UTC())
		}
	}
}

// tick ingests the newest position sample, steps the flight state, and
// publishes gauges and a fresh snapshot. It never performs file I/O.
func (c *Coordinator) tick(now time.Time) {
	c.stateMu.Lock()
	a := c.active
	if a == nil {
		c.stateMu.Unlock()
		return
	}

	sample, ok := c.nextSampleLocked(a, now)
	if ok {
		c.ingestLocked(a, sample)
	}
	c.publishGaugesLocked(a, now)
	c.stateMu.Unlock()

	c.publish()
}

func (c *Coordinator) nextSampleLocked(a *activeLeg, now time.Time) (PositionSample, bool) {
	var s PositionSample
	var ok bool
	if c.pending != nil {
		s, ok = *c.pending, true
		c.pending = nil
	} else if c.source != nil {
		s, ok = c.source.NextPosition(now)
	}
	if !ok {
		return PositionSample{}, false
	}
	if a.haveSample && !s.Time.After(a.lastSample.Time) {
		c.lg.Warnf("leg %s: rejecting position sample at %v, last accepted %v",
			a.id, s.Time.UTC(), a.lastSample.Time.UTC())
		c.sink.IncCounter("position_rejects_total", map[string]string{"leg_id": a.id})
		return PositionSample{}, false
	}
	return s, true
}

func (c *Coordinator) ingestLocked(a *activeLeg, s PositionSample) {
	a.lastSample = s
	a.haveSample = true
	a.smoother.Observe(s.Pos, s.Time)

	distArrival := math.Inf(1)
	if n := len(a.route.Points); n > 0 {
		distArrival = geo.DistanceM(s.Pos, a.route.Points[n-1].Pos)
	}
	if a.machine.Observe(s.Time, a.smoother.SpeedKn(), distArrival) {
		a.engine.Invalidate()
		c.sink.IncCounter("flight_phase_changes_total",
			map[string]string{"phase": a.machine.Phase().String()})
		c.lg.Infof("leg %s: flight phase %s", a.id, a.machine.Phase())
	}
}

func (c *Coordinator) publishGaugesLocked(a *activeLeg, now time.Time) {
	set := c.sink.SetGauge
	if a.haveSample {
		s := a.lastSample
		set(metrics.GaugeDishLatitudeDegrees, s.Pos.Latitude(), nil)
		set(metrics.GaugeDishLongitudeDegrees, s.Pos.Longitude(), nil)
		set(metrics.GaugeDishAltitudeMeters, s.AltitudeM, nil)
		set(metrics.GaugeDishSpeedKnots, a.smoother.SpeedKn(), nil)
		set(metrics.GaugeDishHeadingDegrees, a.smoother.HeadingDeg(), nil)
		set(metrics.GaugeFlightPhase, float64(a.machine.Phase()), nil)

		pp := a.proj.Project(s.Pos)
		if total := a.proj.TotalDistanceM(); total > 0 {
			set(metrics.GaugeRouteProgressPercent, 100*pp.AlongTrackM/total, nil)
		}
		for i := range a.route.Points {
			d := max(0, a.proj.CumulativeM(i)-pp.AlongTrackM)
			set(metrics.GaugeDistanceToWaypointMeters, d,
				map[string]string{"waypoint_index": strconv.Itoa(i)})
		}

		fs := flight.Sample{Pos: s.Pos, Time: s.Time, SpeedKn: a.smoother.SpeedKn(),
			HeadingDeg: a.smoother.HeadingDeg()}
		for _, poi := range c.pois {
			st, err := a.engine.POIStatus(fs, a.machine.Phase(), poi)
			if err != nil {
				continue
			}
			set(metrics.GaugeETAPOISeconds, st.ETA.Seconds, map[string]string{"poi_id": poi.ID})
			set(metrics.GaugeDistanceToPOIMeters, st.DistanceM, map[string]string{"poi_id": poi.ID})
		}
	}

	tl, ok := c.timelines.Get(a.id)
	if !ok {
		return
	}
	if seg := tl.At(now); seg != nil {
		set(metrics.GaugeMissionStatus, float64(seg.XState), map[string]string{"transport": "X"})
		set(metrics.GaugeMissionStatus, float64(seg.KaState), map[string]string{"transport": "Ka"})
		set(metrics.GaugeMissionStatus, float64(seg.KuState), map[string]string{"transport": "Ku"})
	}
	for _, status := range []timeline.Status{timeline.Degraded, timeline.Critical} {
		v := math.Inf(1)
		if next, found := tl.NextConflict(now, status); found {
			v = max(0, next.Start.Sub(now).Seconds())
		}
		set(metrics.GaugeMissionNextConflictSeconds, v,
			map[string]string{"status": strings.ToLower(status.String())})
	}
	totals := tl.SegmentTotals()
	for _, status := range []timeline.Status{timeline.Nominal, timeline.Degraded, timeline.Critical} {
		set(metrics.GaugeMissionSegmentTotalsSeconds, totals[status].Seconds(),
			map[string]string{"status": strings.ToLower(status.String())})
	}
}

///////////////////////////////////////////////////////////////////////////
// Recompute worker

// enqueueRecompute schedules a background recompute with latest-wins
// semantics: a newer request replaces any queued one, and an in-flight
// job for the same leg is cancelled at its next cooperative check.
func (c *Coordinator) enqueueRecompute(legID string) {
	c.jobMu.Lock()
	c.jobSeq++
	c.job = &recomputeJob{legID: legID, seq: c.jobSeq}
	if c.inFlight == legID && c.cancelJob != nil {
		c.cancelJob()
	}
	c.jobMu.Unlock()

	select {
	case c.jobReady <- struct{}{}:
	default:
	}
}

// supersede cancels the in-flight background job and drops the queued one
// for the leg; a mutation is about to produce a newer timeline.
func (c *Coordinator) supersede(legID string) {
	c.jobMu.Lock()
	defer c.jobMu.Unlock()
	if c.job != nil && c.job.legID == legID {
		c.job = nil
	}
	if c.inFlight == legID && c.cancelJob != nil {
		c.cancelJob()
	}
}

func (c *Coordinator) takeJob() *recomputeJob {
	c.jobMu.Lock()
	defer c.jobMu.Unlock()
	j := c.job
	c.job = nil
	return j
}

func (c *Coordinator) recomputeWorker(ctx context.Context) {
	defer c.lg.CatchAndLogCrash()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.jobReady:
		}
		for job := c.takeJob(); job != nil; job = c.takeJob() {
			c.runJob(ctx, job)
		}
	}
}

func (c *Coordinator) runJob(ctx context.Context, job *recomputeJob) {
	lock := c.legLock(job.legID)
	lock.Lock()
	defer lock.Unlock()

	jctx, cancel := context.WithCancel(ctx)
	c.jobMu.Lock()
	c.inFlight = job.legID
	c.cancelJob = cancel
	c.jobMu.Unlock()
	defer func() {
		c.jobMu.Lock()
		c.inFlight = ""
		c.cancelJob = nil
		c.jobMu.Unlock()
		cancel()
	}()

	cfg, err := c.store.LoadLegConfig(job.legID)
	if err != nil {
		c.lg.Errorf("leg %s: recompute: %v", job.legID, err)
		return
	}
	r, err := c.loadRoute(cfg.RouteID)
	if err != nil {
		c.lg.Errorf("leg %s: recompute: %v", job.legID, err)
		return
	}
	snap, err := c.computeTimeline(jctx, cfg, r)
	if err != nil {
		if errors.Is(err, ErrRecomputeCancelled) {
			c.lg.Debugf("leg %s: recompute superseded", job.legID)
		} else {
			c.lg.Errorf("leg %s: recompute failed, keeping previous timeline: %v", job.legID, err)
		}
		return
	}
	c.publishTimeline(cfg, r, snap)
}
