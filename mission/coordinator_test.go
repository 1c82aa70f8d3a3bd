// mission/coordinator_test.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package mission

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
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
)

func at(hh, mm, ss int) time.Time {
	return time.Date(2025, 10, 27, hh, mm, ss, 0, time.UTC)
}

// legPoints is a one-hour equatorial route with named waypoints bounding
// a refueling track at [17:00, 17:15].
func legPoints() []route.RoutePoint {
	return []route.RoutePoint{
		{Pos: geo.MakePoint2LL(0, 0), Seq: 1, ExpectedArrival: at(16, 45, 0), Name: "DEP", Role: route.RoleDeparture},
		{Pos: geo.MakePoint2LL(0, 0.25), Seq: 2, ExpectedArrival: at(17, 0, 0), Name: "AAR_A", Role: route.RoleEvent},
		{Pos: geo.MakePoint2LL(0, 0.5), Seq: 3, ExpectedArrival: at(17, 15, 0), Name: "AAR_B", Role: route.RoleEvent},
		{Pos: geo.MakePoint2LL(0, 1), Seq: 4, ExpectedArrival: at(17, 45, 0), Name: "ARR", Role: route.RoleArrival},
	}
}

func kaFull() coverage.FootprintMap {
	ring := coverage.Ring{
		geo.MakePoint2LL(-1, -1),
		geo.MakePoint2LL(-1, 2),
		geo.MakePoint2LL(1, 2),
		geo.MakePoint2LL(1, -1),
	}
	var fm coverage.FootprintMap
	fm.Set("KA-1", coverage.FootprintSpec{Polygon: coverage.Geometry{Polygons: [][]coverage.Ring{{ring}}}})
	return fm
}

func testEphemeris() transport.GeostationaryEphemeris {
	return transport.GeostationaryEphemeris{Slots: map[string]float64{"X-1": 50, "X-2": 120}}
}

// seedStore persists RT-1 v1 and a minimal LEG-1 config at version 1.
func seedStore(t *testing.T) storage.Store {
	t.Helper()
	store := storage.NewMemStore()
	r, err := route.NewRoute("RT-1", 1, legPoints())
	if err != nil {
		t.Fatalf("NewRoute: %v", err)
	}
	if err := store.SaveRoute(r); err != nil {
		t.Fatalf("SaveRoute: %v", err)
	}
	cfg := &transport.LegConfig{
		LegID:               "LEG-1",
		RouteID:             "RT-1",
		Version:             1,
		InitialXSatelliteID: "X-1",
		KaFootprints:        kaFull(),
	}
	if err := store.SaveLegConfig(cfg); err != nil {
		t.Fatalf("SaveLegConfig: %v", err)
	}
	return store
}

func newTestCoordinator(t *testing.T, store storage.Store, source PositionSource,
	sink metrics.Sink) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(CoordinatorConfig{
		Config:  MakeDefaultConfig(),
		Store:   store,
		Source:  source,
		Sink:    sink,
		Azimuth: testEphemeris(),
	}, log.Discard())
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	return c
}

func withTransition(cfg transport.LegConfig) transport.LegConfig {
	cfg.XTransitions = []transport.XTransition{
		{Pos: geo.MakePoint2LL(0, 0.5), TargetSatelliteID: "X-2"},
	}
	return cfg
}

func loadConfig(t *testing.T, store storage.Store, legID string) *transport.LegConfig {
	t.Helper()
	cfg, err := store.LoadLegConfig(legID)
	if err != nil {
		t.Fatalf("LoadLegConfig: %v", err)
	}
	return cfg
}

///////////////////////////////////////////////////////////////////////////

func TestUpdateLegConfigReadYourWrites(t *testing.T) {
	store := seedStore(t)
	c := newTestCoordinator(t, store, nil, nil)
	ctx := context.Background()

	if err := c.ActivateLeg("LEG-1"); err != nil {
		t.Fatalf("ActivateLeg: %v", err)
	}

	snap, warnings, err := c.UpdateLegConfig(ctx, UpdateLegConfigRequest{
		LegID:  "LEG-1",
		Config: withTransition(*loadConfig(t, store, "LEG-1")),
	})
	if err != nil {
		t.Fatalf("UpdateLegConfig: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("got warnings %v, expected none", warnings)
	}
	if snap.ConfigVersion != 2 {
		t.Errorf("got config version %d, expected 2", snap.ConfigVersion)
	}
	if len(snap.Segments) != 3 {
		t.Fatalf("got %d segments %+v, expected 3", len(snap.Segments), snap.Segments)
	}
	mid := snap.Segments[1]
	if !mid.Start.Equal(at(17, 0, 0)) || !mid.End.Equal(at(17, 30, 0)) {
		t.Errorf("got handoff segment [%v, %v), expected [17:00, 17:30)", mid.Start, mid.End)
	}
	if mid.XState != transport.Degraded || mid.Status != timeline.Degraded {
		t.Errorf("got X state %v status %v, expected DEGRADED/DEGRADED", mid.XState, mid.Status)
	}

	// The published state must already reflect the mutation.
	pub := c.Snapshot()
	if pub.ConfigVersion != 2 {
		t.Errorf("got published config version %d, expected 2", pub.ConfigVersion)
	}
	if pub.Timeline == nil || !reflect.DeepEqual(pub.Timeline.Segments, snap.Segments) {
		t.Errorf("published timeline does not match the returned one")
	}
	tl, err := c.Timeline("LEG-1")
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if tl.ConfigVersion != 2 {
		t.Errorf("got cached timeline config version %d, expected 2", tl.ConfigVersion)
	}

	// Stale version rejected.
	_, _, err = c.UpdateLegConfig(ctx, UpdateLegConfigRequest{
		LegID:  "LEG-1",
		Config: withTransition(transport.LegConfig{Version: 1, RouteID: "RT-1", InitialXSatelliteID: "X-1", KaFootprints: kaFull()}),
	})
	if !errors.Is(err, ErrConfigVersionConflict) {
		t.Errorf("stale update: got %v, expected ErrConfigVersionConflict", err)
	}
}

func TestUpdateLegConfigUnknownSatellite(t *testing.T) {
	store := seedStore(t)
	c := newTestCoordinator(t, store, nil, nil)

	cfg := *loadConfig(t, store, "LEG-1")
	cfg.InitialXSatelliteID = "X-9"
	_, _, err := c.UpdateLegConfig(context.Background(), UpdateLegConfigRequest{LegID: "LEG-1", Config: cfg})
	if !errors.Is(err, transport.ErrUnknownSatellite) {
		t.Errorf("got %v, expected ErrUnknownSatellite", err)
	}
	if v := loadConfig(t, store, "LEG-1").Version; v != 1 {
		t.Errorf("got stored version %d after rejected update, expected 1", v)
	}
}

func TestPreviewPurity(t *testing.T) {
	store := seedStore(t)
	c := newTestCoordinator(t, store, nil, nil)
	ctx := context.Background()

	before := c.Snapshot()
	proposed := withTransition(*loadConfig(t, store, "LEG-1"))
	snap, warnings, err := c.PreviewTimeline(ctx, PreviewRequest{LegID: "LEG-1", Config: &proposed})
	if err != nil {
		t.Fatalf("PreviewTimeline: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("got warnings %v, expected none", warnings)
	}
	if len(snap.Segments) != 3 {
		t.Errorf("got %d segments, expected 3", len(snap.Segments))
	}

	// Nothing persisted, published, or cached.
	if _, err := store.LoadTimeline("LEG-1"); !errors.Is(err, storage.ErrTimelineNotFound) {
		t.Errorf("got %v, expected ErrTimelineNotFound after preview", err)
	}
	if v := loadConfig(t, store, "LEG-1").Version; v != 1 {
		t.Errorf("got stored version %d after preview, expected 1", v)
	}
	if c.Snapshot() != before {
		t.Errorf("published snapshot changed by a preview")
	}
	if err := c.SaveTimeline("LEG-1"); !errors.Is(err, storage.ErrTimelineNotFound) {
		t.Errorf("got %v, expected ErrTimelineNotFound saving after preview only", err)
	}

	// A preview of the saved config matches the saved computation.
	saved, _, err := c.UpdateLegConfig(ctx, UpdateLegConfigRequest{LegID: "LEG-1", Config: proposed})
	if err != nil {
		t.Fatalf("UpdateLegConfig: %v", err)
	}
	again, _, err := c.PreviewTimeline(ctx, PreviewRequest{LegID: "LEG-1"})
	if err != nil {
		t.Fatalf("PreviewTimeline of saved config: %v", err)
	}
	if !reflect.DeepEqual(again.Segments, saved.Segments) {
		t.Errorf("preview of the saved config diverged from the saved timeline")
	}
	if !reflect.DeepEqual(again.Advisories, saved.Advisories) {
		t.Errorf("preview advisories diverged from the saved ones")
	}
}

func TestPreviewAdjustedOverride(t *testing.T) {
	store := seedStore(t)
	c := newTestCoordinator(t, store, nil, nil)

	adj := at(16, 5, 0)
	snap, _, err := c.PreviewTimeline(context.Background(), PreviewRequest{
		LegID:                 "LEG-1",
		AdjustedDepartureTime: &adj,
	})
	if err != nil {
		t.Fatalf("PreviewTimeline: %v", err)
	}
	if !snap.MissionStart.Equal(at(16, 5, 0)) || !snap.MissionEnd.Equal(at(17, 5, 0)) {
		t.Errorf("got mission span %v..%v, expected 16:05..17:05", snap.MissionStart, snap.MissionEnd)
	}
	if !loadConfig(t, store, "LEG-1").AdjustedDepartureTime.IsZero() {
		t.Errorf("preview override leaked into the stored config")
	}
}

func TestSetAdjustedDepartureShift(t *testing.T) {
	store := seedStore(t)
	c := newTestCoordinator(t, store, nil, nil)
	ctx := context.Background()

	// Install the handoff config so the shift has structure to move.
	if _, _, err := c.UpdateLegConfig(ctx, UpdateLegConfigRequest{
		LegID:  "LEG-1",
		Config: withTransition(*loadConfig(t, store, "LEG-1")),
	}); err != nil {
		t.Fatalf("UpdateLegConfig: %v", err)
	}

	target := at(16, 5, 0)
	warnings, err := c.SetAdjustedDeparture(ctx, "LEG-1", &target)
	if err != nil {
		t.Fatalf("SetAdjustedDeparture: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("got warnings %v, expected none for a 40 minute shift", warnings)
	}
	tl, err := c.Timeline("LEG-1")
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if !tl.MissionStart.Equal(at(16, 5, 0)) || !tl.MissionEnd.Equal(at(17, 5, 0)) {
		t.Errorf("got mission span %v..%v, expected 16:05..17:05", tl.MissionStart, tl.MissionEnd)
	}
	seg := tl.At(at(16, 35, 0))
	if seg == nil || seg.XState != transport.Degraded {
		t.Fatalf("got segment %+v at 16:35, expected the shifted handoff window", seg)
	}
	if !seg.Start.Equal(at(16, 20, 0)) || !seg.End.Equal(at(16, 50, 0)) {
		t.Errorf("got handoff [%v, %v), expected [16:20, 16:50)", seg.Start, seg.End)
	}
	if v := loadConfig(t, store, "LEG-1").Version; v != 3 {
		t.Errorf("got stored version %d, expected 3", v)
	}

	// Setting the same value again is a no-op.
	if _, err := c.SetAdjustedDeparture(ctx, "LEG-1", &target); err != nil {
		t.Fatalf("idempotent SetAdjustedDeparture: %v", err)
	}
	if v := loadConfig(t, store, "LEG-1").Version; v != 3 {
		t.Errorf("got stored version %d after idempotent set, expected 3", v)
	}

	// A shift beyond the threshold succeeds with a warning.
	far := at(16, 45, 0).Add(9 * time.Hour)
	warnings, err = c.SetAdjustedDeparture(ctx, "LEG-1", &far)
	if err != nil {
		t.Fatalf("SetAdjustedDeparture far: %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(string(warnings[0]), "exceeds") {
		t.Errorf("got warnings %v, expected one mentioning the threshold", warnings)
	}

	// Clearing restores the planned span.
	if _, err := c.SetAdjustedDeparture(ctx, "LEG-1", nil); err != nil {
		t.Fatalf("clear SetAdjustedDeparture: %v", err)
	}
	if adt := loadConfig(t, store, "LEG-1").AdjustedDepartureTime; !adt.IsZero() {
		t.Errorf("got adjusted departure %v after clear, expected zero", adt)
	}
	tl, _ = c.Timeline("LEG-1")
	if !tl.MissionStart.Equal(at(16, 45, 0)) {
		t.Errorf("got mission start %v after clear, expected 16:45", tl.MissionStart)
	}
}

func TestReplaceRouteDropsAAR(t *testing.T) {
	store := seedStore(t)
	cfg := loadConfig(t, store, "LEG-1")
	cfg.AARWindows = []transport.AARWindow{{StartWaypointName: "AAR_A", EndWaypointName: "AAR_B"}}
	cfg.AdjustedDepartureTime = at(16, 5, 0)
	if err := store.SaveLegConfig(cfg); err != nil {
		t.Fatalf("SaveLegConfig: %v", err)
	}
	c := newTestCoordinator(t, store, nil, nil)

	// The replacement keeps AAR_A but loses AAR_B.
	pts := []route.RoutePoint{
		{Pos: geo.MakePoint2LL(0, 0), Seq: 1, ExpectedArrival: at(16, 45, 0), Name: "DEP", Role: route.RoleDeparture},
		{Pos: geo.MakePoint2LL(0, 0.25), Seq: 2, ExpectedArrival: at(17, 0, 0), Name: "AAR_A", Role: route.RoleEvent},
		{Pos: geo.MakePoint2LL(0, 0.6), Seq: 3, ExpectedArrival: at(17, 20, 0), Name: "COAST"},
		{Pos: geo.MakePoint2LL(0, 1), Seq: 4, ExpectedArrival: at(17, 45, 0), Name: "ARR", Role: route.RoleArrival},
	}
	res, warnings, err := c.ReplaceRoute(context.Background(), ReplaceRouteRequest{
		LegID: "LEG-1",
		Route: &route.Route{ID: "RT-1", Points: pts},
	})
	if err != nil {
		t.Fatalf("ReplaceRoute: %v", err)
	}
	want := []Warning{"AAR window (AAR_A,AAR_B) dropped: AAR_B missing"}
	if !reflect.DeepEqual(warnings, want) {
		t.Errorf("got warnings %v, expected %v", warnings, want)
	}
	if res.Route.Version != 2 {
		t.Errorf("got route version %d, expected 2", res.Route.Version)
	}

	stored := loadConfig(t, store, "LEG-1")
	if len(stored.AARWindows) != 0 {
		t.Errorf("got AAR windows %v, expected none", stored.AARWindows)
	}
	if !stored.AdjustedDepartureTime.IsZero() {
		t.Errorf("got adjusted departure %v, expected cleared", stored.AdjustedDepartureTime)
	}
	if stored.Version != 2 {
		t.Errorf("got stored config version %d, expected 2", stored.Version)
	}

	// The timeline reflects the new route and the planned departure.
	if !res.Timeline.MissionStart.Equal(at(16, 45, 0)) {
		t.Errorf("got mission start %v, expected 16:45", res.Timeline.MissionStart)
	}
	if res.Timeline.RouteVersion != 2 {
		t.Errorf("got timeline route version %d, expected 2", res.Timeline.RouteVersion)
	}

	persisted, err := store.LoadRoute("RT-1")
	if err != nil {
		t.Fatalf("LoadRoute: %v", err)
	}
	if persisted.Version != 2 || len(persisted.Points) != 4 {
		t.Errorf("got persisted route v%d with %d points, expected v2 with 4", persisted.Version, len(persisted.Points))
	}
}

func TestReplaceRouteResetsFlight(t *testing.T) {
	store := seedStore(t)
	c := newTestCoordinator(t, store, nil, nil)
	ctx := context.Background()

	if err := c.ActivateLeg("LEG-1"); err != nil {
		t.Fatalf("ActivateLeg: %v", err)
	}
	if err := c.Depart("LEG-1"); err != nil {
		t.Fatalf("Depart: %v", err)
	}
	if got := c.Snapshot().Phase; got != flight.InFlight {
		t.Fatalf("got phase %v, expected IN_FLIGHT", got)
	}

	_, _, err := c.ReplaceRoute(ctx, ReplaceRouteRequest{
		LegID: "LEG-1",
		Route: &route.Route{ID: "RT-1", Points: legPoints()},
	})
	if err != nil {
		t.Fatalf("ReplaceRoute: %v", err)
	}
	pub := c.Snapshot()
	if pub.Phase != flight.PreDeparture {
		t.Errorf("got phase %v after route replacement, expected PRE_DEPARTURE", pub.Phase)
	}
	if pub.ActualDeparture != nil {
		t.Errorf("got actual departure %v, expected cleared", pub.ActualDeparture)
	}
	if pub.RouteVersion != 2 {
		t.Errorf("got published route version %d, expected 2", pub.RouteVersion)
	}
}

func TestFlightOverridesRequireActiveLeg(t *testing.T) {
	store := seedStore(t)
	c := newTestCoordinator(t, store, nil, nil)

	if err := c.Depart("LEG-1"); !errors.Is(err, ErrLegNotActive) {
		t.Errorf("Depart: got %v, expected ErrLegNotActive", err)
	}
	if err := c.ActivateLeg("LEG-1"); err != nil {
		t.Fatalf("ActivateLeg: %v", err)
	}
	if err := c.Arrive("LEG-2"); !errors.Is(err, ErrLegNotActive) {
		t.Errorf("Arrive on wrong leg: got %v, expected ErrLegNotActive", err)
	}
	if err := c.Depart("LEG-1"); err != nil {
		t.Fatalf("Depart: %v", err)
	}
	if err := c.Arrive("LEG-1"); err != nil {
		t.Fatalf("Arrive: %v", err)
	}
	pub := c.Snapshot()
	if pub.Phase != flight.PostArrival {
		t.Errorf("got phase %v, expected POST_ARRIVAL", pub.Phase)
	}
	if pub.ActualDeparture == nil || pub.ActualArrival == nil {
		t.Errorf("got departure %v arrival %v, expected both stamped", pub.ActualDeparture, pub.ActualArrival)
	}
	if err := c.ResetFlight("LEG-1"); err != nil {
		t.Fatalf("ResetFlight: %v", err)
	}
	if got := c.Snapshot().Phase; got != flight.PreDeparture {
		t.Errorf("got phase %v after reset, expected PRE_DEPARTURE", got)
	}
}

func TestSaveTimelineExplicit(t *testing.T) {
	store := seedStore(t)
	c := newTestCoordinator(t, store, nil, nil)
	ctx := context.Background()

	if err := c.SaveTimeline("LEG-1"); !errors.Is(err, storage.ErrTimelineNotFound) {
		t.Errorf("got %v, expected ErrTimelineNotFound before any computation", err)
	}

	snap, _, err := c.UpdateLegConfig(ctx, UpdateLegConfigRequest{
		LegID:  "LEG-1",
		Config: *loadConfig(t, store, "LEG-1"),
	})
	if err != nil {
		t.Fatalf("UpdateLegConfig: %v", err)
	}
	if _, err := store.LoadTimeline("LEG-1"); !errors.Is(err, storage.ErrTimelineNotFound) {
		t.Errorf("got %v, expected recompute not to persist the timeline", err)
	}

	if err := c.SaveTimeline("LEG-1"); err != nil {
		t.Fatalf("SaveTimeline: %v", err)
	}
	loaded, err := store.LoadTimeline("LEG-1")
	if err != nil {
		t.Fatalf("LoadTimeline: %v", err)
	}
	if loaded.ConfigVersion != snap.ConfigVersion || len(loaded.Segments) != len(snap.Segments) {
		t.Errorf("got persisted v%d with %d segments, expected v%d with %d",
			loaded.ConfigVersion, len(loaded.Segments), snap.ConfigVersion, len(snap.Segments))
	}
}

func TestUpdateLegConfigCancelledRetainsTimeline(t *testing.T) {
	store := seedStore(t)
	c := newTestCoordinator(t, store, nil, nil)

	base, _, err := c.UpdateLegConfig(context.Background(), UpdateLegConfigRequest{
		LegID:  "LEG-1",
		Config: *loadConfig(t, store, "LEG-1"),
	})
	if err != nil {
		t.Fatalf("UpdateLegConfig: %v", err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = c.UpdateLegConfig(cancelled, UpdateLegConfigRequest{
		LegID:  "LEG-1",
		Config: withTransition(*loadConfig(t, store, "LEG-1")),
	})
	if !errors.Is(err, ErrRecomputeCancelled) {
		t.Fatalf("got %v, expected ErrRecomputeCancelled", err)
	}

	// The config write is not rolled back, but the timeline is untouched.
	if v := loadConfig(t, store, "LEG-1").Version; v != 3 {
		t.Errorf("got stored version %d, expected 3", v)
	}
	tl, err := c.Timeline("LEG-1")
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if tl.ConfigVersion != base.ConfigVersion {
		t.Errorf("got timeline config version %d, expected the retained %d", tl.ConfigVersion, base.ConfigVersion)
	}
}

func TestActivateAndRunJob(t *testing.T) {
	store := seedStore(t)
	c := newTestCoordinator(t, store, nil, nil)

	if err := c.ActivateLeg("LEG-1"); err != nil {
		t.Fatalf("ActivateLeg: %v", err)
	}
	if c.Snapshot().Timeline != nil {
		t.Fatalf("got a timeline before the background job ran")
	}

	job := c.takeJob()
	if job == nil {
		t.Fatalf("got no queued job after activation")
	}
	c.runJob(context.Background(), job)

	pub := c.Snapshot()
	if pub.Timeline == nil {
		t.Fatalf("got no published timeline after the job ran")
	}
	if pub.Timeline.LegID != "LEG-1" || len(pub.Timeline.Segments) == 0 {
		t.Errorf("got timeline %+v, expected segments for LEG-1", pub.Timeline)
	}
	if pub.LegID != "LEG-1" || pub.RouteID != "RT-1" || pub.RouteVersion != 1 {
		t.Errorf("got published identity %s/%s v%d, expected LEG-1/RT-1 v1", pub.LegID, pub.RouteID, pub.RouteVersion)
	}
}

func TestRecomputeLatestWins(t *testing.T) {
	store := seedStore(t)
	c := newTestCoordinator(t, store, nil, nil)

	c.enqueueRecompute("LEG-1")
	c.enqueueRecompute("LEG-1")
	job := c.takeJob()
	if job == nil || job.seq != 2 {
		t.Fatalf("got job %+v, expected the later enqueue (seq 2)", job)
	}
	if extra := c.takeJob(); extra != nil {
		t.Errorf("got a second job %+v, expected the slot to hold one", extra)
	}

	c.enqueueRecompute("LEG-1")
	c.supersede("LEG-1")
	if job := c.takeJob(); job != nil {
		t.Errorf("got job %+v after supersede, expected none", job)
	}
}

func TestIngestPositionMonotonic(t *testing.T) {
	store := seedStore(t)
	rec := metrics.NewRecorder()
	c := newTestCoordinator(t, store, nil, rec)

	s := PositionSample{Pos: geo.MakePoint2LL(0, 0.25), Time: at(17, 0, 0)}
	if err := c.IngestPosition(s); !errors.Is(err, ErrLegNotActive) {
		t.Fatalf("got %v, expected ErrLegNotActive with no active leg", err)
	}
	if err := c.ActivateLeg("LEG-1"); err != nil {
		t.Fatalf("ActivateLeg: %v", err)
	}
	if err := c.IngestPosition(s); err != nil {
		t.Fatalf("IngestPosition: %v", err)
	}
	c.tick(at(17, 0, 1))

	pub := c.Snapshot()
	if !pub.SampleTime.Equal(at(17, 0, 0)) {
		t.Errorf("got sample time %v, expected 17:00:00", pub.SampleTime)
	}

	for _, stale := range []time.Time{at(16, 59, 0), at(17, 0, 0)} {
		err := c.IngestPosition(PositionSample{Pos: geo.MakePoint2LL(0, 0.3), Time: stale})
		if !errors.Is(err, ErrNonMonotonicTimestamps) {
			t.Errorf("ingest at %v: got %v, expected ErrNonMonotonicTimestamps", stale, err)
		}
	}
}

func TestCoordinatorTickSimulated(t *testing.T) {
	store := seedStore(t)
	rec := metrics.NewRecorder()
	src := NewSimulatedSource(nil, 60)
	c := newTestCoordinator(t, store, src, rec)
	c.SetPOIs([]flight.POI{{ID: "TGT", Name: "Target", Pos: geo.MakePoint2LL(0, 1)}})

	if err := c.ActivateLeg("LEG-1"); err != nil {
		t.Fatalf("ActivateLeg: %v", err)
	}
	c.runJob(context.Background(), c.takeJob())

	// Three ticks: prime the smoother, seed the speed, satisfy the dwell.
	c.tick(at(17, 0, 0))
	c.tick(at(17, 0, 30))
	c.tick(at(17, 1, 0))

	pub := c.Snapshot()
	if pub.Phase != flight.InFlight {
		t.Fatalf("got phase %v, expected IN_FLIGHT after sustained speed", pub.Phase)
	}
	if pub.ActualDeparture == nil || !pub.ActualDeparture.Equal(at(17, 1, 0)) {
		t.Errorf("got actual departure %v, expected 17:01:00", pub.ActualDeparture)
	}
	if pub.SpeedKn < 55 || pub.SpeedKn > 65 {
		t.Errorf("got speed %.1f kn, expected about 60", pub.SpeedKn)
	}
	if lon := pub.Position.Longitude(); lon < 0.26 || lon > 0.28 {
		t.Errorf("got longitude %.4f, expected about 0.2667 at 17:01", lon)
	}

	if v, ok := rec.Gauge(metrics.GaugeFlightPhase, nil); !ok || v != 1 {
		t.Errorf("got flight phase gauge %v (%v), expected 1", v, ok)
	}
	if v, ok := rec.Gauge(metrics.GaugeRouteProgressPercent, nil); !ok || v < 25 || v > 28 {
		t.Errorf("got progress %v (%v), expected about 26.7%%", v, ok)
	}
	if v, ok := rec.Gauge(metrics.GaugeDishSpeedKnots, nil); !ok || v < 55 || v > 65 {
		t.Errorf("got speed gauge %v (%v), expected about 60", v, ok)
	}
	if v, ok := rec.Gauge(metrics.GaugeMissionStatus, map[string]string{"transport": "X"}); !ok || v != 0 {
		t.Errorf("got X status gauge %v (%v), expected 0", v, ok)
	}
	if v, ok := rec.Gauge(metrics.GaugeMissionSegmentTotalsSeconds, map[string]string{"status": "nominal"}); !ok || v != 3600 {
		t.Errorf("got nominal total %v (%v), expected 3600", v, ok)
	}
	if v, ok := rec.Gauge(metrics.GaugeMissionNextConflictSeconds, map[string]string{"status": "degraded"}); !ok || !math.IsInf(v, 1) {
		t.Errorf("got next conflict %v (%v), expected +Inf on a nominal mission", v, ok)
	}
	if v, ok := rec.Gauge(metrics.GaugeETAPOISeconds, map[string]string{"poi_id": "TGT"}); !ok || v <= 0 {
		t.Errorf("got POI ETA %v (%v), expected a positive estimate", v, ok)
	}
	if n := rec.Counter("flight_phase_changes_total", map[string]string{"phase": "IN_FLIGHT"}); n != 1 {
		t.Errorf("got %d phase changes, expected 1", n)
	}

	// A second tick at the same instant is rejected as stale.
	c.tick(at(17, 1, 0))
	if n := rec.Counter("position_rejects_total", map[string]string{"leg_id": "LEG-1"}); n != 1 {
		t.Errorf("got %d rejects, expected 1", n)
	}
}
