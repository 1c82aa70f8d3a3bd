// timeline/advisory_test.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package timeline

import (
	"testing"

	"github.com/bcl1713/starlink-dashboard-sub010/coverage"
	"github.com/bcl1713/starlink-dashboard-sub010/geo"
	"github.com/bcl1713/starlink-dashboard-sub010/transport"
	"github.com/google/uuid"
)

// kaBox is a footprint spanning [lonMin, lonMax] at equatorial latitudes.
func kaBox(lonMin, lonMax float64) coverage.FootprintSpec {
	ring := coverage.Ring{
		geo.MakePoint2LL(-1, lonMin),
		geo.MakePoint2LL(-1, lonMax),
		geo.MakePoint2LL(1, lonMax),
		geo.MakePoint2LL(1, lonMin),
	}
	return coverage.FootprintSpec{Polygon: coverage.Geometry{Polygons: [][]coverage.Ring{{ring}}}}
}

func findAdvisory(t *testing.T, advs []Advisory, ev EventType) Advisory {
	t.Helper()
	for _, a := range advs {
		if a.Event == ev {
			return a
		}
	}
	t.Fatalf("no %s advisory in %+v", ev, advs)
	return Advisory{}
}

func TestAdvisoriesAARWindow(t *testing.T) {
	cfg := &transport.LegConfig{
		InitialXSatelliteID: "X-1",
		AARWindows:          []transport.AARWindow{{StartWaypointName: "AAR_A", EndWaypointName: "AAR_B"}},
		KaFootprints:        kaFull(),
	}
	snap := computeFor(t, cfg, nil)

	checkAdvisories(t, snap.Advisories, []wantAdvisory{
		{at(17, 0, 0), EventAARBegin, "X", SeverityInfo},
		{at(17, 0, 0), EventSeverityChange, "", SeverityWarning},
		{at(17, 15, 0), EventAAREnd, "X", SeverityInfo},
		{at(17, 15, 0), EventSeverityChange, "", SeverityWarning},
	})
	if a := findAdvisory(t, snap.Advisories, EventAARBegin); a.Message != "air-to-air refueling begins" {
		t.Errorf("got message %q, expected the refueling begin text", a.Message)
	}
	if a := findAdvisory(t, snap.Advisories, EventAAREnd); a.Message != "air-to-air refueling ends" {
		t.Errorf("got message %q, expected the refueling end text", a.Message)
	}
}

func TestAdvisoriesAzimuthConflictSeverity(t *testing.T) {
	// The conflict run starts at 17:15:15 and holds to the end of the
	// mission, so no end advisory is emitted. With Ka and Ku both healthy
	// the conflict rates only a warning.
	eph := transport.GeostationaryEphemeris{Slots: map[string]float64{"X-1": 0.505}}
	cfg := &transport.LegConfig{
		InitialXSatelliteID: "X-1",
		XAzimuthDeadZone:    transport.DeadZone{{From: 260, To: 280}},
		KaFootprints:        kaFull(),
	}
	snap := computeFor(t, cfg, eph)

	checkAdvisories(t, snap.Advisories, []wantAdvisory{
		{at(17, 15, 15), EventAzimuthConflictBegin, "X", SeverityWarning},
		{at(17, 15, 15), EventSeverityChange, "", SeverityWarning},
	})

	// With Ku already overridden the terminal has no healthy fallback
	// pair left, and the same conflict rates critical.
	cfg.KuOverrides = []transport.KuOverride{{Start: at(17, 0, 0), End: at(18, 0, 0), Reason: "jam"}}
	snap = computeFor(t, cfg, eph)

	checkAdvisories(t, snap.Advisories, []wantAdvisory{
		{at(17, 0, 0), EventKuOverrideBegin, "Ku", SeverityWarning},
		{at(17, 0, 0), EventSeverityChange, "", SeverityWarning},
		{at(17, 15, 15), EventAzimuthConflictBegin, "X", SeverityCritical},
		{at(17, 15, 15), EventSeverityChange, "", SeverityCritical},
	})
}

func TestAdvisoriesKaHandoff(t *testing.T) {
	// Footprints overlapping by a sliver east of lon 0.5 produce a
	// one-second covering-set handoff between the 17:15:00 and 17:15:30
	// samples.
	var fm coverage.FootprintMap
	fm.Set("KA-1", kaBox(-1, 0.5015))
	fm.Set("KA-2", kaBox(0.5005, 2))
	cfg := &transport.LegConfig{InitialXSatelliteID: "X-1", KaFootprints: fm}
	snap := computeFor(t, cfg, nil)

	checkAdvisories(t, snap.Advisories, []wantAdvisory{
		{at(17, 15, 15), EventKaHandoff, "Ka", SeverityInfo},
		{at(17, 15, 15), EventSeverityChange, "", SeverityWarning},
		{at(17, 15, 16), EventSeverityChange, "", SeverityWarning},
	})
	if a := findAdvisory(t, snap.Advisories, EventKaHandoff); a.Metadata["satellites"] != "KA-2" {
		t.Errorf("got handoff satellites %q, expected KA-2", a.Metadata["satellites"])
	}
}

func TestAdvisoriesCoverageGap(t *testing.T) {
	// A gap between two footprints reads as an outage pair with the
	// coverage-gap message.
	var fm coverage.FootprintMap
	fm.Set("KA-1", kaBox(-1, 0.279))
	fm.Set("KA-2", kaBox(0.721, 2))
	cfg := &transport.LegConfig{InitialXSatelliteID: "X-1", KaFootprints: fm}
	snap := computeFor(t, cfg, nil)

	checkAdvisories(t, snap.Advisories, []wantAdvisory{
		{at(17, 1, 45), EventKaOutageBegin, "Ka", SeverityWarning},
		{at(17, 1, 45), EventSeverityChange, "", SeverityWarning},
		{at(17, 28, 15), EventKaOutageEnd, "Ka", SeverityInfo},
		{at(17, 28, 15), EventSeverityChange, "", SeverityWarning},
	})
	if a := findAdvisory(t, snap.Advisories, EventKaOutageBegin); a.Message != "Ka-band coverage gap begins" {
		t.Errorf("got message %q, expected the coverage gap begin text", a.Message)
	}
}

func TestAdvisoriesKuOverrideReasons(t *testing.T) {
	cfg := &transport.LegConfig{
		InitialXSatelliteID: "X-1",
		KuOverrides: []transport.KuOverride{
			{Start: at(17, 0, 0), End: at(17, 10, 0), Reason: "maintenance"},
			{Start: at(17, 20, 0), End: at(17, 30, 0)},
		},
		KaFootprints: kaFull(),
	}
	snap := computeFor(t, cfg, nil)

	checkAdvisories(t, snap.Advisories, []wantAdvisory{
		{at(17, 0, 0), EventKuOverrideBegin, "Ku", SeverityWarning},
		{at(17, 0, 0), EventSeverityChange, "", SeverityWarning},
		{at(17, 10, 0), EventKuOverrideEnd, "Ku", SeverityInfo},
		{at(17, 10, 0), EventSeverityChange, "", SeverityWarning},
		{at(17, 20, 0), EventKuOverrideBegin, "Ku", SeverityWarning},
		{at(17, 20, 0), EventSeverityChange, "", SeverityWarning},
		{at(17, 30, 0), EventKuOverrideEnd, "Ku", SeverityInfo},
		{at(17, 30, 0), EventSeverityChange, "", SeverityWarning},
	})
	if a := snap.Advisories[0]; a.Message != "Ku-band override (maintenance) begins" {
		t.Errorf("got message %q, expected the named override reason", a.Message)
	}
	if a := snap.Advisories[4]; a.Message != "Ku-band override (ku_override) begins" {
		t.Errorf("got message %q, expected the default override reason", a.Message)
	}
}

func TestAdvisoryIDsUniqueAndStable(t *testing.T) {
	mk := func() *transport.LegConfig {
		cfg := xTransitionConfig()
		cfg.KaOutages = []transport.TimeWindow{{Start: at(17, 5, 0), End: at(17, 10, 0)}}
		cfg.AARWindows = []transport.AARWindow{{StartWaypointName: "AAR_A", EndWaypointName: "AAR_B"}}
		cfg.KuOverrides = []transport.KuOverride{{Start: at(17, 20, 0), End: at(17, 40, 0), Reason: "jam"}}
		return cfg
	}
	a := computeFor(t, mk(), nil)
	b := computeFor(t, mk(), nil)

	if len(a.Advisories) == 0 {
		t.Fatal("got no advisories")
	}
	seen := make(map[uuid.UUID]int)
	for i, adv := range a.Advisories {
		if adv.ID == uuid.Nil {
			t.Errorf("advisory %d: zero id", i)
		}
		if j, dup := seen[adv.ID]; dup {
			t.Errorf("advisories %d and %d share id %v", j, i, adv.ID)
		}
		seen[adv.ID] = i
	}
	if len(b.Advisories) != len(a.Advisories) {
		t.Fatalf("got %d advisories on recomputation, expected %d", len(b.Advisories), len(a.Advisories))
	}
	for i := range a.Advisories {
		if a.Advisories[i].ID != b.Advisories[i].ID {
			t.Errorf("advisory %d: id changed across identical computations", i)
		}
	}
}

func TestStatusAndSeverityText(t *testing.T) {
	for _, tc := range []struct {
		status Status
		text   string
	}{
		{Nominal, "NOMINAL"},
		{Degraded, "DEGRADED"},
		{Critical, "CRITICAL"},
	} {
		if got := tc.status.String(); got != tc.text {
			t.Errorf("%d: got %q, expected %q", int(tc.status), got, tc.text)
		}
		var s Status
		if err := s.UnmarshalText([]byte(tc.text)); err != nil || s != tc.status {
			t.Errorf("%q: got %v/%v, expected %v", tc.text, s, err, tc.status)
		}
	}
	var s Status
	if err := s.UnmarshalText([]byte("BROKEN")); err == nil {
		t.Error("got nil error for an unknown status")
	}

	for _, tc := range []struct {
		sev  Severity
		text string
	}{
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityCritical, "critical"},
	} {
		if got := tc.sev.String(); got != tc.text {
			t.Errorf("%d: got %q, expected %q", int(tc.sev), got, tc.text)
		}
		var sv Severity
		if err := sv.UnmarshalText([]byte(tc.text)); err != nil || sv != tc.sev {
			t.Errorf("%q: got %v/%v, expected %v", tc.text, sv, err, tc.sev)
		}
	}

	for bad, status := range map[int]Status{0: Nominal, 1: Degraded, 2: Critical, 3: Critical} {
		if got := StatusOf(bad); got != status {
			t.Errorf("StatusOf(%d): got %v, expected %v", bad, got, status)
		}
	}
}
