// timeline/advisory.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package timeline

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bcl1713/starlink-dashboard-sub010/transport"
	"github.com/google/uuid"
)

///////////////////////////////////////////////////////////////////////////
// Advisory

// Severity ranks an advisory; the value order backs max comparisons.
type Severity int8

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "info":
		*s = SeverityInfo
	case "warning":
		*s = SeverityWarning
	case "critical":
		*s = SeverityCritical
	default:
		return fmt.Errorf("%q: unknown advisory severity", string(b))
	}
	return nil
}

// statusSeverity maps a segment status to the severity an advisory about
// it carries.
func statusSeverity(s Status) Severity {
	switch s {
	case Critical:
		return SeverityCritical
	case Degraded:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// EventType labels what an advisory reports. The values are the wire
// strings; advisory ordering ties break on them lexicographically.
type EventType string

const (
	EventAARBegin             EventType = "aar_begin"
	EventAAREnd               EventType = "aar_end"
	EventAzimuthConflictBegin EventType = "azimuth_conflict_begin"
	EventAzimuthConflictEnd   EventType = "azimuth_conflict_end"
	EventKaHandoff            EventType = "ka_handoff"
	EventKaOutageBegin        EventType = "ka_outage_begin"
	EventKaOutageEnd          EventType = "ka_outage_end"
	EventKuOverrideBegin      EventType = "ku_override_begin"
	EventKuOverrideEnd        EventType = "ku_override_end"
	EventSeverityChange       EventType = "severity_change"
	EventXTransition          EventType = "x_transition"
)

// Advisory is one timeline event derived from a computed timeline.
type Advisory struct {
	ID        uuid.UUID         `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Event     EventType         `json:"event_type"`
	Transport string            `json:"transport,omitempty"` // empty for combined-status events
	Severity  Severity          `json:"severity"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

var advisoryNamespace = uuid.NewSHA1(uuid.NameSpaceURL,
	[]byte("github.com/bcl1713/starlink-dashboard-sub010/timeline"))

// makeAdvisory derives the advisory ID from its content so recomputing
// identical inputs reproduces identical advisories.
func makeAdvisory(legID string, t time.Time, ev EventType, tr string, sev Severity,
	msg string, md map[string]string) Advisory {
	key := strings.Join([]string{legID, t.UTC().Format(time.RFC3339Nano), string(ev), tr, msg}, "|")
	return Advisory{
		ID:        uuid.NewSHA1(advisoryNamespace, []byte(key)),
		Timestamp: t,
		Event:     ev,
		Transport: tr,
		Severity:  sev,
		Message:   msg,
		Metadata:  md,
	}
}

///////////////////////////////////////////////////////////////////////////
// Generation

// Advisories derives the advisory list for a computed timeline: instant
// events for X and Ka handoffs, begin/end pairs for every contributing
// window, and a severity_change at each combined-status boundary. The
// result is sorted by (timestamp, event type, transport) and deduplicated.
func Advisories(legID string, set transport.SeriesSet, segs []Segment) []Advisory {
	var advs []Advisory
	missionEnd := set.X.Span.End()

	for _, h := range set.X.Handoffs {
		advs = append(advs, makeAdvisory(legID, h.Time, EventXTransition,
			transport.BandX.String(), SeverityInfo,
			fmt.Sprintf("X-band handoff from %s to %s", h.From, h.To),
			map[string]string{"from": h.From, "to": h.To}))
	}

	for _, src := range set.X.Sources {
		switch src.Reason {
		case transport.ReasonAARRefuel:
			advs = append(advs, beginEnd(legID, missionEnd, src, transport.BandX,
				EventAARBegin, EventAAREnd, SeverityInfo, "air-to-air refueling")...)
		case transport.ReasonAzimuthConflict:
			sev := SeverityCritical
			if azimuthOnly(set, src.Span.Start()) {
				sev = SeverityWarning
			}
			advs = append(advs, beginEnd(legID, missionEnd, src, transport.BandX,
				EventAzimuthConflictBegin, EventAzimuthConflictEnd, sev, "X-band azimuth conflict")...)
		}
	}

	for _, src := range set.Ka.Sources {
		switch src.Reason {
		case transport.ReasonKaOutage:
			advs = append(advs, beginEnd(legID, missionEnd, src, transport.BandKa,
				EventKaOutageBegin, EventKaOutageEnd, SeverityWarning, "Ka-band outage")...)
		case transport.ReasonKaNoCoverage:
			advs = append(advs, beginEnd(legID, missionEnd, src, transport.BandKa,
				EventKaOutageBegin, EventKaOutageEnd, SeverityWarning, "Ka-band coverage gap")...)
		case transport.ReasonKaHandoff:
			sats := strings.Join(set.Ka.At(src.Span.Start()).Satellites, ",")
			advs = append(advs, makeAdvisory(legID, src.Span.Start(), EventKaHandoff,
				transport.BandKa.String(), SeverityInfo, "Ka-band covering set handoff",
				map[string]string{"satellites": sats}))
		}
	}

	for _, src := range set.Ku.Sources {
		what := fmt.Sprintf("Ku-band override (%s)", src.Reason)
		advs = append(advs, beginEnd(legID, missionEnd, src, transport.BandKu,
			EventKuOverrideBegin, EventKuOverrideEnd, SeverityWarning, what)...)
	}

	for i := 1; i < len(segs); i++ {
		a, b := &segs[i-1], &segs[i]
		if a.Status == b.Status {
			continue
		}
		sev := max(statusSeverity(a.Status), statusSeverity(b.Status))
		advs = append(advs, makeAdvisory(legID, b.Start, EventSeverityChange, "", sev,
			fmt.Sprintf("status %s -> %s", a.Status, b.Status),
			map[string]string{"from": a.Status.String(), "to": b.Status.String()}))
	}

	slices.SortStableFunc(advs, func(a, b Advisory) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		if c := strings.Compare(string(a.Event), string(b.Event)); c != 0 {
			return c
		}
		return strings.Compare(a.Transport, b.Transport)
	})
	return slices.CompactFunc(advs, func(a, b Advisory) bool { return a.ID == b.ID })
}

// beginEnd emits the begin advisory for a contributing window and, when
// the window closes before the mission does, the matching end advisory.
func beginEnd(legID string, missionEnd time.Time, src transport.ReasonSpan, band transport.Band,
	beginEv, endEv EventType, sev Severity, what string) []Advisory {
	advs := []Advisory{
		makeAdvisory(legID, src.Span.Start(), beginEv, band.String(), sev, what+" begins", nil),
	}
	if src.Span.End().Before(missionEnd) {
		advs = append(advs,
			makeAdvisory(legID, src.Span.End(), endEv, band.String(), SeverityInfo, what+" ends", nil))
	}
	return advs
}

// azimuthOnly reports whether, at t, the azimuth conflict is the only
// reason X is impaired while both other transports are available; such
// conflicts rate warning rather than critical.
func azimuthOnly(set transport.SeriesSet, t time.Time) bool {
	x := set.X.At(t)
	return len(x.Reasons) == 1 && x.Reasons[0] == transport.ReasonAzimuthConflict &&
		!set.Ka.At(t).State.Bad() && !set.Ku.At(t).State.Bad()
}
