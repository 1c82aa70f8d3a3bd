// timeline/compute.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package timeline

import (
	"context"
	"errors"
	"time"

	"github.com/bcl1713/starlink-dashboard-sub010/log"
	"github.com/bcl1713/starlink-dashboard-sub010/transport"
	"github.com/bcl1713/starlink-dashboard-sub010/util"
	"golang.org/x/sync/errgroup"
)

// Request carries everything one timeline computation needs. The
// builder's projector must already reflect the leg's adjusted departure
// time; Span is the mission span the timeline covers.
type Request struct {
	LegID   string
	Builder *transport.Builder
	Config  *transport.LegConfig
	Span    util.TimeInterval
	Lg      *log.Logger
}

// Compute builds the three transport series in parallel, merges them into
// segments, and derives advisories. A builder failure that is not a
// cancellation marks its transport offline for the whole span with reason
// evaluator_error instead of failing the computation; keeping or evicting
// a previous snapshot is the caller's concern.
func Compute(ctx context.Context, req Request) (*Snapshot, error) {
	if !req.Span.End().After(req.Span.Start()) {
		return nil, transport.ErrMissionSpanEmpty
	}

	var set transport.SeriesSet
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := req.Builder.BuildX(gctx, req.Config, req.Span)
		set.X, err = orOffline(transport.BandX, s, err, req)
		return err
	})
	g.Go(func() error {
		s, err := req.Builder.BuildKa(gctx, req.Config, req.Span)
		set.Ka, err = orOffline(transport.BandKa, s, err, req)
		return err
	})
	g.Go(func() error {
		s, err := req.Builder.BuildKu(gctx, req.Config, req.Span)
		set.Ku, err = orOffline(transport.BandKu, s, err, req)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// A cancellation racing the builders must not publish a half-built
	// timeline.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	segs := Merge(set)
	snap := &Snapshot{
		LegID:         req.LegID,
		ConfigVersion: req.Config.Version,
		MissionStart:  req.Span.Start(),
		MissionEnd:    req.Span.End(),
		Segments:      segs,
		Advisories:    Advisories(req.LegID, set, segs),
		ComputedAt:    time.Now().UTC(),
	}
	if r := req.Builder.Projector.Route(); r != nil {
		snap.RouteID = r.ID
		snap.RouteVersion = r.Version
	}
	return snap, nil
}

// orOffline passes a built series through, propagates cancellations and
// unusable spans, and converts any other builder failure into a
// whole-span offline series.
func orOffline(band transport.Band, s *transport.Series, err error, req Request) (*transport.Series, error) {
	switch {
	case err == nil:
		return s, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, transport.ErrMissionSpanEmpty):
		return nil, err
	default:
		req.Lg.Warnf("%s builder failed, marking the transport offline: %v", band, err)
		return &transport.Series{
			Band: band,
			Span: req.Span,
			Intervals: []transport.Interval{{
				Span:    req.Span,
				State:   transport.Offline,
				Reasons: []string{transport.ReasonEvaluatorError},
			}},
		}, nil
	}
}
