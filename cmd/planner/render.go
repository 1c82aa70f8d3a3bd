// cmd/planner/render.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bcl1713/starlink-dashboard-sub010/timeline"
	"github.com/bcl1713/starlink-dashboard-sub010/util"
)

// renderTimeline prints the snapshot as a segments table followed by the
// advisory log, all times UTC.
func renderTimeline(w io.Writer, snap *timeline.Snapshot) {
	fmt.Fprintf(w, "leg %s  route %s v%d  config v%d\n",
		snap.LegID, snap.RouteID, snap.RouteVersion, snap.ConfigVersion)
	fmt.Fprintf(w, "mission %s .. %s (%s)\n\n",
		snap.MissionStart.UTC().Format(time.DateTime),
		snap.MissionEnd.UTC().Format(time.DateTime),
		snap.MissionEnd.Sub(snap.MissionStart))

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tEND\tDUR\tX\tKA\tKU\tSTATUS\tREASONS")
	for _, seg := range snap.Segments {
		reasons := util.Select(len(seg.Reasons) > 0, strings.Join(seg.Reasons, ","), "-")
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			seg.Start.UTC().Format("15:04:05"), seg.End.UTC().Format("15:04:05"),
			seg.End.Sub(seg.Start), seg.XState, seg.KaState, seg.KuState,
			seg.Status, reasons)
	}
	tw.Flush()

	totals := snap.SegmentTotals()
	fmt.Fprintf(w, "\ntotals: %s nominal, %s degraded, %s critical\n",
		totals[timeline.Nominal], totals[timeline.Degraded], totals[timeline.Critical])

	if len(snap.Advisories) == 0 {
		return
	}
	fmt.Fprintf(w, "\nadvisories:\n")
	for _, a := range snap.Advisories {
		line := fmt.Sprintf("%s %-8s %-22s %s",
			a.Timestamp.UTC().Format("15:04:05"), a.Severity, a.Event, a.Message)
		wrapped, _ := util.WrapText(line, 100, 11, false, false)
		fmt.Fprintln(w, wrapped)
	}
}
