// cmd/planner/main.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Command planner imports routes and leg configs into a mission store,
// computes and prints communication timelines, and flies legs with the
// simulated position source, optionally serving Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bcl1713/starlink-dashboard-sub010/coverage"
	"github.com/bcl1713/starlink-dashboard-sub010/flight"
	"github.com/bcl1713/starlink-dashboard-sub010/log"
	"github.com/bcl1713/starlink-dashboard-sub010/metrics"
	"github.com/bcl1713/starlink-dashboard-sub010/mission"
	"github.com/bcl1713/starlink-dashboard-sub010/route"
	"github.com/bcl1713/starlink-dashboard-sub010/storage"
	"github.com/bcl1713/starlink-dashboard-sub010/transport"
	"github.com/bcl1713/starlink-dashboard-sub010/util"

	"github.com/goforj/godump"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cpuprofile     = flag.String("cpuprofile", "", "write CPU profile to file")
	memprofile     = flag.String("memprofile", "", "write memory profile to this file")
	logLevel       = flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir         = flag.String("logdir", "", "log file directory")
	dataDir        = flag.String("datadir", "planner-data", "mission store directory")
	configFile     = flag.String("config", "", "JSON file with planner tuning overrides")
	ephemerisFile  = flag.String("ephemeris", "", "JSON file mapping X satellite ids to longitude slots")
	footprintsFile = flag.String("footprints", "", "JSON file with Ka coverage footprints")
	poiFile        = flag.String("pois", "", "JSON file with points of interest")
	routeFile      = flag.String("route", "", "route JSON file to import into the store")
	legFile        = flag.String("leg", "", "leg config JSON file to import into the store")
	legID          = flag.String("legid", "", "mission leg to operate on")
	showTimeline   = flag.Bool("timeline", false, "compute and print the leg's timeline")
	saveTimeline   = flag.Bool("save", false, "persist the computed timeline to the store")
	dumpState      = flag.Bool("dump", false, "dump computed values for debugging")
	runMission     = flag.Bool("run", false, "fly the leg with the simulated position source")
	departNow      = flag.Bool("departnow", true, "move the departure time to now before a simulated run")
	cruiseSpeed    = flag.Float64("cruise", 420, "cruise speed in knots for untimed routes")
	listenAddr     = flag.String("listen", "", "serve Prometheus metrics on this address (e.g. :9100)")
	statusPeriod   = flag.Duration("status", 15*time.Second, "how often a simulated run prints a status line")
)

func main() {
	flag.Parse()

	lg := log.New(true, *logLevel, *logDir)

	profiler, err := util.StartProfiler(*cpuprofile, *memprofile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer profiler.Stop()

	if err := run(lg); err != nil {
		lg.Errorf("%v", err)
		fmt.Fprintf(os.Stderr, "planner: %v\n", err)
		profiler.Stop()
		os.Exit(1)
	}
}

func run(lg *log.Logger) error {
	cfg, err := loadPlannerConfig(*configFile)
	if err != nil {
		return err
	}
	store, err := storage.NewFileStore(*dataDir, lg)
	if err != nil {
		return err
	}
	eph, err := loadEphemeris(*ephemerisFile)
	if err != nil {
		return err
	}
	// A nil provider skips azimuth checks; an empty one would fail them all.
	var azimuth transport.AzimuthProvider
	if len(eph.Slots) > 0 {
		azimuth = eph
	}

	if *routeFile != "" {
		if err := importRoute(store, *routeFile, lg); err != nil {
			return err
		}
	}
	if *legFile != "" {
		if err := importLeg(store, *legFile, azimuth, lg); err != nil {
			return err
		}
	}
	if !*showTimeline && !*runMission {
		if *routeFile == "" && *legFile == "" {
			flag.Usage()
		}
		return nil
	}
	if *legID == "" {
		return errors.New("-legid is required with -timeline or -run")
	}

	footprints, err := loadFootprints(*footprintsFile)
	if err != nil {
		return err
	}
	pois, err := loadPOIs(*poiFile)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	var sink metrics.Sink
	if *listenAddr != "" {
		sink = metrics.NewPromSink(reg, lg)
	}

	coord, err := mission.NewCoordinator(mission.CoordinatorConfig{
		Config:     cfg,
		Store:      store,
		Source:     mission.NewSimulatedSource(nil, *cruiseSpeed),
		Sink:       sink,
		Azimuth:    azimuth,
		Footprints: footprints,
		POIs:       pois,
	}, lg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *showTimeline {
		snap, warnings, err := coord.PreviewTimeline(ctx, mission.PreviewRequest{LegID: *legID})
		if err != nil {
			return err
		}
		for _, w := range warnings {
			fmt.Printf("warning: %s\n", w)
		}
		renderTimeline(os.Stdout, snap)
		if *dumpState {
			godump.Dump(snap)
		}
		if *saveTimeline {
			if err := store.SaveTimeline(snap); err != nil {
				return err
			}
			fmt.Printf("saved timeline for %s\n", *legID)
		}
	}

	if *runMission {
		return runSimulated(ctx, coord, reg, lg)
	}
	return nil
}

// loadPlannerConfig overlays a JSON tuning file, when given, on the
// defaults, so files only need the fields they change.
func loadPlannerConfig(path string) (mission.Config, error) {
	cfg := mission.MakeDefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := util.UnmarshalJSON(f, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %v", path, err)
	}
	return cfg, nil
}

// readJSONFile decodes path into out, warning about duplicate keys, which
// JSON decoding otherwise silently resolves to the last value.
func readJSONFile[T any](path string, out *T, lg *log.Logger) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	for _, dup := range util.FindDuplicateJSONKeys(b) {
		lg.Warnf("%s: duplicate key %q at %s", path, dup.Key, dup.Path)
	}
	if err := util.UnmarshalJSONBytes(b, out); err != nil {
		return fmt.Errorf("%s: %v", path, err)
	}
	return nil
}

func loadEphemeris(path string) (transport.GeostationaryEphemeris, error) {
	var eph transport.GeostationaryEphemeris
	if path == "" {
		return eph, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return eph, err
	}
	if err := util.UnmarshalJSONBytes(b, &eph.Slots); err != nil {
		return eph, fmt.Errorf("%s: %v", path, err)
	}
	return eph, nil
}

func loadFootprints(path string) (coverage.FootprintMap, error) {
	var fm coverage.FootprintMap
	if path == "" {
		return fm, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return fm, err
	}
	if err := util.UnmarshalJSONBytes(b, &fm); err != nil {
		return fm, fmt.Errorf("%s: %v", path, err)
	}
	if err := fm.Validate(); err != nil {
		return fm, fmt.Errorf("%s: %w", path, err)
	}
	return fm, nil
}

func loadPOIs(path string) ([]flight.POI, error) {
	if path == "" {
		return nil, nil
	}
	var pois []flight.POI
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := util.UnmarshalJSONBytes(b, &pois); err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return pois, nil
}

func importRoute(store storage.Store, path string, lg *log.Logger) error {
	var in route.Route
	if err := readJSONFile(path, &in, lg); err != nil {
		return err
	}
	r, err := route.NewRoute(in.ID, max(1, in.Version), in.Points)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := store.SaveRoute(r); err != nil {
		return err
	}
	tag := "untimed"
	if tp := r.Timing(); tp.HasTimingData {
		tag = fmt.Sprintf("%s .. %s", tp.DepartureTime.Format(time.DateTime), tp.ArrivalTime.Format(time.DateTime))
	}
	fmt.Printf("imported route %s v%d: %d points, %s\n", r.ID, r.Version, len(r.Points), tag)
	return nil
}

func importLeg(store storage.Store, path string, az transport.AzimuthProvider, lg *log.Logger) error {
	var cfg transport.LegConfig
	if err := readJSONFile(path, &cfg, lg); err != nil {
		return err
	}
	if cfg.LegID == "" {
		cfg.LegID = *legID
	}
	if cfg.LegID == "" {
		return fmt.Errorf("%s: no leg_id in the file and no -legid given", path)
	}
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if err := cfg.Validate(az); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := store.SaveLegConfig(&cfg); err != nil {
		return err
	}
	fmt.Printf("imported leg %s v%d on route %s\n", cfg.LegID, cfg.Version, cfg.RouteID)
	return nil
}

func runSimulated(ctx context.Context, coord *mission.Coordinator, reg *prometheus.Registry, lg *log.Logger) error {
	if *departNow {
		now := time.Now().UTC()
		warnings, err := coord.SetAdjustedDeparture(ctx, *legID, &now)
		for _, w := range warnings {
			fmt.Printf("warning: %s\n", w)
		}
		if errors.Is(err, route.ErrUntimedRoute) {
			lg.Warnf("leg %s: untimed route, flying at -cruise speed without a timeline", *legID)
		} else if err != nil {
			return err
		}
	}
	if err := coord.ActivateLeg(*legID); err != nil {
		return err
	}

	if *listenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: *listenAddr, Handler: mux}
		go func() {
			defer lg.CatchAndLogCrash()
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				lg.Errorf("metrics listener: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		fmt.Printf("serving metrics on %s/metrics\n", *listenAddr)
	}

	// Print a status line every so often and stop once the leg arrives.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer lg.CatchAndLogCrash()
		ticker := time.NewTicker(*statusPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				snap := coord.Snapshot()
				fmt.Println(statusLine(snap))
				if snap.Phase == flight.PostArrival {
					cancel()
				}
			}
		}
	}()

	fmt.Printf("flying leg %s; ctrl-c to stop\n", *legID)
	err := coord.Run(runCtx)

	final := coord.Snapshot()
	fmt.Println("final: " + statusLine(final))
	if *dumpState {
		godump.Dump(final)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func statusLine(snap *mission.StateSnapshot) string {
	s := fmt.Sprintf("%s %s (%.4f, %.4f) %.0f kn hdg %03.0f",
		snap.SampleTime.UTC().Format("15:04:05"), snap.Phase,
		snap.Position.Latitude(), snap.Position.Longitude(),
		snap.SpeedKn, snap.HeadingDeg)
	if tl := snap.Timeline; tl != nil {
		if seg := tl.At(snap.SampleTime); seg != nil {
			s += fmt.Sprintf(" | %s X=%s Ka=%s Ku=%s", seg.Status, seg.XState, seg.KaState, seg.KuState)
		}
	}
	return s
}
