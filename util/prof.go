// util/prof.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
)

// Profiler collects pprof CPU and heap profiles for a planner run. The
// heap profile is written at Stop time so it reflects the run's final
// live set. Stop is safe to call more than once.
type Profiler struct {
	cpu     *os.File
	memPath string
}

// StartProfiler begins CPU profiling and/or arranges for a heap profile
// when Stop is called. Empty paths disable the respective profile.
func StartProfiler(cpuPath, memPath string) (*Profiler, error) {
	p := &Profiler{memPath: memPath}
	if cpuPath != "" {
		f, err := os.Create(cpuPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to start CPU profile: %w", err)
		}
		p.cpu = f
	}
	return p, nil
}

func (p *Profiler) Stop() {
	if p.cpu != nil {
		pprof.StopCPUProfile()
		p.cpu.Close()
		p.cpu = nil
	}
	if p.memPath != "" {
		f, err := os.Create(p.memPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", p.memPath, err)
			p.memPath = ""
			return
		}
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "%s: failed to write heap profile: %v\n", p.memPath, err)
		}
		f.Close()
		p.memPath = ""
	}
}
