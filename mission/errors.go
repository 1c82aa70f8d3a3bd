// mission/errors.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package mission

import "errors"

var (
	ErrComputationFailed      = errors.New("Timeline computation failed")
	ErrConfigVersionConflict  = errors.New("Leg config modified concurrently")
	ErrLegNotActive           = errors.New("Mission leg not active")
	ErrNonMonotonicTimestamps = errors.New("Non-monotonic position timestamps")
	ErrRecomputeCancelled     = errors.New("Timeline recomputation cancelled")
)

// Warning is a non-fatal condition reported alongside a successful
// operation: a dropped AAR window, an oversized time adjustment. Warnings
// never abort the operation that produced them.
type Warning string
