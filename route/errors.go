// route/errors.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package route

import (
	"errors"
)

var (
	ErrEmptyRoute         = errors.New("Route has fewer than two points")
	ErrInvalidCoordinates = errors.New("Invalid coordinates")
	ErrNonIncreasingSeq   = errors.New("Route point seq values must be strictly increasing")
	ErrOutOfRangeTime     = errors.New("Time outside the route's timing range")
	ErrUnknownWaypoint    = errors.New("Unknown waypoint name")
	ErrUntimedRoute       = errors.New("Route has no timing data")
)
