// coverage/errors.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package coverage

import (
	"errors"
)

var (
	ErrDegeneratePolygon = errors.New("Footprint ring has fewer than three distinct vertices")
	ErrInvalidVertex     = errors.New("Footprint vertex has invalid coordinates")
)
