// transport/errors.go
// Copyright(c) 2025-2026 starlink-dashboard contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package transport

import (
	"errors"
)

var (
	ErrInvalidAzimuthRange = errors.New("Azimuth range outside [0,360)")
	ErrInvalidWindow       = errors.New("Window end precedes its start")
	ErrMissionSpanEmpty    = errors.New("Mission span is empty")
	ErrNoAzimuthProvider   = errors.New("Azimuth dead zone configured without an ephemeris")
	ErrNoInitialXSatellite = errors.New("No initial X satellite configured")
	ErrUnknownSatellite    = errors.New("Unknown satellite id")
)
