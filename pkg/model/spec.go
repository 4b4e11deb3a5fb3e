package model

import (
	"fmt"
)

// MaxFlatten is the highest supported flattening order
const MaxFlatten = 6

// ElevationMode selects the phase/elevation coupling terms of a model.
type ElevationMode int

const (
	// ElevationNone disables elevation terms (no elevation grid)
	ElevationNone ElevationMode = iota

	// ElevationLinear adds e*z (ivar=0, nfit=0)
	ElevationLinear

	// ElevationQuadratic adds e*z + f*z**2 (ivar=0, nfit=1)
	ElevationQuadratic

	// ElevationAzimuthLinear adds e*z + f*az*z (ivar=1, nfit=0)
	ElevationAzimuthLinear

	// ElevationAzimuthQuadratic adds e*z + f*az*z + g*(az*z)**2 (ivar=1, nfit=1)
	ElevationAzimuthQuadratic
)

// String returns a readable label of the mode
func (m ElevationMode) String() string {
	switch m {
	case ElevationNone:
		return "none"
	case ElevationLinear:
		return "linear"
	case ElevationQuadratic:
		return "quadratic"
	case ElevationAzimuthLinear:
		return "azimuth-linear"
	case ElevationAzimuthQuadratic:
		return "azimuth-quadratic"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// AzimuthCoupled reports whether the mode multiplies elevation by azimuth
func (m ElevationMode) AzimuthCoupled() bool {
	return m == ElevationAzimuthLinear || m == ElevationAzimuthQuadratic
}

// ElevationModeFor maps the ivar/nfit switches onto an elevation mode.
// Without an elevation grid every combination collapses to ElevationNone.
func ElevationModeFor(hasElevation bool, ivar, nfit int) ElevationMode {
	if !hasElevation {
		return ElevationNone
	}
	switch {
	case ivar == 0 && nfit == 0:
		return ElevationLinear
	case ivar == 0 && nfit == 1:
		return ElevationQuadratic
	case ivar == 1 && nfit == 0:
		return ElevationAzimuthLinear
	default:
		return ElevationAzimuthQuadratic
	}
}

// Spec is a fully determined model: a flattening form and an elevation
// coupling mode.
//
// Flattening forms:
//
//	0: cst                  (reference frame)
//	1: a*rg + cst           (range ramp)
//	2: a*az + cst           (azimuth ramp)
//	3: a*rg + b*az + cst
//	4: a*rg + b*az + c*rg*az + cst
//	5: a*rg**2 + b*rg + cst
//	6: a*az**2 + b*az + cst
type Spec struct {
	Flatten   int
	Elevation ElevationMode
}

// String returns a compact label such as "flat=3/azimuth-linear"
func (s Spec) String() string {
	return fmt.Sprintf("flat=%d/%s", s.Flatten, s.Elevation)
}

// Validate checks that the spec is one of the registered variants
func (s Spec) Validate() error {
	if s.Flatten < 0 || s.Flatten > MaxFlatten {
		return fmt.Errorf("flatten order %d out of range [0,%d]", s.Flatten, MaxFlatten)
	}
	if s.Elevation < ElevationNone || s.Elevation > ElevationAzimuthQuadratic {
		return fmt.Errorf("unknown elevation mode %d", int(s.Elevation))
	}
	return nil
}

// Extent describes the along-track geometry the selector needs.
type Extent struct {
	// Usable is the number of rows holding valid data (iend - first valid row)
	Usable float64

	// Requested is iend - ibeg
	Requested float64

	// Width is the number of columns of the image
	Width float64
}

// Select degrades the requested model when the interferogram is too short
// or too narrow to constrain azimuth-dependent terms. Rules are evaluated
// in order; the returned notes describe every degradation applied.
func Select(req Spec, ext Extent) (Spec, []string) {
	out := req
	var notes []string

	if req.Flatten > 5 && ext.Usable < 0.6*ext.Requested {
		out.Flatten = 5
		notes = append(notes, "interferogram too short in comparison to reference, set flat to 5")
	} else if req.Flatten > 5 && ext.Usable < 0.9*ext.Width {
		out.Flatten = 5
		notes = append(notes, "interferogram length inferior to width, set flat to 5")
	}

	if req.Elevation.AzimuthCoupled() && ext.Usable < 0.6*ext.Requested {
		out.Elevation = ElevationLinear
		notes = append(notes, "interferogram too short in comparison to reference, set ivar and nfit to 0")
	}

	return out, notes
}
