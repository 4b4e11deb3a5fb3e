// Package model defines the polynomial correction models: the canonical
// 13-term coefficient basis, the Model Spec, the selector that degrades a
// requested model on short interferograms, and the registry of design
// matrix variants.
package model

import "fmt"

// NumCoefficients is the size of the canonical coefficient basis
const NumCoefficients = 13

// Slot identifies one canonical basis term.
type Slot int

// Canonical slots, in the order persisted in the coefficient table.
const (
	RangeCubed Slot = iota
	RangeSquared
	Range
	AzimuthCubed
	AzimuthSquared
	Azimuth
	RangeAzimuthSquared
	RangeAzimuth
	Constant
	Elevation
	ElevationSquared
	AzimuthElevation
	AzimuthElevationSquared
)

var slotNames = [NumCoefficients]string{
	"rg**3", "rg**2", "rg",
	"az**3", "az**2", "az",
	"(rg*az)**2", "rg*az",
	"cst",
	"z", "z**2",
	"az*z", "(az*z)**2",
}

// String returns the short term label used in table headers and logs
func (s Slot) String() string {
	if s < 0 || int(s) >= NumCoefficients {
		return fmt.Sprintf("slot(%d)", int(s))
	}
	return slotNames[s]
}

// Basis evaluates the term at range column rg, azimuth row az and
// elevation z.
func (s Slot) Basis(rg, az, z float64) float64 {
	switch s {
	case RangeCubed:
		return rg * rg * rg
	case RangeSquared:
		return rg * rg
	case Range:
		return rg
	case AzimuthCubed:
		return az * az * az
	case AzimuthSquared:
		return az * az
	case Azimuth:
		return az
	case RangeAzimuthSquared:
		return (rg * az) * (rg * az)
	case RangeAzimuth:
		return rg * az
	case Constant:
		return 1
	case Elevation:
		return z
	case ElevationSquared:
		return z * z
	case AzimuthElevation:
		return az * z
	case AzimuthElevationSquared:
		return (az * z) * (az * z)
	default:
		panic("illegal coefficient slot")
	}
}

// Coefficients is the canonical coefficient vector of one fit. Terms not
// used by the fitted model stay at zero.
type Coefficients [NumCoefficients]float64

// Evaluate returns the correction value at pixel (row, col) with elevation z
func (c *Coefficients) Evaluate(row, col int, z float64) float64 {
	rg, az := float64(col), float64(row)
	var v float64
	for s := Slot(0); int(s) < NumCoefficients; s++ {
		if c[s] == 0 {
			continue
		}
		v += c[s] * s.Basis(rg, az, z)
	}
	return v
}

// Sub returns c - o term by term
func (c Coefficients) Sub(o Coefficients) Coefficients {
	var out Coefficients
	for i := range c {
		out[i] = c[i] - o[i]
	}
	return out
}

// Header returns the term labels in slot order
func Header() []string {
	out := make([]string, NumCoefficients)
	copy(out, slotNames[:])
	return out
}
