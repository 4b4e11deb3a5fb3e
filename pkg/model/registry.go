package model

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/hrishikeshrai/PyGdalSAR/internal/models"
)

// flattenTerms lists the ramp terms of each flattening form
var flattenTerms = [MaxFlatten + 1][]Slot{
	0: {Constant},
	1: {Range, Constant},
	2: {Azimuth, Constant},
	3: {Range, Azimuth, Constant},
	4: {Range, Azimuth, RangeAzimuth, Constant},
	5: {RangeSquared, Range, Constant},
	6: {AzimuthSquared, Azimuth, Constant},
}

// elevationTerms lists the phase/elevation terms of each coupling mode
var elevationTerms = map[ElevationMode][]Slot{
	ElevationNone:             nil,
	ElevationLinear:           {Elevation},
	ElevationQuadratic:        {Elevation, ElevationSquared},
	ElevationAzimuthLinear:    {Elevation, AzimuthElevation},
	ElevationAzimuthQuadratic: {Elevation, AzimuthElevation, AzimuthElevationSquared},
}

// registry maps every supported Spec to its variant
var registry = buildRegistry()

func buildRegistry() map[Spec]Variant {
	reg := make(map[Spec]Variant, (MaxFlatten+1)*len(elevationTerms))
	for flat, ramp := range flattenTerms {
		for mode, elev := range elevationTerms {
			terms := make([]Slot, 0, len(ramp)+len(elev))
			terms = append(terms, ramp...)
			terms = append(terms, elev...)
			spec := Spec{Flatten: flat, Elevation: mode}
			reg[spec] = Variant{Spec: spec, Terms: terms}
		}
	}
	return reg
}

// Variant is one registered model: the ordered design matrix columns, each
// tied to a fixed canonical slot.
type Variant struct {
	Spec  Spec
	Terms []Slot
}

// Lookup returns the variant registered for spec
func Lookup(spec Spec) (Variant, error) {
	if err := spec.Validate(); err != nil {
		return Variant{}, err
	}
	v, ok := registry[spec]
	if !ok {
		return Variant{}, fmt.Errorf("no model registered for %s", spec)
	}
	return v, nil
}

// Variants returns every registered variant
func Variants() []Variant {
	out := make([]Variant, 0, len(registry))
	for flat := 0; flat <= MaxFlatten; flat++ {
		for mode := ElevationNone; mode <= ElevationAzimuthQuadratic; mode++ {
			out = append(out, registry[Spec{Flatten: flat, Elevation: mode}])
		}
	}
	return out
}

// NumTerms returns the number of free parameters of the variant
func (v Variant) NumTerms() int {
	return len(v.Terms)
}

// row fills dst with the regressors of one pixel
func (v Variant) row(dst []float64, row, col int, z float64) {
	rg, az := float64(col), float64(row)
	for j, s := range v.Terms {
		dst[j] = s.Basis(rg, az, z)
	}
}

// SampleMatrix builds the regressor matrix over a sample set. rows and cols
// are pixel coordinates; elev holds the elevation of each sample and may be
// nil, in which case elevation terms are zero-filled.
func (v Variant) SampleMatrix(rows, cols []int, elev []float64) *mat.Dense {
	n := len(rows)
	k := len(v.Terms)
	data := make([]float64, n*k)
	for i := 0; i < n; i++ {
		z := 0.0
		if elev != nil {
			z = elev[i]
		}
		v.row(data[i*k:(i+1)*k], rows[i], cols[i], z)
	}
	return mat.NewDense(n, k, data)
}

// FullMatrix builds the regressor matrix over every pixel of a
// height x width grid, in row-major pixel order. elev may be nil.
func (v Variant) FullMatrix(height, width int, elev *models.Grid) *mat.Dense {
	n := height * width
	k := len(v.Terms)
	data := make([]float64, n*k)
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			i := r*width + c
			z := 0.0
			if elev != nil {
				z = elev.Data[i]
			}
			v.row(data[i*k:(i+1)*k], r, c, z)
		}
	}
	return mat.NewDense(n, k, data)
}

// Predict evaluates the fitted parameters over every pixel of a
// height x width grid, in row-major pixel order. elev may be nil.
func (v Variant) Predict(params []float64, height, width int, elev *models.Grid) []float64 {
	buf := make([]float64, len(v.Terms))
	out := make([]float64, height*width)
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			i := r*width + c
			z := 0.0
			if elev != nil {
				z = elev.Data[i]
			}
			v.row(buf, r, c, z)
			out[i] = floats.Dot(buf, params)
		}
	}
	return out
}

// Canonical scatters fitted parameters into the 13-slot basis.
// Each parameter lands in its own slot.
func (v Variant) Canonical(params []float64) (Coefficients, error) {
	var out Coefficients
	if len(params) != len(v.Terms) {
		return out, fmt.Errorf("model %s expects %d parameters, got %d", v.Spec, len(v.Terms), len(params))
	}
	for j, s := range v.Terms {
		out[s] = params[j]
	}
	return out, nil
}

// Describe renders the fitted model as "a term + b term ..." for logs
func (v Variant) Describe(params []float64) string {
	s := ""
	for j, slot := range v.Terms {
		if j > 0 {
			s += " + "
		}
		if j < len(params) {
			s += fmt.Sprintf("%g %s", params[j], slot)
		}
	}
	return s
}
