// Package sampling selects the pixels of an interferogram that are usable
// for fitting a correction model, and measures the along-track extent
// holding valid data.
package sampling

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/hrishikeshrai/PyGdalSAR/internal/models"
)

// ErrEmptySample is returned when no pixel survives the masking criteria
var ErrEmptySample = errors.New("sampling: no pixel left for estimation")

// BlockRows is the number of rows tested at once by UsableExtent
const BlockRows = 10

// Band is a closed range of rows [Begin, End] excluded from fitting
type Band struct {
	Begin int
	End   int
}

// Contains reports whether row lies inside the band
func (b *Band) Contains(row int) bool {
	return b != nil && row >= b.Begin && row <= b.End
}

// Region bounds the estimation zone. Rows and columns must lie strictly
// inside (RowBegin, RowEnd) and (ColBegin, ColEnd).
type Region struct {
	RowBegin, RowEnd int
	ColBegin, ColEnd int
}

// FullRegion returns the region covering a width x height grid
func FullRegion(width, height int) Region {
	return Region{RowBegin: 0, RowEnd: height, ColBegin: 0, ColEnd: width}
}

// Params holds the scalar masking criteria
type Params struct {
	// Percentile clips phase outliers to [100-Percentile, Percentile]
	Percentile float64

	// Region is the rectangular estimation zone
	Region Region

	// Exclude is an optional band of rows never used for fitting
	Exclude *Band

	// UseQuality enables the quality threshold and quality weighting
	UseQuality bool

	// QualityThreshold keeps samples whose quality is strictly above it
	QualityThreshold float64

	// MaskThreshold keeps samples whose mask value is strictly above it
	MaskThreshold float64
}

// DefaultParams returns the default criteria for a width x height grid
func DefaultParams(width, height int) Params {
	return Params{
		Percentile:       98,
		Region:           FullRegion(width, height),
		QualityThreshold: 0,
		MaskThreshold:    -1,
	}
}

// Input bundles the grids read by Select. Elevation, Quality and Mask may be nil.
type Input struct {
	Phase     *models.Grid
	Elevation *models.Grid
	Quality   *models.Grid
	Mask      *models.Grid
}

// Sample is the set of pixels retained for one fit.
type Sample struct {
	// Index holds linear pixel indices, in increasing order
	Index []int

	// Rows and Cols hold the azimuth/range coordinates of each sample
	Rows []int
	Cols []int

	// Phase, Elevation and Sigma hold the per-sample values. Elevation is
	// nil when no elevation grid was given.
	Phase     []float64
	Elevation []float64
	Sigma     []float64
}

// Len returns the number of samples
func (s *Sample) Len() int {
	return len(s.Index)
}

// ElevationBounds returns the 1st and 99th percentiles of the elevation
// grid, ignoring non-finite values.
func ElevationBounds(elev *models.Grid) (lo, hi float64) {
	values := finiteSorted(elev.Data, false)
	if len(values) == 0 {
		return math.Inf(-1), math.Inf(1)
	}
	return percentile(values, 1), percentile(values, 99)
}

// PhaseBounds returns the [100-perc, perc] percentiles of the non-zero,
// finite phase values.
func PhaseBounds(phase *models.Grid, perc float64) (lo, hi float64, ok bool) {
	values := finiteSorted(phase.Data, true)
	if len(values) == 0 {
		return 0, 0, false
	}
	a, b := percentile(values, 100-perc), percentile(values, perc)
	if a > b {
		a, b = b, a
	}
	return a, b, true
}

// Select returns the samples satisfying all masking criteria.
func Select(in Input, p Params) (*Sample, error) {
	phase := in.Phase
	if phase == nil || phase.Len() == 0 {
		return nil, fmt.Errorf("%w: no phase data", ErrEmptySample)
	}
	for _, g := range []*models.Grid{in.Elevation, in.Quality, in.Mask} {
		if g != nil && !g.SameShape(phase) {
			return nil, fmt.Errorf("sampling: grid %dx%d does not match phase %dx%d",
				g.Width, g.Height, phase.Width, phase.Height)
		}
	}

	elevLo, elevHi := math.Inf(-1), math.Inf(1)
	if in.Elevation != nil {
		elevLo, elevHi = ElevationBounds(in.Elevation)
	}
	phaseLo, phaseHi, ok := PhaseBounds(phase, p.Percentile)
	if !ok {
		return nil, fmt.Errorf("%w: phase grid holds no valid sample", ErrEmptySample)
	}
	useQuality := p.UseQuality && in.Quality != nil

	s := &Sample{}
	w := phase.Width
	for r := max(p.Region.RowBegin+1, 0); r < min(p.Region.RowEnd, phase.Height); r++ {
		if p.Exclude.Contains(r) {
			continue
		}
		for c := max(p.Region.ColBegin+1, 0); c < min(p.Region.ColEnd, w); c++ {
			i := r*w + c
			v := phase.Data[i]
			if models.IsNoData(v) || v < phaseLo || v > phaseHi {
				continue
			}
			z := 0.0
			if in.Elevation != nil {
				z = in.Elevation.Data[i]
				if !(z >= elevLo && z <= elevHi) {
					continue
				}
			}
			sigma := 1.0
			if useQuality {
				q := in.Quality.Data[i]
				if !validQuality(q) || !(q > p.QualityThreshold) {
					continue
				}
				sigma = 1 / q
			}
			if in.Mask != nil && !(in.Mask.Data[i] > p.MaskThreshold) {
				continue
			}

			s.Index = append(s.Index, i)
			s.Rows = append(s.Rows, r)
			s.Cols = append(s.Cols, c)
			s.Phase = append(s.Phase, v)
			s.Sigma = append(s.Sigma, sigma)
			if in.Elevation != nil {
				s.Elevation = append(s.Elevation, z)
			}
		}
	}

	if s.Len() == 0 {
		return nil, ErrEmptySample
	}
	return s, nil
}

// UsableExtent scans the phase grid from rowBegin in blocks of BlockRows
// and returns rowEnd minus the first row of the first block holding any
// valid (non-zero, finite) sample.
func UsableExtent(phase *models.Grid, rowBegin, rowEnd int) int {
	rowBegin = max(rowBegin, 0)
	rowEnd = min(rowEnd, phase.Height)
	first := rowBegin
	for block := rowBegin; block < rowEnd; block += BlockRows {
		if blockHasData(phase, block, min(block+BlockRows, rowEnd)) {
			first = block
			break
		}
		first = min(block+BlockRows, rowEnd)
	}
	return rowEnd - first
}

func blockHasData(phase *models.Grid, r0, r1 int) bool {
	for _, v := range phase.Data[r0*phase.Width : r1*phase.Width] {
		if !models.IsNoData(v) {
			return true
		}
	}
	return false
}

// validQuality treats 0 and the 9999 fill value as missing quality
func validQuality(q float64) bool {
	return models.IsFinite(q) && q != 0 && q != 9999
}

// finiteSorted returns the finite values of data in ascending order,
// optionally skipping zeros.
func finiteSorted(data []float64, skipZero bool) []float64 {
	out := make([]float64, 0, len(data))
	for _, v := range data {
		if !models.IsFinite(v) || (skipZero && v == 0) {
			continue
		}
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

// percentile returns the p-th percentile (0-100) of sorted values,
// interpolating linearly at position (n-1)*p/100
func percentile(sorted []float64, p float64) float64 {
	q := math.Max(0, math.Min(1, p/100))
	h := float64(len(sorted)-1) * q
	lo, hi := int(math.Floor(h)), int(math.Ceil(h))
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}
