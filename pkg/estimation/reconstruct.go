package estimation

import (
	"fmt"
	"math"

	"github.com/hrishikeshrai/PyGdalSAR/internal/models"
	"github.com/hrishikeshrai/PyGdalSAR/pkg/model"
)

// Reconstruct evaluates the fitted variant over the full grid. It returns
// the correction surface and the RMS of (phase - correction) over every
// finite pixel of the grid.
func Reconstruct(v model.Variant, params []float64, phase, elev *models.Grid) (*models.Grid, float64, error) {
	if len(params) != v.NumTerms() {
		return nil, 0, fmt.Errorf("reconstruct %s: %d parameters for %d terms", v.Spec, len(params), v.NumTerms())
	}
	if elev != nil && !elev.SameShape(phase) {
		return nil, 0, fmt.Errorf("reconstruct %s: elevation grid does not match phase", v.Spec)
	}

	out := &models.Grid{
		Width:  phase.Width,
		Height: phase.Height,
		Data:   v.Predict(params, phase.Height, phase.Width, elev),
	}
	return out, ResidualRMS(phase, out), nil
}

// ResidualRMS returns sqrt(mean((phase - corr)^2)) over finite residuals.
// NaN is returned when no residual is finite.
func ResidualRMS(phase, corr *models.Grid) float64 {
	var sum float64
	var n int
	for i, v := range phase.Data {
		r := v - corr.Data[i]
		if !models.IsFinite(r) {
			continue
		}
		sum += r * r
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return math.Sqrt(sum / float64(n))
}
