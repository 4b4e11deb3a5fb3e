// Package correction applies fitted or reconciled correction models to
// raw interferograms, preserving the zero "no data" convention.
package correction

import (
	"fmt"

	"github.com/hrishikeshrai/PyGdalSAR/internal/models"
	"github.com/hrishikeshrai/PyGdalSAR/pkg/model"
)

// Result holds the corrected bands and both correction surfaces
type Result struct {
	// Phase is raw phase minus the applied correction
	Phase *models.Grid

	// Quality is the input quality band with no-data pixels zeroed
	Quality *models.Grid

	// Original is the surface of the per-pair coefficients
	Original *models.Grid

	// Applied is the surface that was subtracted: the reconciled one when
	// reconciled coefficients were given, else Original
	Applied *models.Grid
}

// Surface evaluates a canonical coefficient vector over a width x height
// grid. elev may be nil, in which case elevation is taken as zero.
func Surface(c model.Coefficients, width, height int, elev *models.Grid) *models.Grid {
	out := models.NewGrid(width, height)
	for r := 0; r < height; r++ {
		for col := 0; col < width; col++ {
			z := 0.0
			if elev != nil && r < elev.Height && col < elev.Width {
				z = elev.At(r, col)
			}
			out.Data[r*width+col] = c.Evaluate(r, col, z)
		}
	}
	return out
}

// Apply subtracts the correction from the interferogram. reconciled is
// nil when no network inversion ran. The inputs are not modified.
func Apply(ifg *models.Interferogram, elev *models.Grid, original model.Coefficients, reconciled *model.Coefficients) (*Result, error) {
	raw := ifg.Phase
	if raw == nil {
		return nil, fmt.Errorf("interferogram %s has no phase band", ifg.Pair)
	}
	if ifg.Quality != nil && !ifg.Quality.SameShape(raw) {
		return nil, fmt.Errorf("interferogram %s: quality band does not match phase", ifg.Pair)
	}

	res := &Result{
		Original: Surface(original, raw.Width, raw.Height, elev),
	}
	res.Applied = res.Original
	if reconciled != nil {
		res.Applied = Surface(*reconciled, raw.Width, raw.Height, elev)
	}

	res.Phase = models.NewGrid(raw.Width, raw.Height)
	if ifg.Quality != nil {
		res.Quality = ifg.Quality.Clone()
	} else {
		res.Quality = models.NewGridFilled(raw.Width, raw.Height, 1)
	}

	for i, v := range raw.Data {
		out := v - res.Applied.Data[i]
		if models.IsNoData(v) || !models.IsFinite(out) || !models.IsFinite(res.Quality.Data[i]) {
			res.Phase.Data[i] = 0
			res.Quality.Data[i] = 0
			continue
		}
		res.Phase.Data[i] = out
	}
	return res, nil
}
