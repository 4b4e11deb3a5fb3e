// Package estimation fits a ramp/elevation correction model to every
// interferogram of a stack and records the canonical coefficients.
package estimation

import (
	"context"
	"fmt"
	"log"
	"runtime"

	"github.com/hrishikeshrai/PyGdalSAR/internal/models"
	"github.com/hrishikeshrai/PyGdalSAR/pkg/model"
	"github.com/hrishikeshrai/PyGdalSAR/pkg/sampling"
	"github.com/hrishikeshrai/PyGdalSAR/pkg/solver"
	"github.com/hrishikeshrai/PyGdalSAR/pkg/table"
)

// Source loads the interferogram of a pair
type Source interface {
	Load(pair models.Pair) (*models.Interferogram, error)
}

// Params controls the per-pair estimation
type Params struct {
	// Flatten is the requested flattening order (0-6)
	Flatten int

	// Ivar selects the azimuth/elevation cross terms (0-1)
	Ivar int

	// Nfit selects the quadratic elevation terms (0-1)
	Nfit int

	// Sampling holds the masking criteria
	Sampling sampling.Params

	// Iterations caps the weighted refinement
	Iterations int

	// NumWorkers is the number of pairs processed concurrently
	NumWorkers int

	// Verbose logs the fitted model of every pair
	Verbose bool
}

// Fit is the outcome of one successful pair estimation
type Fit struct {
	Pair models.Pair

	// Requested and Selected are the model before and after degradation
	Requested model.Spec
	Selected  model.Spec

	// Notes lists the degradations applied by the selector
	Notes []string

	// Extent is the usable along-track length, used as an inversion weight
	Extent int

	// Samples is the number of pixels used for the fit
	Samples int

	// Params are the fitted parameters in variant column order
	Params []float64

	// Coefficients is the canonical coefficient vector
	Coefficients model.Coefficients

	// Solve carries the solver diagnostics (fallback, convergence)
	Solve solver.Result

	// RMS is the residual RMS over the full grid
	RMS float64

	// Correction is the reconstructed surface. Only kept when a FitHook is set.
	Correction *models.Grid

	// Interferogram is the input. Only kept when a FitHook is set.
	Interferogram *models.Interferogram
}

// Row converts the fit into a coefficient table row
func (f *Fit) Row() table.Row {
	return table.Row{
		Primary:      f.Pair.Primary,
		Secondary:    f.Pair.Secondary,
		Extent:       float64(f.Extent),
		Coefficients: f.Coefficients,
	}
}

// Failure records a pair that could not be estimated
type Failure struct {
	Pair models.Pair
	Err  error
}

// Report collects the outcome of a run. Fits keep the input pair order.
type Report struct {
	Fits     []Fit
	Failures []Failure
}

// Rows returns the coefficient table rows of the successful fits
func (r *Report) Rows() []table.Row {
	rows := make([]table.Row, len(r.Fits))
	for i := range r.Fits {
		rows[i] = r.Fits[i].Row()
	}
	return rows
}

// RMSRows returns the RMS table rows of the successful fits
func (r *Report) RMSRows() []table.RMSRow {
	rows := make([]table.RMSRow, len(r.Fits))
	for i, f := range r.Fits {
		rows[i] = table.RMSRow{Primary: f.Pair.Primary, Secondary: f.Pair.Secondary, RMS: f.RMS}
	}
	return rows
}

// Fallbacks counts the fits that kept the unweighted seed
func (r *Report) Fallbacks() int {
	n := 0
	for _, f := range r.Fits {
		if f.Solve.Fallback {
			n++
		}
	}
	return n
}

// FitHook is called once per successful fit, from the worker goroutine
type FitHook func(fit *Fit)

// Estimator runs the per-pair estimation loop. The elevation and mask grids
// are shared read-only by all workers.
type Estimator struct {
	params    Params
	elevation *models.Grid
	mask      *models.Grid
	logger    *log.Logger
	hook      FitHook
}

// NewEstimator creates an estimator. elevation and mask may be nil.
func NewEstimator(params Params, elevation, mask *models.Grid, logger *log.Logger) *Estimator {
	if logger == nil {
		logger = log.Default()
	}
	if params.Iterations <= 0 {
		params.Iterations = solver.PairIterations
	}
	if params.NumWorkers <= 0 {
		params.NumWorkers = runtime.NumCPU()
	}
	return &Estimator{
		params:    params,
		elevation: elevation,
		mask:      mask,
		logger:    logger,
	}
}

// SetFitHook registers a callback receiving every successful fit along
// with its correction surface.
func (e *Estimator) SetFitHook(hook FitHook) {
	e.hook = hook
}

// Run estimates every pair. A failing pair is recorded in the report and
// does not stop the others. Run returns an error only when ctx is done.
func (e *Estimator) Run(ctx context.Context, pairs []models.Pair, src Source) (*Report, error) {
	type result struct {
		idx int
		fit *Fit
		err error
	}

	jobs := make(chan int)
	results := make(chan result, len(pairs))
	workers := min(e.params.NumWorkers, max(len(pairs), 1))

	for w := 0; w < workers; w++ {
		go func() {
			for idx := range jobs {
				fit, err := e.estimate(pairs[idx], src)
				results <- result{idx: idx, fit: fit, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range pairs {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	fits := make([]*Fit, len(pairs))
	errs := make([]error, len(pairs))
	completed := 0
	for completed < len(pairs) {
		select {
		case res := <-results:
			completed++
			fits[res.idx], errs[res.idx] = res.fit, res.err
			if res.err != nil {
				e.logger.Printf("pair %s failed: %v", pairs[res.idx], res.err)
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	report := &Report{}
	for i, pair := range pairs {
		if errs[i] != nil {
			report.Failures = append(report.Failures, Failure{Pair: pair, Err: errs[i]})
			continue
		}
		report.Fits = append(report.Fits, *fits[i])
	}
	return report, nil
}

// estimate loads one pair and fits it
func (e *Estimator) estimate(pair models.Pair, src Source) (*Fit, error) {
	ifg, err := src.Load(pair)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	fit, err := FitInterferogram(ifg, e.elevation, e.mask, e.params)
	if err != nil {
		return nil, err
	}

	if fit.Solve.Fallback {
		e.logger.Printf("pair %s: weighted refinement discarded (%s), using least-squares seed", pair, fit.Solve.Reason)
	}
	if e.params.Verbose {
		for _, note := range fit.Notes {
			e.logger.Printf("pair %s: %s", pair, note)
		}
		v, _ := model.Lookup(fit.Selected)
		e.logger.Printf("pair %s: %s, %d samples, extent %d, remove %s, RMS %.4f",
			pair, fit.Selected, fit.Samples, fit.Extent, v.Describe(fit.Params), fit.RMS)
	}

	if e.hook != nil {
		fit.Interferogram = ifg
		e.hook(fit)
	}
	fit.Correction = nil
	fit.Interferogram = nil
	return fit, nil
}

// FitInterferogram runs sampling, model selection, fitting and
// reconstruction for a single interferogram. elev and mask may be nil.
func FitInterferogram(ifg *models.Interferogram, elev, mask *models.Grid, p Params) (*Fit, error) {
	phase := ifg.Phase
	if phase == nil {
		return nil, fmt.Errorf("interferogram %s has no phase band", ifg.Pair)
	}
	if p.Iterations <= 0 {
		p.Iterations = solver.PairIterations
	}

	sample, err := sampling.Select(sampling.Input{
		Phase:     phase,
		Elevation: elev,
		Quality:   ifg.Quality,
		Mask:      mask,
	}, p.Sampling)
	if err != nil {
		return nil, err
	}

	region := p.Sampling.Region
	extent := sampling.UsableExtent(phase, region.RowBegin, region.RowEnd)
	rowEnd := min(region.RowEnd, phase.Height)
	requested := model.Spec{
		Flatten:   p.Flatten,
		Elevation: model.ElevationModeFor(elev != nil, p.Ivar, p.Nfit),
	}
	selected, notes := model.Select(requested, model.Extent{
		Usable:    float64(extent),
		Requested: float64(rowEnd - max(region.RowBegin, 0)),
		Width:     float64(phase.Width),
	})
	variant, err := model.Lookup(selected)
	if err != nil {
		return nil, err
	}

	G := variant.SampleMatrix(sample.Rows, sample.Cols, sample.Elevation)
	res, err := solver.Solve(G, sample.Phase, sample.Sigma, p.Iterations)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", selected, err)
	}
	coeffs, err := variant.Canonical(res.X)
	if err != nil {
		return nil, err
	}

	corr, rms, err := Reconstruct(variant, res.X, phase, elev)
	if err != nil {
		return nil, err
	}

	return &Fit{
		Pair:         ifg.Pair,
		Requested:    requested,
		Selected:     selected,
		Notes:        notes,
		Extent:       extent,
		Samples:      sample.Len(),
		Params:       res.X,
		Coefficients: coeffs,
		Solve:        res,
		RMS:          rms,
		Correction:   corr,
	}, nil
}
