// Package atmocorr runs the complete ramp and elevation correction of an
// interferogram stack: per-pair estimation, optional network inversion of
// the coefficients and application of the correction to every pair.
package atmocorr

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/hrishikeshrai/PyGdalSAR/internal/models"
	"github.com/hrishikeshrai/PyGdalSAR/pkg/config"
	"github.com/hrishikeshrai/PyGdalSAR/pkg/correction"
	"github.com/hrishikeshrai/PyGdalSAR/pkg/estimation"
	"github.com/hrishikeshrai/PyGdalSAR/pkg/model"
	"github.com/hrishikeshrai/PyGdalSAR/pkg/network"
	"github.com/hrishikeshrai/PyGdalSAR/pkg/roipac"
	"github.com/hrishikeshrai/PyGdalSAR/pkg/sampling"
	"github.com/hrishikeshrai/PyGdalSAR/pkg/table"
	"github.com/hrishikeshrai/PyGdalSAR/pkg/visualization"
)

// Params holds the pipeline configuration
type Params struct {
	// Config is the validated run configuration
	Config *config.Config

	// Logger receives progress lines. A logger prefixed with the run
	// identifier is created when nil.
	Logger *log.Logger
}

// Summary reports the outcome of a run
type Summary struct {
	// RunID identifies the run in logs and table headers
	RunID uuid.UUID

	// Pairs is the number of interferograms in the pair list
	Pairs int

	// Estimated is the number of pairs with a coefficient row
	Estimated int

	// Failures lists the pairs whose estimation failed
	Failures []estimation.Failure

	// Fallbacks counts the pairs that kept the unweighted seed
	Fallbacks int

	// Field is the inverted coefficient field, nil without inversion
	Field *network.Field

	// FailedColumns lists the canonical slots whose inversion failed
	FailedColumns []model.Slot

	// Corrected is the number of corrected interferograms written
	Corrected int

	// ApplyFailures lists the pairs that could not be corrected
	ApplyFailures []estimation.Failure

	// Duration is the wall time of Process
	Duration time.Duration
}

// Corrector runs the correction pipeline. It follows these steps:
// 1. Loading the geometry, elevation and mask
// 2. Estimating the per-pair models or reading back the coefficient table
// 3. Writing the coefficient and RMS tables
// 4. Inverting the coefficients over the network (optional)
// 5. Applying the correction and writing the corrected interferograms
type Corrector struct {
	params *Params
	cfg    *config.Config
	logger *log.Logger
	runID  uuid.UUID

	// geometry of the reference grid
	width  int
	length int

	elevation *models.Grid
	mask      *models.Grid
	pairs     []models.Pair
	source    *roipac.Source
	viewer    *visualization.Viewer
}

// NewCorrector creates a new corrector with the provided parameters
func NewCorrector(params *Params) *Corrector {
	runID := uuid.New()
	logger := params.Logger
	if logger == nil {
		logger = log.New(os.Stdout, fmt.Sprintf("[%s] ", runID.String()[:8]), log.LstdFlags)
	}
	return &Corrector{
		params: params,
		cfg:    params.Config,
		logger: logger,
		runID:  runID,
	}
}

// RunID returns the identifier of the run
func (c *Corrector) RunID() uuid.UUID {
	return c.runID
}

// Process runs the complete correction pipeline
func (c *Corrector) Process(ctx context.Context) (*Summary, error) {
	start := time.Now()
	if c.cfg == nil {
		return nil, fmt.Errorf("no configuration")
	}
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}
	summary := &Summary{RunID: c.runID}

	// Step 1: Geometry, elevation and mask
	c.logger.Println("Step 1: Loading geometry, elevation and mask...")
	if err := c.loadInputs(); err != nil {
		return nil, fmt.Errorf("failed to load inputs: %w", err)
	}
	summary.Pairs = len(c.pairs)
	c.logger.Printf("%d interferograms, reference geometry %dx%d", len(c.pairs), c.width, c.length)

	// Step 2: Per-pair estimation
	var rows []table.Row
	if c.cfg.Processing.Estimate {
		c.logger.Println("Step 2: Estimating correction models...")
		report, err := c.estimate(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to estimate models: %w", err)
		}
		rows = report.Rows()
		summary.Failures = report.Failures
		summary.Fallbacks = report.Fallbacks()

		// Step 3: Tables
		c.logger.Println("Step 3: Writing coefficient and RMS tables...")
		if err := c.writeTables(report); err != nil {
			return nil, fmt.Errorf("failed to write tables: %w", err)
		}
	} else {
		c.logger.Println("Step 2: Reading coefficient table...")
		path := c.outputPath(c.cfg.Output.CoefficientTable)
		var err error
		rows, err = table.ReadFile(path, table.ReadCoefficients)
		if err != nil {
			return nil, err
		}
		if err := table.CheckPairs(rows, c.pairs); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	summary.Estimated = len(rows)
	if len(rows) == 0 {
		return summary, fmt.Errorf("no interferogram could be estimated")
	}

	// Step 4: Network inversion
	if c.cfg.Processing.Invert {
		c.logger.Println("Step 4: Inverting coefficients over the network...")
		field, err := c.invert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to invert coefficients: %w", err)
		}
		summary.Field = field
		summary.FailedColumns = field.Failed()
	}

	// Step 5: Correction
	c.logger.Println("Step 5: Applying corrections...")
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.apply(row, summary.Field); err != nil {
			c.logger.Printf("pair %s not corrected: %v", row.Pair(), err)
			summary.ApplyFailures = append(summary.ApplyFailures, estimation.Failure{Pair: row.Pair(), Err: err})
			continue
		}
		summary.Corrected++
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

// loadInputs sets the reference geometry from the elevation file or the
// reference interferogram, then reads the mask and the pair list
func (c *Corrector) loadInputs() error {
	in := c.cfg.Input
	var err error
	if in.ElevationFile != "" {
		if c.elevation, err = roipac.ReadElevation(in.ElevationFile); err != nil {
			return err
		}
		c.width, c.length = c.elevation.Width, c.elevation.Height
	} else {
		if c.width, c.length, err = roipac.Dims(in.ReferenceFile); err != nil {
			return err
		}
	}

	if in.MaskFile != "" {
		if c.mask, err = roipac.ReadFloat32(in.MaskFile, c.width, c.length); err != nil {
			return err
		}
	}

	if c.pairs, err = table.ReadFile(in.PairList, table.ReadPairs); err != nil {
		return err
	}
	if len(c.pairs) == 0 {
		return fmt.Errorf("%s: empty pair list", in.PairList)
	}

	c.source = &roipac.Source{
		Layout: roipac.Layout{
			Dir:          in.InterferogramDir,
			Prefix:       in.Prefix,
			Suffix:       in.Suffix,
			Rlook:        in.Rlook,
			OutputSuffix: c.cfg.Output.Suffix,
		},
		Width:  c.width,
		Length: c.length,
	}
	if c.cfg.Output.Plot {
		c.viewer = visualization.NewViewer(c.width, c.length)
	}
	return nil
}

// samplingParams converts the sampling section for the reference geometry
func (c *Corrector) samplingParams() sampling.Params {
	s := c.cfg.Sampling
	p := sampling.DefaultParams(c.width, c.length)
	p.Percentile = s.Percentile
	p.UseQuality = s.UseQuality
	p.QualityThreshold = s.QualityThreshold
	p.MaskThreshold = s.MaskThreshold
	p.Region = sampling.Region{
		RowBegin: s.RowBegin,
		RowEnd:   orSize(s.RowEnd, c.length),
		ColBegin: s.ColBegin,
		ColEnd:   orSize(s.ColEnd, c.width),
	}
	if s.ExcludeBegin != nil && s.ExcludeEnd != nil {
		p.Exclude = &sampling.Band{Begin: *s.ExcludeBegin, End: *s.ExcludeEnd}
	}
	return p
}

func orSize(v, size int) int {
	if v < 0 {
		return size
	}
	return v
}

func (c *Corrector) estimate(ctx context.Context) (*estimation.Report, error) {
	est := estimation.NewEstimator(estimation.Params{
		Flatten:    c.cfg.Model.Flatten,
		Ivar:       c.cfg.Model.Ivar,
		Nfit:       c.cfg.Model.Nfit,
		Sampling:   c.samplingParams(),
		Iterations: c.cfg.Processing.PairIterations,
		NumWorkers: c.cfg.Processing.NumCores,
		Verbose:    c.cfg.Output.Verbose,
	}, c.elevation, c.mask, c.logger)

	if c.viewer != nil && c.elevation != nil {
		est.SetFitHook(func(fit *estimation.Fit) {
			path := c.source.Layout.Quicklook(fit.Pair, "phase-elevation")
			if err := c.viewer.SavePhaseElevation(path, c.elevation, fit.Interferogram.Phase, fit.Correction); err != nil {
				c.logger.Printf("Warning: Failed to save phase/elevation plot of %s: %v", fit.Pair, err)
			}
		})
	}

	report, err := est.Run(ctx, c.pairs, c.source)
	if err != nil {
		return nil, err
	}
	c.logger.Printf("%d of %d pairs estimated, %d kept the least-squares seed",
		len(report.Fits), len(c.pairs), report.Fallbacks())
	return report, nil
}

func (c *Corrector) outputPath(name string) string {
	return filepath.Join(c.cfg.Output.Dir, name)
}

func (c *Corrector) writeTables(report *estimation.Report) error {
	if err := os.MkdirAll(c.cfg.Output.Dir, 0755); err != nil {
		return err
	}
	comment := fmt.Sprintf("run %s flatten %d ivar %d nfit %d", c.runID, c.cfg.Model.Flatten, c.cfg.Model.Ivar, c.cfg.Model.Nfit)
	rows := report.Rows()
	err := table.WriteFile(c.outputPath(c.cfg.Output.CoefficientTable), func(w io.Writer) error {
		return table.WriteCoefficients(w, rows, comment)
	})
	if err != nil {
		return err
	}
	rms := report.RMSRows()
	return table.WriteFile(c.outputPath(c.cfg.Output.RMSTable), func(w io.Writer) error {
		return table.WriteRMS(w, rms)
	})
}

func (c *Corrector) invert(rows []table.Row) (*network.Field, error) {
	acqs, err := table.ReadFile(c.cfg.Input.BaselineFile, table.ReadBaselines)
	if err != nil {
		return nil, err
	}
	field, err := network.Invert(rows, acqs, network.Params{
		Height:     c.length,
		Iterations: c.cfg.Processing.NetworkIterations,
	}, c.logger)
	if err != nil {
		return nil, err
	}

	reconciled := make([]table.Row, len(rows))
	for i, r := range rows {
		reconciled[i] = r
		reconciled[i].Coefficients = field.Reconcile(r)
	}
	if err := os.MkdirAll(c.cfg.Output.Dir, 0755); err != nil {
		return nil, err
	}
	comment := fmt.Sprintf("run %s network inversion of %d pairs", c.runID, len(rows))
	err = table.WriteFile(c.outputPath(c.cfg.Output.InvertedTable), func(w io.Writer) error {
		return table.WriteCoefficients(w, reconciled, comment)
	})
	if err != nil {
		return nil, err
	}
	return field, nil
}

// apply corrects one pair with its own coefficients, or with the
// reconciled ones when field is not nil
func (c *Corrector) apply(row table.Row, field *network.Field) error {
	pair := row.Pair()
	ifg, err := c.source.Load(pair)
	if err != nil {
		return err
	}
	var reconciled *model.Coefficients
	if field != nil {
		rc := field.Reconcile(row)
		reconciled = &rc
	}

	res, err := correction.Apply(ifg, c.elevation, row.Coefficients, reconciled)
	if err != nil {
		return err
	}
	if err := c.source.Save(pair, res.Quality, res.Phase); err != nil {
		return err
	}

	if c.viewer != nil {
		path := c.source.Layout.Quicklook(pair, "corrected")
		if err := c.viewer.SavePanels(path, ifg.Phase, res.Applied, res.Phase); err != nil {
			c.logger.Printf("Warning: Failed to save quicklook of %s: %v", pair, err)
		}
	}
	return nil
}
