// Package visualization renders diagnostic quicklooks of interferograms:
// side by side phase panels on a diverging colour ramp and phase versus
// elevation scatter plots.
package visualization

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"

	colorful "github.com/lucasb-eyer/go-colorful"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/hrishikeshrai/PyGdalSAR/internal/models"
)

// MaxScatterPoints bounds the number of pixels drawn in a scatter plot
const MaxScatterPoints = 5000

var (
	rampLow  = colorful.Color{R: 0.13, G: 0.40, B: 0.67}
	rampMid  = colorful.Color{R: 0.97, G: 0.97, B: 0.97}
	rampHigh = colorful.Color{R: 0.70, G: 0.09, B: 0.17}

	noDataColor = color.RGBA{R: 128, G: 128, B: 128, A: 0}
)

// Viewer renders quicklooks of grids of a fixed geometry
type Viewer struct {
	width  int
	height int

	// gap is the number of blank columns between panels
	gap int

	// clip is the percentile of |value| mapped to the ends of the ramp
	clip float64
}

// NewViewer creates a viewer for width x height grids
func NewViewer(width, height int) *Viewer {
	return &Viewer{
		width:  width,
		height: height,
		gap:    4,
		clip:   98,
	}
}

// Ramp maps t in [-1, 1] onto the diverging colour ramp
func Ramp(t float64) colorful.Color {
	t = math.Max(-1, math.Min(1, t))
	if t < 0 {
		return rampMid.BlendLab(rampLow, -t).Clamped()
	}
	return rampMid.BlendLab(rampHigh, t).Clamped()
}

// Scale returns the symmetric colour scale of the panels: the clip
// percentile of |value| over valid pixels of all grids.
func (v *Viewer) Scale(grids ...*models.Grid) float64 {
	var abs []float64
	for _, g := range grids {
		for _, x := range g.Data {
			if !models.IsNoData(x) {
				abs = append(abs, math.Abs(x))
			}
		}
	}
	if len(abs) == 0 {
		return 0
	}
	sort.Float64s(abs)
	idx := int(math.Round(v.clip / 100 * float64(len(abs)-1)))
	return abs[idx]
}

// Render draws one grid with the given symmetric scale. No-data pixels
// are transparent.
func (v *Viewer) Render(g *models.Grid, scale float64) (image.Image, error) {
	if g.Width != v.width || g.Height != v.height {
		return nil, fmt.Errorf("grid is %dx%d, viewer expects %dx%d", g.Width, g.Height, v.width, v.height)
	}
	img := image.NewRGBA(image.Rect(0, 0, v.width, v.height))
	v.draw(img, 0, g, scale)
	return img, nil
}

// RenderPanels draws the grids side by side on a shared scale
func (v *Viewer) RenderPanels(grids ...*models.Grid) (image.Image, error) {
	if len(grids) == 0 {
		return nil, fmt.Errorf("no panel to render")
	}
	for i, g := range grids {
		if g == nil {
			return nil, fmt.Errorf("panel %d is empty", i)
		}
		if g.Width != v.width || g.Height != v.height {
			return nil, fmt.Errorf("panel %d is %dx%d, viewer expects %dx%d", i, g.Width, g.Height, v.width, v.height)
		}
	}

	n := len(grids)
	img := image.NewRGBA(image.Rect(0, 0, n*v.width+(n-1)*v.gap, v.height))
	scale := v.Scale(grids...)
	for i, g := range grids {
		v.draw(img, i*(v.width+v.gap), g, scale)
	}
	return img, nil
}

func (v *Viewer) draw(img *image.RGBA, x0 int, g *models.Grid, scale float64) {
	for y := 0; y < v.height; y++ {
		for x := 0; x < v.width; x++ {
			val := g.At(y, x)
			if models.IsNoData(val) {
				img.SetRGBA(x0+x, y, noDataColor)
				continue
			}
			t := 0.0
			if scale > 0 {
				t = val / scale
			}
			r, gr, b := Ramp(t).RGB255()
			img.SetRGBA(x0+x, y, color.RGBA{R: r, G: gr, B: b, A: 255})
		}
	}
}

// SavePanels writes raw phase, correction and corrected phase side by side
// as a PNG
func (v *Viewer) SavePanels(path string, raw, corr, corrected *models.Grid) error {
	img, err := v.RenderPanels(raw, corr, corrected)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return f.Close()
}

// pointStyle renders points only, without connecting lines
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    2,
		DotColor:    col,
	}
}

// scatter collects (elevation, value) pairs of valid pixels, keeping at
// most MaxScatterPoints by regular decimation
func scatter(elev, values *models.Grid) ([]float64, []float64) {
	stride := max(1, elev.Len()/MaxScatterPoints)
	var xs, ys []float64
	for i := 0; i < elev.Len(); i += stride {
		z, y := elev.Data[i], values.Data[i]
		if !models.IsFinite(z) || models.IsNoData(y) {
			continue
		}
		xs = append(xs, z)
		ys = append(ys, y)
	}
	return xs, ys
}

// RenderPhaseElevation draws raw phase against elevation, overlaid with the
// correction when corr is not nil. The chart is returned PNG encoded.
func (v *Viewer) RenderPhaseElevation(elev, phase, corr *models.Grid) ([]byte, error) {
	if elev == nil || phase == nil {
		return nil, fmt.Errorf("phase/elevation plot needs both grids")
	}
	if !elev.SameShape(phase) || (corr != nil && !corr.SameShape(phase)) {
		return nil, fmt.Errorf("phase/elevation plot: grids have different shapes")
	}

	xs, ys := scatter(elev, phase)
	if len(xs) < 2 {
		return nil, fmt.Errorf("phase/elevation plot: %d valid pixels", len(xs))
	}
	series := []chart.Series{
		chart.ContinuousSeries{Name: "phase", XValues: xs, YValues: ys, Style: pointStyle(chart.ColorBlue)},
	}
	if corr != nil {
		// model is plotted only where the phase is valid
		masked := corr.Clone()
		for i, p := range phase.Data {
			if models.IsNoData(p) {
				masked.Data[i] = 0
			}
		}
		cx, cy := scatter(elev, masked)
		if len(cx) >= 2 {
			series = append(series, chart.ContinuousSeries{Name: "model", XValues: cx, YValues: cy, Style: pointStyle(chart.ColorRed)})
		}
	}

	ch := chart.Chart{
		Width:      800,
		Height:     600,
		Background: chart.Style{Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: 14}},
		XAxis:      chart.XAxis{Name: "elevation"},
		YAxis:      chart.YAxis{Name: "phase"},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("phase/elevation plot: %w", err)
	}
	return buf.Bytes(), nil
}

// SavePhaseElevation writes the phase/elevation scatter plot to path
func (v *Viewer) SavePhaseElevation(path string, elev, phase, corr *models.Grid) error {
	data, err := v.RenderPhaseElevation(elev, phase, corr)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
