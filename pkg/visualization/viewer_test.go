package visualization

import (
	"bytes"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrishikeshrai/PyGdalSAR/internal/models"
)

func rampGrid(width, height int, offset float64) *models.Grid {
	g := models.NewGrid(width, height)
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			g.Set(r, c, float64(c-width/2)+offset+0.5)
		}
	}
	return g
}

// TestRampEnds verifies the diverging ramp is white-ish at zero and saturates at +-1
func TestRampEnds(t *testing.T) {
	r, g, b := Ramp(0).RGB255()
	assert.Greater(t, r, uint8(240))
	assert.Greater(t, g, uint8(240))
	assert.Greater(t, b, uint8(240))

	assert.Equal(t, Ramp(1), Ramp(5), "values beyond the scale are clipped")
	hr, _, hb := Ramp(1).RGB255()
	assert.Greater(t, hr, hb)
	lr, _, lb := Ramp(-1).RGB255()
	assert.Greater(t, lb, lr)
}

// TestRenderNoData verifies that zero and NaN pixels are transparent
func TestRenderNoData(t *testing.T) {
	v := NewViewer(4, 3)
	g := rampGrid(4, 3, 0)
	g.Set(0, 0, 0)
	g.Set(1, 1, math.NaN())

	img, err := v.Render(g, v.Scale(g))
	require.NoError(t, err)

	_, _, _, a := img.At(0, 0).RGBA()
	assert.Zero(t, a)
	_, _, _, a = img.At(1, 1).RGBA()
	assert.Zero(t, a)
	_, _, _, a = img.At(2, 2).RGBA()
	assert.NotZero(t, a)
}

// TestRenderPanelsLayout verifies the panel strip geometry and shape checks
func TestRenderPanelsLayout(t *testing.T) {
	v := NewViewer(10, 6)
	img, err := v.RenderPanels(rampGrid(10, 6, 0), rampGrid(10, 6, 1), rampGrid(10, 6, 2))
	require.NoError(t, err)
	assert.Equal(t, 3*10+2*v.gap, img.Bounds().Dx())
	assert.Equal(t, 6, img.Bounds().Dy())

	_, err = v.RenderPanels(rampGrid(10, 6, 0), rampGrid(9, 6, 0))
	assert.Error(t, err)
	_, err = v.RenderPanels()
	assert.Error(t, err)
}

// TestSavePanels verifies the written file is a decodable PNG
func TestSavePanels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "panels.png")
	v := NewViewer(8, 5)

	require.NoError(t, v.SavePanels(path, rampGrid(8, 5, 0), rampGrid(8, 5, 0), models.NewGrid(8, 5)))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 3*8+2*v.gap, img.Bounds().Dx())
}

// TestSavePhaseElevation verifies the scatter chart renders to a PNG
func TestSavePhaseElevation(t *testing.T) {
	width, height := 20, 10
	elev := models.NewGrid(width, height)
	phase := models.NewGrid(width, height)
	corr := models.NewGrid(width, height)
	for i := range elev.Data {
		elev.Data[i] = float64(i)
		phase.Data[i] = 0.01*float64(i) + 0.1*math.Sin(float64(i))
		corr.Data[i] = 0.01 * float64(i)
	}
	phase.Data[0] = 0

	v := NewViewer(width, height)
	data, err := v.RenderPhaseElevation(elev, phase, corr)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "phase_elev.png")
	require.NoError(t, v.SavePhaseElevation(path, elev, phase, nil))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

// TestPhaseElevationNeedsData verifies the empty and mismatched cases fail
func TestPhaseElevationNeedsData(t *testing.T) {
	v := NewViewer(4, 4)
	_, err := v.RenderPhaseElevation(models.NewGrid(4, 4), models.NewGrid(4, 4), nil)
	assert.Error(t, err)
	_, err = v.RenderPhaseElevation(models.NewGrid(4, 4), models.NewGrid(3, 4), nil)
	assert.Error(t, err)
	_, err = v.RenderPhaseElevation(nil, models.NewGrid(4, 4), nil)
	assert.Error(t, err)
}
