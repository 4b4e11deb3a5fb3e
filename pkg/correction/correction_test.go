package correction

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrishikeshrai/PyGdalSAR/internal/models"
	"github.com/hrishikeshrai/PyGdalSAR/pkg/model"
)

func TestSurface(t *testing.T) {
	var c model.Coefficients
	c[model.Range] = 0.5
	c[model.Azimuth] = -1
	c[model.Constant] = 2
	c[model.Elevation] = 0.1

	elev := models.NewGridFilled(3, 2, 10)
	s := Surface(c, 3, 2, elev)
	assert.InDelta(t, 2+1, s.At(0, 0), 1e-12)
	assert.InDelta(t, 0.5*2-1+2+1, s.At(1, 2), 1e-12)

	noElev := Surface(c, 3, 2, nil)
	assert.InDelta(t, 2, noElev.At(0, 0), 1e-12)
}

func TestApplyPreservesNoData(t *testing.T) {
	phase := models.NewGridFilled(4, 3, 5)
	phase.Set(0, 1, 0)
	phase.Set(1, 1, math.NaN())
	quality := models.NewGridFilled(4, 3, 0.8)
	quality.Set(2, 3, math.Inf(1))

	var c model.Coefficients
	c[model.Constant] = 1
	ifg := &models.Interferogram{Pair: models.Pair{Primary: "A", Secondary: "B"}, Phase: phase, Quality: quality}

	res, err := Apply(ifg, nil, c, nil)
	require.NoError(t, err)

	assert.Equal(t, 4.0, res.Phase.At(0, 0))
	assert.Equal(t, 0.8, res.Quality.At(0, 0))
	for _, rc := range [][2]int{{0, 1}, {1, 1}, {2, 3}} {
		assert.Equal(t, 0.0, res.Phase.At(rc[0], rc[1]))
		assert.Equal(t, 0.0, res.Quality.At(rc[0], rc[1]))
	}
	assert.Same(t, res.Original, res.Applied)

	// inputs are left untouched
	assert.Equal(t, 5.0, phase.At(0, 0))
	assert.Equal(t, 0.8, quality.At(1, 1))
}

func TestApplyReconciled(t *testing.T) {
	phase := models.NewGridFilled(3, 3, 10)
	var original, reconciled model.Coefficients
	original[model.Constant] = 1
	reconciled[model.Constant] = 1
	reconciled[model.Range] = 2

	ifg := &models.Interferogram{Pair: models.Pair{Primary: "A", Secondary: "B"}, Phase: phase}
	res, err := Apply(ifg, nil, original, &reconciled)
	require.NoError(t, err)

	assert.Equal(t, 1.0, res.Original.At(1, 2))
	assert.Equal(t, 5.0, res.Applied.At(1, 2))
	assert.Equal(t, 5.0, res.Phase.At(1, 2))
	assert.Equal(t, 1.0, res.Quality.At(1, 2), "missing quality band is filled with ones")
}

func TestApplyShapeMismatch(t *testing.T) {
	ifg := &models.Interferogram{
		Phase:   models.NewGridFilled(3, 3, 1),
		Quality: models.NewGridFilled(2, 3, 1),
	}
	_, err := Apply(ifg, nil, model.Coefficients{}, nil)
	assert.Error(t, err)

	_, err = Apply(&models.Interferogram{}, nil, model.Coefficients{}, nil)
	assert.Error(t, err)
}
