package roipac

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrishikeshrai/PyGdalSAR/internal/models"
)

func grid(width, height int, base float64) *models.Grid {
	g := models.NewGrid(width, height)
	for i := range g.Data {
		g.Data[i] = base + float64(i)*0.25
	}
	return g
}

func TestParseResource(t *testing.T) {
	res, err := ParseResource(strings.NewReader("WIDTH 12\nFILE_LENGTH   7\nXMIN 0\nDATE12 2020 01\nlonely\n"))
	require.NoError(t, err)
	w, err := res.Width()
	require.NoError(t, err)
	l, err := res.Length()
	require.NoError(t, err)
	assert.Equal(t, 12, w)
	assert.Equal(t, 7, l)
	assert.Equal(t, "2020 01", res["DATE12"])

	_, err = Resource{"WIDTH": "-3"}.Width()
	assert.ErrorIs(t, err, ErrBadRaster)
	_, err = Resource{}.Length()
	assert.ErrorIs(t, err, ErrBadRaster)
}

func TestBandsRoundTrip(t *testing.T) {
	q, p := grid(5, 3, 1), grid(5, 3, -2)
	var buf bytes.Buffer
	require.NoError(t, WriteBands(&buf, q, p))
	assert.Equal(t, 5*3*2*4, buf.Len())

	bands, err := ReadBands(&buf, 5, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, q.Data, bands[0].Data)
	assert.Equal(t, p.Data, bands[1].Data)

	_, err = ReadBands(bytes.NewReader(make([]byte, 10)), 5, 3, 2)
	assert.ErrorIs(t, err, ErrBadRaster)

	assert.Error(t, WriteBands(&buf, q, grid(4, 3, 0)))
}

func TestFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "radar_look.hgt")
	amp, hgt := grid(6, 4, 0), grid(6, 4, 100)
	require.NoError(t, WriteFile(path, amp, hgt))

	w, l, err := Dims(path)
	require.NoError(t, err)
	assert.Equal(t, 6, w)
	assert.Equal(t, 4, l)

	elev, err := ReadElevation(path)
	require.NoError(t, err)
	assert.Equal(t, hgt.Data, elev.Data)

	mask := filepath.Join(dir, "mask.r4")
	require.NoError(t, WriteFloat32(mask, amp))
	got, err := ReadFloat32(mask, 6, 4)
	require.NoError(t, err)
	assert.Equal(t, amp.Data, got.Data)

	_, err = ReadFloat32(mask, 6, 5)
	assert.ErrorIs(t, err, ErrBadRaster)
}

func TestLayoutAndSource(t *testing.T) {
	dir := t.TempDir()
	layout := Layout{Dir: dir, Prefix: "filt_", Suffix: "_sd", Rlook: "4", OutputSuffix: "corrunw"}
	pair := models.Pair{Primary: "20200101", Secondary: "20200113"}

	assert.Equal(t, filepath.Join(dir, "int_20200101_20200113", "filt_20200101-20200113_sd_4rlks.unw"), layout.Input(pair))
	assert.Equal(t, filepath.Join(dir, "int_20200101_20200113", "filt_20200101-20200113_sd_corrunw_4rlks.unw"), layout.Output(pair))

	// the interferogram is larger than the reference geometry
	require.NoError(t, os.MkdirAll(layout.Folder(pair), 0755))
	require.NoError(t, WriteFile(layout.Input(pair), grid(8, 5, 1), grid(8, 5, 3)))
	res, err := ReadResource(layout.Input(pair) + ".rsc")
	require.NoError(t, err)
	res["WAVELENGTH"] = "0.0555"
	require.NoError(t, WriteResource(layout.Input(pair)+".rsc", res))

	src := &Source{Layout: layout, Width: 6, Length: 4}
	ifg, err := src.Load(pair)
	require.NoError(t, err)
	assert.Equal(t, 6, ifg.Phase.Width)
	assert.Equal(t, 4, ifg.Phase.Height)
	assert.Equal(t, 3.0, ifg.Phase.At(0, 0))
	assert.Equal(t, 3+0.25*8, ifg.Phase.At(1, 0))

	require.NoError(t, src.Save(pair, ifg.Quality, ifg.Phase))
	out, err := ReadResource(layout.Output(pair) + ".rsc")
	require.NoError(t, err)
	assert.Equal(t, "6", out["WIDTH"])
	assert.Equal(t, "4", out["FILE_LENGTH"])
	assert.Equal(t, "0.0555", out["WAVELENGTH"])

	bands, err := ReadFile(layout.Output(pair), 2)
	require.NoError(t, err)
	assert.Equal(t, ifg.Phase.Data, bands[1].Data)
}
