package roipac

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/hrishikeshrai/PyGdalSAR/internal/models"
)

// ReadBands reads a band-interleaved-by-line float32 raster with nbands
// bands: every line stores width samples of band 1, then band 2, ...
func ReadBands(r io.Reader, width, length, nbands int) ([]*models.Grid, error) {
	bands := make([]*models.Grid, nbands)
	for b := range bands {
		bands[b] = models.NewGrid(width, length)
	}

	line := make([]float32, width)
	br := bufio.NewReader(r)
	for row := 0; row < length; row++ {
		for b := 0; b < nbands; b++ {
			if err := binary.Read(br, binary.LittleEndian, line); err != nil {
				return nil, fmt.Errorf("%w: line %d band %d: %v", ErrBadRaster, row, b+1, err)
			}
			dst := bands[b].Data[row*width : (row+1)*width]
			for i, v := range line {
				dst[i] = float64(v)
			}
		}
	}
	return bands, nil
}

// WriteBands writes bands as a band-interleaved-by-line float32 raster
func WriteBands(w io.Writer, bands ...*models.Grid) error {
	if len(bands) == 0 {
		return fmt.Errorf("roipac: no band to write")
	}
	width, length := bands[0].Width, bands[0].Height
	for _, b := range bands[1:] {
		if !b.SameShape(bands[0]) {
			return fmt.Errorf("roipac: bands have different shapes")
		}
	}

	bw := bufio.NewWriter(w)
	line := make([]float32, width)
	for row := 0; row < length; row++ {
		for _, b := range bands {
			for i, v := range b.Data[row*width : (row+1)*width] {
				line[i] = float32(v)
			}
			if err := binary.Write(bw, binary.LittleEndian, line); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// ReadFile reads a BIL raster and its .rsc sidecar
func ReadFile(path string, nbands int) ([]*models.Grid, error) {
	width, length, err := Dims(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	bands, err := ReadBands(f, width, length, nbands)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bands, nil
}

// WriteFile writes a BIL raster and a sidecar with its dimensions
func WriteFile(path string, bands ...*models.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteBands(f, bands...); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return WriteResource(path+".rsc", Resource{
		"WIDTH":       strconv.Itoa(bands[0].Width),
		"FILE_LENGTH": strconv.Itoa(bands[0].Height),
	})
}

// ReadElevation reads band 2 of a two-band height file (radar_look.hgt)
func ReadElevation(path string) (*models.Grid, error) {
	bands, err := ReadFile(path, 2)
	if err != nil {
		return nil, err
	}
	return bands[1], nil
}

// ReadFloat32 reads a single-band raw float32 file (.r4) of the given shape
func ReadFloat32(path string, width, length int) (*models.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < int64(width*length*4) {
		return nil, fmt.Errorf("%w: %s holds %d bytes, want %d", ErrBadRaster, path, info.Size(), width*length*4)
	}
	bands, err := ReadBands(f, width, length, 1)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bands[0], nil
}

// WriteFloat32 writes a single-band raw float32 file without sidecar
func WriteFloat32(path string, g *models.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteBands(f, g); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
