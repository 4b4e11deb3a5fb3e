package models

import (
	"math"
)

// Grid is a 2-D raster of float64 samples stored as a 1D array in row-major
// order. Rows run along azimuth, columns along range.
type Grid struct {
	// Data holds Height*Width samples, row by row
	Data []float64

	// Width is the number of columns (range samples)
	Width int

	// Height is the number of rows (azimuth lines)
	Height int
}

// NewGrid allocates a zero-filled grid
func NewGrid(width, height int) *Grid {
	return &Grid{
		Data:   make([]float64, width*height),
		Width:  width,
		Height: height,
	}
}

// NewGridFilled allocates a grid with every sample set to value
func NewGridFilled(width, height int, value float64) *Grid {
	g := NewGrid(width, height)
	for i := range g.Data {
		g.Data[i] = value
	}
	return g
}

// At returns the sample at (row, col)
func (g *Grid) At(row, col int) float64 {
	return g.Data[row*g.Width+col]
}

// Set stores value at (row, col)
func (g *Grid) Set(row, col int, value float64) {
	g.Data[row*g.Width+col] = value
}

// Len returns the number of samples
func (g *Grid) Len() int {
	return len(g.Data)
}

// Clone returns a deep copy of the grid
func (g *Grid) Clone() *Grid {
	out := &Grid{
		Data:   make([]float64, len(g.Data)),
		Width:  g.Width,
		Height: g.Height,
	}
	copy(out.Data, g.Data)
	return out
}

// SameShape reports whether both grids have identical dimensions
func (g *Grid) SameShape(o *Grid) bool {
	return o != nil && g.Width == o.Width && g.Height == o.Height
}

// Resize returns a grid of the requested shape holding the overlapping
// region of g; samples outside g are zero.
func (g *Grid) Resize(width, height int) *Grid {
	if g.Width == width && g.Height == height {
		return g
	}
	out := NewGrid(width, height)
	rows := min(height, g.Height)
	cols := min(width, g.Width)
	for r := 0; r < rows; r++ {
		copy(out.Data[r*width:r*width+cols], g.Data[r*g.Width:r*g.Width+cols])
	}
	return out
}

// IsNoData reports whether a phase sample carries the "no data" convention:
// exactly zero or non-finite.
func IsNoData(v float64) bool {
	return v == 0 || math.IsNaN(v) || math.IsInf(v, 0)
}

// IsFinite reports whether v is neither NaN nor infinite
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
