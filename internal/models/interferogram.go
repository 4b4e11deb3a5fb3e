package models

import "fmt"

// Acquisition is one radar acquisition of the stack, indexed by its
// position in the baseline table.
type Acquisition struct {
	// ID is the acquisition identifier, usually a YYYYMMDD date
	ID string

	// PerpBaseline is the perpendicular baseline in meters
	PerpBaseline float64

	// TempBaseline is the temporal baseline relative to the stack origin
	TempBaseline float64
}

// Pair references the two acquisitions forming an interferogram
type Pair struct {
	// Primary is the earlier (reference) acquisition
	Primary string

	// Secondary is the later acquisition
	Secondary string
}

// String returns the "primary-secondary" label used in logs and file names
func (p Pair) String() string {
	return fmt.Sprintf("%s-%s", p.Primary, p.Secondary)
}

// Interferogram is one unwrapped interferometric pair held in memory.
type Interferogram struct {
	Pair

	// Phase is the unwrapped phase in radians; 0 marks missing data
	Phase *Grid

	// Quality is the co-located amplitude/coherence band. May be nil.
	Quality *Grid
}
