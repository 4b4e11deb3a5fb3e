package roipac

import (
	"fmt"
	"path/filepath"

	"github.com/hrishikeshrai/PyGdalSAR/internal/models"
)

// Layout locates interferograms of a stack:
//
//	<Dir>/int_<d1>_<d2>/<Prefix><d1>-<d2><Suffix>_<Rlook>rlks.unw
type Layout struct {
	Dir    string
	Prefix string
	Suffix string
	Rlook  string

	// OutputSuffix is inserted before the look suffix of corrected files
	OutputSuffix string
}

// Folder returns the directory of a pair
func (l Layout) Folder(p models.Pair) string {
	return filepath.Join(l.Dir, fmt.Sprintf("int_%s_%s", p.Primary, p.Secondary))
}

// Input returns the unwrapped interferogram path of a pair
func (l Layout) Input(p models.Pair) string {
	name := fmt.Sprintf("%s%s-%s%s_%srlks.unw", l.Prefix, p.Primary, p.Secondary, l.Suffix, l.Rlook)
	return filepath.Join(l.Folder(p), name)
}

// Output returns the corrected interferogram path of a pair
func (l Layout) Output(p models.Pair) string {
	name := fmt.Sprintf("%s%s-%s%s_%s_%srlks.unw", l.Prefix, p.Primary, p.Secondary, l.Suffix, l.OutputSuffix, l.Rlook)
	return filepath.Join(l.Folder(p), name)
}

// Quicklook returns the path of a PNG diagnostic of a pair
func (l Layout) Quicklook(p models.Pair, name string) string {
	return filepath.Join(l.Folder(p), fmt.Sprintf("%s%s%s.png", l.Prefix, name, l.Suffix))
}

// Source loads two-band interferograms (quality, phase) and crops or pads
// them to the reference geometry.
type Source struct {
	Layout Layout
	Width  int
	Length int
}

// Load reads the interferogram of a pair
func (s *Source) Load(p models.Pair) (*models.Interferogram, error) {
	bands, err := ReadFile(s.Layout.Input(p), 2)
	if err != nil {
		return nil, err
	}
	return &models.Interferogram{
		Pair:    p,
		Quality: bands[0].Resize(s.Width, s.Length),
		Phase:   bands[1].Resize(s.Width, s.Length),
	}, nil
}

// Save writes a corrected interferogram and copies the input sidecar
// entries, updating its dimensions.
func (s *Source) Save(p models.Pair, quality, phase *models.Grid) error {
	out := s.Layout.Output(p)
	if err := WriteFile(out, quality, phase); err != nil {
		return err
	}
	res, err := ReadResource(s.Layout.Input(p) + ".rsc")
	if err != nil {
		// The dimensions written by WriteFile are enough
		return nil
	}
	res["WIDTH"] = fmt.Sprint(phase.Width)
	res["FILE_LENGTH"] = fmt.Sprint(phase.Height)
	return WriteResource(out+".rsc", res)
}
