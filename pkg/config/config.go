// Package config provides configuration loading and management for rampcorr.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// ErrNoGeometry is returned when neither an elevation file nor a reference
// interferogram is configured: the image geometry cannot be determined.
var ErrNoGeometry = errors.New("config: need an elevation file or a reference interferogram")

// Config represents the application configuration loaded from YAML
type Config struct {
	// Input files and naming of the interferogram stack
	Input struct {
		// PairList is the two-column list of interferograms "date1 date2"
		PairList string `yaml:"pairList"`

		// InterferogramDir holds one int_<date1>_<date2> folder per pair
		InterferogramDir string `yaml:"interferogramDir"`

		// BaselineFile lists acquisitions: id, perpendicular and temporal baseline
		BaselineFile string `yaml:"baselineFile"`

		// Prefix, Suffix and Rlook build $prefix$date1-$date2$suffix_$rlookrlks.unw
		Prefix string `yaml:"prefix"`
		Suffix string `yaml:"suffix"`
		Rlook  string `yaml:"rlook"`

		// ElevationFile is the two-band radar_look.hgt file (band 2 used).
		// Optional when ReferenceFile is set.
		ElevationFile string `yaml:"elevationFile"`

		// ReferenceFile is an interferogram defining the geometry when no
		// elevation file is given
		ReferenceFile string `yaml:"referenceFile"`

		// MaskFile is an optional float32 .r4 mask
		MaskFile string `yaml:"maskFile"`
	} `yaml:"input"`

	// Model selection
	Model struct {
		// Flatten is the ramp order: 0 reference frame, 1 range, 2 azimuth,
		// 3 range+azimuth, 4 bilinear, 5 range quadratic, 6 azimuth quadratic
		Flatten int `yaml:"flatten"`

		// Ivar selects elevation (0) or crossed azimuth/elevation (1) terms
		Ivar int `yaml:"ivar"`

		// Nfit is the fit degree of the elevation terms (0 linear, 1 quadratic)
		Nfit int `yaml:"nfit"`
	} `yaml:"model"`

	// Sampling criteria for the estimation zone
	Sampling struct {
		// Percentile clips phase outliers to [100-perc, perc]
		Percentile float64 `yaml:"percentile"`

		// MaskThreshold keeps mask values strictly above it
		MaskThreshold float64 `yaml:"maskThreshold"`

		// UseQuality masks and weights pixels with the quality band
		UseQuality bool `yaml:"useQuality"`

		// QualityThreshold keeps quality values strictly above it
		QualityThreshold float64 `yaml:"qualityThreshold"`

		// ExcludeBegin and ExcludeEnd bound a band of lines never used for
		// the estimation. Both must be set to enable it.
		ExcludeBegin *int `yaml:"excludeBegin,omitempty"`
		ExcludeEnd   *int `yaml:"excludeEnd,omitempty"`

		// Region bounds the estimation zone; negative ends mean image size
		RowBegin int `yaml:"rowBegin"`
		RowEnd   int `yaml:"rowEnd"`
		ColBegin int `yaml:"colBegin"`
		ColEnd   int `yaml:"colEnd"`
	} `yaml:"sampling"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many pairs are estimated concurrently
		NumCores int `yaml:"numCores"`

		// Estimate runs the per-pair estimation; otherwise the coefficient
		// table is read back from disk
		Estimate bool `yaml:"estimate"`

		// Invert runs the network inversion of the coefficients
		Invert bool `yaml:"invert"`

		// PairIterations and NetworkIterations cap the weighted refinements
		PairIterations    int `yaml:"pairIterations"`
		NetworkIterations int `yaml:"networkIterations"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Dir receives the coefficient and RMS tables
		Dir string `yaml:"dir"`

		// CoefficientTable is the file name of the pair coefficient table
		CoefficientTable string `yaml:"coefficientTable"`

		// InvertedTable is the file name of the reconciled coefficient
		// table written after a network inversion
		InvertedTable string `yaml:"invertedTable"`

		// RMSTable is the file name of the RMS table
		RMSTable string `yaml:"rmsTable"`

		// Suffix is inserted before the look suffix of corrected interferogram names
		Suffix string `yaml:"suffix"`

		// Plot writes PNG quicklooks next to every interferogram
		Plot bool `yaml:"plot"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Input.BaselineFile = "baseline.rsc"
	cfg.Input.PairList = "interf_pair.rsc"

	cfg.Model.Flatten = 0
	cfg.Model.Ivar = 0
	cfg.Model.Nfit = 0

	cfg.Sampling.Percentile = 98
	cfg.Sampling.MaskThreshold = -1
	cfg.Sampling.UseQuality = false
	cfg.Sampling.QualityThreshold = 0
	cfg.Sampling.RowBegin = 0
	cfg.Sampling.RowEnd = -1
	cfg.Sampling.ColBegin = 0
	cfg.Sampling.ColEnd = -1

	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.Estimate = true
	cfg.Processing.Invert = false
	cfg.Processing.PairIterations = 50
	cfg.Processing.NetworkIterations = 500

	cfg.Output.Dir = "."
	cfg.Output.CoefficientTable = "liste_coeff_ramps.txt"
	cfg.Output.InvertedTable = "liste_coeff_ramps_inv.txt"
	cfg.Output.RMSTable = "rms_unwcor.txt"
	cfg.Output.Suffix = "corrunw"
	cfg.Output.Plot = false
	cfg.Output.Verbose = true

	return cfg
}

// Validate checks value ranges and that the image geometry can be determined
func (c *Config) Validate() error {
	if c.Input.ElevationFile == "" && c.Input.ReferenceFile == "" {
		return ErrNoGeometry
	}
	if c.Input.PairList == "" || c.Input.BaselineFile == "" {
		return fmt.Errorf("config: pair list and baseline file are required")
	}
	if c.Model.Flatten < 0 || c.Model.Flatten > 6 {
		return fmt.Errorf("config: flatten %d out of range [0,6]", c.Model.Flatten)
	}
	if c.Model.Ivar < 0 || c.Model.Ivar > 1 {
		return fmt.Errorf("config: ivar %d out of range [0,1]", c.Model.Ivar)
	}
	if c.Model.Nfit < 0 || c.Model.Nfit > 1 {
		return fmt.Errorf("config: nfit %d out of range [0,1]", c.Model.Nfit)
	}
	if c.Sampling.Percentile <= 50 || c.Sampling.Percentile > 100 {
		return fmt.Errorf("config: percentile %g out of range (50,100]", c.Sampling.Percentile)
	}
	if (c.Sampling.ExcludeBegin == nil) != (c.Sampling.ExcludeEnd == nil) {
		return fmt.Errorf("config: excludeBegin and excludeEnd must be set together")
	}
	if c.Processing.NumCores < 1 {
		return fmt.Errorf("config: numCores must be positive")
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
