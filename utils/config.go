package utils

import (
	"fmt"
	"io/ioutil"
	"strings"

	"gopkg.in/yaml.v2"
)

// FeatureSpec declares one feature band of the stack. Name must match
// the base name of the single-band GeoTIFF carrying the feature. An
// optional feature whose band is absent is omitted from the output
// schema with a metadata note instead of aborting the run.
type FeatureSpec struct {
	Name     string `yaml:"name"`
	File     string `yaml:"file,omitempty"`
	Optional bool   `yaml:"optional,omitempty"`
}

// DerivedFeature is a computed column evaluated from band values,
// e.g. "rough / (slope + 1)". Variables reference feature names.
type DerivedFeature struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"expression"`
	Optional   bool   `yaml:"optional,omitempty"`
}

// Config is the immutable run configuration. It is loaded once, flag
// overrides are applied in main, and every component receives it (or
// the fields it needs) at construction. There is no process-wide
// mutable pipeline state.
type Config struct {
	InputDir  string `yaml:"input_dir"`
	OutputDir string `yaml:"output_dir"`

	Features []FeatureSpec    `yaml:"features,omitempty"`
	Derived  []DerivedFeature `yaml:"derived_features,omitempty"`

	Direction string `yaml:"direction"`
	PathFile  string `yaml:"path_file,omitempty"`
	NumPoints int    `yaml:"num_points"`

	WindowSize  int  `yaml:"window_size"`
	WindowStep  int  `yaml:"window_step"`
	Derivatives bool `yaml:"derivatives"`

	NoData float64 `yaml:"nodata"`

	GridModes    []string `yaml:"grid_modes,omitempty"`
	PerFeature   bool     `yaml:"per_feature"`
	Sonification bool     `yaml:"sonification"`

	MetricsLogDir string `yaml:"metrics_log_dir,omitempty"`
	Verbose       bool   `yaml:"verbose"`
}

const DefaultNoData = -9999.0

var validDirections = map[string]bool{
	"left_to_right": true,
	"top_to_bottom": true,
	"diagonal":      true,
	"external_path": true,
}

var validGridModes = map[string]bool{
	"full":       true,
	"column":     true,
	"columnwise": true,
}

// LoadConfig reads a YAML run configuration and applies defaults.
func LoadConfig(configFile string) (*Config, error) {
	cfg := &Config{
		Direction:  "left_to_right",
		NumPoints:  100,
		WindowSize: 5,
		WindowStep: 1,
		NoData:     DefaultNoData,
	}

	data, err := ioutil.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %v", configFile, err)
	}

	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %v", configFile, err)
	}

	return cfg, nil
}

// Validate checks the configuration before any component is built.
func (cfg *Config) Validate() error {
	if len(cfg.InputDir) == 0 {
		return fmt.Errorf("config: input_dir is required")
	}
	if len(cfg.OutputDir) == 0 {
		return fmt.Errorf("config: output_dir is required")
	}
	if !validDirections[cfg.Direction] {
		return fmt.Errorf("config: invalid direction '%s'", cfg.Direction)
	}
	if cfg.Direction == "external_path" && len(cfg.PathFile) == 0 {
		return fmt.Errorf("config: direction external_path requires path_file")
	}
	if cfg.Direction != "external_path" && cfg.NumPoints <= 0 {
		return fmt.Errorf("config: num_points must be positive, got %d", cfg.NumPoints)
	}
	if cfg.WindowSize > 0 {
		if cfg.WindowStep <= 0 || cfg.WindowStep > cfg.WindowSize {
			return fmt.Errorf("config: window requires size >= step > 0, got size %d step %d",
				cfg.WindowSize, cfg.WindowStep)
		}
	}
	for _, mode := range cfg.GridModes {
		if !validGridModes[strings.ToLower(mode)] {
			return fmt.Errorf("config: unknown grid mode '%s'", mode)
		}
	}
	for _, df := range cfg.Derived {
		if len(df.Name) == 0 || len(df.Expression) == 0 {
			return fmt.Errorf("config: derived feature requires name and expression")
		}
	}
	return nil
}

// FeatureNames lists declared feature names in declaration order.
func (cfg *Config) FeatureNames() []string {
	names := make([]string, len(cfg.Features))
	for i, f := range cfg.Features {
		names[i] = f.Name
	}
	return names
}
