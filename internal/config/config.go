// Package config loads and validates run configuration.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file, then explicitly set command-line flags (applied by the caller).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/circlemosaic/internal/fit"
	"github.com/cwbudde/circlemosaic/internal/opt"
)

var validate = validator.New()

// unset marks integer options that have no default and must be provided
const unset = -1

// Config is the complete configuration of a reconstruction run
type Config struct {
	Input         string `json:"input" yaml:"input" validate:"required"`
	OutputDir     string `json:"output_dir" yaml:"output_dir" validate:"required"`
	LogDir        string `json:"log_dir" yaml:"log_dir"`
	DataDir       string `json:"data_dir" yaml:"data_dir"`
	Quality       int    `json:"quality" yaml:"quality" validate:"gte=0,lte=100"`
	MaxRadius     int    `json:"max_radius" yaml:"max_radius" validate:"gt=0"`
	Size          int    `json:"size" yaml:"size" validate:"gt=0"`
	Seed          uint64 `json:"seed" yaml:"seed"`
	Workers       int    `json:"workers" yaml:"workers" validate:"gte=0"`
	MaxIterations int    `json:"max_iterations" yaml:"max_iterations" validate:"gte=0"`
	Patience      int    `json:"patience" yaml:"patience" validate:"gte=0"`
	Background    string `json:"background" yaml:"background" validate:"hexcolor"`
}

// Default returns the configuration before file and flags are applied.
// Quality and MaxRadius have no default.
func Default() Config {
	return Config{
		OutputDir:     "results",
		LogDir:        "logs",
		DataDir:       "./data",
		Quality:       unset,
		MaxRadius:     unset,
		Size:          fit.DefaultSize,
		Seed:          42,
		Workers:       runtime.NumCPU(),
		MaxIterations: opt.DefaultMaxIterations,
		Background:    "#000000",
	}
}

// Load returns the defaults overlaid with the YAML file at path (if any).
// A relative input path in the file is resolved against the file's directory.
// Output, log and data directories stay relative to the working directory.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", filepath.Base(path), err)
	}

	cfg.Input = relativeTo(filepath.Dir(path), cfg.Input)
	return cfg, nil
}

// relativeTo joins a relative, non-home path onto dir
func relativeTo(dir, path string) string {
	if path == "" || filepath.IsAbs(path) || path == "~" || strings.HasPrefix(path, "~/") {
		return path
	}
	return filepath.Join(dir, path)
}

// ValidationError lists the fields that failed validation
type ValidationError struct {
	Fields []string
	Err    error
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Fields, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks every field against its constraints
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, describe(fe))
	}
	return &ValidationError{Fields: fields, Err: err}
}

func describe(fe validator.FieldError) string {
	switch fe.Field() {
	case "Input":
		return "input image is required"
	case "Quality":
		return fmt.Sprintf("quality must be an integer between 0 and 100 (got %v)", unsetOr(fe.Value()))
	case "MaxRadius":
		return fmt.Sprintf("max radius must be a positive integer (got %v)", unsetOr(fe.Value()))
	case "Background":
		return fmt.Sprintf("background must be a hex color like #000000 (got %q)", fe.Value())
	default:
		return fmt.Sprintf("%s failed %q constraint (got %v)", fe.Field(), fe.Tag(), fe.Value())
	}
}

func unsetOr(v any) any {
	if i, ok := v.(int); ok && i == unset {
		return "nothing"
	}
	return v
}

// Fit converts the configuration into the immutable pipeline config
func (c Config) Fit() (fit.Config, error) {
	if err := c.Validate(); err != nil {
		return fit.Config{}, err
	}

	bg, err := fit.ParseHexColor(c.Background)
	if err != nil {
		return fit.Config{}, fmt.Errorf("background: %w", err)
	}

	return fit.Config{
		Size:       c.Size,
		MaxRadius:  c.MaxRadius,
		Quality:    c.Quality,
		Background: bg,
		Seed:       c.Seed,
		Workers:    c.Workers,
		Budget: opt.Budget{
			MaxIterations: c.MaxIterations,
			Patience:      c.Patience,
		},
	}, nil
}

// Stem returns the input file name without directory and extension
func (c Config) Stem() string {
	base := filepath.Base(c.Input)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// tag encodes the parameters that identify a run's output
func (c Config) tag() string {
	return fmt.Sprintf("radius=%d_quality=%d_circles=%d_%s", c.MaxRadius, c.Quality, c.Size*c.Size, c.Stem())
}

// OutputPath returns the deterministic path of the result image
func (c Config) OutputPath() string {
	return filepath.Join(c.OutputDir, "result_"+c.tag()+".png")
}

// LogPath returns the deterministic path of the per-circle progress log
func (c Config) LogPath() string {
	return filepath.Join(c.LogDir, "logs_"+c.tag()+".log")
}
