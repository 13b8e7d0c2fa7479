// Package config loads run configuration and the files it references.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/geolm/pkg/geolm/discount"
	"github.com/cognicore/geolm/pkg/geolm/internalerr"
	"github.com/cognicore/geolm/pkg/geolm/langmodel"
)

// Lookup policies accepted in Config.Lookup.
const (
	LookupDefault     = "default"
	LookupInterpolate = "interpolate"
	LookupBackoff     = "backoff"
)

// Config is the run configuration read from YAML.
type Config struct {
	Strategy      string  `yaml:"strategy"`
	Factor        float64 `yaml:"factor"`
	Lookup        string  `yaml:"lookup"`
	TFIDF         bool    `yaml:"tfidf"`
	MinCount      float64 `yaml:"min_count"`
	IgnoreCase    bool    `yaml:"ignore_case"`
	Order         int     `yaml:"order"`
	DefaultWeight float64 `yaml:"default_weight"`
	Stoplist      string  `yaml:"stoplist"`
	Whitelist     string  `yaml:"whitelist"`
	Weights       string  `yaml:"weights"`
	KLMode        string  `yaml:"kl_mode"`

	// dir is where the config file lives; relative file references resolve
	// against it.
	dir string
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Strategy:      "dirichlet",
		Lookup:        LookupDefault,
		MinCount:      1,
		IgnoreCase:    true,
		Order:         1,
		DefaultWeight: 1,
		KLMode:        "fast",
	}
}

// Load reads a YAML config file on top of Default and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field. Errors wrap internalerr.ErrInvalidConfig.
func (c *Config) Validate() error {
	if _, err := c.DiscountStrategy(); err != nil {
		return err
	}
	if _, err := c.Interpolate(); err != nil {
		return err
	}
	if _, err := langmodel.ParseKLMode(c.KLMode); err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	if c.MinCount < 0 {
		return fmt.Errorf("%w: min_count %v is negative", internalerr.ErrInvalidConfig, c.MinCount)
	}
	if c.Order < 1 {
		return fmt.Errorf("%w: order %d must be at least 1", internalerr.ErrInvalidConfig, c.Order)
	}
	if c.DefaultWeight < 0 {
		return fmt.Errorf("%w: default_weight %v is negative", internalerr.ErrInvalidConfig, c.DefaultWeight)
	}
	return nil
}

// DiscountStrategy resolves Strategy and Factor. A zero factor selects the
// strategy's default.
func (c *Config) DiscountStrategy() (discount.Strategy, error) {
	return discount.Parse(c.Strategy, c.Factor)
}

// Interpolate resolves Lookup. "default" picks the strategy's usual policy.
func (c *Config) Interpolate() (bool, error) {
	switch c.Lookup {
	case "", LookupDefault:
		s, err := c.DiscountStrategy()
		if err != nil {
			return false, err
		}
		return s.DefaultInterpolate(), nil
	case LookupInterpolate:
		return true, nil
	case LookupBackoff:
		return false, nil
	}
	return false, fmt.Errorf("%w: unknown lookup %q", internalerr.ErrInvalidConfig, c.Lookup)
}

// resolve makes a file reference absolute relative to the config file.
func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.dir == "" {
		return path
	}
	return filepath.Join(c.dir, path)
}

// Terms is a stoplist or whitelist file.
type Terms struct {
	Terms []string `yaml:"terms"`
}

// LoadTerms loads a term list from a YAML file.
func LoadTerms(path string) (*Terms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var t Terms
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}

	return &t, nil
}

// Weights is a per-gram weight file. Keys are words, or n-gram words
// separated by spaces.
type Weights struct {
	Weights map[string]float64 `yaml:"weights"`
}

// LoadWeights loads gram weights from a YAML file
func LoadWeights(path string) (*Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var w Weights
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	for k, v := range w.Weights {
		if v < 0 {
			return nil, fmt.Errorf("%w: weight %v for %q is negative", internalerr.ErrInvalidConfig, v, k)
		}
	}

	return &w, nil
}
