package config

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cognicore/geolm/pkg/geolm/builder"
	"github.com/cognicore/geolm/pkg/geolm/discount"
	"github.com/cognicore/geolm/pkg/geolm/langmodel"
	"github.com/cognicore/geolm/pkg/geolm/stoplist"
)

// Loader resolves a Config's file references and constructs components
type Loader struct {
	Config *Config
}

// Components holds everything a run needs from configuration
type Components struct {
	Strategy    discount.Strategy
	Interpolate bool
	KLMode      langmodel.KLMode
	TFIDF       bool
	Stoplist    *stoplist.Manager
	Whitelist   []string
	Weights     map[string]float64

	cfg *Config
}

// Load reads the referenced files and returns initialized components
func (l *Loader) Load() (*Components, error) {
	cfg := l.Config
	if cfg == nil {
		cfg = Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	comp := &Components{TFIDF: cfg.TFIDF, cfg: cfg}
	comp.Strategy, _ = cfg.DiscountStrategy()
	comp.Interpolate, _ = cfg.Interpolate()
	comp.KLMode, _ = langmodel.ParseKLMode(cfg.KLMode)

	// Load stoplist
	if cfg.Stoplist != "" {
		terms, err := LoadTerms(cfg.resolve(cfg.Stoplist))
		if err != nil {
			return nil, fmt.Errorf("load stoplist: %w", err)
		}
		comp.Stoplist = stoplist.NewManager(terms.Terms)
	} else {
		comp.Stoplist = stoplist.NewManager(nil)
	}

	// Load whitelist
	if cfg.Whitelist != "" {
		terms, err := LoadTerms(cfg.resolve(cfg.Whitelist))
		if err != nil {
			return nil, fmt.Errorf("load whitelist: %w", err)
		}
		comp.Whitelist = terms.Terms
	}

	// Load weights
	if cfg.Weights != "" {
		w, err := LoadWeights(cfg.resolve(cfg.Weights))
		if err != nil {
			return nil, fmt.Errorf("load weights: %w", err)
		}
		comp.Weights = w.Weights
		if comp.Weights == nil {
			comp.Weights = map[string]float64{}
		}
	}

	return comp, nil
}

// ModelOptions returns the smoothing settings shared by every model.
func (c *Components) ModelOptions() langmodel.Options {
	return langmodel.Options{
		Strategy:    c.Strategy,
		Interpolate: c.Interpolate,
		MinCount:    c.cfg.MinCount,
		Order:       c.cfg.Order,
	}
}

// BuilderOptions returns builder settings with the given logger.
func (c *Components) BuilderOptions(logger *zap.Logger) builder.Options {
	return builder.Options{
		Model:         c.ModelOptions(),
		IgnoreCase:    c.cfg.IgnoreCase,
		Stoplist:      c.Stoplist,
		Whitelist:     c.Whitelist,
		Weights:       c.Weights,
		DefaultWeight: c.cfg.DefaultWeight,
		Logger:        logger,
	}
}
