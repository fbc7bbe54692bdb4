// Package config provides the configuration structure for the unitselect-service.
package config

import (
	"errors"
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/book-expert/unitselect-service/internal/core"
	"github.com/book-expert/unitselect-service/internal/inventory"
	"github.com/book-expert/unitselect-service/internal/viterbi"
)

// ErrWorkersNegative indicates that the worker count is negative.
var ErrWorkersNegative = errors.New("workers must be non-negative")

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL              string `toml:"url"`
	SelectionSubject string `toml:"selection_subject"`
	InventoryBucket  string `toml:"inventory_bucket"`
	ResultBucket     string `toml:"result_bucket"`
}

// SelectionConfig holds the search defaults of the service. Omitted values
// fall back to an exhaustive search with viterbi.DefaultContinuityWeight.
type SelectionConfig struct {
	BeamWidth        *int      `toml:"beam_width"`
	ContinuityWeight *float64  `toml:"continuity_weight"`
	Workers          int       `toml:"workers"`
	FeatureWeights   []float64 `toml:"feature_weights"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS      NATSConfig      `toml:"nats"`
	Selection SelectionConfig `toml:"selection"`
	Paths     PathsConfig     `toml:"paths"`
}

// Load loads the configuration for the unitselect-service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	err = cfg.Selection.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid selection configuration: %w", err)
	}

	return &cfg, nil
}

// Core converts the file settings into per-job search settings.
func (s SelectionConfig) Core() core.SelectionConfig {
	beam := viterbi.Exhaustive
	if s.BeamWidth != nil {
		beam = *s.BeamWidth
	}

	weight := viterbi.DefaultContinuityWeight
	if s.ContinuityWeight != nil {
		weight = *s.ContinuityWeight
	}

	return core.SelectionConfig{
		BeamWidth:        beam,
		ContinuityWeight: weight,
		Workers:          s.Workers,
		FeatureWeights:   s.FeatureWeights,
	}
}

// Validate checks the settings against the search engine's rules.
func (s SelectionConfig) Validate() error {
	if s.Workers < 0 {
		return fmt.Errorf("%w: got %d", ErrWorkersNegative, s.Workers)
	}

	err := inventory.ValidateWeights(s.FeatureWeights)
	if err != nil {
		return fmt.Errorf("invalid feature_weights: %w", err)
	}

	c := s.Core()

	return viterbi.Config{
		BeamWidth:        c.BeamWidth,
		ContinuityWeight: c.ContinuityWeight,
		Workers:          c.Workers,
	}.Validate()
}
