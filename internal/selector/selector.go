// Package selector provides the implementation for the Selector interface.
package selector

import (
	"context"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/unitselect-service/internal/core"
	"github.com/book-expert/unitselect-service/internal/inventory"
	"github.com/book-expert/unitselect-service/internal/viterbi"
)

// InventorySelector implements the core.Selector interface by searching a
// TOML voice inventory with the reference feature-distance cost models.
type InventorySelector struct {
	config core.SelectionConfig
	log    *logger.Logger
}

// New creates a new InventorySelector. The default configuration is validated
// here so a bad deployment fails before the first job.
func New(cfg core.SelectionConfig, log *logger.Logger) (*InventorySelector, error) {
	err := validate(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid default selection config: %w", err)
	}

	return &InventorySelector{
		config: cfg,
		log:    log,
	}, nil
}

// GetConfig returns the default selection configuration.
func (s *InventorySelector) GetConfig() core.SelectionConfig {
	return s.config
}

// Select parses the inventory and returns the lowest-cost unit sequence for
// targets. viterbi.ErrNoPath is returned wrapped when no sequence exists.
// The search itself is not interruptible; ctx is only checked before it starts.
func (s *InventorySelector) Select(
	ctx context.Context,
	inventoryData []byte,
	targets []core.TargetSpec,
	cfg core.SelectionConfig,
) (*core.SelectionResult, error) {
	err := ctx.Err()
	if err != nil {
		return nil, fmt.Errorf("selection cancelled before search: %w", err)
	}

	inv, err := inventory.Parse(inventoryData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse inventory: %w", err)
	}

	return s.SelectInventory(inv, targets, cfg)
}

// SelectInventory searches an already loaded inventory. It behaves like
// Select without the parse step.
func (s *InventorySelector) SelectInventory(
	inv *inventory.Inventory,
	targets []core.TargetSpec,
	cfg core.SelectionConfig,
) (*core.SelectionResult, error) {
	err := inventory.ValidateWeights(cfg.FeatureWeights)
	if err != nil {
		return nil, fmt.Errorf("invalid selection config: %w", err)
	}

	searchTargets := make([]inventory.Target, len(targets))
	for i, spec := range targets {
		searchTargets[i] = inventory.Target{Phone: spec.Phone, Features: spec.Features}
	}

	engine, err := viterbi.New(engineConfig(cfg), inv.Models(cfg.FeatureWeights), s.log)
	if err != nil {
		return nil, fmt.Errorf("failed to create search engine: %w", err)
	}

	err = engine.Run(inventory.SearchTargets(searchTargets))
	if err != nil {
		return nil, fmt.Errorf("unit selection failed: %w", err)
	}

	best, err := engine.BestSequence()
	if err != nil {
		return nil, fmt.Errorf("unit selection failed: %w", err)
	}

	return toResult(inv.Name, best), nil
}

func validate(cfg core.SelectionConfig) error {
	err := inventory.ValidateWeights(cfg.FeatureWeights)
	if err != nil {
		return err
	}

	return engineConfig(cfg).Validate()
}

func engineConfig(cfg core.SelectionConfig) viterbi.Config {
	return viterbi.Config{
		BeamWidth:        cfg.BeamWidth,
		ContinuityWeight: cfg.ContinuityWeight,
		Workers:          cfg.Workers,
	}
}

func toResult(name string, best *viterbi.Result) *core.SelectionResult {
	units := make([]core.SelectedUnit, len(best.Selections))

	for i, selection := range best.Selections {
		units[i] = core.SelectedUnit{
			Phone:         selection.Target.Name(),
			UnitIndex:     selection.Unit.Index(),
			DurationMS:    toMilliseconds(selection.Unit.Duration()),
			TargetCost:    selection.TargetCost,
			JoinCost:      selection.JoinCost,
			SpliceLeftMS:  spliceMilliseconds(selection.Splice, viterbi.SpliceLeft),
			SpliceRightMS: spliceMilliseconds(selection.Splice, viterbi.SpliceRight),
		}
	}

	return &core.SelectionResult{
		Inventory: name,
		Score:     best.Score,
		Units:     units,
	}
}

func spliceMilliseconds(splice viterbi.Splice, kind viterbi.SpliceKind) *float64 {
	offset, ok := splice.Get(kind)
	if !ok {
		return nil
	}

	ms := toMilliseconds(offset)

	return &ms
}

func toMilliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
