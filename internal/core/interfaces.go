// Package core defines the core business logic and interfaces for the unit-selection service.
package core

import (
	"context"

	"github.com/book-expert/events"
)

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// SelectionConfig holds the search settings for a single selection job.
// This allows for per-request customization of the search.
type SelectionConfig struct {
	BeamWidth        int
	ContinuityWeight float64
	Workers          int
	FeatureWeights   []float64
}

// TargetSpec is one phone to synthesise, as produced by the linguistic front end.
type TargetSpec struct {
	Phone    string    `json:"phone"`
	Features []float64 `json:"features,omitempty"`
}

// SelectedUnit is one unit of a winning sequence.
type SelectedUnit struct {
	Phone      string  `json:"phone"`
	UnitIndex  int     `json:"unit_index"`
	DurationMS float64 `json:"duration_ms"`
	TargetCost float64 `json:"target_cost"`
	JoinCost   float64 `json:"join_cost"`
	// SpliceLeftMS and SpliceRightMS are the cut points chosen for the join
	// with the previous unit, when the join cost model recorded them.
	SpliceLeftMS  *float64 `json:"splice_left_ms,omitempty"`
	SpliceRightMS *float64 `json:"splice_right_ms,omitempty"`
}

// SelectionResult is the outcome of a successful search.
type SelectionResult struct {
	Inventory string         `json:"inventory"`
	Score     float64        `json:"score"`
	Units     []SelectedUnit `json:"units"`
}

// Selector defines the interface for a unit-selection engine.
type Selector interface {
	Select(ctx context.Context, inventory []byte, targets []TargetSpec, cfg SelectionConfig) (*SelectionResult, error)
	GetConfig() SelectionConfig
}

// SelectionRequest asks for the best unit sequence for targets from the
// inventory stored under InventoryKey. Nil overrides keep the service defaults.
type SelectionRequest struct {
	Header           events.EventHeader `json:"header"`
	InventoryKey     string             `json:"inventory_key"`
	Targets          []TargetSpec       `json:"targets"`
	BeamWidth        *int               `json:"beam_width,omitempty"`
	ContinuityWeight *float64           `json:"continuity_weight,omitempty"`
}

// SelectionReply answers a SelectionRequest. On failure Error is set and
// NoPath reports whether the search itself found no sequence.
type SelectionReply struct {
	Header    events.EventHeader `json:"header"`
	ResultKey string             `json:"result_key,omitempty"`
	Score     float64            `json:"score"`
	Units     []SelectedUnit     `json:"units,omitempty"`
	Error     string             `json:"error,omitempty"`
	NoPath    bool               `json:"no_path,omitempty"`
}
