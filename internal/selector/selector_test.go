// Package selector_test tests the Selector implementation.
package selector_test

import (
	"context"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/unitselect-service/internal/core"
	"github.com/book-expert/unitselect-service/internal/inventory"
	"github.com/book-expert/unitselect-service/internal/selector"
	"github.com/book-expert/unitselect-service/internal/viterbi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const voice = `
name = "test-voice"
sample_rate = 22050

[[units]]
index = 10
phone = "k"
duration_ms = 50.0
features = [1.0]
right_edge = [0.0]
left_edge = [0.0]
cut_out_ms = 45.0

[[units]]
index = 20
phone = "a"
duration_ms = 120.0
features = [2.0]
left_edge = [3.0]
right_edge = [0.0]
cut_in_ms = 6.0

[[units]]
index = 11
phone = "a"
duration_ms = 110.0
features = [4.0]
left_edge = [9.0]
right_edge = [0.0]
`

func defaultConfig() core.SelectionConfig {
	return core.SelectionConfig{
		BeamWidth:        viterbi.Exhaustive,
		ContinuityWeight: 1,
		Workers:          2,
		FeatureWeights:   nil,
	}
}

func newSelector(t *testing.T) *selector.InventorySelector {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "selector-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = testLogger.Close() })

	sel, err := selector.New(defaultConfig(), testLogger)
	require.NoError(t, err)

	return sel
}

func TestNew_RejectsReservedBeamWidth(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.BeamWidth = 0

	_, err := selector.New(cfg, nil)
	require.ErrorIs(t, err, viterbi.ErrBeamWidthReserved)
}

func TestNew_RejectsNegativeFeatureWeights(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.FeatureWeights = []float64{-1}

	_, err := selector.New(cfg, nil)
	require.ErrorIs(t, err, inventory.ErrFeatureWeight)

	sel := newSelector(t)

	_, err = sel.Select(context.Background(), []byte(voice), []core.TargetSpec{{Phone: "k", Features: []float64{1}}}, cfg)
	require.ErrorIs(t, err, inventory.ErrFeatureWeight)
}

func TestSelectInventory_UsesLoadedInventory(t *testing.T) {
	t.Parallel()

	inv, err := inventory.Parse([]byte(voice))
	require.NoError(t, err)

	sel := newSelector(t)

	result, err := sel.SelectInventory(inv, []core.TargetSpec{{Phone: "k", Features: []float64{1}}}, defaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "test-voice", result.Inventory)
	require.Len(t, result.Units, 1)
	assert.Equal(t, 10, result.Units[0].UnitIndex)
	assert.Zero(t, result.Score)
}

func TestSelect_ContiguousUnitWins(t *testing.T) {
	t.Parallel()

	sel := newSelector(t)
	targets := []core.TargetSpec{
		{Phone: "k", Features: []float64{1}},
		{Phone: "a", Features: []float64{2}},
	}

	// Unit 20 matches the target exactly but joins at distance 3; unit 11
	// costs 2 but is contiguous with unit 10.
	result, err := sel.Select(context.Background(), []byte(voice), targets, sel.GetConfig())
	require.NoError(t, err)

	require.Len(t, result.Units, 2)
	assert.Equal(t, "test-voice", result.Inventory)
	assert.Equal(t, 10, result.Units[0].UnitIndex)
	assert.Equal(t, 11, result.Units[1].UnitIndex)
	assert.InDelta(t, 2.0, result.Score, 1e-9)
	assert.Nil(t, result.Units[1].SpliceLeftMS)
}

func TestSelect_WeightedJoinRecordsSplice(t *testing.T) {
	t.Parallel()

	sel := newSelector(t)
	targets := []core.TargetSpec{
		{Phone: "k", Features: []float64{1}},
		{Phone: "a", Features: []float64{2}},
	}

	cfg := sel.GetConfig()
	cfg.ContinuityWeight = 0.5

	result, err := sel.Select(context.Background(), []byte(voice), targets, cfg)
	require.NoError(t, err)

	require.Len(t, result.Units, 2)
	assert.Equal(t, 20, result.Units[1].UnitIndex)
	assert.InDelta(t, 1.5, result.Score, 1e-9)
	assert.InDelta(t, 1.5, result.Units[1].JoinCost, 1e-9)
	require.NotNil(t, result.Units[1].SpliceLeftMS)
	assert.InDelta(t, 45.0, *result.Units[1].SpliceLeftMS, 1e-9)
	require.NotNil(t, result.Units[1].SpliceRightMS)
	assert.InDelta(t, 6.0, *result.Units[1].SpliceRightMS, 1e-9)
	assert.InDelta(t, 120.0, result.Units[1].DurationMS, 1e-9)
}

func TestSelect_NoPath(t *testing.T) {
	t.Parallel()

	sel := newSelector(t)
	targets := []core.TargetSpec{{Phone: "k", Features: nil}, {Phone: "zh", Features: nil}}

	_, err := sel.Select(context.Background(), []byte(voice), targets, sel.GetConfig())
	require.ErrorIs(t, err, viterbi.ErrNoPath)
}

func TestSelect_EmptyTargets(t *testing.T) {
	t.Parallel()

	sel := newSelector(t)

	result, err := sel.Select(context.Background(), []byte(voice), nil, sel.GetConfig())
	require.NoError(t, err)
	assert.Empty(t, result.Units)
}

func TestSelect_Errors(t *testing.T) {
	t.Parallel()

	sel := newSelector(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sel.Select(ctx, []byte(voice), nil, sel.GetConfig())
	require.ErrorIs(t, err, context.Canceled)

	_, err = sel.Select(context.Background(), []byte("not = [toml"), nil, sel.GetConfig())
	require.Error(t, err)

	cfg := sel.GetConfig()
	cfg.BeamWidth = 0

	_, err = sel.Select(context.Background(), []byte(voice), nil, cfg)
	require.ErrorIs(t, err, viterbi.ErrBeamWidthReserved)
}
