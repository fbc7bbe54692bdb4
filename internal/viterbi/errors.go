package viterbi

import (
	"errors"
	"fmt"
)

var (
	// ErrBeamWidthReserved indicates the reserved beam width 0 (general beam search) was requested.
	ErrBeamWidthReserved = errors.New("beam width 0 is reserved and not supported")
	// ErrBeamWidthInvalid indicates a negative beam width other than -1.
	ErrBeamWidthInvalid = errors.New("beam width must be -1 (exhaustive) or positive")
	// ErrContinuityWeight indicates a negative or non-finite continuity weight.
	ErrContinuityWeight = errors.New("continuity weight must be finite and non-negative")
	// ErrMissingModel indicates that a candidate generator or cost model was not supplied.
	ErrMissingModel = errors.New("candidate generator and cost models are required")
	// ErrNoPath indicates that no complete unit sequence survived the search.
	ErrNoPath = errors.New("no path found")
	// ErrInvalidCost indicates that a cost model returned a negative or NaN cost.
	ErrInvalidCost = errors.New("cost must be non-negative")
	// ErrAlreadyRun indicates that Run was called twice on the same engine.
	ErrAlreadyRun = errors.New("engine has already run; construct a new engine per utterance")
	// ErrNotRun indicates that BestSequence was called before Run.
	ErrNotRun = errors.New("engine has not run")
)

func newNoPathError(position int, target Target) error {
	return fmt.Errorf("%w: search ended at target %d (%s)", ErrNoPath, position, target.Name())
}

func newInvalidCostError(kind string, cost float64) error {
	return fmt.Errorf("%w: %s cost %v", ErrInvalidCost, kind, cost)
}
