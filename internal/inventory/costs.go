package inventory

import (
	"fmt"
	"math"

	"github.com/book-expert/unitselect-service/internal/viterbi"
	"gonum.org/v1/gonum/floats"
)

// FeatureCost is a target cost: the weighted Euclidean distance between the
// target's and the unit's feature vectors. Targets without features cost 0.
type FeatureCost struct {
	// Weights scales each squared feature difference. Empty means 1 for all.
	Weights []float64
}

// ValidateWeights checks that every feature weight is finite and non-negative.
func ValidateWeights(weights []float64) error {
	for i, weight := range weights {
		if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
			return fmt.Errorf("%w: weight %d is %v", ErrFeatureWeight, i, weight)
		}
	}

	return nil
}

// TargetCost implements viterbi.TargetCoster.
func (c FeatureCost) TargetCost(target viterbi.Target, unit viterbi.Unit) (float64, error) {
	t, ok := target.(*Target)
	if !ok {
		return 0, fmt.Errorf("%w: target %T", ErrForeignValue, target)
	}

	u, ok := unit.(*Unit)
	if !ok {
		return 0, fmt.Errorf("%w: unit %T", ErrForeignValue, unit)
	}

	if len(t.Features) == 0 {
		return 0, nil
	}

	if len(t.Features) != len(u.Features) {
		return 0, fmt.Errorf("%w: target %s has %d features, unit %d has %d",
			ErrFeatureDimension, t.Phone, len(t.Features), u.Position, len(u.Features))
	}

	if len(c.Weights) == 0 {
		return floats.Distance(t.Features, u.Features, 2), nil
	}

	if len(c.Weights) != len(t.Features) {
		return 0, fmt.Errorf("%w: %d weights for %d features", ErrFeatureDimension, len(c.Weights), len(t.Features))
	}

	err := ValidateWeights(c.Weights)
	if err != nil {
		return 0, err
	}

	squared := make([]float64, len(t.Features))
	floats.SubTo(squared, t.Features, u.Features)
	floats.Mul(squared, squared)
	floats.Mul(squared, c.Weights)

	return math.Sqrt(floats.Sum(squared)), nil
}

// BoundaryJoinCost is a join cost: the Euclidean distance between the left
// unit's closing edge and the right unit's opening edge. Units without edge
// vectors fall back to their features. Recorded cut points are passed on as
// splice annotations.
type BoundaryJoinCost struct{}

// JoinCost implements viterbi.JoinCoster.
func (BoundaryJoinCost) JoinCost(left, right viterbi.Unit, splice *viterbi.Splice) (float64, error) {
	l, ok := left.(*Unit)
	if !ok {
		return 0, fmt.Errorf("%w: unit %T", ErrForeignValue, left)
	}

	r, ok := right.(*Unit)
	if !ok {
		return 0, fmt.Errorf("%w: unit %T", ErrForeignValue, right)
	}

	closing := l.RightEdge
	if len(closing) == 0 {
		closing = l.Features
	}

	opening := r.LeftEdge
	if len(opening) == 0 {
		opening = r.Features
	}

	if len(closing) != len(opening) {
		return 0, fmt.Errorf("%w: units %d and %d have edges of %d and %d values",
			ErrFeatureDimension, l.Position, r.Position, len(closing), len(opening))
	}

	if l.CutOutMS > 0 {
		splice.Set(viterbi.SpliceLeft, milliseconds(l.CutOutMS))
	}

	if r.CutInMS > 0 {
		splice.Set(viterbi.SpliceRight, milliseconds(r.CutInMS))
	}

	if len(closing) == 0 {
		return 0, nil
	}

	return floats.Distance(closing, opening, 2), nil
}

// Models wires the inventory and its reference cost models into a search.
func (inv *Inventory) Models(weights []float64) viterbi.Models {
	return viterbi.Models{
		Candidates: inv,
		TargetCost: FeatureCost{Weights: weights},
		JoinCost:   BoundaryJoinCost{},
	}
}
