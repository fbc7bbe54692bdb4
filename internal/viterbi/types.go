// Package viterbi implements the unit-selection search: given a sequence of
// targets and a pool of recorded candidate units per target, it finds the unit
// sequence that minimises the summed target and join costs.
package viterbi

import (
	"time"
)

// Target is one segment to be synthesised. The search only reads it.
type Target interface {
	Name() string
}

// Unit is a reference to a recorded speech segment in a voice database.
type Unit interface {
	// Index is the unit's position in the database. Two units are contiguous
	// when the right index is the left index plus one.
	Index() int
	// Duration is the audio length of the unit. Zero-length units never join.
	Duration() time.Duration
}

// CandidateGenerator returns the admissible units for a target, in pool order.
type CandidateGenerator interface {
	Candidates(target Target) ([]Unit, error)
}

// TargetCoster scores how well a unit realises a target in isolation.
// Results must be deterministic and non-negative.
type TargetCoster interface {
	TargetCost(target Target, unit Unit) (float64, error)
}

// JoinCoster scores the acoustic discontinuity of concatenating left and
// right. It may return +Inf and may record cut points in splice.
type JoinCoster interface {
	JoinCost(left, right Unit, splice *Splice) (float64, error)
}

// Models bundles the pluggable collaborators of one search.
type Models struct {
	Candidates CandidateGenerator
	TargetCost TargetCoster
	JoinCost   JoinCoster
}

// SpliceKind enumerates the annotations a join cost model may record.
type SpliceKind int

const (
	// SpliceLeft is the cut point inside the left unit of a join.
	SpliceLeft SpliceKind = iota
	// SpliceRight is the cut point inside the right unit of a join.
	SpliceRight

	spliceKinds
)

// String returns the annotation name.
func (k SpliceKind) String() string {
	switch k {
	case SpliceLeft:
		return "splice-left"
	case SpliceRight:
		return "splice-right"
	default:
		return "unknown"
	}
}

// Splice holds the cut points chosen for one join. Every kind is either unset
// or carries an offset measured from the start of its unit.
type Splice struct {
	offsets [spliceKinds]time.Duration
	set     [spliceKinds]bool
}

// Set records the offset for kind. Unknown kinds are ignored.
func (s *Splice) Set(kind SpliceKind, offset time.Duration) {
	if kind < 0 || kind >= spliceKinds {
		return
	}

	s.offsets[kind] = offset
	s.set[kind] = true
}

// Get returns the offset for kind and whether it was recorded.
func (s Splice) Get(kind SpliceKind) (time.Duration, bool) {
	if kind < 0 || kind >= spliceKinds {
		return 0, false
	}

	return s.offsets[kind], s.set[kind]
}

// Empty reports whether no annotation was recorded.
func (s Splice) Empty() bool {
	for _, ok := range s.set {
		if ok {
			return false
		}
	}

	return true
}

// costCell caches a target cost that is computed at most once.
type costCell struct {
	value    float64
	computed bool
}

func (c *costCell) get() (float64, bool) {
	return c.value, c.computed
}

func (c *costCell) store(value float64) {
	c.value = value
	c.computed = true
}

// Selection is one (target, unit) binding of the winning sequence.
type Selection struct {
	Target     Target
	Unit       Unit
	TargetCost float64
	// JoinCost is the weighted cost of joining to the previous selection.
	JoinCost float64
	// Splice holds the annotations recorded on the join with the previous
	// selection. It is empty for the first selection.
	Splice Splice
}

// Result is the best unit sequence and its cumulative score.
type Result struct {
	Selections []Selection
	Score      float64
}
