package viterbi

import "math"

// Stats are diagnostic counters for tuning. They never influence the search.
type Stats struct {
	// TargetCostCalls counts target cost model evaluations, one per candidate.
	TargetCostCalls int
	// TargetCostTotal sums the finite target costs returned.
	TargetCostTotal float64
	// InfiniteTargets counts target cost evaluations that returned +Inf.
	InfiniteTargets int
	// JoinCostCalls counts join cost model evaluations.
	JoinCostCalls int
	// JoinCostTotal sums the finite weighted join costs returned by the model.
	JoinCostTotal float64
	// InfiniteJoins counts model evaluations that returned +Inf.
	InfiniteJoins int
	// ContiguousJoins counts joins skipped because the units were contiguous.
	ContiguousJoins int
	// VetoedJoins counts joins refused because a unit had zero duration.
	VetoedJoins int
	// Admitted counts extensions retained at their candidate.
	Admitted int
	// Replaced counts admitted extensions that displaced a worse path.
	Replaced int
	// Rejected counts extensions discarded as infinite or not strictly better.
	Rejected int
}

// MeanTargetCost is the running average of finite target costs.
func (s Stats) MeanTargetCost() float64 {
	finite := s.TargetCostCalls - s.InfiniteTargets
	if finite <= 0 {
		return 0
	}

	return s.TargetCostTotal / float64(finite)
}

// MeanJoinCost is the running average of finite join model costs.
func (s Stats) MeanJoinCost() float64 {
	finite := s.JoinCostCalls - s.InfiniteJoins
	if finite <= 0 {
		return 0
	}

	return s.JoinCostTotal / float64(finite)
}

func (s *Stats) recordTarget(cost float64) {
	s.TargetCostCalls++

	if math.IsInf(cost, 1) {
		s.InfiniteTargets++

		return
	}

	s.TargetCostTotal += cost
}

func (s *Stats) recordJoin(proposal extension) {
	switch proposal.join {
	case joinSeed:
	case joinContiguous:
		s.ContiguousJoins++
	case joinVetoed:
		s.VetoedJoins++
	case joinModel:
		s.JoinCostCalls++

		if math.IsInf(proposal.joinCost, 1) {
			s.InfiniteJoins++
		} else {
			s.JoinCostTotal += proposal.joinCost
		}
	}
}
