package viterbi

import (
	"fmt"
	"math"
	"slices"

	"github.com/book-expert/logger"
	"golang.org/x/sync/errgroup"
)

const (
	// Exhaustive extends every retained path at each point.
	Exhaustive = -1
	// DefaultContinuityWeight leaves join costs unscaled.
	DefaultContinuityWeight = 1.0
)

const (
	logFmtRunStarted  = "Unit selection started: %d targets, beam width %d, continuity weight %.3f"
	logFmtDeadEnd     = "Unit selection found no path at target %d (%s): %d candidates, %d extensions rejected"
	logFmtRunFinished = "Unit selection finished: %d targets, %d paths retained at last target, " +
		"%d target costs (mean %.4f), %d join costs (mean %.4f)"
)

// Config controls the search.
type Config struct {
	// BeamWidth is the number of lowest-score paths extended at each point.
	// Exhaustive (-1) extends all of them; 0 is reserved and rejected.
	BeamWidth int
	// ContinuityWeight multiplies join costs of non-contiguous units.
	ContinuityWeight float64
	// Workers bounds the goroutines evaluating costs within one point.
	// Values below 2 evaluate sequentially.
	Workers int
}

// DefaultConfig returns an exhaustive, sequential, unweighted configuration.
func DefaultConfig() Config {
	return Config{
		BeamWidth:        Exhaustive,
		ContinuityWeight: DefaultContinuityWeight,
		Workers:          1,
	}
}

// Validate checks the configuration before any search work begins.
func (c Config) Validate() error {
	if c.BeamWidth == 0 {
		return ErrBeamWidthReserved
	}

	if c.BeamWidth < Exhaustive {
		return fmt.Errorf("%w: got %d", ErrBeamWidthInvalid, c.BeamWidth)
	}

	if c.ContinuityWeight < 0 || math.IsNaN(c.ContinuityWeight) || math.IsInf(c.ContinuityWeight, 0) {
		return fmt.Errorf("%w: got %v", ErrContinuityWeight, c.ContinuityWeight)
	}

	return nil
}

// Engine searches one utterance. It owns every point, candidate and path it
// creates and must not be reused or shared between goroutines.
type Engine struct {
	cfg        Config
	models     Models
	log        *logger.Logger
	targets    []Target
	points     []point
	candidates []candidate
	paths      []path
	seq        uint64
	ran        bool
	deadEnd    int
	stats      Stats
}

// New validates cfg and models and returns an engine ready for one Run.
// log may be nil.
func New(cfg Config, models Models, log *logger.Logger) (*Engine, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	if models.Candidates == nil || models.TargetCost == nil || models.JoinCost == nil {
		return nil, ErrMissingModel
	}

	return &Engine{
		cfg:     cfg,
		models:  models,
		log:     log,
		deadEnd: -1,
	}, nil
}

// extension is a scored proposal to reach a candidate from a retained path.
type extension struct {
	previous  pathID
	candidate candidateID
	score     float64
	joinCost  float64
	join      joinKind
	splice    Splice
}

type joinKind int

const (
	joinSeed joinKind = iota
	joinContiguous
	joinVetoed
	joinModel
)

// Run performs the forward pass over targets. Cost model and candidate
// generator failures abort the run. A search that runs out of paths is not an
// error here; BestSequence reports it.
func (e *Engine) Run(targets []Target) error {
	if e.ran {
		return ErrAlreadyRun
	}

	e.ran = true
	e.targets = targets
	e.points = make([]point, 1, len(targets)+1)
	e.points[0].retained = newRetainedSet(&e.paths)

	seed := e.newPath(path{
		score:     0,
		joinCost:  0,
		candidate: noCandidate,
		previous:  noPath,
		splice:    Splice{},
		seq:       0,
	})
	e.points[0].retained.insert(seed)

	e.info(logFmtRunStarted, len(targets), e.cfg.BeamWidth, e.cfg.ContinuityWeight)

	for position, target := range targets {
		units, err := e.models.Candidates.Candidates(target)
		if err != nil {
			return fmt.Errorf("failed to generate candidates for target %d (%s): %w", position, target.Name(), err)
		}

		current := len(e.points) - 1
		next := e.addPoint(target, units)

		err = e.extend(current, next)
		if err != nil {
			return fmt.Errorf("failed to extend paths into target %d (%s): %w", position, target.Name(), err)
		}

		if e.points[next].retained.len() == 0 {
			e.deadEnd = position
			e.warn(logFmtDeadEnd, position, target.Name(), len(units), e.stats.Rejected)

			return nil
		}
	}

	e.info(logFmtRunFinished, len(targets), e.points[len(e.points)-1].retained.len(),
		e.stats.TargetCostCalls, e.stats.MeanTargetCost(), e.stats.JoinCostCalls, e.stats.MeanJoinCost())

	return nil
}

// BestSequence walks back from the lowest-score path at the last target.
// An empty target sequence yields an empty result. ErrNoPath is returned when
// the search did not reach the last target with at least one path.
func (e *Engine) BestSequence() (*Result, error) {
	if !e.ran {
		return nil, ErrNotRun
	}

	if len(e.targets) == 0 {
		return &Result{Selections: []Selection{}, Score: 0}, nil
	}

	if e.deadEnd >= 0 {
		return nil, newNoPathError(e.deadEnd, e.targets[e.deadEnd])
	}

	last := e.points[len(e.points)-1]

	best, ok := last.retained.best()
	if !ok || len(e.points) != len(e.targets)+1 {
		position := len(e.targets) - 1

		return nil, newNoPathError(position, e.targets[position])
	}

	selections := make([]Selection, 0, len(e.targets))

	for id := best; e.paths[id].candidate != noCandidate; id = e.paths[id].previous {
		step := e.paths[id]
		cand := e.candidates[step.candidate]
		targetCost, _ := cand.targetCost.get()

		selections = append(selections, Selection{
			Target:     cand.target,
			Unit:       cand.unit,
			TargetCost: targetCost,
			JoinCost:   step.joinCost,
			Splice:     step.splice,
		})
	}

	slices.Reverse(selections)

	return &Result{Selections: selections, Score: e.paths[best].score}, nil
}

// Stats returns the evaluation counters of the run so far.
func (e *Engine) Stats() Stats {
	return e.stats
}

func (e *Engine) addPoint(target Target, units []Unit) int {
	ids := make([]candidateID, len(units))

	for i, unit := range units {
		ids[i] = candidateID(len(e.candidates))
		e.candidates = append(e.candidates, candidate{
			unit:       unit,
			target:     target,
			targetCost: costCell{value: 0, computed: false},
			best:       noPath,
		})
	}

	e.points = append(e.points, point{
		target:     target,
		candidates: ids,
		retained:   newRetainedSet(&e.paths),
	})

	return len(e.points) - 1
}

func (e *Engine) newPath(p path) pathID {
	id := pathID(len(e.paths))
	e.paths = append(e.paths, p)

	return id
}

func (e *Engine) nextSeq() uint64 {
	e.seq++

	return e.seq
}

// extend proposes every selected path at point from against every candidate
// of point to, then admits the proposals in path-major order.
func (e *Engine) extend(from, to int) error {
	selected := e.points[from].retained.lowest(e.cfg.BeamWidth)
	pool := e.points[to].candidates

	err := e.computeTargetCosts(pool)
	if err != nil {
		return err
	}

	proposals := make([]extension, len(selected)*len(pool))

	err = e.parallel(len(proposals), func(i int) error {
		proposal, evalErr := e.evaluate(selected[i/len(pool)], pool[i%len(pool)])
		if evalErr != nil {
			return evalErr
		}

		proposals[i] = proposal

		return nil
	})
	if err != nil {
		return err
	}

	for i := range proposals {
		e.stats.recordJoin(proposals[i])
		e.admit(to, proposals[i])
	}

	return nil
}

func (e *Engine) computeTargetCosts(pool []candidateID) error {
	fresh := make([]bool, len(pool))

	err := e.parallel(len(pool), func(i int) error {
		cand := &e.candidates[pool[i]]
		if _, ok := cand.targetCost.get(); ok {
			return nil
		}

		cost, costErr := e.models.TargetCost.TargetCost(cand.target, cand.unit)
		if costErr != nil {
			return fmt.Errorf("target cost failed for unit %d: %w", cand.unit.Index(), costErr)
		}

		if cost < 0 || math.IsNaN(cost) {
			return newInvalidCostError("target", cost)
		}

		cand.targetCost.store(cost)
		fresh[i] = true

		return nil
	})
	if err != nil {
		return err
	}

	for i, id := range pool {
		if fresh[i] {
			cost, _ := e.candidates[id].targetCost.get()
			e.stats.recordTarget(cost)
		}
	}

	return nil
}

func (e *Engine) evaluate(from pathID, to candidateID) (extension, error) {
	previous := e.paths[from]
	cand := e.candidates[to]
	targetCost, _ := cand.targetCost.get()

	proposal := extension{
		previous:  from,
		candidate: to,
		score:     0,
		joinCost:  0,
		join:      joinSeed,
		splice:    Splice{},
	}

	if previous.candidate != noCandidate {
		left := e.candidates[previous.candidate].unit

		cost, kind, err := e.joinCost(left, cand.unit, &proposal.splice)
		if err != nil {
			return proposal, err
		}

		proposal.joinCost = cost
		proposal.join = kind
	}

	proposal.score = previous.score + targetCost + proposal.joinCost

	return proposal, nil
}

func (e *Engine) joinCost(left, right Unit, splice *Splice) (float64, joinKind, error) {
	if left.Duration() <= 0 || right.Duration() <= 0 {
		return math.Inf(1), joinVetoed, nil
	}

	if right.Index() == left.Index()+1 {
		return 0, joinContiguous, nil
	}

	cost, err := e.models.JoinCost.JoinCost(left, right, splice)
	if err != nil {
		return 0, joinModel, fmt.Errorf("join cost failed for units %d and %d: %w", left.Index(), right.Index(), err)
	}

	if cost < 0 || math.IsNaN(cost) {
		return 0, joinModel, newInvalidCostError("join", cost)
	}

	if math.IsInf(cost, 1) {
		return cost, joinModel, nil
	}

	return cost * e.cfg.ContinuityWeight, joinModel, nil
}

// admit keeps proposal if its candidate has no retained path or the proposal
// is strictly cheaper, replacing the previous path in place.
func (e *Engine) admit(to int, proposal extension) {
	if math.IsInf(proposal.score, 0) || math.IsNaN(proposal.score) {
		e.stats.Rejected++

		return
	}

	cand := &e.candidates[proposal.candidate]
	retained := &e.points[to].retained

	replacement := path{
		score:     proposal.score,
		joinCost:  proposal.joinCost,
		candidate: proposal.candidate,
		previous:  proposal.previous,
		splice:    proposal.splice,
		seq:       0,
	}

	if cand.best == noPath {
		replacement.seq = e.nextSeq()
		cand.best = e.newPath(replacement)
		retained.insert(cand.best)
		e.stats.Admitted++

		return
	}

	if proposal.score >= e.paths[cand.best].score {
		e.stats.Rejected++

		return
	}

	retained.remove(cand.best)

	replacement.seq = e.nextSeq()
	e.paths[cand.best] = replacement
	retained.insert(cand.best)
	e.stats.Admitted++
	e.stats.Replaced++
}

// parallel runs fn for 0..n-1, bounded by the configured worker count.
func (e *Engine) parallel(n int, fn func(i int) error) error {
	if e.cfg.Workers < 2 || n < 2 {
		for i := range n {
			err := fn(i)
			if err != nil {
				return err
			}
		}

		return nil
	}

	var group errgroup.Group

	group.SetLimit(e.cfg.Workers)

	for i := range n {
		group.Go(func() error {
			return fn(i)
		})
	}

	return group.Wait()
}

func (e *Engine) info(format string, args ...any) {
	if e.log != nil {
		e.log.Info(format, args...)
	}
}

func (e *Engine) warn(format string, args ...any) {
	if e.log != nil {
		e.log.Warn(format, args...)
	}
}
