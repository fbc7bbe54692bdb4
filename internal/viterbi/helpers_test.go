package viterbi_test

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/book-expert/unitselect-service/internal/viterbi"
)

var errBoom = errors.New("model exploded")

type testTarget struct {
	name string
}

func (t testTarget) Name() string { return t.name }

type testUnit struct {
	name     string
	index    int
	duration time.Duration
}

func (u testUnit) Index() int              { return u.index }
func (u testUnit) Duration() time.Duration { return u.duration }

func unit(name string, index int) testUnit {
	return testUnit{name: name, index: index, duration: 50 * time.Millisecond}
}

type joinKey struct {
	left, right string
}

// tableModels serves candidate pools and costs from lookup tables and counts
// every model call.
type tableModels struct {
	mu              sync.Mutex
	pools           map[string][]viterbi.Unit
	targetCosts     map[string]float64
	joinCosts       map[joinKey]float64
	defaultJoin     float64
	targetCostErr   error
	joinCostErr     error
	generatorErr    error
	splices         map[joinKey]viterbi.Splice
	generatorCalls  map[string]int
	targetCostCalls map[string]int
	joinCostCalls   int
}

func newTableModels() *tableModels {
	return &tableModels{
		mu:              sync.Mutex{},
		pools:           map[string][]viterbi.Unit{},
		targetCosts:     map[string]float64{},
		joinCosts:       map[joinKey]float64{},
		defaultJoin:     0,
		targetCostErr:   nil,
		joinCostErr:     nil,
		generatorErr:    nil,
		splices:         map[joinKey]viterbi.Splice{},
		generatorCalls:  map[string]int{},
		targetCostCalls: map[string]int{},
		joinCostCalls:   0,
	}
}

func (m *tableModels) models() viterbi.Models {
	return viterbi.Models{Candidates: m, TargetCost: m, JoinCost: m}
}

func (m *tableModels) Candidates(target viterbi.Target) ([]viterbi.Unit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.generatorCalls[target.Name()]++

	if m.generatorErr != nil {
		return nil, m.generatorErr
	}

	return m.pools[target.Name()], nil
}

func (m *tableModels) TargetCost(_ viterbi.Target, u viterbi.Unit) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := u.(testUnit).name
	m.targetCostCalls[name]++

	if m.targetCostErr != nil {
		return 0, m.targetCostErr
	}

	return m.targetCosts[name], nil
}

func (m *tableModels) JoinCost(left, right viterbi.Unit, splice *viterbi.Splice) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.joinCostCalls++

	if m.joinCostErr != nil {
		return 0, m.joinCostErr
	}

	key := joinKey{left: left.(testUnit).name, right: right.(testUnit).name}

	if recorded, ok := m.splices[key]; ok {
		*splice = recorded
	}

	cost, ok := m.joinCosts[key]
	if !ok {
		return m.defaultJoin, nil
	}

	return cost, nil
}

func targets(names ...string) []viterbi.Target {
	out := make([]viterbi.Target, len(names))
	for i, name := range names {
		out[i] = testTarget{name: name}
	}

	return out
}

// threeTargetLattice has its global optimum at (u1b, u2a, u3b) with score 7;
// every other assignment scores at least 9.
func threeTargetLattice() (*tableModels, []viterbi.Target) {
	m := newTableModels()

	m.pools["t1"] = []viterbi.Unit{unit("u1a", 10), unit("u1b", 20)}
	m.pools["t2"] = []viterbi.Unit{unit("u2a", 30), unit("u2b", 40)}
	m.pools["t3"] = []viterbi.Unit{unit("u3a", 50), unit("u3b", 60)}

	m.targetCosts = map[string]float64{
		"u1a": 1, "u1b": 3,
		"u2a": 2, "u2b": 1,
		"u3a": 1, "u3b": 1,
	}

	m.joinCosts = map[joinKey]float64{
		{left: "u1a", right: "u2a"}: 5,
		{left: "u1a", right: "u2b"}: 4,
		{left: "u1b", right: "u2a"}: 1,
		{left: "u1b", right: "u2b"}: 4,
		{left: "u2a", right: "u3a"}: 5,
		{left: "u2a", right: "u3b"}: 0,
		{left: "u2b", right: "u3a"}: 3,
		{left: "u2b", right: "u3b"}: 3,
	}

	return m, targets("t1", "t2", "t3")
}

// randomLattice builds a reproducible lattice of the given shape. Roughly one
// join in ten is impossible and some neighbouring units are contiguous.
func randomLattice(seed uint64, length, poolSize int) (*tableModels, []viterbi.Target) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	m := newTableModels()
	names := make([]string, length)

	for position := range length {
		names[position] = fmt.Sprintf("t%d", position)
		pool := make([]viterbi.Unit, poolSize)

		for slot := range poolSize {
			name := fmt.Sprintf("u%d_%d", position, slot)
			pool[slot] = unit(name, position+1000*rng.IntN(poolSize*3))
			m.targetCosts[name] = math.Round(rng.Float64()*100) / 10
		}

		m.pools[names[position]] = pool
	}

	for position := 1; position < length; position++ {
		for _, left := range m.pools[names[position-1]] {
			for _, right := range m.pools[names[position]] {
				key := joinKey{left: left.(testUnit).name, right: right.(testUnit).name}

				cost := math.Round(rng.Float64()*100) / 10
				if rng.IntN(10) == 0 {
					cost = math.Inf(1)
				}

				m.joinCosts[key] = cost
			}
		}
	}

	return m, targets(names...)
}

// bruteForceBest enumerates every assignment with the engine's cost rules and
// returns the lowest finite score, or +Inf.
func bruteForceBest(m *tableModels, ts []viterbi.Target, weight float64) float64 {
	best := math.Inf(1)

	var walk func(position int, previous viterbi.Unit, score float64)

	walk = func(position int, previous viterbi.Unit, score float64) {
		if position == len(ts) {
			best = math.Min(best, score)

			return
		}

		for _, u := range m.pools[ts[position].Name()] {
			step := m.targetCosts[u.(testUnit).name]

			if previous != nil {
				step += bruteJoin(m, previous, u, weight)
			}

			walk(position+1, u, score+step)
		}
	}

	walk(0, nil, 0)

	return best
}

func bruteJoin(m *tableModels, left, right viterbi.Unit, weight float64) float64 {
	if left.Duration() <= 0 || right.Duration() <= 0 {
		return math.Inf(1)
	}

	if right.Index() == left.Index()+1 {
		return 0
	}

	cost, ok := m.joinCosts[joinKey{left: left.(testUnit).name, right: right.(testUnit).name}]
	if !ok {
		cost = m.defaultJoin
	}

	if math.IsInf(cost, 1) {
		return cost
	}

	return cost * weight
}

func unitNames(result *viterbi.Result) []string {
	names := make([]string, len(result.Selections))
	for i, selection := range result.Selections {
		names[i] = selection.Unit.(testUnit).name
	}

	return names
}

func search(m *tableModels, ts []viterbi.Target, cfg viterbi.Config) (*viterbi.Result, error) {
	engine, err := viterbi.New(cfg, m.models(), nil)
	if err != nil {
		return nil, err
	}

	err = engine.Run(ts)
	if err != nil {
		return nil, err
	}

	return engine.BestSequence()
}

func withBeam(width int) viterbi.Config {
	cfg := viterbi.DefaultConfig()
	cfg.BeamWidth = width

	return cfg
}
