package viterbi

import (
	"cmp"

	"github.com/google/btree"
)

type (
	candidateID int
	pathID      int
)

const (
	noCandidate candidateID = -1
	noPath      pathID      = -1
)

// candidate binds one pool unit to its target. best is the single retained
// path terminating here, or noPath.
type candidate struct {
	unit       Unit
	target     Target
	targetCost costCell
	best       pathID
}

// path is "reached candidate with score via previous". The seed path has no
// candidate and no previous.
type path struct {
	score     float64
	joinCost  float64
	candidate candidateID
	previous  pathID
	splice    Splice
	seq       uint64
}

// point holds the candidate pool of one target and the paths retained at it.
// points[0] is the seed point and has no target.
type point struct {
	target     Target
	candidates []candidateID
	retained   retainedSet
}

// retainedDegree is the B-tree degree of each retained set.
const retainedDegree = 16

// retainedSet keeps path ids ordered by ascending score, ties broken by
// insertion sequence. paths points at the engine's arena so the ordering
// follows it when the arena grows.
type retainedSet struct {
	tree *btree.BTreeG[pathID]
}

func newRetainedSet(paths *[]path) retainedSet {
	return retainedSet{
		tree: btree.NewG[pathID](retainedDegree, func(a, b pathID) bool {
			return comparePaths(*paths, a, b) < 0
		}),
	}
}

func comparePaths(paths []path, a, b pathID) int {
	byScore := cmp.Compare(paths[a].score, paths[b].score)
	if byScore != 0 {
		return byScore
	}

	return cmp.Compare(paths[a].seq, paths[b].seq)
}

func (s retainedSet) insert(id pathID) {
	s.tree.ReplaceOrInsert(id)
}

// remove must be called before the path's score or sequence changes.
func (s retainedSet) remove(id pathID) {
	s.tree.Delete(id)
}

func (s retainedSet) len() int {
	return s.tree.Len()
}

// lowest returns the n best paths in order, or all of them when n is negative.
func (s retainedSet) lowest(n int) []pathID {
	if n < 0 || n > s.tree.Len() {
		n = s.tree.Len()
	}

	ids := make([]pathID, 0, n)

	s.tree.Ascend(func(id pathID) bool {
		if len(ids) == n {
			return false
		}

		ids = append(ids, id)

		return true
	})

	return ids
}

func (s retainedSet) best() (pathID, bool) {
	id, ok := s.tree.Min()
	if !ok {
		return noPath, false
	}

	return id, true
}
