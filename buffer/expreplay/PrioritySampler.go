package expreplay

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/samuelfneumann/rollout/utils/floatutils"
	"github.com/samuelfneumann/rollout/utils/intutils"
)

const (
	// DefaultTopPercent is the default fraction of the highest
	// priority indices that top picks are drawn from
	DefaultTopPercent = 0.2

	// DefaultTopPickChance is the default probability with which each
	// index of a sample is replaced by a top pick
	DefaultTopPickChance = 0.3
)

// PriorityIndexSampler is an IndexSampler which can bias samples
// towards the indices with the largest priority magnitude. It is a
// lightweight stand-in for prioritized experience replay that needs no
// sum-tree: a uniform sample is drawn as usual and each of its indices
// is then independently replaced, with some probability, by an index
// drawn uniformly from the top priorities.
type PriorityIndexSampler struct {
	*IndexSampler

	// sorted holds the same indices as IndexSampler.indices, ordered
	// by descending |priority|
	sorted []int
}

// NewPriorityIndexSampler returns a new PriorityIndexSampler over
// [0, len(priorities)). Index i has priority priorities[i].
func NewPriorityIndexSampler(priorities []float64,
	seed uint64) (*PriorityIndexSampler, error) {
	base, err := NewIndexSampler(len(priorities), seed)
	if err != nil {
		return nil, &ExpReplayError{
			Op:  "newPriorityIndexSampler",
			Err: ErrInvalidLength,
		}
	}

	return &PriorityIndexSampler{
		IndexSampler: base,
		sorted:       sortByPriority(priorities),
	}, nil
}

// sortByPriority returns the indices of priorities ordered by
// descending magnitude
func sortByPriority(priorities []float64) []int {
	keys := floatutils.Abs(priorities)
	floats.Scale(-1, keys)

	inds := make([]int, len(keys))
	floats.Argsort(keys, inds)
	return inds
}

// UpdatePriorities re-orders the top priorities. The number of
// priorities must not change.
func (p *PriorityIndexSampler) UpdatePriorities(priorities []float64) error {
	if len(priorities) != len(p.sorted) {
		return &ExpReplayError{Op: "updatePriorities", Err: ErrLengthChanged}
	}
	p.sorted = sortByPriority(priorities)
	return nil
}

// Top returns the n indices with the largest priority magnitude, in
// descending order
func (p *PriorityIndexSampler) Top(n int) []int {
	n = intutils.Clip(n, 0, len(p.sorted))
	top := make([]int, n)
	copy(top, p.sorted[:n])
	return top
}

// GetSampleWithTop returns a sample of batchSize indices drawn as in
// GetSample, after which each index is replaced with probability
// topPickChance by an index chosen uniformly from the
// max(1, ⌊Len() * topPercent⌋) indices of highest priority magnitude.
//
// Top picks are not restricted to the [offset, limit) window.
func (p *PriorityIndexSampler) GetSampleWithTop(batchSize, offset, limit int,
	topPercent, topPickChance float64) []int {
	sample := p.GetSample(batchSize, offset, limit)
	if len(sample) == 0 {
		return sample
	}

	topLen := int(math.Floor(float64(len(p.sorted)) * topPercent))
	topLen = intutils.Clip(topLen, 1, len(p.sorted))

	pick := distuv.Bernoulli{
		P:   floatutils.Clip(topPickChance, 0, 1),
		Src: p.src,
	}
	for i := range sample {
		if pick.Rand() == 1 {
			sample[i] = p.sorted[p.rng.Intn(topLen)]
		}
	}
	return sample
}
