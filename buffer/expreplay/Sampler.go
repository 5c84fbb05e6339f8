// Package expreplay implements index samplers for replaying a static
// slice of a dataset: a uniform windowed sampler and a variant biased
// towards indices with high priority, such as a high TD error.
package expreplay

import (
	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/rollout/utils/intutils"
)

// NoLimit can be passed as the limit of a sampling window so that the
// window extends to the end of the sampler's indices. Any negative
// limit has the same meaning.
const NoLimit = -1

// Sampler implements functionality for choosing which indices of a
// dataset should be replayed
type Sampler interface {
	// GetSample returns batchSize indices read from the window
	// [offset, limit) of the sampler's permutation
	GetSample(batchSize, offset, limit int) []int

	// Len returns the number of indices the sampler draws from
	Len() int
}

// IndexSampler is a Sampler which holds a fixed random permutation of
// [0, length) and reads a circular window of it starting at a uniform
// random position. Indices repeat within a sample when the window is
// smaller than the batch size.
type IndexSampler struct {
	indices []int
	src     rand.Source
	rng     *rand.Rand
}

// NewIndexSampler returns a new IndexSampler over [0, length)
func NewIndexSampler(length int, seed uint64) (*IndexSampler, error) {
	if length <= 0 {
		return nil, &ExpReplayError{
			Op:  "newIndexSampler",
			Err: ErrInvalidLength,
		}
	}

	src := rand.NewSource(seed)
	rng := rand.New(src)

	return &IndexSampler{
		indices: rng.Perm(length),
		src:     src,
		rng:     rng,
	}, nil
}

// Len returns the number of indices the sampler draws from
func (s *IndexSampler) Len() int {
	return len(s.indices)
}

// window clamps a sampling window to the permutation
func (s *IndexSampler) window(offset, limit int) (int, int) {
	offset = intutils.Max(offset, 0)
	if limit < 0 || limit > len(s.indices) {
		limit = len(s.indices)
	}
	return offset, limit
}

// GetSample returns batchSize indices. The offset is clamped to >= 0
// and the limit to <= Len(); a limit of NoLimit (or any negative
// limit) means Len(). A start position is drawn uniformly from
// [offset, limit), and indices are read from the permutation forwards
// from there, wrapping back to offset at limit.
//
// If the window is empty, nil is returned.
func (s *IndexSampler) GetSample(batchSize, offset, limit int) []int {
	offset, limit = s.window(offset, limit)
	if batchSize <= 0 || offset >= limit {
		return nil
	}

	width := limit - offset
	start := s.rng.Intn(width)

	sample := make([]int, batchSize)
	for i := range sample {
		sample[i] = s.indices[offset+(start+i)%width]
	}
	return sample
}
