package trajectory

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/rollout/buffer/gae"
)

// Transition is a single row of a Batch
type Transition struct {
	State      []float64
	Action     []float64
	Value      float64
	LogProb    float64
	HasLogProb bool
	Reward     float64
	Done       bool
	Return     float64
	Advantage  float64
}

// Batch is a set of transitions ready for training. All slices are
// row-aligned: row i of the batch is States[i*StateDim:(i+1)*StateDim],
// Actions[i*ActionDim:(i+1)*ActionDim], Rewards[i], Returns[i], and so
// on. Rows carry no ordering guarantee relative to simulation time.
//
// A Batch does not alias any buffer storage. The trainer owns it.
type Batch struct {
	Size      int
	StateDim  int
	ActionDim int

	States  []float64
	Actions []float64
	Rewards []float64
	Dones   []bool
	Values  []float64

	// LogProbs is nil unless every row carried a log-probability
	LogProbs []float64

	Returns []float64

	// Advantages are the advantages a trainer should use. They are
	// standardized if the batch has been normalized.
	Advantages []float64

	// RawAdvantages are always the un-normalized GAE(λ) advantages
	RawAdvantages []float64
}

// Row returns the i-th transition of the batch
func (b *Batch) Row(i int) Transition {
	if i < 0 || i >= b.Size {
		panic(fmt.Sprintf("row: index %v out of range [0, %v)", i, b.Size))
	}

	t := Transition{
		State:     b.States[i*b.StateDim : (i+1)*b.StateDim],
		Action:    b.Actions[i*b.ActionDim : (i+1)*b.ActionDim],
		Value:     b.Values[i],
		Reward:    b.Rewards[i],
		Done:      b.Dones[i],
		Return:    b.Returns[i],
		Advantage: b.Advantages[i],
	}
	if b.LogProbs != nil {
		t.LogProb = b.LogProbs[i]
		t.HasLogProb = true
	}
	return t
}

// Normalize standardizes the batch's advantages to mean 0 and standard
// deviation 1. RawAdvantages are left untouched.
func (b *Batch) Normalize() {
	b.Advantages = gae.Normalize(b.RawAdvantages)
}

// StatesTensor returns the states as a (Size, StateDim) tensor backed
// by b.States
func (b *Batch) StatesTensor() *tensor.Dense {
	return tensor.New(tensor.WithShape(b.Size, b.StateDim),
		tensor.WithBacking(b.States))
}

// ActionsTensor returns the actions as a (Size, ActionDim) tensor
// backed by b.Actions
func (b *Batch) ActionsTensor() *tensor.Dense {
	return tensor.New(tensor.WithShape(b.Size, b.ActionDim),
		tensor.WithBacking(b.Actions))
}

// StatesMatrix returns the states as a (Size, StateDim) matrix backed
// by b.States
func (b *Batch) StatesMatrix() *mat.Dense {
	return mat.NewDense(b.Size, b.StateDim, b.States)
}

// Concat concatenates batches in the order given and returns the
// merged batch. All batches must have the same state and action
// dimensions. Log-probabilities are kept only if every batch has them.
func Concat(batches ...*Batch) (*Batch, error) {
	if len(batches) == 0 {
		return nil, &Error{Op: "concat", Err: ErrEmptyTrajectory}
	}

	stateDim, actionDim := batches[0].StateDim, batches[0].ActionDim
	size := 0
	withLogProbs := true
	for _, batch := range batches {
		if batch.StateDim != stateDim || batch.ActionDim != actionDim {
			return nil, &Error{
				Op: "concat",
				Err: errors.Wrapf(ErrShapeMismatch,
					"dimensions (%v, %v) want (%v, %v)", batch.StateDim,
					batch.ActionDim, stateDim, actionDim),
			}
		}
		size += batch.Size
		withLogProbs = withLogProbs && batch.LogProbs != nil
	}

	merged := &Batch{
		Size:          size,
		StateDim:      stateDim,
		ActionDim:     actionDim,
		States:        make([]float64, 0, size*stateDim),
		Actions:       make([]float64, 0, size*actionDim),
		Rewards:       make([]float64, 0, size),
		Dones:         make([]bool, 0, size),
		Values:        make([]float64, 0, size),
		Returns:       make([]float64, 0, size),
		Advantages:    make([]float64, 0, size),
		RawAdvantages: make([]float64, 0, size),
	}
	if withLogProbs {
		merged.LogProbs = make([]float64, 0, size)
	}

	for _, batch := range batches {
		merged.States = append(merged.States, batch.States...)
		merged.Actions = append(merged.Actions, batch.Actions...)
		merged.Rewards = append(merged.Rewards, batch.Rewards...)
		merged.Dones = append(merged.Dones, batch.Dones...)
		merged.Values = append(merged.Values, batch.Values...)
		merged.Returns = append(merged.Returns, batch.Returns...)
		merged.Advantages = append(merged.Advantages, batch.Advantages...)
		merged.RawAdvantages = append(merged.RawAdvantages,
			batch.RawAdvantages...)
		if withLogProbs {
			merged.LogProbs = append(merged.LogProbs, batch.LogProbs...)
		}
	}

	return merged, nil
}
