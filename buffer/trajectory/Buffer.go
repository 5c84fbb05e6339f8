// Package trajectory implements an on-policy trajectory buffer for a
// single agent. Data is written in two phases: the decision (state,
// action, value) is written when the agent acts, and the outcome
// (reward, done) is written once the environment has produced it.
//
// With frame skipping, a single decision is followed by several
// environment ticks. Each tick's outcome is staged, and the staged
// outcomes are collapsed into one committed outcome when the last tick
// of the window is written: rewards are summed and, by default, done
// flags are AND-ed, so a window counts as terminal only if every tick
// in it was.
package trajectory

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/rollout/buffer/gae"
	"github.com/samuelfneumann/rollout/timestep"
	"github.com/samuelfneumann/rollout/utils/intutils"
	"github.com/samuelfneumann/rollout/utils/tensorutils"
)

// Buffer implements a trajectory buffer for a single agent.
//
// The Buffer takes ownership of every tensor passed to AddFirstPart
// and releases each of them exactly once when Dispose is called.
// A Buffer is not safe for concurrent use.
type Buffer struct {
	config    Config
	stateDim  int // Number of elements in a state
	actionDim int // Number of elements in an action

	// Decision data, one row per decision
	states     []float64 // Flattened, row-major
	actions    []float64 // Flattened, row-major
	values     []float64
	logProbs   []float64
	hasLogProb []bool

	// Committed outcomes, one per collapsed window
	rewards []float64
	dones   []bool

	// Staged outcomes of the currently open window
	pendingRewards []float64
	pendingDones   []bool

	owned     []tensor.Tensor // In order of first ownership
	ownedSet  map[tensor.Tensor]struct{}
	phase     Phase
	bootstrap float64
	desyncs   int
}

// New creates and returns a new trajectory Buffer
func New(config Config) (*Buffer, error) {
	if err := config.Validate(); err != nil {
		return nil, &Error{Op: "new", Err: err}
	}

	return &Buffer{
		config:    config,
		stateDim:  config.StateDim,
		actionDim: config.ActionDim,
		phase:     Committed,
	}, nil
}

// AddFirstPart stores the decision half of a transition. The state and
// action data are copied into the buffer, and the buffer takes
// ownership of both tensors. If an error is returned, ownership stays
// with the caller.
func (b *Buffer) AddFirstPart(d timestep.Decision) error {
	if b.config.StrictAlternation && b.phase == AwaitingOutcome {
		return &Error{
			Op:  "addFirstPart",
			Err: errors.Wrap(ErrOutOfOrder, "previous outcome window open"),
		}
	}

	state, err := tensorutils.Float64s(d.State)
	if err != nil {
		return &Error{Op: "addFirstPart", Err: errors.Wrap(err, "state")}
	}
	action, err := tensorutils.Float64s(d.Action)
	if err != nil {
		return &Error{Op: "addFirstPart", Err: errors.Wrap(err, "action")}
	}

	stateDim, actionDim := b.stateDim, b.actionDim
	if stateDim == 0 {
		stateDim = len(state)
	}
	if actionDim == 0 {
		actionDim = len(action)
	}
	if len(state) != stateDim || len(state) == 0 {
		return &Error{
			Op: "addFirstPart",
			Err: errors.Wrapf(ErrShapeMismatch, "state length %v, want %v",
				len(state), stateDim),
		}
	}
	if len(action) != actionDim || len(action) == 0 {
		return &Error{
			Op: "addFirstPart",
			Err: errors.Wrapf(ErrShapeMismatch, "action length %v, want %v",
				len(action), actionDim),
		}
	}
	b.stateDim, b.actionDim = stateDim, actionDim

	if b.phase == AwaitingOutcome {
		glog.V(1).Infof("addFirstPart: decision %v recorded with an open "+
			"outcome window (%v staged ticks)", len(b.values),
			len(b.pendingRewards))
	}

	b.states = append(b.states, state...)
	b.actions = append(b.actions, action...)
	b.values = append(b.values, d.Value)
	b.logProbs = append(b.logProbs, d.LogProb)
	b.hasLogProb = append(b.hasLogProb, d.HasLogProb)

	b.own(d.State)
	b.own(d.Action)

	b.phase = AwaitingOutcome
	return nil
}

// UpdateSecondPart stages the outcome of one environment tick. When
// isLast is true, the staged outcomes of the window are collapsed into
// a single committed outcome: the rewards are summed and the done flags
// are combined with the configured DoneRule.
func (b *Buffer) UpdateSecondPart(o timestep.Outcome, isLast bool) error {
	if b.config.StrictAlternation && b.phase != AwaitingOutcome {
		return &Error{
			Op:  "updateSecondPart",
			Err: errors.Wrap(ErrOutOfOrder, "no decision awaiting an outcome"),
		}
	}

	b.pendingRewards = append(b.pendingRewards, o.Reward)
	b.pendingDones = append(b.pendingDones, o.Done)

	if isLast {
		b.collapse()
	}
	return nil
}

// collapse commits the staged outcomes as a single outcome
func (b *Buffer) collapse() {
	if len(b.pendingRewards) == 0 {
		return
	}

	b.rewards = append(b.rewards, floats.Sum(b.pendingRewards))
	b.dones = append(b.dones, b.config.DoneRule.collapse(b.pendingDones))

	b.pendingRewards = b.pendingRewards[:0]
	b.pendingDones = b.pendingDones[:0]
	b.phase = Committed
}

// Size returns the number of committed transitions
func (b *Buffer) Size() int {
	return len(b.rewards)
}

// Pending returns the number of staged ticks of the open window
func (b *Buffer) Pending() int {
	return len(b.pendingRewards)
}

// Phase returns the current phase of the two-phase write protocol
func (b *Buffer) Phase() Phase {
	return b.phase
}

// Desyncs returns the number of times the buffer has had to repair a
// difference between its number of decisions and committed outcomes
func (b *Buffer) Desyncs() int {
	return b.desyncs
}

// SetBootstrap sets the value estimate of the state that follows the
// last stored transition. It should be set when the trajectory is cut
// off by the end of a collection cycle rather than by a terminal
// state. It defaults to 0 and is ignored if the last transition is
// terminal.
func (b *Buffer) SetBootstrap(value float64) {
	b.bootstrap = value
}

// GetBatch computes the GAE(λ) advantages and returns of the stored
// trajectory and returns them in a Batch along with the stored
// transitions. Advantages are not normalized.
//
// Any staged outcomes are collapsed first, as if the last tick had
// been written with isLast. If the number of decisions and committed
// outcomes then differ, every stored sequence is truncated to the
// shortest one.
func (b *Buffer) GetBatch(gamma, lambda float64) (*Batch, error) {
	b.collapse()

	if len(b.rewards) == 0 {
		return nil, &Error{Op: "getBatch", Err: ErrEmptyTrajectory}
	}

	if len(b.values) != len(b.rewards) {
		b.repair()
		if len(b.rewards) == 0 {
			return nil, &Error{Op: "getBatch", Err: ErrEmptyTrajectory}
		}
	}

	returns, advantages, err := gae.Estimate(b.rewards, b.values, b.dones,
		gamma, lambda, b.bootstrap)
	if err != nil {
		return nil, &Error{Op: "getBatch", Err: err}
	}

	n := len(b.rewards)
	batch := &Batch{
		Size:          n,
		StateDim:      b.stateDim,
		ActionDim:     b.actionDim,
		States:        append([]float64(nil), b.states...),
		Actions:       append([]float64(nil), b.actions...),
		Rewards:       append([]float64(nil), b.rewards...),
		Dones:         append([]bool(nil), b.dones...),
		Values:        append([]float64(nil), b.values...),
		Returns:       returns,
		Advantages:    append([]float64(nil), advantages...),
		RawAdvantages: advantages,
	}

	allLogProbs := true
	for _, has := range b.hasLogProb {
		allLogProbs = allLogProbs && has
	}
	if allLogProbs {
		batch.LogProbs = append([]float64(nil), b.logProbs...)
	}

	return batch, nil
}

// repair truncates decisions and committed outcomes to the shorter of
// the two
func (b *Buffer) repair() {
	n := intutils.Min(len(b.values), len(b.rewards))
	glog.Warningf("getBatch: %v: %v decisions and %v outcomes, "+
		"truncating to %v", ErrLengthDesync, len(b.values), len(b.rewards), n)

	b.states = b.states[:n*b.stateDim]
	b.actions = b.actions[:n*b.actionDim]
	b.values = b.values[:n]
	b.logProbs = b.logProbs[:n]
	b.hasLogProb = b.hasLogProb[:n]
	b.rewards = b.rewards[:n]
	b.dones = b.dones[:n]
	b.desyncs++
}

// Dispose releases every tensor owned by the buffer and clears all
// stored and staged data. Dispose may be called any number of times.
func (b *Buffer) Dispose() {
	release := b.config.Releaser()
	for i, t := range b.owned {
		release(t)
		b.owned[i] = nil
	}
	b.owned = nil
	b.ownedSet = nil

	b.states = nil
	b.actions = nil
	b.values = nil
	b.logProbs = nil
	b.hasLogProb = nil
	b.rewards = nil
	b.dones = nil
	b.pendingRewards = nil
	b.pendingDones = nil

	b.stateDim = b.config.StateDim
	b.actionDim = b.config.ActionDim
	b.phase = Committed
	b.bootstrap = 0
}

// own takes ownership of t. A tensor already owned, whether from this
// or an earlier decision, is recorded once.
func (b *Buffer) own(t tensor.Tensor) {
	if b.ownedSet == nil {
		b.ownedSet = make(map[tensor.Tensor]struct{})
	}
	if _, ok := b.ownedSet[t]; ok {
		return
	}
	b.ownedSet[t] = struct{}{}
	b.owned = append(b.owned, t)
}
