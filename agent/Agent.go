// Package agent defines the interfaces between collection cycles and
// the policies and learners that drive them
package agent

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/rollout/buffer/trajectory"
	"github.com/samuelfneumann/rollout/timestep"
)

// Critic estimates the value of observations
type Critic interface {
	Value(obs mat.Vector) (float64, error)
}

// Policy selects actions. Act returns the Decision to record in a
// trajectory buffer together with the action to send to the
// environment.
type Policy interface {
	Act(obs mat.Vector) (timestep.Decision, *mat.VecDense, error)
}

// ActorCritic is a Policy which also estimates values
type ActorCritic interface {
	Policy
	Critic
}

// A Closer must be closed after it is no longer used
type Closer interface {
	Close() error
}

// Learner consumes training batches. Each minibatch holds the rows of
// batch to use for a single update.
type Learner interface {
	Learn(batch *trajectory.Batch, minibatches [][]int) error
}
