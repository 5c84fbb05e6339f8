// Package timestep implements the two halves of a single decision step
// in the agent-environment interaction: the Decision made by the
// policy and the Outcome produced by the environment afterwards.
package timestep

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Decision packages together the data recorded when an agent acts:
// the state it observed, the action it took, the critic's value
// estimate of the state, and optionally the log-probability of the
// action under the behaviour policy.
//
// The State and Action tensors are handed over to whichever buffer
// the Decision is stored in. Callers should not use them after that.
type Decision struct {
	State      tensor.Tensor
	Action     tensor.Tensor
	Value      float64
	LogProb    float64
	HasLogProb bool
}

// NewDecision returns a new Decision without a log-probability
func NewDecision(state, action tensor.Tensor, value float64) Decision {
	return Decision{State: state, Action: action, Value: value}
}

// NewDecisionWithLogProb returns a new Decision which carries the
// log-probability of its action
func NewDecisionWithLogProb(state, action tensor.Tensor, value,
	logProb float64) Decision {
	return Decision{
		State:      state,
		Action:     action,
		Value:      value,
		LogProb:    logProb,
		HasLogProb: true,
	}
}

func (d Decision) String() string {
	str := "Decision | Value: %.3f  |  LogProb: %v"
	lp := "n/a"
	if d.HasLogProb {
		lp = fmt.Sprintf("%.3f", d.LogProb)
	}
	return fmt.Sprintf(str, d.Value, lp)
}

// Outcome packages together what the environment reports for a
// single tick after a Decision: the reward and whether the tick was
// terminal. With frame skipping, several Outcomes follow one Decision.
type Outcome struct {
	Reward float64
	Done   bool
}

// NewOutcome returns a new Outcome
func NewOutcome(reward float64, done bool) Outcome {
	return Outcome{reward, done}
}

func (o Outcome) String() string {
	return fmt.Sprintf("Outcome | Reward: %.2f  |  Done: %v", o.Reward, o.Done)
}
