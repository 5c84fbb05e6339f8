// Package environment outlines the interfaces and structs needed to
// implement concrete multi-agent environments that are stepped one
// tick at a time
package environment

import (
	"gonum.org/v1/gonum/mat"
)

// Starter implements a distribution of starting states and samples
// starting states for newly spawned agents
type Starter interface {
	Start() *mat.VecDense
}

// Action is the action an agent takes until it is given a new one
type Action struct {
	ID    string
	Value mat.Vector
}

// Step is the result of one environment tick for a single agent. Done
// is set on the tick an agent's episode ends. Once an agent has
// reported Done it is removed from the environment and reports no
// further steps.
type Step struct {
	ID          string
	Observation *mat.VecDense
	Reward      float64
	Done        bool
	Number      int
}

// Environment implements a simulated environment with a varying set of
// agents. Agents are listed in the order they were spawned, and Tick
// reports steps in that same order.
type Environment interface {
	ObservationSpec() Spec
	ActionSpec() Spec

	// Spawn adds a new agent with a fresh id and returns the id and
	// its starting observation
	Spawn() (string, *mat.VecDense)

	// Agents returns the ids of the agents that have not finished
	Agents() []string

	// Observe returns the current observation of an agent
	Observe(id string) (*mat.VecDense, error)

	// Tick advances the environment by one tick. Agents without an
	// entry in actions repeat their previous action.
	Tick(actions []Action) ([]Step, error)
}
