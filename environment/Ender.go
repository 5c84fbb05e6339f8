package environment

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

// Ender determines when an agent's episode ends, given the number of
// ticks it has been alive and its current state
type Ender interface {
	End(ticks int, state mat.Vector) bool
}

// StepLimit ends episodes after a fixed number of ticks
type StepLimit struct {
	episodeSteps int
}

// NewStepLimit creates and returns a new step limit
func NewStepLimit(episodeSteps int) StepLimit {
	return StepLimit{episodeSteps}
}

// End returns whether the episode has reached its tick limit
func (s StepLimit) End(ticks int, _ mat.Vector) bool {
	return ticks >= s.episodeSteps
}

// IntervalLimit ends episodes whenever a single feature of the state
// leaves some interval
type IntervalLimit struct {
	intervals []r1.Interval
	indices   []int
}

// NewIntervalLimit creates and returns a new interval limit. Feature
// indices[i] must stay inside limits[i].
func NewIntervalLimit(limits []r1.Interval, indices []int) *IntervalLimit {
	if len(limits) != len(indices) {
		panic("limits should have same length as state indices")
	}
	return &IntervalLimit{limits, indices}
}

// End returns whether any tracked feature is outside its interval
func (i *IntervalLimit) End(_ int, state mat.Vector) bool {
	for j, index := range i.indices {
		v := state.AtVec(index)
		if v > i.intervals[j].Max || v < i.intervals[j].Min {
			return true
		}
	}
	return false
}

// Enders ends an episode when any of its Enders does
type Enders []Ender

// End returns whether any of the Enders ends the episode
func (e Enders) End(ticks int, state mat.Vector) bool {
	for _, ender := range e {
		if ender.End(ticks, state) {
			return true
		}
	}
	return false
}
