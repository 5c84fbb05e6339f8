// Package tracker implements Trackers, which track per-agent episode
// data during a run and save it to disk
package tracker

import (
	"encoding/gob"
	"os"

	"github.com/pkg/errors"

	"github.com/samuelfneumann/rollout/environment"
)

// Tracker keeps track of run data and saves the data after the run has
// finished
type Tracker interface {
	Track(step environment.Step)
	Data() []float64
	Save() error
}

func save(filename string, data []float64) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "save: could not open save file")
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(data); err != nil {
		return errors.Wrap(err, "save: could not encode data")
	}
	return nil
}

// LoadData loads and returns the data saved by a Tracker
func LoadData(filename string) ([]float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "loadData: could not open data file")
	}
	defer file.Close()

	var data []float64
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, errors.Wrap(err, "loadData: could not decode data")
	}
	return data, nil
}

// Return tracks the return of every finished episode. Rewards are
// accumulated per agent, and an agent's return is recorded on the step
// its episode ends. Episodes that never finish are not recorded.
type Return struct {
	current  map[string]float64
	returns  []float64
	filename string
}

// NewReturn creates and returns a new Return Tracker which saves to
// filename
func NewReturn(filename string) *Return {
	return &Return{
		current:  make(map[string]float64),
		filename: filename,
	}
}

// Track accumulates the reward of a step
func (r *Return) Track(step environment.Step) {
	ret := r.current[step.ID] + step.Reward
	if !step.Done {
		r.current[step.ID] = ret
		return
	}
	r.returns = append(r.returns, ret)
	delete(r.current, step.ID)
}

// Data returns the returns of finished episodes in the order they
// finished
func (r *Return) Data() []float64 {
	return r.returns
}

// Save saves the tracked returns to disk
func (r *Return) Save() error {
	return save(r.filename, r.returns)
}

// EpisodeLength tracks the number of ticks of every finished episode
type EpisodeLength struct {
	lengths  []float64
	filename string
}

// NewEpisodeLength returns a new EpisodeLength Tracker which saves to
// filename
func NewEpisodeLength(filename string) *EpisodeLength {
	return &EpisodeLength{filename: filename}
}

// Track records the episode length if step ends an episode
func (e *EpisodeLength) Track(step environment.Step) {
	if step.Done {
		e.lengths = append(e.lengths, float64(step.Number))
	}
}

// Data returns the lengths of finished episodes in the order they
// finished
func (e *EpisodeLength) Data() []float64 {
	return e.lengths
}

// Save saves the tracked episode lengths to disk
func (e *EpisodeLength) Save() error {
	return save(e.filename, e.lengths)
}
