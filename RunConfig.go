package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/samuelfneumann/rollout/buffer/expreplay"
	"github.com/samuelfneumann/rollout/buffer/trajectory"
	"github.com/samuelfneumann/rollout/environment/swarm"
)

// RunConfig implements the configuration of a collection run. RunConfigs
// are JSON serializable.
type RunConfig struct {
	Agents        int
	Cycles        int
	StepsPerCycle int // Decisions per agent per cycle
	FrameSkip     int // Environment ticks per decision
	Epochs        int // Minibatches sampled per cycle
	Normalize     bool
	Seed          uint64

	// Policy
	PolicyStd   float64
	MaxMean     float64
	WeightScale float64

	Env        swarm.Config
	Trajectory trajectory.Config
	Replay     expreplay.Config

	// ReturnsFile and LengthsFile are where episode returns and
	// lengths are saved. Nothing is saved if empty.
	ReturnsFile string
	LengthsFile string
}

// DefaultRunConfig returns the default RunConfig
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Agents:        8,
		Cycles:        20,
		StepsPerCycle: 64,
		FrameSkip:     4,
		Epochs:        4,
		Normalize:     true,
		Seed:          1,
		PolicyStd:     0.5,
		MaxMean:       1.0,
		WeightScale:   0.1,
		Env:           swarm.DefaultConfig(1),
		Trajectory:    trajectory.DefaultConfig(),
		Replay:        expreplay.DefaultConfig(64, 1),
	}
}

// Validate returns an error describing whether or not the
// configuration is valid
func (r RunConfig) Validate() error {
	if r.Agents <= 0 {
		return fmt.Errorf("validate: agents must be > 0, have(%v)", r.Agents)
	}
	if r.Cycles <= 0 || r.StepsPerCycle <= 0 {
		return fmt.Errorf("validate: cycles and steps per cycle must be > 0")
	}
	if r.FrameSkip <= 0 {
		return fmt.Errorf("validate: frame skip must be > 0, have(%v)",
			r.FrameSkip)
	}
	if r.Epochs < 0 {
		return fmt.Errorf("validate: epochs must be >= 0, have(%v)", r.Epochs)
	}
	if r.PolicyStd <= 0 {
		return fmt.Errorf("validate: policy std must be > 0, have(%v)",
			r.PolicyStd)
	}
	if r.MaxMean < 0 {
		return fmt.Errorf("validate: max mean must be >= 0, have(%v)",
			r.MaxMean)
	}
	if err := r.Env.Validate(); err != nil {
		return fmt.Errorf("validate: env: %v", err)
	}
	if err := r.Trajectory.Validate(); err != nil {
		return fmt.Errorf("validate: trajectory: %v", err)
	}
	if err := r.Replay.Validate(); err != nil {
		return fmt.Errorf("validate: replay: %v", err)
	}
	return nil
}

// LoadRunConfig reads a RunConfig from a JSON file. Fields missing from
// the file keep their default values.
func LoadRunConfig(filename string) (RunConfig, error) {
	c := DefaultRunConfig()
	data, err := os.ReadFile(filename)
	if err != nil {
		return RunConfig{}, fmt.Errorf("loadRunConfig: %v", err)
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return RunConfig{}, fmt.Errorf("loadRunConfig: %v", err)
	}
	return c, c.Validate()
}
