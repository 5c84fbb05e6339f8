// Package swarm implements a toy multi-agent environment in which
// point masses are pushed towards a goal at the origin of a square
// arena. Agents end their episode when they reach the goal, leave the
// arena, or run out of ticks, and new agents may be spawned at any time.
package swarm

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distuv"

	env "github.com/samuelfneumann/rollout/environment"
)

const (
	// ObservationLen is the length of an observation: x, y, ẋ, ẏ
	ObservationLen = 4

	// ActionLen is the length of an action: the force along x and y
	ActionLen = 2

	// GoalReward is received on the tick an agent reaches the goal
	GoalReward = 10.0

	// OutOfBoundsReward is received on the tick an agent leaves the
	// arena
	OutOfBoundsReward = -10.0

	friction = 0.9
)

// ErrUnknownAgent is returned when an action is given to or an
// observation requested from an agent not in the environment
var ErrUnknownAgent = errors.New("unknown agent")

// Config implements a configuration of the Swarm environment
type Config struct {
	ArenaSize    float64 // Agents live in [-ArenaSize, ArenaSize]²
	SpawnSize    float64 // Agents spawn in [-SpawnSize, SpawnSize]²
	GoalRadius   float64
	EpisodeSteps int
	MaxForce     float64
	Noise        float64 // Standard deviation of per-tick force noise
	Dt           float64
	Seed         uint64
}

// DefaultConfig returns the default Swarm configuration
func DefaultConfig(seed uint64) Config {
	return Config{
		ArenaSize:    5.0,
		SpawnSize:    3.0,
		GoalRadius:   0.5,
		EpisodeSteps: 200,
		MaxForce:     1.0,
		Noise:        0.1,
		Dt:           0.1,
		Seed:         seed,
	}
}

// Validate returns an error describing whether or not the
// configuration is valid
func (c Config) Validate() error {
	if c.ArenaSize <= 0 {
		return fmt.Errorf("validate: arena size must be > 0")
	}
	if c.SpawnSize < 0 || c.SpawnSize > c.ArenaSize {
		return fmt.Errorf("validate: spawn size must be in [0, %v]",
			c.ArenaSize)
	}
	if c.GoalRadius < 0 {
		return fmt.Errorf("validate: goal radius must be >= 0")
	}
	if c.EpisodeSteps <= 0 {
		return fmt.Errorf("validate: episode steps must be > 0")
	}
	if c.MaxForce <= 0 || c.Dt <= 0 {
		return fmt.Errorf("validate: max force and dt must be > 0")
	}
	if c.Noise < 0 {
		return fmt.Errorf("validate: noise must be >= 0")
	}
	return nil
}

type agent struct {
	id     string
	state  *mat.VecDense
	action *mat.VecDense
	ticks  int
}

// Swarm implements the swarm environment
type Swarm struct {
	config  Config
	starter env.Starter
	timeout env.Ender
	bounds  env.Ender
	noise   distuv.Normal

	actionSpec      env.Spec
	observationSpec env.Spec

	agents []*agent
	index  map[string]*agent
	nextID int
}

// New creates and returns a new Swarm with no agents
func New(c Config) (*Swarm, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	spawn := r1.Interval{Min: -c.SpawnSize, Max: c.SpawnSize}
	still := r1.Interval{Min: 0, Max: 0}
	starter := env.NewUniformStarter([]r1.Interval{spawn, spawn, still,
		still}, c.Seed)

	arena := r1.Interval{Min: -c.ArenaSize, Max: c.ArenaSize}
	bounds := env.NewIntervalLimit([]r1.Interval{arena, arena}, []int{0, 1})

	force := mat.NewVecDense(ActionLen, []float64{c.MaxForce, c.MaxForce})
	negForce := mat.NewVecDense(ActionLen, nil)
	negForce.ScaleVec(-1, force)
	actionSpec, err := env.NewSpec(ActionLen, env.ActionType, negForce, force,
		env.Continuous)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	inf := math.Inf(1)
	upper := mat.NewVecDense(ObservationLen, []float64{c.ArenaSize,
		c.ArenaSize, inf, inf})
	lower := mat.NewVecDense(ObservationLen, nil)
	lower.ScaleVec(-1, upper)
	observationSpec, err := env.NewSpec(ObservationLen, env.ObservationType,
		lower, upper, env.Continuous)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	return &Swarm{
		config:  c,
		starter: starter,
		timeout: env.NewStepLimit(c.EpisodeSteps),
		bounds:  bounds,
		noise: distuv.Normal{
			Mu:    0,
			Sigma: c.Noise,
			Src:   rand.NewSource(c.Seed + 1),
		},
		actionSpec:      actionSpec,
		observationSpec: observationSpec,
		index:           make(map[string]*agent),
	}, nil
}

// ActionSpec returns the action specification of the environment
func (s *Swarm) ActionSpec() env.Spec {
	return s.actionSpec
}

// ObservationSpec returns the observation specification of the
// environment
func (s *Swarm) ObservationSpec() env.Spec {
	return s.observationSpec
}

// Spawn adds a new agent at a random position with zero velocity
func (s *Swarm) Spawn() (string, *mat.VecDense) {
	a := &agent{
		id:     fmt.Sprintf("agent-%d", s.nextID),
		state:  s.starter.Start(),
		action: mat.NewVecDense(ActionLen, nil),
	}
	s.nextID++

	s.agents = append(s.agents, a)
	s.index[a.id] = a
	return a.id, mat.VecDenseCopyOf(a.state)
}

// Agents returns the ids of the agents still in the environment, in
// the order they were spawned
func (s *Swarm) Agents() []string {
	ids := make([]string, len(s.agents))
	for i, a := range s.agents {
		ids[i] = a.id
	}
	return ids
}

// Observe returns a copy of an agent's current state
func (s *Swarm) Observe(id string) (*mat.VecDense, error) {
	a, ok := s.index[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownAgent, "observe: agent %q", id)
	}
	return mat.VecDenseCopyOf(a.state), nil
}

// Tick sets the given actions, then moves every agent forward one tick.
// Agents whose episode ends are removed after the tick.
func (s *Swarm) Tick(actions []env.Action) ([]env.Step, error) {
	for _, action := range actions {
		a, ok := s.index[action.ID]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownAgent, "tick: agent %q",
				action.ID)
		}
		if action.Value.Len() != ActionLen {
			return nil, fmt.Errorf("tick: agent %q: action length %v "+
				"does not match %v", action.ID, action.Value.Len(), ActionLen)
		}
		a.action = s.actionSpec.Clip(action.Value)
	}

	steps := make([]env.Step, 0, len(s.agents))
	live := s.agents[:0]
	for _, a := range s.agents {
		step := s.step(a)
		steps = append(steps, step)
		if step.Done {
			delete(s.index, a.id)
			continue
		}
		live = append(live, a)
	}
	for i := len(live); i < len(s.agents); i++ {
		s.agents[i] = nil
	}
	s.agents = live

	return steps, nil
}

// step moves a single agent forward one tick
func (s *Swarm) step(a *agent) env.Step {
	dt := s.config.Dt
	pos := a.state.SliceVec(0, 2).(*mat.VecDense)
	vel := a.state.SliceVec(2, 4).(*mat.VecDense)

	force := mat.NewVecDense(ActionLen, []float64{s.noise.Rand(),
		s.noise.Rand()})
	force.AddVec(force, a.action)

	vel.ScaleVec(friction, vel)
	vel.AddScaledVec(vel, dt, force)
	pos.AddScaledVec(pos, dt, vel)
	a.ticks++

	dist := mat.Norm(pos, 2)
	reward := -dt * dist
	done := false
	switch {
	case dist <= s.config.GoalRadius:
		reward += GoalReward
		done = true
	case s.bounds.End(a.ticks, a.state):
		reward += OutOfBoundsReward
		done = true
	case s.timeout.End(a.ticks, a.state):
		done = true
	}

	return env.Step{
		ID:          a.id,
		Observation: mat.VecDenseCopyOf(a.state),
		Reward:      reward,
		Done:        done,
		Number:      a.ticks,
	}
}
