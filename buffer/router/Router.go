// Package router implements a multi-agent trajectory router. The
// Router keeps one trajectory Buffer per agent and merges their batches
// into a single training batch.
package router

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/rollout/buffer/trajectory"
	"github.com/samuelfneumann/rollout/timestep"
)

// AgentID identifies a single controllable entity for the duration of
// an episode
type AgentID string

// ErrUnknownAgent is returned when an outcome is written for an agent
// that has never had a decision written
var ErrUnknownAgent = errors.New("unknown agent")

// IsUnknownAgent returns whether or not an error reports an outcome for
// an agent with no recorded decision
func IsUnknownAgent(err error) bool {
	return errors.Is(err, ErrUnknownAgent)
}

// entry is a single agent's buffer
type entry struct {
	id     AgentID
	buffer *trajectory.Buffer
}

// Router implements a collection of per-agent trajectory buffers.
// Buffers are created lazily on an agent's first decision and kept in
// insertion order, so that batches are reproducible for a fixed seed.
//
// A Router is not safe for concurrent use.
type Router struct {
	config    trajectory.Config
	entries   []entry
	index     map[AgentID]int
	rng       *rand.Rand
	normalize bool
}

// Option configures a Router
type Option func(*Router)

// WithNormalize sets whether the advantages of merged batches are
// standardized across the whole batch
func WithNormalize(normalize bool) Option {
	return func(r *Router) {
		r.normalize = normalize
	}
}

// WithSource sets the source of randomness used to shuffle agent
// blocks
func WithSource(src rand.Source) Option {
	return func(r *Router) {
		r.rng = rand.New(src)
	}
}

// New creates and returns a new Router. Every agent buffer is created
// with config.
func New(config trajectory.Config, seed uint64, opts ...Option) (*Router,
	error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "new")
	}

	r := &Router{
		config: config,
		index:  make(map[AgentID]int),
		rng:    rand.New(rand.NewSource(seed)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// buffer returns the buffer of an agent, or nil if it has none
func (r *Router) buffer(id AgentID) *trajectory.Buffer {
	i, ok := r.index[id]
	if !ok {
		return nil
	}
	return r.entries[i].buffer
}

// AddFirstPart stores the decision half of a transition for an agent,
// creating a buffer for the agent if it has none
func (r *Router) AddFirstPart(id AgentID, d timestep.Decision) error {
	b := r.buffer(id)
	if b == nil {
		var err error
		b, err = trajectory.New(r.config)
		if err != nil {
			return errors.Wrapf(err, "addFirstPart: agent %q", id)
		}
		r.index[id] = len(r.entries)
		r.entries = append(r.entries, entry{id: id, buffer: b})
		glog.V(2).Infof("addFirstPart: new buffer for agent %q", id)
	}

	return errors.Wrapf(b.AddFirstPart(d), "agent %q", id)
}

// UpdateSecondPart stages the outcome of one environment tick for an
// agent. See trajectory.Buffer.UpdateSecondPart.
func (r *Router) UpdateSecondPart(id AgentID, o timestep.Outcome,
	isLast bool) error {
	b := r.buffer(id)
	if b == nil {
		return errors.Wrapf(ErrUnknownAgent, "updateSecondPart: agent %q", id)
	}
	return errors.Wrapf(b.UpdateSecondPart(o, isLast), "agent %q", id)
}

// SetBootstrap sets the value estimate of the state following an
// agent's last transition. See trajectory.Buffer.SetBootstrap.
func (r *Router) SetBootstrap(id AgentID, value float64) error {
	b := r.buffer(id)
	if b == nil {
		return errors.Wrapf(ErrUnknownAgent, "setBootstrap: agent %q", id)
	}
	b.SetBootstrap(value)
	return nil
}

// Size returns the total number of committed transitions over all
// agents
func (r *Router) Size() int {
	size := 0
	for _, e := range r.entries {
		size += e.buffer.Size()
	}
	return size
}

// Agents returns the agent ids in the order they were first seen
func (r *Router) Agents() []AgentID {
	ids := make([]AgentID, len(r.entries))
	for i, e := range r.entries {
		ids[i] = e.id
	}
	return ids
}

// Desyncs returns the total number of length desync repairs over all
// agents
func (r *Router) Desyncs() int {
	desyncs := 0
	for _, e := range r.entries {
		desyncs += e.buffer.Desyncs()
	}
	return desyncs
}

// GetBatch computes every agent's batch, shuffles the order of the
// agent batches, and concatenates them. Rows of a single agent stay
// contiguous and in time order. Agents with no committed transitions
// are skipped.
func (r *Router) GetBatch(gamma, lambda float64) (*trajectory.Batch, error) {
	batches := make([]*trajectory.Batch, 0, len(r.entries))
	for _, e := range r.entries {
		batch, err := e.buffer.GetBatch(gamma, lambda)
		if trajectory.IsEmptyTrajectory(err) {
			glog.V(1).Infof("getBatch: skipping agent %q with no "+
				"transitions", e.id)
			continue
		} else if err != nil {
			return nil, errors.Wrapf(err, "getBatch: agent %q", e.id)
		}
		batches = append(batches, batch)
	}

	if len(batches) == 0 {
		return nil, &trajectory.Error{
			Op:  "getBatch",
			Err: trajectory.ErrEmptyTrajectory,
		}
	}

	r.rng.Shuffle(len(batches), func(i, j int) {
		batches[i], batches[j] = batches[j], batches[i]
	})

	merged, err := trajectory.Concat(batches...)
	if err != nil {
		return nil, errors.Wrap(err, "getBatch")
	}
	if r.normalize {
		merged.Normalize()
	}

	glog.V(1).Infof("getBatch: merged %v transitions from %v agents",
		merged.Size, len(batches))
	return merged, nil
}

// Dispose disposes of every agent buffer and forgets all agents.
// Dispose may be called any number of times.
func (r *Router) Dispose() {
	for _, e := range r.entries {
		e.buffer.Dispose()
	}
	r.entries = nil
	r.index = make(map[AgentID]int)
}
