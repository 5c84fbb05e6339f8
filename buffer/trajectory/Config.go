package trajectory

import (
	"fmt"

	"github.com/samuelfneumann/rollout/utils/tensorutils"
)

// DoneRule determines how the per-tick done flags of a frame-skip
// window are collapsed into the window's committed done flag
type DoneRule string

const (
	// AllTicks marks a window terminal only if every tick was terminal
	AllTicks DoneRule = "All"

	// AnyTick marks a window terminal if any tick was terminal
	AnyTick DoneRule = "Any"
)

// collapse applies the rule to the done flags of a window
func (r DoneRule) collapse(dones []bool) bool {
	if r == AnyTick {
		for _, d := range dones {
			if d {
				return true
			}
		}
		return false
	}

	for _, d := range dones {
		if !d {
			return false
		}
	}
	return true
}

// Config implements a configuration of a trajectory Buffer. Configs
// are JSON serializable.
type Config struct {
	// Discount factor ℽ and GAE(λ) parameter used by callers which do
	// not pick their own at batch time
	Gamma  float64
	Lambda float64

	// StateDim and ActionDim fix the number of elements of states and
	// actions. If 0, they are taken from the first decision.
	StateDim  int
	ActionDim int

	// StrictAlternation makes the buffer reject decisions that arrive
	// while an outcome window is open, and outcomes that arrive with
	// no open decision
	StrictAlternation bool

	// DoneRule collapses the done flags of a window. Defaults to
	// AllTicks if empty.
	DoneRule DoneRule

	releaser tensorutils.Releaser
}

// DefaultConfig returns the configuration commonly used with PPO
func DefaultConfig() Config {
	return Config{Gamma: 0.99, Lambda: 0.95, DoneRule: AllTicks}
}

// WithReleaser returns a copy of the Config which releases owned
// tensors with r on Dispose
func (c Config) WithReleaser(r tensorutils.Releaser) Config {
	c.releaser = r
	return c
}

// Releaser returns the function used to release owned tensors
func (c Config) Releaser() tensorutils.Releaser {
	if c.releaser == nil {
		return tensorutils.Release
	}
	return c.releaser
}

// Validate returns an error describing whether or not the
// configuration is valid
func (c Config) Validate() error {
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("validate: gamma must be in [0, 1], have(%v)",
			c.Gamma)
	}
	if c.Lambda < 0 || c.Lambda > 1 {
		return fmt.Errorf("validate: lambda must be in [0, 1], have(%v)",
			c.Lambda)
	}
	if c.DoneRule != "" && c.DoneRule != AllTicks && c.DoneRule != AnyTick {
		return fmt.Errorf("validate: unknown done rule %q", c.DoneRule)
	}
	if c.StateDim < 0 {
		return fmt.Errorf("validate: state dimension must be >= 0, "+
			"have(%v)", c.StateDim)
	}
	if c.ActionDim < 0 {
		return fmt.Errorf("validate: action dimension must be >= 0, "+
			"have(%v)", c.ActionDim)
	}
	return nil
}
