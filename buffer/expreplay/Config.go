package expreplay

import (
	"fmt"
)

// Config implements a specific configuration of a Sampler and of the
// window it samples from. Configs are JSON serializable. A Limit of
// NoLimit samples up to the end of the sampler's indices.
type Config struct {
	BatchSize     int
	Offset        int
	Limit         int
	TopPercent    float64
	TopPickChance float64
	Seed          uint64
}

// DefaultConfig returns a Config with the default top-pick settings
func DefaultConfig(batchSize int, seed uint64) Config {
	return Config{
		BatchSize:     batchSize,
		Limit:         NoLimit,
		TopPercent:    DefaultTopPercent,
		TopPickChance: DefaultTopPickChance,
		Seed:          seed,
	}
}

// Validate returns an error describing whether or not the
// configuration is valid
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("validate: batch size must be > 0, have(%v)",
			c.BatchSize)
	}
	if c.Offset < 0 {
		return fmt.Errorf("validate: offset must be >= 0, have(%v)", c.Offset)
	}
	if c.Limit >= 0 && c.Limit <= c.Offset {
		return fmt.Errorf("validate: limit(%v) must be > offset(%v)",
			c.Limit, c.Offset)
	}
	if c.TopPercent < 0 || c.TopPercent > 1 {
		return fmt.Errorf("validate: top percent must be in [0, 1], have(%v)",
			c.TopPercent)
	}
	if c.TopPickChance < 0 || c.TopPickChance > 1 {
		return fmt.Errorf("validate: top pick chance must be in [0, 1], "+
			"have(%v)", c.TopPickChance)
	}
	return nil
}

// Create creates and returns the Sampler the Config describes. If
// priorities is nil, a uniform IndexSampler over [0, length) is
// returned. Otherwise a PriorityIndexSampler is returned, and length
// must be len(priorities).
func (c Config) Create(length int, priorities []float64) (Sampler, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}

	if priorities == nil {
		s, err := NewIndexSampler(length, c.Seed)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	if length != len(priorities) {
		return nil, fmt.Errorf("create: length(%v) does not match number "+
			"of priorities(%v)", length, len(priorities))
	}
	s, err := NewPriorityIndexSampler(priorities, c.Seed)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Sample draws a sample from s using the Config's window. Priority
// samplers use the Config's top-pick settings.
func (c Config) Sample(s Sampler) []int {
	if p, ok := s.(*PriorityIndexSampler); ok {
		return p.GetSampleWithTop(c.BatchSize, c.Offset, c.Limit,
			c.TopPercent, c.TopPickChance)
	}
	return s.GetSample(c.BatchSize, c.Offset, c.Limit)
}
