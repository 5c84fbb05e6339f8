// Package gae implements generalized advantage estimation - GAE(λ) -
// following https://arxiv.org/abs/1506.02438, along with discounted
// rewards-to-go and advantage standardization.
package gae

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Epsilon is added to the standard deviation when standardizing
// advantages so that zero-variance advantages map to 0 rather than NaN
const Epsilon = 1e-8

// ErrEmptyTrajectory is returned when estimating over zero transitions
var ErrEmptyTrajectory = errors.New("empty trajectory")

// Estimate computes the GAE(λ) advantages and the λ-returns of a
// sequence of transitions in a single backward pass.
//
// The bootstrap argument is v(s) of the state following the last
// transition. It is ignored if the last transition is terminal, since
// a done flag resets the running advantage and the next state value to
// 0 before they are used. This makes it safe to pass sequences holding
// several consecutive episodes.
//
// For each i, returns[i] == values[i] + advantages[i].
func Estimate(rewards, values []float64, dones []bool, gamma, lambda,
	bootstrap float64) (returns, advantages []float64, err error) {
	n := len(rewards)
	if n == 0 {
		return nil, nil, ErrEmptyTrajectory
	}
	if len(values) != n || len(dones) != n {
		return nil, nil, fmt.Errorf("estimate: length mismatch \n\t"+
			"rewards(%v)\n\tvalues(%v)\n\tdones(%v)", n, len(values),
			len(dones))
	}

	returns = make([]float64, n)
	advantages = make([]float64, n)

	runningAdv := 0.0
	nextVal := bootstrap
	for i := n - 1; i >= 0; i-- {
		if dones[i] {
			runningAdv = 0
			nextVal = 0
		}

		delta := rewards[i] + gamma*nextVal - values[i]
		runningAdv = delta + gamma*lambda*runningAdv

		advantages[i] = runningAdv
		returns[i] = values[i] + runningAdv
		nextVal = values[i]
	}

	return returns, advantages, nil
}

// Normalize returns a standardized copy of advantages with mean 0 and
// (population) standard deviation 1. The input is left untouched so
// that raw advantages remain available.
func Normalize(advantages []float64) []float64 {
	if len(advantages) == 0 {
		return []float64{}
	}

	mean, variance := stat.PopMeanVariance(advantages, nil)
	std := math.Sqrt(variance) + Epsilon

	normalized := make([]float64, len(advantages))
	for i, adv := range advantages {
		normalized[i] = (adv - mean) / std
	}
	return normalized
}

// DiscountedReturns computes the discounted rewards-to-go of a
// sequence of rewards. Given rewards [r0 r1 ... rN] and discount ℽ,
// element i of the result is:
//
//	ri + ℽ r(i+1) + ℽ^2 r(i+2) + ... + ℽ^(N-i) rN + ℽ^(N-i+1) bootstrap
//
// where the sum is cut at the first terminal transition at or after i.
// The bootstrap value is dropped if the last transition is terminal.
func DiscountedReturns(rewards []float64, dones []bool, gamma,
	bootstrap float64) ([]float64, error) {
	n := len(rewards)
	if n == 0 {
		return nil, ErrEmptyTrajectory
	}
	if len(dones) != n {
		return nil, fmt.Errorf("discountedReturns: length mismatch \n\t"+
			"rewards(%v)\n\tdones(%v)", n, len(dones))
	}

	cumSums := make([]float64, n)
	running := bootstrap
	for i := n - 1; i >= 0; i-- {
		if dones[i] {
			running = 0
		}
		running = rewards[i] + gamma*running
		cumSums[i] = running
	}
	return cumSums, nil
}
