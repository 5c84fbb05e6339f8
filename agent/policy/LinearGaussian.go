// Package policy implements policies for collection cycles
package policy

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/rollout/timestep"
	"github.com/samuelfneumann/rollout/utils/op"
	"github.com/samuelfneumann/rollout/utils/tensorutils"
)

// LinearGaussian implements a Gaussian policy with a linear mean and a
// fixed standard deviation, together with a linear critic. The mean
// and value are computed by a Gorgonia graph over a single observation.
// The mean is clipped to [-MaxMean, MaxMean].
//
// Given the mean μ and standard deviation σ, actions are selected by
// sampling ɛ ~ N(0, 1) and computing action := μ + σ * ɛ.
type LinearGaussian struct {
	graph *G.ExprGraph
	vm    G.VM

	obs      *G.Node
	meanVal  G.Value
	valueVal G.Value

	features   int
	actionDims int
	stddev     float64
	normal     distuv.Normal
}

// NewLinearGaussian returns a new LinearGaussian policy over
// observations with features features and actions with actionDims
// dimensions. Weights are drawn from N(0, weightScale²) seeded by seed.
func NewLinearGaussian(features, actionDims int, stddev, maxMean,
	weightScale float64, seed uint64) (*LinearGaussian, error) {
	if features <= 0 || actionDims <= 0 {
		return nil, fmt.Errorf("newLinearGaussian: features and action " +
			"dimensions must be > 0")
	}
	if stddev <= 0 {
		return nil, fmt.Errorf("newLinearGaussian: standard deviation must "+
			"be > 0, have(%v)", stddev)
	}

	src := rand.NewSource(seed)
	init := distuv.Normal{Mu: 0, Sigma: weightScale, Src: src}
	weights := func(rows, cols int) tensor.Tensor {
		data := make([]float64, rows*cols)
		for i := range data {
			data[i] = init.Rand()
		}
		return tensor.New(tensor.WithShape(rows, cols),
			tensor.WithBacking(data))
	}

	g := G.NewGraph()
	obs := G.NewMatrix(g, tensor.Float64, G.WithShape(1, features),
		G.WithName("obs"), G.WithInit(G.Zeroes()))
	meanWeights := G.NewMatrix(g, tensor.Float64,
		G.WithShape(features, actionDims), G.WithName("meanWeights"),
		G.WithValue(weights(features, actionDims)))
	valueWeights := G.NewMatrix(g, tensor.Float64, G.WithShape(features, 1),
		G.WithName("valueWeights"), G.WithValue(weights(features, 1)))

	mean, err := G.Mul(obs, meanWeights)
	if err != nil {
		return nil, fmt.Errorf("newLinearGaussian: could not compute "+
			"mean: %v", err)
	}
	mean, err = op.Clip(mean, -maxMean, maxMean)
	if err != nil {
		return nil, fmt.Errorf("newLinearGaussian: could not clip mean: %v",
			err)
	}
	value, err := G.Mul(obs, valueWeights)
	if err != nil {
		return nil, fmt.Errorf("newLinearGaussian: could not compute "+
			"value: %v", err)
	}

	pol := &LinearGaussian{
		graph:      g,
		obs:        obs,
		features:   features,
		actionDims: actionDims,
		stddev:     stddev,
		normal:     distuv.Normal{Mu: 0, Sigma: 1, Src: src},
	}
	G.Read(mean, &pol.meanVal)
	G.Read(value, &pol.valueVal)
	pol.vm = G.NewTapeMachine(g)

	return pol, nil
}

// forward runs the graph on obs and returns the mean and value
func (l *LinearGaussian) forward(obs mat.Vector) ([]float64, float64, error) {
	if obs.Len() != l.features {
		return nil, 0, fmt.Errorf("forward: observation length %v does not "+
			"match %v", obs.Len(), l.features)
	}

	data := make([]float64, l.features)
	for i := range data {
		data[i] = obs.AtVec(i)
	}
	if err := G.Let(l.obs, tensorutils.FromFloat64s(data, 1,
		l.features)); err != nil {
		return nil, 0, fmt.Errorf("forward: could not set observation: %v",
			err)
	}

	if err := l.vm.RunAll(); err != nil {
		return nil, 0, fmt.Errorf("forward: %v", err)
	}
	defer l.vm.Reset()

	mean := make([]float64, l.actionDims)
	copy(mean, floats(l.meanVal))
	value := floats(l.valueVal)[0]
	return mean, value, nil
}

// floats returns the data of a Float64 value as a slice
func floats(v G.Value) []float64 {
	switch data := v.Data().(type) {
	case []float64:
		return data
	case float64:
		return []float64{data}
	}
	panic(fmt.Sprintf("floats: unexpected data type %T", v.Data()))
}

// Value returns the critic's value estimate of obs
func (l *LinearGaussian) Value(obs mat.Vector) (float64, error) {
	_, value, err := l.forward(obs)
	if err != nil {
		return 0, fmt.Errorf("value: %v", err)
	}
	return value, nil
}

// Act samples an action in obs. The returned Decision owns fresh
// state and action tensors and carries the log-probability of the
// sampled action.
func (l *LinearGaussian) Act(obs mat.Vector) (timestep.Decision,
	*mat.VecDense, error) {
	mean, value, err := l.forward(obs)
	if err != nil {
		return timestep.Decision{}, nil, fmt.Errorf("act: %v", err)
	}

	action := make([]float64, l.actionDims)
	logProb := 0.0
	for i := range action {
		action[i] = mean[i] + l.stddev*l.normal.Rand()
		dist := distuv.Normal{Mu: mean[i], Sigma: l.stddev}
		logProb += dist.LogProb(action[i])
	}

	state := make([]float64, l.features)
	for i := range state {
		state[i] = obs.AtVec(i)
	}

	d := timestep.NewDecisionWithLogProb(
		tensorutils.FromFloat64s(state),
		tensorutils.FromFloat64s(action),
		value,
		logProb,
	)
	env := mat.NewVecDense(l.actionDims, nil)
	env.CopyVec(mat.NewVecDense(l.actionDims, action))
	return d, env, nil
}

// Close closes the policy's VM
func (l *LinearGaussian) Close() error {
	return l.vm.Close()
}
