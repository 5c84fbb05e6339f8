// Package op provides extended Gorgonia graph operations.
//
// Adapted from aunum/G.ld on GitHub
package op

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// Clip clips the value of a node element-wise to [min, max]
func Clip(value *G.Node, min, max float64) (retVal *G.Node, err error) {
	if min > max {
		return nil, fmt.Errorf("clip: min (%v) > max (%v)", min, max)
	}

	var minNode, maxNode *G.Node
	switch value.Dtype() {
	case G.Float32:
		minNode = G.NewScalar(value.Graph(), G.Float32,
			G.WithValue(float32(min)), G.WithName("clip_min"))
		maxNode = G.NewScalar(value.Graph(), G.Float32,
			G.WithValue(float32(max)), G.WithName("clip_max"))
	case G.Float64:
		minNode = G.NewScalar(value.Graph(), G.Float64, G.WithValue(min),
			G.WithName("clip_min"))
		maxNode = G.NewScalar(value.Graph(), G.Float64, G.WithValue(max),
			G.WithName("clip_max"))
	default:
		return nil, fmt.Errorf("clip: unsupported dtype %v", value.Dtype())
	}

	// Values below min
	minMask, err := G.Lt(value, minNode, true)
	if err != nil {
		return nil, err
	}
	minVal, err := G.HadamardProd(minNode, minMask)
	if err != nil {
		return nil, err
	}

	// Values inside [min, max]
	isMaskGt, err := G.Gte(value, minNode, true)
	if err != nil {
		return nil, err
	}
	isMaskLt, err := G.Lte(value, maxNode, true)
	if err != nil {
		return nil, err
	}
	isMask, err := G.HadamardProd(isMaskGt, isMaskLt)
	if err != nil {
		return nil, err
	}
	isVal, err := G.HadamardProd(value, isMask)
	if err != nil {
		return nil, err
	}

	// Values above max
	maxMask, err := G.Gt(value, maxNode, true)
	if err != nil {
		return nil, err
	}
	maxVal, err := G.HadamardProd(maxNode, maxMask)
	if err != nil {
		return nil, err
	}
	return G.ReduceAdd(G.Nodes{minVal, isVal, maxVal})
}
