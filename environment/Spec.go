package environment

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SpecType determines what kind of specification a Spec is. A Spec can
// specify the layout of an action or an observation.
type SpecType int

const (
	ActionType SpecType = iota
	ObservationType
)

func (s SpecType) String() string {
	switch s {
	case ActionType:
		return "Action"
	case ObservationType:
		return "Observation"
	}
	return fmt.Sprintf("SpecType(%d)", int(s))
}

// Cardinality determines the cardinality of a number (discrete or continuous)
type Cardinality string

const (
	Continuous Cardinality = "Continuous"
	Discrete   Cardinality = "Discrete"
)

// Spec implements an environment specification, which tells the type,
// length, and bounds of an action or an observation in an environment
type Spec struct {
	Length     int
	Type       SpecType
	LowerBound *mat.VecDense
	UpperBound *mat.VecDense
	Cardinality
}

// NewSpec constructs a new environment specification. Both bounds must
// have the given length.
func NewSpec(length int, t SpecType, lowerBound, upperBound *mat.VecDense,
	cardinality Cardinality) (Spec, error) {
	if lowerBound.Len() != length {
		return Spec{}, fmt.Errorf("newSpec: length %v must match lower "+
			"bounds length %v", length, lowerBound.Len())
	}
	if upperBound.Len() != length {
		return Spec{}, fmt.Errorf("newSpec: length %v must match upper "+
			"bounds length %v", length, upperBound.Len())
	}
	return Spec{length, t, lowerBound, upperBound, cardinality}, nil
}

// Clip returns a copy of v with each element clipped to the Spec's
// bounds
func (s Spec) Clip(v mat.Vector) *mat.VecDense {
	clipped := mat.NewVecDense(v.Len(), nil)
	for i := 0; i < v.Len(); i++ {
		value := v.AtVec(i)
		if value < s.LowerBound.AtVec(i) {
			value = s.LowerBound.AtVec(i)
		} else if value > s.UpperBound.AtVec(i) {
			value = s.UpperBound.AtVec(i)
		}
		clipped.SetVec(i, value)
	}
	return clipped
}
