// Package tensorutils implements helpers for moving data between
// gorgonia tensors and flat float64 slices
package tensorutils

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Releaser releases the memory held by a tensor. A Releaser is called
// exactly once per tensor by whichever buffer owns the tensor.
type Releaser func(t tensor.Tensor)

// Release returns a tensor to gorgonia's memory pools
func Release(t tensor.Tensor) {
	if t == nil {
		return
	}
	tensor.ReturnTensor(t)
}

// NoRelease is a Releaser that does nothing. It is useful when the
// caller keeps using the tensors after the buffer is disposed.
func NoRelease(tensor.Tensor) {}

// Float64s copies the data of a tensor into a new []float64. float32
// tensors are widened. Scalars become a single element slice.
func Float64s(t tensor.Tensor) ([]float64, error) {
	if t == nil {
		return nil, fmt.Errorf("float64s: nil tensor")
	}

	switch data := t.Data().(type) {
	case []float64:
		out := make([]float64, len(data))
		copy(out, data)
		return out, nil

	case []float32:
		out := make([]float64, len(data))
		for i := range data {
			out[i] = float64(data[i])
		}
		return out, nil

	case float64:
		return []float64{data}, nil

	case float32:
		return []float64{float64(data)}, nil

	default:
		return nil, fmt.Errorf("float64s: unsupported data type %T", data)
	}
}

// Len returns the total number of elements in a tensor
func Len(t tensor.Tensor) int {
	if t == nil {
		return 0
	}
	return t.Shape().TotalSize()
}

// FromFloat64s returns a new Float64 tensor backed by data. If no
// shape is given, the tensor is a vector of len(data).
func FromFloat64s(data []float64, shape ...int) *tensor.Dense {
	if len(shape) == 0 {
		shape = []int{len(data)}
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}
