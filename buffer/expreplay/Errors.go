package expreplay

import "github.com/pkg/errors"

// ExpReplayError implements errors unique to replay buffer samplers
type ExpReplayError struct {
	Op  string
	Err error
}

// Error satisifes the error interface
func (e *ExpReplayError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *ExpReplayError) Unwrap() error {
	return e.Err
}

// ErrInvalidLength is returned when a sampler is created over zero
// indices
var ErrInvalidLength = errors.New("sampler length must be > 0")

// ErrLengthChanged is returned when priorities are updated with a
// different number of elements than the sampler was created with
var ErrLengthChanged = errors.New("number of priorities changed")

// IsInvalidLength returns whether or not an error reports a sampler
// created over zero indices
func IsInvalidLength(err error) bool {
	return errors.Is(err, ErrInvalidLength)
}

// IsLengthChanged returns whether or not an error reports a priority
// update of the wrong length
func IsLengthChanged(err error) bool {
	return errors.Is(err, ErrLengthChanged)
}
