package trajectory

import (
	"github.com/pkg/errors"

	"github.com/samuelfneumann/rollout/buffer/gae"
)

// Error implements errors unique to a trajectory buffer
type Error struct {
	Op  string
	Err error
}

// Error satisifes the error interface
func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrEmptyTrajectory is returned when a batch is requested from a
// buffer with no committed transitions. The caller should skip
// training for this cycle.
var ErrEmptyTrajectory = gae.ErrEmptyTrajectory

// ErrShapeMismatch is returned when a state or action has a different
// number of elements than the ones previously stored
var ErrShapeMismatch = errors.New("shape mismatch")

// ErrOutOfOrder is returned in strict mode when decisions and outcomes
// do not alternate
var ErrOutOfOrder = errors.New("decision and outcome out of order")

// ErrLengthDesync describes a buffer whose decisions and committed
// outcomes have different lengths. It is never returned: the buffer
// repairs itself by truncation, logs, and counts the repair.
var ErrLengthDesync = errors.New("length desync")

// IsEmptyTrajectory returns whether or not an error reports that a
// buffer held no transitions to compute a batch from
func IsEmptyTrajectory(err error) bool {
	return errors.Is(err, ErrEmptyTrajectory)
}

// IsOutOfOrder returns whether or not an error reports a decision or
// outcome that arrived in the wrong phase
func IsOutOfOrder(err error) bool {
	return errors.Is(err, ErrOutOfOrder)
}
