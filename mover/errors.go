package mover

import "errors"

// Error kinds reported by movers. Callers match them with errors.Is;
// wind provider errors pass through wrapped and unclassified.
var (
	// ErrInvalidArgument reports a missing or mis-sized element array.
	ErrInvalidArgument = errors.New("mover: invalid argument")

	// ErrInvalidElementKind reports a population tag outside the
	// forecast/uncertainty set.
	ErrInvalidElementKind = errors.New("mover: invalid element kind")

	// ErrAllocation reports that the perturbation store could not be sized.
	ErrAllocation = errors.New("mover: uncertainty allocation failed")

	// ErrInconsistentState reports a set-count or offset mismatch in the
	// perturbation store.
	ErrInconsistentState = errors.New("mover: inconsistent uncertainty state")
)
