// Package mover computes per-step displacements for Lagrangian elements.
//
// The wind mover is the core: a deterministic wind lookup combined with
// a per-element stochastic perturbation whose draws live in an
// uncertainty store that tracks the element population across steps.
package mover

import "time"

// Mover moves Lagrangian elements once per model step. The host calls
// PrepareForModelRun once per run, then per step PrepareForModelStep,
// MoveBatch for each element set, and ModelStepIsDone.
type Mover interface {
	PrepareForModelRun()
	PrepareForModelStep(modelTime time.Time, timeStep time.Duration, uncertain bool, setSizes []int) error
	MoveBatch(timeStep time.Duration, b *Batch) ([]Delta, error)
	ModelStepIsDone()
}
