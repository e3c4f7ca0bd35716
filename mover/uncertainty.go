package mover

import (
	"fmt"
	"math"
	"time"

	"github.com/pthm-cable/drift/components"
)

// drawPair is one element's perturbation draw: the (cosine, sine) pair
// applied to wind magnitude and direction for as long as the draw
// persists.
type drawPair struct {
	randCos float64
	randSin float64
}

// uncertaintyStore owns the per-element perturbation draws and the
// per-set base offsets into the draw slice. offsets[i] is the index of
// set i's first draw, offsets[0] is always 0, and the draw count equals
// the sum of the set sizes. Draw identity is positional: an element
// keeps its index, and therefore its draw, until it is removed.
type uncertaintyStore struct {
	draws   []drawPair
	offsets []int

	// lastRefresh is the mover-relative elapsed time at which the draws
	// were last (re)sampled. It also detects model clock resets.
	lastRefresh time.Duration
}

func (s *uncertaintyStore) allocated() bool {
	return s.draws != nil && s.offsets != nil
}

// dispose releases both arrays and resets the refresh bookkeeping.
func (s *uncertaintyStore) dispose() {
	s.draws = nil
	s.offsets = nil
	s.lastRefresh = 0
}

// allocateUncertainty sizes the store for the given set sizes and fills
// every entry with a fresh bounded draw. Any previous contents are
// discarded first; on failure the store is left empty.
func (m *WindMover) allocateUncertainty(setSizes []int) error {
	m.uncertainty.dispose()

	if len(setSizes) == 0 {
		return fmt.Errorf("%w: no uncertainty sets", ErrAllocation)
	}

	offsets := make([]int, len(setSizes))
	total := 0
	for i, n := range setSizes {
		if n < 0 {
			return fmt.Errorf("%w: negative set size %d", ErrAllocation, n)
		}
		offsets[i] = total
		total += n
	}

	m.uncertainty.offsets = offsets
	m.uncertainty.draws = make([]drawPair, total)
	m.refreshUncertaintyValues()
	return nil
}

// refreshUncertaintyValues resamples every stored draw in place.
func (m *WindMover) refreshUncertaintyValues() {
	for i := range m.uncertainty.draws {
		cosTerm, sinTerm := boundedPair(m.rng, m.MaxSpeed, m.MaxAngle, m.sigma2, m.sigmaTheta)
		m.uncertainty.draws[i] = drawPair{randCos: cosTerm, randSin: sinTerm}
	}
}

// growUncertainty extends the draw slice to total entries, sampling only
// the appended range. Existing draws keep their values and indices.
func (m *WindMover) growUncertainty(total int) {
	old := len(m.uncertainty.draws)
	draws := make([]drawPair, total)
	copy(draws, m.uncertainty.draws)
	for i := old; i < total; i++ {
		cosTerm, sinTerm := boundedPair(m.rng, m.MaxSpeed, m.MaxAngle, m.sigma2, m.sigmaTheta)
		draws[i] = drawPair{randCos: cosTerm, randSin: sinTerm}
	}
	m.uncertainty.draws = draws
}

// ShrinkUncertainty compacts the perturbation store after element
// removals, keeping draws whose element is not flagged for removal and
// preserving their relative order. The store must hold a single
// uncertainty set sized to numElements. A store left empty by the
// compaction is fully disposed. A host that never activated uncertainty
// gets a no-op.
func (m *WindMover) ShrinkUncertainty(numElements int, status []components.StatusCode) error {
	if numElements == 0 || status == nil {
		return fmt.Errorf("%w: element status required", ErrInvalidArgument)
	}
	if len(status) != numElements {
		return fmt.Errorf("%w: %d status codes for %d elements", ErrInvalidArgument, len(status), numElements)
	}

	st := &m.uncertainty
	if !st.allocated() {
		return nil
	}
	if len(st.offsets) != 1 {
		return fmt.Errorf("%w: shrink requires a single uncertainty set, have %d", ErrInconsistentState, len(st.offsets))
	}
	if len(st.draws) != numElements {
		return fmt.Errorf("%w: store holds %d draws for %d elements", ErrInconsistentState, len(st.draws), numElements)
	}

	kept := 0
	for i := 0; i < numElements; i++ {
		if status[i] == components.StatusToBeRemoved {
			continue
		}
		st.draws[kept] = st.draws[i]
		kept++
	}

	if kept == 0 {
		st.dispose()
		return nil
	}
	st.draws = st.draws[:kept]
	return nil
}

// ResetUncertainty discards the perturbation store; the scheduler
// reallocates it with fresh draws on the next active step. Hosts call
// this when the element population changes in a way the store cannot
// track in place, such as a resize spanning several uncertainty sets.
func (m *WindMover) ResetUncertainty() {
	m.uncertainty.dispose()
}

// updateUncertainty runs the per-step scheduler for the mover-relative
// elapsed time and the externally reported uncertainty set sizes. It
// decides between disposing (uncertainty not active yet), reinitializing,
// growing a single set, refreshing stale draws, and leaving the store
// untouched.
func (m *WindMover) updateUncertainty(elapsed time.Duration, setSizes []int) error {
	if elapsed < m.UncertainStartTime {
		m.uncertainty.dispose()
		return nil
	}

	// The spread widens with time under uncertainty. Recomputed every
	// active step whether or not the draws change.
	t := (elapsed - m.UncertainStartTime).Seconds()
	s := m.SpeedScale * 0.315 * math.Pow(t, 0.147)
	m.sigma2 = s * s / 2
	m.sigmaTheta = m.AngleScale * 2.73 * math.Sqrt(math.Sqrt(t))

	st := &m.uncertainty

	reinit := !st.allocated()
	if elapsed < st.lastRefresh {
		// The model clock moved backward without telling us: not an
		// error, just start over.
		reinit = true
	}
	if !reinit && len(setSizes) != len(st.offsets) {
		reinit = true
	}

	grow := false
	target := 0
	if !reinit {
		for i, n := range setSizes {
			if st.offsets[i] != target {
				reinit = true
				break
			}
			target += n
		}
		if !reinit && target != len(st.draws) {
			// Set boundaries match but the totals disagree. The only
			// change the store can absorb in place is growth of a lone
			// set, which preserves the existing draws. Anything else is
			// either a shrink the host failed to report through
			// ShrinkUncertainty or a multi-set change whose surviving
			// draws cannot be identified, and guessing would reassign
			// draws to the wrong elements.
			if len(setSizes) == 1 && target > len(st.draws) {
				grow = true
			} else {
				return fmt.Errorf("%w: store holds %d draws for %d reported elements",
					ErrInconsistentState, len(st.draws), target)
			}
		}
	}

	switch {
	case reinit:
		if err := m.allocateUncertainty(setSizes); err != nil {
			return err
		}
		st.lastRefresh = elapsed
	case grow:
		m.growUncertainty(target)
	case elapsed >= st.lastRefresh+m.RefreshInterval:
		m.refreshUncertaintyValues()
		st.lastRefresh = elapsed
	}
	return nil
}
