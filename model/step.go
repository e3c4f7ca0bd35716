package model

import (
	"fmt"
	"math"
	"time"

	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/mover"
)

// StepResult summarises one completed step.
type StepResult struct {
	Step      int
	ModelTime time.Time // clock after the step
	Released  int       // elements released this step, all sets
	InWater   int       // live in-water elements after the step
	Removed   int       // elements removed at the end of the step

	// Displacements holds this step's per-element travel distance in
	// meters for in-water forecast elements.
	Displacements []float64
}

// Step advances the model by one time step: release, move, cull. It
// returns false once the run has completed all its steps. An error
// leaves the model mid-run; Rewind recovers.
func (m *Model) Step() (*StepResult, bool, error) {
	if m.current+1 >= m.numSteps {
		return nil, false, nil
	}
	if m.current < 0 {
		for _, mv := range m.movers {
			mv.PrepareForModelRun()
		}
	}

	stepTime := m.modelTime
	released := m.release(stepTime)

	setSizes := m.uncertaintySetSizes()
	m.resetStaleUncertainty(setSizes)
	for _, mv := range m.movers {
		if err := mv.PrepareForModelStep(stepTime, m.timeStep, m.uncertain, setSizes); err != nil {
			return nil, false, fmt.Errorf("step %d: %w", m.current+1, err)
		}
	}

	res := &StepResult{Step: m.current + 1, Released: released}

	uncertainIndex := 0
	for _, set := range m.sets {
		setIndex := 0
		if set.kind == components.KindUncertainty {
			setIndex = uncertainIndex
			uncertainIndex++
		}
		if err := m.moveSet(set, setIndex, res); err != nil {
			return nil, false, fmt.Errorf("step %d: %w", m.current+1, err)
		}
	}

	removed, err := m.removeFlagged()
	if err != nil {
		return nil, false, fmt.Errorf("step %d: %w", m.current+1, err)
	}
	res.Removed = removed
	res.InWater = m.countInWater()

	for _, mv := range m.movers {
		mv.ModelStepIsDone()
	}

	m.current++
	m.modelTime = stepTime.Add(m.timeStep)
	res.ModelTime = m.modelTime
	return res, true, nil
}

// release spawns every element whose release time has arrived. Elements
// within a spill appear linearly over the spill's release window, and a
// set's entities slice grows strictly append-only so that an element
// keeps its index for the run's remainder.
func (m *Model) release(now time.Time) int {
	released := 0
	for _, set := range m.sets {
		sp := m.spills[set.spill]
		target := releaseTarget(sp, now)
		for set.released < target {
			windage := sp.WindageMin + m.rng.Float64()*(sp.WindageMax-sp.WindageMin)
			e := m.mapper.NewEntity(
				&components.Position{Lon: sp.Lon * 1e6, Lat: sp.Lat * 1e6},
				&components.Transport{Windage: windage},
				&components.Element{ID: m.nextID, Spill: set.spill, Kind: set.kind},
				&components.Status{Code: components.StatusInWater},
			)
			set.entities = append(set.entities, e)
			set.released++
			m.nextID++
			released++
		}
	}
	return released
}

// releaseTarget returns how many of a spill's elements are due at the
// given model time. Element i is due at Start + Duration*i/Elements.
func releaseTarget(sp Spill, now time.Time) int {
	if sp.Elements <= 0 || now.Before(sp.Start) {
		return 0
	}
	if sp.Duration <= 0 {
		return sp.Elements
	}
	elapsed := now.Sub(sp.Start)
	if elapsed >= sp.Duration {
		return sp.Elements
	}
	n := int(float64(sp.Elements)*float64(elapsed)/float64(sp.Duration)) + 1
	if n > sp.Elements {
		n = sp.Elements
	}
	return n
}

// resetStaleUncertainty discards mover uncertainty state when the run
// has several uncertainty sets and any of them changed size since the
// sizes were last reported. A per-element compaction cannot describe
// such a change, so the movers resample from scratch. Single-set
// changes are left to the movers, which grow or shrink in place.
func (m *Model) resetStaleUncertainty(setSizes []int) {
	defer func() {
		m.reportedSizes = append(m.reportedSizes[:0], setSizes...)
	}()
	if len(setSizes) < 2 || m.reportedSizes == nil {
		return
	}
	changed := len(setSizes) != len(m.reportedSizes)
	for i := range setSizes {
		if changed || setSizes[i] != m.reportedSizes[i] {
			changed = true
			break
		}
	}
	if !changed {
		return
	}
	for _, mv := range m.movers {
		if r, ok := mv.(uncertaintyResetter); ok {
			r.ResetUncertainty()
		}
	}
}

// uncertaintySetSizes returns the live sizes of the uncertainty sets in
// set order, or nil for a certain-only run.
func (m *Model) uncertaintySetSizes() []int {
	if !m.uncertain {
		return nil
	}
	var sizes []int
	for _, set := range m.sets {
		if set.kind == components.KindUncertainty {
			sizes = append(sizes, len(set.entities))
		}
	}
	return sizes
}

// moveSet runs every mover over one element set, sums their deltas, and
// writes the result back. Elements drifting outside the run bounds are
// flagged for removal; the cull itself happens after every set has
// moved.
func (m *Model) moveSet(set *elementSet, setIndex int, res *StepResult) error {
	n := len(set.entities)
	if n == 0 {
		return nil
	}
	b := &mover.Batch{
		SetIndex: setIndex,
		Kind:     set.kind,
		Lon:      make([]float64, n),
		Lat:      make([]float64, n),
		Z:        make([]float64, n),
		Windage:  make([]float64, n),
		Status:   make([]components.StatusCode, n),
	}
	for i, e := range set.entities {
		pos, trans, _, status := m.mapper.Get(e)
		b.Lon[i] = pos.Lon
		b.Lat[i] = pos.Lat
		b.Z[i] = trans.Z
		b.Windage[i] = trans.Windage
		b.Status[i] = status.Code
	}

	total := make([]mover.Delta, n)
	for _, mv := range m.movers {
		deltas, err := mv.MoveBatch(m.timeStep, b)
		if err != nil {
			return err
		}
		for i, d := range deltas {
			total[i].Lon += d.Lon
			total[i].Lat += d.Lat
		}
	}

	for i, e := range set.entities {
		if b.Status[i] != components.StatusInWater {
			continue
		}
		pos := m.posMap.Get(e)
		pos.Lon += total[i].Lon
		pos.Lat += total[i].Lat

		lonDeg := pos.Lon / 1e6
		latDeg := pos.Lat / 1e6
		if !m.bounds.Contains(lonDeg, latDeg) {
			m.statusMap.Get(e).Code = components.StatusToBeRemoved
			continue
		}
		if set.kind == components.KindForecast {
			// Micro-degrees back to meters, with the meridian
			// convergence correction the movers applied going the
			// other way.
			dy := total[i].Lat / 1e6 * 111120
			dx := total[i].Lon / 1e6 * 111120 * math.Cos(latDeg*math.Pi/180)
			res.Displacements = append(res.Displacements, math.Hypot(dx, dy))
		}
	}
	return nil
}

// removeFlagged despawns every element flagged for removal, compacting
// each set's entities slice in place so the survivors keep their
// relative order. For a run with a single uncertainty set the movers'
// uncertainty state is compacted in lockstep; with several sets the
// next step's size report triggers a full uncertainty reset instead.
func (m *Model) removeFlagged() (int, error) {
	removed := 0
	for _, set := range m.sets {
		flagged := 0
		for _, e := range set.entities {
			if m.statusMap.Get(e).Code == components.StatusToBeRemoved {
				flagged++
			}
		}
		if flagged == 0 {
			continue
		}

		if set.kind == components.KindUncertainty && len(m.uncertaintySetSizes()) == 1 {
			status := make([]components.StatusCode, len(set.entities))
			for i, e := range set.entities {
				status[i] = m.statusMap.Get(e).Code
			}
			for _, mv := range m.movers {
				shrinker, ok := mv.(uncertaintyShrinker)
				if !ok {
					continue
				}
				if err := shrinker.ShrinkUncertainty(len(status), status); err != nil {
					return removed, err
				}
			}
		}

		kept := set.entities[:0]
		for _, e := range set.entities {
			if m.statusMap.Get(e).Code == components.StatusToBeRemoved {
				m.world.RemoveEntity(e)
				removed++
				continue
			}
			kept = append(kept, e)
		}
		set.entities = kept
	}
	return removed, nil
}

func (m *Model) countInWater() int {
	n := 0
	for _, set := range m.sets {
		for _, e := range set.entities {
			if m.statusMap.Get(e).Code == components.StatusInWater {
				n++
			}
		}
	}
	return n
}
