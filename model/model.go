// Package model drives a transport simulation run. It owns the element
// world, releases spill elements over time, and advances them through
// the registered movers once per step.
package model

import (
	"math/rand"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/mover"
)

// Bounds is the rectangular water area of a run, in degrees. Elements
// leaving it are flagged for removal at the end of the step that moved
// them out.
type Bounds struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// Contains reports whether the point lies inside the bounds.
func (b Bounds) Contains(lonDeg, latDeg float64) bool {
	return lonDeg >= b.MinLon && lonDeg <= b.MaxLon &&
		latDeg >= b.MinLat && latDeg <= b.MaxLat
}

// Spill describes one release of elements.
type Spill struct {
	Name     string
	Lon      float64 // release point, degrees
	Lat      float64
	Elements int

	// Elements appear linearly over [Start, Start+Duration]. A zero
	// Duration releases everything at Start.
	Start    time.Time
	Duration time.Duration

	// Per-element windage is drawn uniformly from [WindageMin, WindageMax].
	WindageMin float64
	WindageMax float64
}

// elementSet is one population of elements sharing a spill and a kind.
// The entities slice is the authoritative ordering: an element keeps its
// index, and with it its perturbation-draw identity, until removal
// compacts the slice.
type elementSet struct {
	spill    int
	kind     components.Kind
	entities []ecs.Entity
	released int
}

// uncertaintyShrinker is implemented by movers that carry per-element
// uncertainty state which must be compacted when elements are removed.
type uncertaintyShrinker interface {
	ShrinkUncertainty(numElements int, status []components.StatusCode) error
}

// uncertaintyResetter is implemented by movers whose uncertainty state
// must be discarded outright when several sets change size at once,
// since no per-element compaction can describe that change.
type uncertaintyResetter interface {
	ResetUncertainty()
}

// Options configures a Model.
type Options struct {
	Start     time.Time
	TimeStep  time.Duration
	Duration  time.Duration
	Uncertain bool
	Bounds    Bounds
	Seed      int64
	Spills    []Spill
	Movers    []mover.Mover
}

// Model holds the run state: the element world, the spill sets, and the
// clock.
type Model struct {
	world  *ecs.World
	mapper *ecs.Map4[
		components.Position,
		components.Transport,
		components.Element,
		components.Status,
	]
	posMap    *ecs.Map1[components.Position]
	statusMap *ecs.Map1[components.Status]

	movers []mover.Mover
	spills []Spill
	sets   []*elementSet

	start     time.Time
	timeStep  time.Duration
	numSteps  int
	current   int // -1 before the run is set up
	modelTime time.Time
	uncertain bool

	bounds Bounds
	rng    *rand.Rand
	nextID uint32

	// Uncertainty set sizes as last reported to the movers; a multi-set
	// change forces a mover-side uncertainty reset.
	reportedSizes []int
}

// New creates a Model. Movers are borrowed: the host remains responsible
// for any resources they hold.
func New(opts Options) *Model {
	world := ecs.NewWorld()

	m := &Model{
		world: world,
		mapper: ecs.NewMap4[
			components.Position,
			components.Transport,
			components.Element,
			components.Status,
		](world),
		posMap:    ecs.NewMap1[components.Position](world),
		statusMap: ecs.NewMap1[components.Status](world),

		movers:    opts.Movers,
		spills:    opts.Spills,
		start:     opts.Start,
		timeStep:  opts.TimeStep,
		uncertain: opts.Uncertain,
		bounds:    opts.Bounds,
		rng:       rand.New(rand.NewSource(opts.Seed)),
	}
	if opts.TimeStep > 0 {
		m.numSteps = int(opts.Duration / opts.TimeStep)
	}
	m.buildSets()
	m.Rewind()
	return m
}

// buildSets lays out the element sets: one forecast set per spill, plus
// a mirrored uncertainty set per spill when the run is uncertain.
func (m *Model) buildSets() {
	m.sets = m.sets[:0]
	for i := range m.spills {
		m.sets = append(m.sets, &elementSet{spill: i, kind: components.KindForecast})
	}
	if m.uncertain {
		for i := range m.spills {
			m.sets = append(m.sets, &elementSet{spill: i, kind: components.KindUncertainty})
		}
	}
}

// Rewind resets the model to before the first step, discarding every
// released element. Movers notice the rewind themselves: their elapsed
// clock moving backward triggers their own reinitialization.
func (m *Model) Rewind() {
	for _, set := range m.sets {
		for _, e := range set.entities {
			m.world.RemoveEntity(e)
		}
		set.entities = set.entities[:0]
		set.released = 0
	}
	m.current = -1
	m.modelTime = m.start
	m.reportedSizes = nil
}

// CurrentStep returns the last completed step, -1 before the first.
func (m *Model) CurrentStep() int { return m.current }

// ModelTime returns the model clock after the last completed step.
func (m *Model) ModelTime() time.Time { return m.modelTime }

// NumSteps returns the total number of steps in the run.
func (m *Model) NumSteps() int { return m.numSteps }

// Uncertain reports whether the run carries mirrored uncertainty sets.
func (m *Model) Uncertain() bool { return m.uncertain }

// ElementView is a read-only snapshot of one element.
type ElementView struct {
	ID     uint32
	Spill  int
	Kind   components.Kind
	Lon    float64 // degrees
	Lat    float64
	Status components.StatusCode
}

// Snapshot returns every live element's state, set by set in release
// order.
func (m *Model) Snapshot() []ElementView {
	var views []ElementView
	for _, set := range m.sets {
		for _, e := range set.entities {
			pos, _, elem, status := m.mapper.Get(e)
			views = append(views, ElementView{
				ID:     elem.ID,
				Spill:  elem.Spill,
				Kind:   elem.Kind,
				Lon:    pos.Lon / 1e6,
				Lat:    pos.Lat / 1e6,
				Status: status.Code,
			})
		}
	}
	return views
}
