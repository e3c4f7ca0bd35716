package mover

import (
	"fmt"
	"math"
	"time"

	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/wind"
)

// Default uncertainty perturbation parameters.
const (
	DefaultSpeedScale      = 2.0
	DefaultAngleScale      = 0.4
	DefaultMaxSpeed        = 30.0 // m/s
	DefaultMaxAngle        = 60.0 // degrees
	DefaultRefreshInterval = 3 * time.Hour
)

// eddyDiffusion feeds the near-calm fallback scale recomputed each step.
const eddyDiffusion = 1e6

// WindMover displaces surface elements by the wind field, optionally
// perturbed per element for uncertainty runs.
//
// The mover borrows its wind Provider: the host owns the provider and
// its lifetime, and provider errors propagate out of PrepareForModelStep
// wrapped but otherwise unchanged.
type WindMover struct {
	provider wind.Provider
	rng      Source

	SpeedScale         float64       // magnitude spread growth coefficient
	AngleScale         float64       // angle spread growth coefficient
	MaxSpeed           float64       // draw acceptance bound, m/s
	MaxAngle           float64       // draw acceptance bound, degrees
	UncertainStartTime time.Duration // elapsed time before uncertainty activates
	RefreshInterval    time.Duration // draw resample interval

	// Derived each step while uncertainty is active.
	sigma2               float64
	sigmaTheta           float64
	uncertaintyDiffusion float64 // near-calm fallback scale, m/s

	uncertainty uncertaintyStore

	// Elapsed time is mover-relative: the model start is captured on the
	// first step after PrepareForModelRun.
	isFirstStep bool
	modelStart  time.Time

	stepWind wind.Vector // provider value cached for the current step
}

// New returns a WindMover reading from the given provider, drawing
// perturbations from rng, with default uncertainty parameters.
func New(provider wind.Provider, rng Source) *WindMover {
	return &WindMover{
		provider:        provider,
		rng:             rng,
		SpeedScale:      DefaultSpeedScale,
		AngleScale:      DefaultAngleScale,
		MaxSpeed:        DefaultMaxSpeed,
		MaxAngle:        DefaultMaxAngle,
		RefreshInterval: DefaultRefreshInterval,
	}
}

// PrepareForModelRun clears per-run uncertainty state ahead of the first
// step.
func (m *WindMover) PrepareForModelRun() {
	m.isFirstStep = true
	m.uncertainty.dispose()
}

// PrepareForModelStep runs the uncertainty scheduler and caches the wind
// value used for every element this step. setSizes reports the element
// count of each uncertainty set, in set order.
func (m *WindMover) PrepareForModelStep(modelTime time.Time, timeStep time.Duration, uncertain bool, setSizes []int) error {
	if m.isFirstStep {
		m.modelStart = modelTime
	}

	if uncertain {
		elapsed := modelTime.Sub(m.modelStart)
		if err := m.updateUncertainty(elapsed, setSizes); err != nil {
			return err
		}
		// Divided by the step length because the fallback is multiplied
		// back up by the step length in the displacement conversion.
		m.uncertaintyDiffusion = math.Sqrt(6 * (eddyDiffusion / 10000) / timeStep.Seconds())
	} else {
		m.uncertainty.dispose()
	}

	v, err := m.provider.Value(modelTime)
	if err != nil {
		return fmt.Errorf("wind value at %s: %w", modelTime.Format(time.RFC3339), err)
	}
	m.stepWind = v
	return nil
}

// ModelStepIsDone marks the end of a step.
func (m *WindMover) ModelStepIsDone() {
	m.isFirstStep = false
}

// move computes one element's displacement for the step. The position is
// in floating degrees, the returned delta in micro-degrees. Wind does
// not act below the surface.
func (m *WindMover) move(timeStep time.Duration, setIndex, leIndex int, latDeg, z, windage float64, kind components.Kind) (dLon, dLat float64) {
	if z > 0 {
		return 0, 0
	}

	v := m.stepWind
	if kind == components.KindUncertainty {
		v = m.perturb(setIndex, leIndex, v)
	}

	v.U *= windage
	v.V *= windage

	dt := timeStep.Seconds()
	dLon = (v.U / metersPerDegreeLat * dt) / longToLatRatio(latDeg) * microDeg
	dLat = v.V / metersPerDegreeLat * dt * microDeg
	return dLon, dLat
}

// perturb applies the element's stored perturbation draw to the step
// wind. An unallocated store means uncertainty is off this step and the
// wind passes through unchanged.
func (m *WindMover) perturb(setIndex, leIndex int, v wind.Vector) wind.Vector {
	st := &m.uncertainty
	if !st.allocated() {
		return v
	}

	norm := math.Hypot(v.U, v.V)
	if norm < 1 {
		// Near calm the magnitude/angle formula is unstable; apply a
		// small isotropic diffusion instead.
		return wind.Vector{
			U: v.U + m.uncertaintyDiffusion*m.rng.Uniform(-1, 1),
			V: v.V + m.uncertaintyDiffusion*m.rng.Uniform(-1, 1),
		}
	}

	draw := st.draws[st.offsets[setIndex]+leIndex]

	w := norm
	s := w*w - m.sigma2
	var sqs, mag float64
	if s > 0 {
		sqs = math.Sqrt(s)
		mag = math.Sqrt(sqs)
	}
	s = math.Sqrt(w - sqs)

	x := draw.randCos*s + mag
	w = x * x

	dtheta := draw.randSin * m.sigmaTheta * math.Pi / 180
	costheta := math.Cos(dtheta)
	sintheta := math.Sin(dtheta)

	// Compensate for the projection effect of the rotation.
	if costheta < 0.001 {
		w /= 0.001
	} else {
		w /= costheta
	}

	// Rescale the wind to the perturbed magnitude, then rotate by dtheta.
	t := w / norm
	u := v.U * t
	vv := v.V * t
	return wind.Vector{
		U: u*costheta - vv*sintheta,
		V: vv*costheta + u*sintheta,
	}
}

// Batch describes one spill set's elements for a step move. All slices
// share a length; positions and the returned deltas are fixed-point
// micro-degrees.
type Batch struct {
	SetIndex int             // uncertainty set index; ignored for forecast sets
	Kind     components.Kind // population tag shared by the whole set
	Lon      []float64
	Lat      []float64
	Z        []float64 // depth below surface, meters
	Windage  []float64
	Status   []components.StatusCode
}

// Delta is one element's positional displacement in micro-degrees.
type Delta struct {
	Lon float64
	Lat float64
}

// MoveBatch computes the current step's displacement for every element
// of a batch. Elements not in water receive a zero delta and skip the
// physics entirely. An error invalidates the whole batch; no partial
// results are returned.
func (m *WindMover) MoveBatch(timeStep time.Duration, b *Batch) ([]Delta, error) {
	if b == nil || b.Lon == nil || b.Lat == nil || b.Z == nil || b.Windage == nil || b.Status == nil {
		return nil, fmt.Errorf("%w: batch arrays required", ErrInvalidArgument)
	}
	n := len(b.Lon)
	if len(b.Lat) != n || len(b.Z) != n || len(b.Windage) != n || len(b.Status) != n {
		return nil, fmt.Errorf("%w: batch arrays must share a length", ErrInvalidArgument)
	}
	if b.Kind != components.KindForecast && b.Kind != components.KindUncertainty {
		return nil, fmt.Errorf("%w: %d", ErrInvalidElementKind, b.Kind)
	}

	deltas := make([]Delta, n)
	for i := 0; i < n; i++ {
		if b.Status[i] != components.StatusInWater {
			continue
		}
		// The fixed-point latitude expands to floating degrees for the
		// engine; the delta comes back re-encoded.
		lat := b.Lat[i] / microDeg
		dLon, dLat := m.move(timeStep, b.SetIndex, i, lat, b.Z[i], b.Windage[i], b.Kind)
		deltas[i] = Delta{Lon: dLon, Lat: dLat}
	}
	return deltas, nil
}
