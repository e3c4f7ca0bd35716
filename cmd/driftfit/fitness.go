package main

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/config"
	"github.com/pthm-cable/drift/model"
	"github.com/pthm-cable/drift/mover"
	"github.com/pthm-cable/drift/wind"
)

// TrackPoint is one observed drifter position.
type TrackPoint struct {
	Time wind.Timestamp `csv:"time"`
	Lon  float64        `csv:"lon"`
	Lat  float64        `csv:"lat"`
}

// LoadTrackCSV reads a drifter track with columns time (RFC 3339),
// lon, lat.
func LoadTrackCSV(path string) ([]TrackPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening track: %w", err)
	}
	defer f.Close()

	var points []TrackPoint
	if err := gocsv.UnmarshalFile(f, &points); err != nil {
		return nil, fmt.Errorf("parsing track: %w", err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("track %s holds no points", path)
	}
	return points, nil
}

// FitnessEvaluator scores a windage band by how closely the simulated
// cloud centroid follows an observed drifter track.
type FitnessEvaluator struct {
	params *ParamVector
	track  []TrackPoint
	seeds  []int64
	cfg    *config.Config
}

func NewFitnessEvaluator(params *ParamVector, track []TrackPoint, seeds []int64, cfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{params: params, track: track, seeds: seeds, cfg: cfg}
}

// Evaluate returns the mean RMS centroid error in meters across the
// evaluation seeds. Lower is better. A run error scores as unusable.
func (fe *FitnessEvaluator) Evaluate(raw []float64) float64 {
	total := 0.0
	for _, seed := range fe.seeds {
		err, ok := fe.evaluateSeed(raw, seed)
		if !ok {
			return 1e9
		}
		total += err
	}
	return total / float64(len(fe.seeds))
}

func (fe *FitnessEvaluator) evaluateSeed(raw []float64, seed int64) (float64, bool) {
	cfg := *fe.cfg
	cfg.Spills = append([]config.SpillConfig(nil), fe.cfg.Spills...)
	fe.params.ApplyToConfig(&cfg, raw)

	provider, err := buildProvider(&cfg)
	if err != nil {
		return 0, false
	}

	wm := mover.New(provider, mover.NewSource(seed))
	sp := cfg.Spills[0]
	m := model.New(model.Options{
		Start:    cfg.Derived.Start,
		TimeStep: cfg.Derived.TimeStep,
		Duration: cfg.Derived.Duration,
		Bounds: model.Bounds{
			MinLon: cfg.Map.MinLon,
			MinLat: cfg.Map.MinLat,
			MaxLon: cfg.Map.MaxLon,
			MaxLat: cfg.Map.MaxLat,
		},
		Seed: seed,
		Spills: []model.Spill{{
			Name:       sp.Name,
			Lon:        sp.Lon,
			Lat:        sp.Lat,
			Elements:   sp.Elements,
			Start:      cfg.Derived.SpillStarts[0],
			Duration:   cfg.Derived.SpillDurations[0],
			WindageMin: sp.WindageMin,
			WindageMax: sp.WindageMax,
		}},
		Movers: []mover.Mover{wm},
	})

	sumSq := 0.0
	matched := 0
	for {
		res, more, err := m.Step()
		if err != nil {
			return 0, false
		}
		if !more {
			break
		}

		obs, ok := trackAt(fe.track, res.ModelTime, cfg.Derived.TimeStep/2)
		if !ok {
			continue
		}
		lon, lat, ok := centroid(m)
		if !ok {
			continue
		}
		d := distanceMeters(lon, lat, obs.Lon, obs.Lat)
		sumSq += d * d
		matched++
	}

	if matched == 0 {
		return 0, false
	}
	return math.Sqrt(sumSq / float64(matched)), true
}

// trackAt finds the observed point nearest to t within the tolerance.
func trackAt(track []TrackPoint, t time.Time, tol time.Duration) (TrackPoint, bool) {
	best := TrackPoint{}
	bestGap := tol
	found := false
	for _, p := range track {
		gap := p.Time.Sub(t)
		if gap < 0 {
			gap = -gap
		}
		if gap <= bestGap {
			best = p
			bestGap = gap
			found = true
		}
	}
	return best, found
}

// centroid averages the in-water forecast element positions.
func centroid(m *model.Model) (lon, lat float64, ok bool) {
	n := 0
	for _, v := range m.Snapshot() {
		if v.Kind != components.KindForecast || v.Status != components.StatusInWater {
			continue
		}
		lon += v.Lon
		lat += v.Lat
		n++
	}
	if n == 0 {
		return 0, 0, false
	}
	return lon / float64(n), lat / float64(n), true
}

// distanceMeters is a flat-earth distance, adequate at track scales.
func distanceMeters(lon1, lat1, lon2, lat2 float64) float64 {
	const metersPerDegree = 111120.0
	dy := (lat2 - lat1) * metersPerDegree
	dx := (lon2 - lon1) * metersPerDegree * math.Cos(lat1*math.Pi/180)
	return math.Hypot(dx, dy)
}
