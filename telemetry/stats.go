package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// StepStats holds aggregated statistics for one model step.
type StepStats struct {
	Step       int     `csv:"step"`
	ModelTime  string  `csv:"model_time"`
	SimTimeSec float64 `csv:"sim_time"`

	// Population counts at step end
	InWater int `csv:"in_water"`

	// Events during the step
	Released int `csv:"released"`
	Removed  int `csv:"removed"`

	// Cumulative counters
	TotalReleased int `csv:"total_released"`
	TotalRemoved  int `csv:"total_removed"`

	// Per-step displacement distribution over in-water forecast
	// elements, meters
	DispMean float64 `csv:"disp_mean"`
	DispStd  float64 `csv:"disp_std"`
	DispP10  float64 `csv:"disp_p10"`
	DispP50  float64 `csv:"disp_p50"`
	DispP90  float64 `csv:"disp_p90"`
	DispMax  float64 `csv:"disp_max"`
}

// LogStats logs the step stats using slog.
func (s StepStats) LogStats() {
	slog.Info("step",
		"step", s.Step,
		"model_time", s.ModelTime,
		"in_water", s.InWater,
		"released", s.Released,
		"removed", s.Removed,
		"disp_mean", s.DispMean,
		"disp_p90", s.DispP90,
	)
}

// DispStats summarises a displacement sample.
type DispStats struct {
	Mean float64
	Std  float64
	P10  float64
	P50  float64
	P90  float64
	Max  float64
}

// ComputeDispStats aggregates a per-element displacement sample. The
// sample is sorted in place. An empty sample yields zeros; a
// single-element sample has zero deviation.
func ComputeDispStats(disp []float64) DispStats {
	if len(disp) == 0 {
		return DispStats{}
	}
	sort.Float64s(disp)

	ds := DispStats{
		Mean: stat.Mean(disp, nil),
		P10:  stat.Quantile(0.10, stat.Empirical, disp, nil),
		P50:  stat.Quantile(0.50, stat.Empirical, disp, nil),
		P90:  stat.Quantile(0.90, stat.Empirical, disp, nil),
		Max:  disp[len(disp)-1],
	}
	if len(disp) > 1 {
		ds.Std = stat.StdDev(disp, nil)
		if math.IsNaN(ds.Std) {
			ds.Std = 0
		}
	}
	return ds
}
