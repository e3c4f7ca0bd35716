package telemetry

import (
	"time"

	"github.com/pthm-cable/drift/model"
)

// Collector turns per-step model results into StepStats, carrying the
// cumulative counters across the run.
type Collector struct {
	start time.Time

	totalReleased int
	totalRemoved  int
}

// NewCollector creates a stats collector for a run starting at the
// given model time.
func NewCollector(start time.Time) *Collector {
	return &Collector{start: start}
}

// Record folds one step result into the running totals and returns the
// step's stats row.
func (c *Collector) Record(res *model.StepResult) StepStats {
	c.totalReleased += res.Released
	c.totalRemoved += res.Removed

	ds := ComputeDispStats(res.Displacements)

	return StepStats{
		Step:       res.Step,
		ModelTime:  res.ModelTime.UTC().Format(time.RFC3339),
		SimTimeSec: res.ModelTime.Sub(c.start).Seconds(),

		InWater:  res.InWater,
		Released: res.Released,
		Removed:  res.Removed,

		TotalReleased: c.totalReleased,
		TotalRemoved:  c.totalRemoved,

		DispMean: ds.Mean,
		DispStd:  ds.Std,
		DispP10:  ds.P10,
		DispP50:  ds.P50,
		DispP90:  ds.P90,
		DispMax:  ds.Max,
	}
}

// TotalReleased returns the cumulative released count.
func (c *Collector) TotalReleased() int { return c.totalReleased }

// TotalRemoved returns the cumulative removed count.
func (c *Collector) TotalRemoved() int { return c.totalRemoved }
