package telemetry

import (
	"math"
	"testing"
	"time"

	"github.com/pthm-cable/drift/model"
)

func TestComputeDispStats(t *testing.T) {
	disp := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	ds := ComputeDispStats(disp)

	if math.Abs(ds.Mean-5.5) > 0.001 {
		t.Errorf("Mean = %v, want 5.5", ds.Mean)
	}
	// Sample standard deviation of 1..10.
	if math.Abs(ds.Std-3.0277) > 0.001 {
		t.Errorf("Std = %v, want ~3.0277", ds.Std)
	}
	if ds.P10 != 1 {
		t.Errorf("P10 = %v, want 1", ds.P10)
	}
	if ds.P50 != 5 {
		t.Errorf("P50 = %v, want 5", ds.P50)
	}
	if ds.P90 != 9 {
		t.Errorf("P90 = %v, want 9", ds.P90)
	}
	if ds.Max != 10 {
		t.Errorf("Max = %v, want 10", ds.Max)
	}
}

func TestComputeDispStatsEmpty(t *testing.T) {
	ds := ComputeDispStats(nil)
	if ds != (DispStats{}) {
		t.Errorf("empty sample should yield zeros, got %+v", ds)
	}
}

func TestComputeDispStatsSingle(t *testing.T) {
	ds := ComputeDispStats([]float64{7.5})
	if ds.Mean != 7.5 || ds.Max != 7.5 {
		t.Errorf("Mean/Max = %v/%v, want 7.5/7.5", ds.Mean, ds.Max)
	}
	if ds.Std != 0 {
		t.Errorf("Std = %v, want 0 for a single sample", ds.Std)
	}
}

func TestCollectorAccumulates(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c := NewCollector(start)

	s1 := c.Record(&model.StepResult{
		Step:          1,
		ModelTime:     start.Add(15 * time.Minute),
		Released:      50,
		InWater:       50,
		Removed:       0,
		Displacements: []float64{10, 20, 30},
	})
	if s1.TotalReleased != 50 || s1.TotalRemoved != 0 {
		t.Errorf("step 1 totals = %d/%d, want 50/0", s1.TotalReleased, s1.TotalRemoved)
	}
	if s1.SimTimeSec != 900 {
		t.Errorf("SimTimeSec = %v, want 900", s1.SimTimeSec)
	}
	if math.Abs(s1.DispMean-20) > 0.001 {
		t.Errorf("DispMean = %v, want 20", s1.DispMean)
	}

	s2 := c.Record(&model.StepResult{
		Step:      2,
		ModelTime: start.Add(30 * time.Minute),
		Released:  25,
		InWater:   70,
		Removed:   5,
	})
	if s2.TotalReleased != 75 || s2.TotalRemoved != 5 {
		t.Errorf("step 2 totals = %d/%d, want 75/5", s2.TotalReleased, s2.TotalRemoved)
	}
	if s2.DispMean != 0 {
		t.Errorf("DispMean = %v, want 0 for an empty sample", s2.DispMean)
	}
	if c.TotalReleased() != 75 || c.TotalRemoved() != 5 {
		t.Errorf("collector totals = %d/%d, want 75/5", c.TotalReleased(), c.TotalRemoved())
	}
}
