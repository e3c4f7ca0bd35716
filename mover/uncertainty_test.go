package mover

import (
	"errors"
	"testing"
	"time"

	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/wind"
)

func newTestMover() *WindMover {
	return New(wind.Constant{U: 5}, NewSource(7))
}

func TestUpdateUncertaintyAllocates(t *testing.T) {
	m := newTestMover()

	if err := m.updateUncertainty(time.Hour, []int{3, 2}); err != nil {
		t.Fatalf("updateUncertainty: %v", err)
	}

	st := &m.uncertainty
	if !st.allocated() {
		t.Fatal("store not allocated")
	}
	if len(st.draws) != 5 {
		t.Errorf("len(draws) = %d, want 5", len(st.draws))
	}
	if len(st.offsets) != 2 || st.offsets[0] != 0 || st.offsets[1] != 3 {
		t.Errorf("offsets = %v, want [0 3]", st.offsets)
	}
	if st.lastRefresh != time.Hour {
		t.Errorf("lastRefresh = %v, want 1h", st.lastRefresh)
	}
}

func TestUpdateUncertaintyBeforeStart(t *testing.T) {
	m := newTestMover()
	m.UncertainStartTime = 2 * time.Hour

	if err := m.updateUncertainty(2*time.Hour, []int{4}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !m.uncertainty.allocated() {
		t.Fatal("store should be allocated at the start threshold")
	}

	// Dropping below the threshold disposes again.
	m2 := newTestMover()
	m2.UncertainStartTime = 2 * time.Hour
	if err := m2.updateUncertainty(time.Hour, []int{4}); err != nil {
		t.Fatalf("before start: %v", err)
	}
	if m2.uncertainty.allocated() {
		t.Error("store allocated before the uncertainty start time")
	}
}

func TestUpdateUncertaintyClockReset(t *testing.T) {
	m := newTestMover()

	if err := m.updateUncertainty(2*time.Hour, []int{4}); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	// The elapsed clock moving backward is a silent reinit, not an
	// error.
	if err := m.updateUncertainty(time.Hour, []int{4}); err != nil {
		t.Fatalf("clock reset: %v", err)
	}
	if !m.uncertainty.allocated() {
		t.Fatal("store not reallocated after clock reset")
	}
	if m.uncertainty.lastRefresh != time.Hour {
		t.Errorf("lastRefresh = %v, want 1h", m.uncertainty.lastRefresh)
	}
}

func TestUpdateUncertaintyGrowKeepsDraws(t *testing.T) {
	m := newTestMover()

	if err := m.updateUncertainty(time.Hour, []int{4}); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	before := append([]drawPair(nil), m.uncertainty.draws...)

	if err := m.updateUncertainty(time.Hour+15*time.Minute, []int{6}); err != nil {
		t.Fatalf("grow: %v", err)
	}
	draws := m.uncertainty.draws
	if len(draws) != 6 {
		t.Fatalf("len(draws) = %d, want 6", len(draws))
	}
	for i, d := range before {
		if draws[i] != d {
			t.Errorf("draw %d changed across growth: %v -> %v", i, d, draws[i])
		}
	}
	// Growth does not count as a refresh.
	if m.uncertainty.lastRefresh != time.Hour {
		t.Errorf("lastRefresh = %v, want 1h", m.uncertainty.lastRefresh)
	}
}

func TestUpdateUncertaintyRefreshInterval(t *testing.T) {
	m := newTestMover()

	if err := m.updateUncertainty(time.Hour, []int{4}); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	before := append([]drawPair(nil), m.uncertainty.draws...)

	// Inside the interval the draws stay put.
	if err := m.updateUncertainty(time.Hour+30*time.Minute, []int{4}); err != nil {
		t.Fatalf("within interval: %v", err)
	}
	for i, d := range before {
		if m.uncertainty.draws[i] != d {
			t.Fatalf("draw %d changed within the refresh interval", i)
		}
	}

	// At lastRefresh + RefreshInterval everything resamples.
	at := time.Hour + m.RefreshInterval
	if err := m.updateUncertainty(at, []int{4}); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if m.uncertainty.lastRefresh != at {
		t.Errorf("lastRefresh = %v, want %v", m.uncertainty.lastRefresh, at)
	}
}

func TestUpdateUncertaintyMultiSetResize(t *testing.T) {
	// With several sets and matching boundaries, a total mismatch in
	// either direction must refuse rather than resample the surviving
	// elements' draws.
	tests := []struct {
		name  string
		sizes []int
	}{
		{name: "last set grew", sizes: []int{3, 3}},
		{name: "last set shrank", sizes: []int{3, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMover()
			if err := m.updateUncertainty(time.Hour, []int{3, 2}); err != nil {
				t.Fatalf("allocate: %v", err)
			}
			before := append([]drawPair(nil), m.uncertainty.draws...)

			err := m.updateUncertainty(time.Hour+15*time.Minute, tt.sizes)
			if !errors.Is(err, ErrInconsistentState) {
				t.Fatalf("err = %v, want ErrInconsistentState", err)
			}
			for i, d := range before {
				if m.uncertainty.draws[i] != d {
					t.Errorf("draw %d changed across a refused resize: %v -> %v", i, d, m.uncertainty.draws[i])
				}
			}
		})
	}
}

func TestUpdateUncertaintyBoundaryMismatch(t *testing.T) {
	m := newTestMover()

	if err := m.updateUncertainty(time.Hour, []int{3, 2}); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	// A changed set boundary means the whole layout moved, and the
	// store starts over at the new sizes.
	if err := m.updateUncertainty(time.Hour+15*time.Minute, []int{2, 3}); err != nil {
		t.Fatalf("boundary change: %v", err)
	}
	if len(m.uncertainty.offsets) != 2 || m.uncertainty.offsets[1] != 2 {
		t.Errorf("offsets = %v, want [0 2]", m.uncertainty.offsets)
	}
}

func TestResetUncertainty(t *testing.T) {
	m := newTestMover()
	if err := m.updateUncertainty(time.Hour, []int{3, 2}); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	m.ResetUncertainty()
	if m.uncertainty.allocated() {
		t.Fatal("store still allocated after reset")
	}

	// The scheduler accepts whatever sizes come next.
	if err := m.updateUncertainty(time.Hour+15*time.Minute, []int{3, 3}); err != nil {
		t.Fatalf("post-reset update: %v", err)
	}
	if len(m.uncertainty.draws) != 6 {
		t.Errorf("len(draws) = %d, want 6", len(m.uncertainty.draws))
	}
}

func TestUpdateUncertaintyUnreportedShrink(t *testing.T) {
	m := newTestMover()

	if err := m.updateUncertainty(time.Hour, []int{5}); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	err := m.updateUncertainty(time.Hour+15*time.Minute, []int{3})
	if !errors.Is(err, ErrInconsistentState) {
		t.Errorf("err = %v, want ErrInconsistentState", err)
	}
}

func TestUpdateUncertaintyEmptySets(t *testing.T) {
	m := newTestMover()
	err := m.updateUncertainty(time.Hour, nil)
	if !errors.Is(err, ErrAllocation) {
		t.Errorf("err = %v, want ErrAllocation", err)
	}
}

func TestShrinkUncertainty(t *testing.T) {
	m := newTestMover()
	if err := m.updateUncertainty(time.Hour, []int{5}); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	before := append([]drawPair(nil), m.uncertainty.draws...)

	status := []components.StatusCode{
		components.StatusInWater,
		components.StatusToBeRemoved,
		components.StatusInWater,
		components.StatusToBeRemoved,
		components.StatusInWater,
	}
	if err := m.ShrinkUncertainty(5, status); err != nil {
		t.Fatalf("ShrinkUncertainty: %v", err)
	}

	draws := m.uncertainty.draws
	if len(draws) != 3 {
		t.Fatalf("len(draws) = %d, want 3", len(draws))
	}
	want := []drawPair{before[0], before[2], before[4]}
	for i, d := range want {
		if draws[i] != d {
			t.Errorf("draw %d = %v, want %v", i, draws[i], d)
		}
	}

	// The compacted store is consistent with the new size.
	if err := m.updateUncertainty(time.Hour+15*time.Minute, []int{3}); err != nil {
		t.Errorf("post-shrink update: %v", err)
	}
}

func TestShrinkUncertaintyAllRemoved(t *testing.T) {
	m := newTestMover()
	if err := m.updateUncertainty(time.Hour, []int{2}); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	status := []components.StatusCode{components.StatusToBeRemoved, components.StatusToBeRemoved}
	if err := m.ShrinkUncertainty(2, status); err != nil {
		t.Fatalf("ShrinkUncertainty: %v", err)
	}
	if m.uncertainty.allocated() {
		t.Error("store should be disposed when every draw is removed")
	}
}

func TestShrinkUncertaintyErrors(t *testing.T) {
	tests := []struct {
		name        string
		setSizes    []int
		numElements int
		status      []components.StatusCode
		want        error
	}{
		{
			name:        "nil status",
			setSizes:    []int{2},
			numElements: 2,
			status:      nil,
			want:        ErrInvalidArgument,
		},
		{
			name:        "zero elements",
			setSizes:    []int{2},
			numElements: 0,
			status:      []components.StatusCode{},
			want:        ErrInvalidArgument,
		},
		{
			name:        "length mismatch",
			setSizes:    []int{2},
			numElements: 3,
			status:      []components.StatusCode{components.StatusInWater},
			want:        ErrInvalidArgument,
		},
		{
			name:        "multiple sets",
			setSizes:    []int{2, 2},
			numElements: 4,
			status: []components.StatusCode{
				components.StatusInWater, components.StatusInWater,
				components.StatusInWater, components.StatusInWater,
			},
			want: ErrInconsistentState,
		},
		{
			name:        "size mismatch",
			setSizes:    []int{2},
			numElements: 3,
			status: []components.StatusCode{
				components.StatusInWater, components.StatusInWater, components.StatusInWater,
			},
			want: ErrInconsistentState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMover()
			if err := m.updateUncertainty(time.Hour, tt.setSizes); err != nil {
				t.Fatalf("allocate: %v", err)
			}
			err := m.ShrinkUncertainty(tt.numElements, tt.status)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestShrinkUncertaintyUnallocated(t *testing.T) {
	m := newTestMover()
	status := []components.StatusCode{components.StatusInWater}
	if err := m.ShrinkUncertainty(1, status); err != nil {
		t.Errorf("unallocated shrink should be a no-op, got %v", err)
	}
}
