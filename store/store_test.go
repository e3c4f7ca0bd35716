package store

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pthm-cable/drift/components"
	"github.com/pthm-cable/drift/model"
	"github.com/pthm-cable/drift/telemetry"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := New(db)
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestMigrateIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)

	modelStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	runID, err := s.CreateRun(modelStart, 15*time.Minute, 192, true, 42, "run:\n  seed: 42\n")
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	if err := s.FinishRun(runID, 192); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	ri, err := s.GetRun(runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if ri.NumSteps != 192 || ri.CompletedSteps != 192 {
		t.Errorf("steps = %d/%d, want 192/192", ri.NumSteps, ri.CompletedSteps)
	}
	if !ri.Uncertain || ri.Seed != 42 {
		t.Errorf("uncertain/seed = %v/%d, want true/42", ri.Uncertain, ri.Seed)
	}
	if ri.TimeStepSec != 900 {
		t.Errorf("TimeStepSec = %v, want 900", ri.TimeStepSec)
	}
}

func TestStepStatsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	runID, err := s.CreateRun(time.Now().UTC(), 15*time.Minute, 4, false, 1, "")
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	rows := []telemetry.StepStats{
		{Step: 1, ModelTime: "2026-03-01T00:15:00Z", InWater: 50, Released: 50, TotalReleased: 50, DispMean: 405.5},
		{Step: 2, ModelTime: "2026-03-01T00:30:00Z", InWater: 45, Removed: 5, TotalReleased: 50, TotalRemoved: 5, DispMean: 402.1},
	}
	for _, st := range rows {
		if err := s.InsertStepStats(runID, st); err != nil {
			t.Fatalf("InsertStepStats: %v", err)
		}
	}

	got, err := s.StepStatsForRun(runID)
	if err != nil {
		t.Fatalf("StepStatsForRun: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Step != 1 || got[0].InWater != 50 || got[0].DispMean != 405.5 {
		t.Errorf("row 0 = %+v", got[0])
	}
	if got[1].Removed != 5 || got[1].TotalRemoved != 5 {
		t.Errorf("row 1 = %+v", got[1])
	}
}

func TestInsertSnapshots(t *testing.T) {
	s := newTestStore(t)

	runID, err := s.CreateRun(time.Now().UTC(), 15*time.Minute, 4, true, 1, "")
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	views := []model.ElementView{
		{ID: 0, Spill: 0, Kind: components.KindForecast, Lon: -124.2, Lat: 47.5, Status: components.StatusInWater},
		{ID: 1, Spill: 0, Kind: components.KindForecast, Lon: -124.19, Lat: 47.5, Status: components.StatusInWater},
		{ID: 0, Spill: 0, Kind: components.KindUncertainty, Lon: -124.21, Lat: 47.51, Status: components.StatusInWater},
	}
	if err := s.InsertSnapshots(runID, 3, views); err != nil {
		t.Fatalf("InsertSnapshots: %v", err)
	}

	n, err := s.SnapshotCount(runID, 3)
	if err != nil {
		t.Fatalf("SnapshotCount: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}

	n, err = s.SnapshotCount(runID, 4)
	if err != nil {
		t.Fatalf("SnapshotCount: %v", err)
	}
	if n != 0 {
		t.Errorf("count at unstored step = %d, want 0", n)
	}
}
