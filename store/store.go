// Package store persists run metadata, per-step statistics, and element
// snapshots to SQLite.
package store

import (
	"database/sql"
	"time"

	"github.com/pthm-cable/drift/model"
	"github.com/pthm-cable/drift/telemetry"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// RunInfo describes one stored run.
type RunInfo struct {
	ID             int64
	StartedAt      time.Time
	ModelStart     time.Time
	TimeStepSec    float64
	NumSteps       int
	Uncertain      bool
	Seed           int64
	CompletedSteps int
}

// CreateRun records a new run and returns its id.
func (s *Store) CreateRun(modelStart time.Time, timeStep time.Duration, numSteps int, uncertain bool, seed int64, configYAML string) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO runs (started_at, model_start, time_step_sec, num_steps, uncertain, seed, config_yaml)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, time.Now().UTC(), modelStart.UTC(), timeStep.Seconds(), numSteps, uncertain, seed, configYAML)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinishRun records how many steps the run completed.
func (s *Store) FinishRun(runID int64, completedSteps int) error {
	_, err := s.db.Exec(`UPDATE runs SET completed_steps = ? WHERE id = ?`, completedSteps, runID)
	return err
}

// GetRun loads one stored run's metadata.
func (s *Store) GetRun(runID int64) (RunInfo, error) {
	var ri RunInfo
	err := s.db.QueryRow(`
		SELECT id, started_at, model_start, time_step_sec, num_steps, uncertain, seed, completed_steps
		FROM runs WHERE id = ?
	`, runID).Scan(&ri.ID, &ri.StartedAt, &ri.ModelStart, &ri.TimeStepSec, &ri.NumSteps, &ri.Uncertain, &ri.Seed, &ri.CompletedSteps)
	return ri, err
}

// InsertStepStats stores one step's statistics row.
func (s *Store) InsertStepStats(runID int64, st telemetry.StepStats) error {
	_, err := s.db.Exec(`
		INSERT INTO step_stats (run_id, step, model_time, in_water, released, removed,
			total_released, total_removed, disp_mean, disp_std, disp_p10, disp_p50, disp_p90, disp_max)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, st.Step, st.ModelTime, st.InWater, st.Released, st.Removed,
		st.TotalReleased, st.TotalRemoved, st.DispMean, st.DispStd, st.DispP10, st.DispP50, st.DispP90, st.DispMax)
	return err
}

// StepStatsForRun loads a run's step statistics in step order.
func (s *Store) StepStatsForRun(runID int64) ([]telemetry.StepStats, error) {
	rows, err := s.db.Query(`
		SELECT step, model_time, in_water, released, removed,
			total_released, total_removed, disp_mean, disp_std, disp_p10, disp_p50, disp_p90, disp_max
		FROM step_stats WHERE run_id = ? ORDER BY step
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []telemetry.StepStats
	for rows.Next() {
		var st telemetry.StepStats
		if err := rows.Scan(&st.Step, &st.ModelTime, &st.InWater, &st.Released, &st.Removed,
			&st.TotalReleased, &st.TotalRemoved, &st.DispMean, &st.DispStd, &st.DispP10, &st.DispP50, &st.DispP90, &st.DispMax); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// InsertSnapshots stores every element's position at one step in a
// single transaction.
func (s *Store) InsertSnapshots(runID int64, step int, views []model.ElementView) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO element_snapshots (run_id, step, element_id, spill, kind, lon, lat, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, v := range views {
		if _, err := stmt.Exec(runID, step, v.ID, v.Spill, v.Kind.String(), v.Lon, v.Lat, v.Status.String()); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SnapshotCount reports how many element snapshots a run stored at one
// step.
func (s *Store) SnapshotCount(runID int64, step int) (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM element_snapshots WHERE run_id = ? AND step = ?
	`, runID, step).Scan(&n)
	return n, err
}
