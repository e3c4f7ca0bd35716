package store

import (
	"fmt"
	"log/slog"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at DATETIME NOT NULL,
    model_start DATETIME NOT NULL,
    time_step_sec REAL NOT NULL,
    num_steps INTEGER NOT NULL,
    uncertain BOOLEAN NOT NULL,
    seed INTEGER NOT NULL,
    config_yaml TEXT,
    completed_steps INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS step_stats (
    run_id INTEGER NOT NULL,
    step INTEGER NOT NULL,
    model_time DATETIME NOT NULL,
    in_water INTEGER,
    released INTEGER,
    removed INTEGER,
    total_released INTEGER,
    total_removed INTEGER,
    disp_mean REAL,
    disp_std REAL,
    disp_p10 REAL,
    disp_p50 REAL,
    disp_p90 REAL,
    disp_max REAL,
    PRIMARY KEY (run_id, step)
);

CREATE TABLE IF NOT EXISTS element_snapshots (
    run_id INTEGER NOT NULL,
    step INTEGER NOT NULL,
    element_id INTEGER NOT NULL,
    spill INTEGER NOT NULL,
    kind TEXT NOT NULL,
    lon REAL NOT NULL,
    lat REAL NOT NULL,
    status TEXT NOT NULL,
    PRIMARY KEY (run_id, step, kind, element_id)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_run_step ON element_snapshots(run_id, step);
`,
	},
}

// Migrate applies any pending schema migrations.
func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		slog.Info("applying migration", "version", m.Version, "description", m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
