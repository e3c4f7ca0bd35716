package main

import (
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pthm-cable/drift/config"
	"github.com/pthm-cable/drift/model"
	"github.com/pthm-cable/drift/mover"
	"github.com/pthm-cable/drift/render"
	"github.com/pthm-cable/drift/store"
	"github.com/pthm-cable/drift/telemetry"
	"github.com/pthm-cable/drift/wind"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot (overrides config)")
	dbFile := flag.String("db", "", "SQLite run store path (overrides config)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = use config; config 0 = time-based)")
	uncertain := flag.Bool("uncertain", false, "Run mirrored uncertainty sets (overrides config when set)")
	imagesEvery := flag.Int("images-every", -1, "Render a map frame every N steps (-1 = use config, 0 = disabled)")
	maxSteps := flag.Int("max-steps", 0, "Stop after N steps (0 = run to completion)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *dbFile != "" {
		cfg.Output.DBFile = *dbFile
	}
	if *imagesEvery >= 0 {
		cfg.Output.ImagesEvery = *imagesEvery
	}
	if *uncertain {
		cfg.Run.Uncertain = true
	}

	rngSeed := cfg.Run.Seed
	if *seed != 0 {
		rngSeed = *seed
	}
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	if err := run(cfg, rngSeed, *maxSteps); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, rngSeed int64, maxSteps int) error {
	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	wm := mover.New(provider, mover.NewSource(rngSeed))
	if cfg.Mover.SpeedScale > 0 {
		wm.SpeedScale = cfg.Mover.SpeedScale
	}
	if cfg.Mover.AngleScale > 0 {
		wm.AngleScale = cfg.Mover.AngleScale
	}
	wm.UncertainStartTime = cfg.Derived.UncertainStartTime
	if cfg.Derived.RefreshInterval > 0 {
		wm.RefreshInterval = cfg.Derived.RefreshInterval
	}

	bounds := model.Bounds{
		MinLon: cfg.Map.MinLon,
		MinLat: cfg.Map.MinLat,
		MaxLon: cfg.Map.MaxLon,
		MaxLat: cfg.Map.MaxLat,
	}

	spills := make([]model.Spill, len(cfg.Spills))
	for i, sp := range cfg.Spills {
		spills[i] = model.Spill{
			Name:       sp.Name,
			Lon:        sp.Lon,
			Lat:        sp.Lat,
			Elements:   sp.Elements,
			Start:      cfg.Derived.SpillStarts[i],
			Duration:   cfg.Derived.SpillDurations[i],
			WindageMin: sp.WindageMin,
			WindageMax: sp.WindageMax,
		}
	}

	m := model.New(model.Options{
		Start:     cfg.Derived.Start,
		TimeStep:  cfg.Derived.TimeStep,
		Duration:  cfg.Derived.Duration,
		Uncertain: cfg.Run.Uncertain,
		Bounds:    bounds,
		Seed:      rngSeed,
		Spills:    spills,
		Movers:    []mover.Mover{wm},
	})

	om, err := telemetry.NewOutputManager(cfg.Output.Dir)
	if err != nil {
		return err
	}
	defer om.Close()
	if err := om.WriteConfig(cfg); err != nil {
		return err
	}

	var canvas *render.Canvas
	if cfg.Output.ImagesEvery > 0 && cfg.Output.Dir != "" {
		canvas, err = render.NewCanvas(filepath.Join(cfg.Output.Dir, "frames"), bounds)
		if err != nil {
			return err
		}
	}

	var st *store.Store
	var runID int64
	if cfg.Output.DBFile != "" {
		db, err := sql.Open("sqlite", cfg.Output.DBFile)
		if err != nil {
			return err
		}
		defer db.Close()
		st = store.New(db)
		if err := st.Migrate(); err != nil {
			return err
		}
		runID, err = st.CreateRun(cfg.Derived.Start, cfg.Derived.TimeStep, m.NumSteps(), cfg.Run.Uncertain, rngSeed, "")
		if err != nil {
			return err
		}
	}

	slog.Info("starting run",
		"seed", rngSeed,
		"start", cfg.Derived.Start,
		"time_step", cfg.Derived.TimeStep.String(),
		"num_steps", m.NumSteps(),
		"uncertain", cfg.Run.Uncertain,
	)

	collector := telemetry.NewCollector(cfg.Derived.Start)
	for {
		res, more, err := m.Step()
		if err != nil {
			return err
		}
		if !more {
			break
		}

		stats := collector.Record(res)
		stats.LogStats()
		if err := om.WriteStep(stats); err != nil {
			return err
		}

		if st != nil {
			if err := st.InsertStepStats(runID, stats); err != nil {
				return err
			}
		}

		wantFrame := canvas != nil && res.Step%cfg.Output.ImagesEvery == 0
		wantSnapshot := st != nil && cfg.Output.ImagesEvery > 0 && res.Step%cfg.Output.ImagesEvery == 0
		if wantFrame || wantSnapshot {
			views := m.Snapshot()
			if wantFrame {
				if err := canvas.WriteFrame(res.Step, views); err != nil {
					return err
				}
			}
			if wantSnapshot {
				if err := st.InsertSnapshots(runID, res.Step, views); err != nil {
					return err
				}
			}
		}

		if maxSteps > 0 && res.Step >= maxSteps {
			slog.Info("max steps reached", "step", res.Step)
			break
		}
	}

	if st != nil {
		if err := st.FinishRun(runID, m.CurrentStep()+1); err != nil {
			return err
		}
	}

	slog.Info("run complete",
		"steps", m.CurrentStep()+1,
		"total_released", collector.TotalReleased(),
		"total_removed", collector.TotalRemoved(),
	)
	return nil
}

func buildProvider(cfg *config.Config) (wind.Provider, error) {
	switch cfg.Wind.Source {
	case "series":
		s, err := wind.LoadSeriesCSV(cfg.Wind.SeriesFile)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return wind.Constant{U: cfg.Wind.U, V: cfg.Wind.V}, nil
	}
}
