package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nerrad567/pbexport/internal/archive"
	"github.com/nerrad567/pbexport/internal/export"
	"github.com/nerrad567/pbexport/internal/infrastructure/config"
	"github.com/nerrad567/pbexport/internal/infrastructure/database"
	"github.com/nerrad567/pbexport/internal/infrastructure/influxdb"
	"github.com/nerrad567/pbexport/internal/infrastructure/logging"
	"github.com/nerrad567/pbexport/internal/infrastructure/mqtt"
	"github.com/nerrad567/pbexport/internal/ledger"
	"github.com/nerrad567/pbexport/migrations"
)

// environment holds everything an export command needs.
type environment struct {
	cfg      *config.Config
	log      *logging.Logger
	workers  int
	indexDB  *database.DB
	index    archive.Index
	exporter *export.Exporter

	stateDB  *database.DB
	recorder *ledger.Recorder
	mqtt     *mqtt.Client
	influx   *influxdb.Client
}

func (a *app) load() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, version)
	log.Debug("configuration loaded", "path", a.configPath)
	return cfg, log, nil
}

// setup opens the index and the optional observers. workers of zero
// selects the configured value.
func (a *app) setup(ctx context.Context, workers int) (*environment, error) {
	cfg, log, err := a.load()
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = cfg.Export.Workers
	}
	env := &environment{cfg: cfg, log: log, workers: workers}

	env.indexDB, err = database.Open(database.Config{
		Path:         cfg.Archive.Index,
		ReadOnly:     true,
		BusyTimeout:  cfg.Archive.BusyTimeout,
		MaxOpenConns: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("opening archive index: %w", err)
	}
	env.index = archive.NewSQLiteIndex(env.indexDB.DB, cfg.Archive.PageSize)

	env.exporter = export.NewExporter(env.index, export.Options{
		OutputDir:  cfg.Export.OutputDir,
		Separators: cfg.Export.Separators,
	})
	env.exporter.SetLogger(log)

	if cfg.Database.Enabled {
		env.stateDB, err = openState(ctx, cfg, log)
		if err != nil {
			env.close()
			return nil, err
		}
		env.recorder = ledger.NewRecorder(ledger.NewSQLiteRepository(env.stateDB.DB))
	}

	// Publishers are best effort; an unreachable broker must not stop
	// the export.
	if cfg.MQTT.Enabled {
		if env.mqtt, err = mqtt.Connect(cfg.MQTT); err != nil {
			log.Warn("mqtt unavailable, export events will not be published", "error", err)
		} else {
			env.mqtt.SetLogger(log)
		}
	}
	if cfg.InfluxDB.Enabled {
		if env.influx, err = influxdb.Connect(cfg.InfluxDB); err != nil {
			log.Warn("influxdb unavailable, export statistics will not be written", "error", err)
		} else {
			env.influx.SetOnError(func(err error) {
				log.Warn("influxdb write failed", "error", err)
			})
		}
	}

	log.Info("exporter ready",
		"version", version,
		"index", cfg.Archive.Index,
		"output_dir", cfg.Export.OutputDir,
		"workers", workers)
	return env, nil
}

// observers returns the configured observers followed by last, the
// completion signal.
func (e *environment) observers(last export.Observer) []export.Observer {
	var batchID string
	var obs []export.Observer
	if e.recorder != nil {
		batchID = e.recorder.BatchID()
		obs = append(obs, e.recorder)
	}
	if e.mqtt != nil {
		obs = append(obs, mqtt.NewNotifier(e.mqtt, batchID))
	}
	if e.influx != nil {
		obs = append(obs, influxdb.NewStats(e.influx, batchID))
	}
	return append(obs, last)
}

func (e *environment) close() {
	if e.influx != nil {
		e.influx.Close()
	}
	if e.mqtt != nil {
		e.mqtt.Close()
	}
	for _, db := range []*database.DB{e.stateDB, e.indexDB} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil {
			e.log.Error("error closing database", "path", db.Path(), "error", err)
		}
	}
}

// openState opens and migrates the state database.
func openState(ctx context.Context, cfg *config.Config, log *logging.Logger) (*database.DB, error) {
	if !cfg.Database.Enabled {
		return nil, errors.New("state database is disabled in configuration")
	}
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Debug("state database ready", "path", cfg.Database.Path)
	return db, nil
}

// progress writes one summary line per finished PV.
type progress struct {
	mu sync.Mutex
	w  io.Writer
}

func newProgress(w io.Writer) *progress {
	return &progress{w: w}
}

func (p *progress) ExportFinished(_ context.Context, res export.Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.w, "%s\t%s\t%d records\t%s\n",
		res.PV, res.Outcome, res.Records, res.Duration().Round(time.Millisecond))
	return err
}
