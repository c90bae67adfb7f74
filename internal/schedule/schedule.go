// Package schedule runs recurring GoT queries on a cron timetable,
// persisting schedule definitions to bbolt, adapted from the orchestrator's
// workflow scheduler.
package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.etcd.io/bbolt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var bucketSchedules = []byte("schedules")

// QueryConfig defines a recurring query: when to run it and what to ask.
type QueryConfig struct {
	Name          string            `json:"name"`
	Query         string            `json:"query"`
	CronExpr      string            `json:"cron_expr"`
	Enabled       bool              `json:"enabled"`
	TimeoutMS     int64             `json:"timeout_ms,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Runner invokes a query and reports whether it succeeded.
type Runner func(ctx context.Context, query string, timeoutMS int64) error

// Scheduler drives QueryConfig entries on a cron timetable and persists them
// to bbolt so restarts pick the schedule back up.
type Scheduler struct {
	cron *cron.Cron
	db   *bbolt.DB
	run  Runner

	mu      sync.RWMutex
	entries map[string]cron.EntryID

	runs   metric.Int64Counter
	fails  metric.Int64Counter
	tracer trace.Tracer
}

// New builds a Scheduler backed by the bbolt database at path, invoking run
// for each fired schedule.
func New(path string, run Runner) (*Scheduler, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open schedule db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSchedules)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create schedule bucket: %w", err)
	}

	meter := otel.Meter("gotcore")
	runs, _ := meter.Int64Counter("got_schedule_runs_total")
	fails, _ := meter.Int64Counter("got_schedule_failures_total")

	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		db:      db,
		run:     run,
		entries: make(map[string]cron.EntryID),
		runs:    runs,
		fails:   fails,
		tracer:  otel.Tracer("gotcore/schedule"),
	}
	return s, nil
}

// Start begins firing cron entries and restores persisted schedules.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.restore(ctx); err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("schedule runner started")
	return nil
}

// Stop gracefully stops the cron scheduler and closes the database.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.db.Close()
}

// Add registers and persists cfg, scheduling it immediately if enabled.
func (s *Scheduler) Add(ctx context.Context, cfg QueryConfig) error {
	ctx, span := s.tracer.Start(ctx, "schedule.Add", trace.WithAttributes(
		attribute.String("name", cfg.Name),
		attribute.String("cron", cfg.CronExpr),
	))
	defer span.End()

	if err := s.persist(cfg); err != nil {
		return err
	}
	if cfg.Enabled {
		return s.scheduleLocked(cfg)
	}
	return nil
}

func (s *Scheduler) scheduleLocked(cfg QueryConfig) error {
	entryID, err := s.cron.AddFunc(cfg.CronExpr, func() {
		s.fire(context.Background(), cfg)
	})
	if err != nil {
		return fmt.Errorf("add cron entry for %s: %w", cfg.Name, err)
	}
	s.mu.Lock()
	s.entries[cfg.Name] = entryID
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) fire(ctx context.Context, cfg QueryConfig) {
	s.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("name", cfg.Name)))
	timeout := cfg.TimeoutMS
	if timeout <= 0 {
		timeout = 60_000
	}
	if err := s.run(ctx, cfg.Query, timeout); err != nil {
		s.fails.Add(ctx, 1, metric.WithAttributes(attribute.String("name", cfg.Name)))
		slog.Warn("scheduled query failed", "name", cfg.Name, "error", err)
	}
}

// Remove unregisters and deletes a schedule by name.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	if entryID, ok := s.entries[name]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, name)
	}
	s.mu.Unlock()
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSchedules).Delete([]byte(name))
	})
}

func (s *Scheduler) persist(cfg QueryConfig) error {
	b, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSchedules).Put([]byte(cfg.Name), b)
	})
}

func (s *Scheduler) restore(ctx context.Context) error {
	var configs []QueryConfig
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSchedules).ForEach(func(k, v []byte) error {
			var cfg QueryConfig
			if err := json.Unmarshal(v, &cfg); err != nil {
				return err
			}
			configs = append(configs, cfg)
			return nil
		})
	})
	if err != nil {
		return err
	}
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		if err := s.scheduleLocked(cfg); err != nil {
			slog.Warn("failed to restore schedule", "name", cfg.Name, "error", err)
		}
	}
	return nil
}
