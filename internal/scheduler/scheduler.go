// Package scheduler triggers the reconciliation sweep on fixed cadences.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/hotel-reservation/internal/reconcile"
)

// Triggers recorded in sweep logs and metrics.
const (
	TriggerHourly = "hourly"
	TriggerDaily  = "daily"
)

// Sweeper runs one reconciliation pass.
type Sweeper interface {
	Sweep(ctx context.Context, trigger string) (reconcile.SweepReport, error)
}

// Config holds the cron specs of both cadences and the per-run timeout.
type Config struct {
	HourlySpec string
	DailySpec  string
	Timeout    time.Duration
}

// Scheduler owns the cron runner. Runs of the two cadences may overlap;
// sweeps are idempotent.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	timeout time.Duration
}

// New registers the hourly and daily sweeps. Empty specs fall back to
// "@every 1h" and "0 2 * * *".
func New(sweeper Sweeper, cfg Config) (*Scheduler, error) {
	if cfg.HourlySpec == "" {
		cfg.HourlySpec = "@every 1h"
	}
	if cfg.DailySpec == "" {
		cfg.DailySpec = "0 2 * * *"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	s := &Scheduler{cron: cron.New(), sweeper: sweeper, timeout: cfg.Timeout}
	if _, err := s.cron.AddFunc(cfg.HourlySpec, s.job(TriggerHourly)); err != nil {
		return nil, fmt.Errorf("hourly sweep spec %q: %w", cfg.HourlySpec, err)
	}
	if _, err := s.cron.AddFunc(cfg.DailySpec, s.job(TriggerDaily)); err != nil {
		return nil, fmt.Errorf("daily sweep spec %q: %w", cfg.DailySpec, err)
	}
	return s, nil
}

func (s *Scheduler) job(trigger string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if _, err := s.sweeper.Sweep(ctx, trigger); err != nil {
			log.Error().Err(err).Str("trigger", trigger).Msg("scheduled sweep failed")
		}
	}
}

// Run starts the cron runner and blocks until ctx is cancelled, then
// waits for running sweeps to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	log.Info().Int("entries", len(s.cron.Entries())).Msg("sweep scheduler started")
	<-ctx.Done()
	<-s.cron.Stop().Done()
	log.Info().Msg("sweep scheduler stopped")
	return nil
}
