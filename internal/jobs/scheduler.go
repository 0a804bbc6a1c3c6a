// Package jobs runs periodic maintenance with cron schedules.
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"realestate/internal/database"
	"realestate/internal/metrics"
)

// SettingsRefresher reloads the settings cache from the database
type SettingsRefresher interface {
	Refresh(ctx context.Context) error
}

// Sweeper drops expired in-memory state
type Sweeper interface {
	Sweep()
}

// Scheduler owns the cron instance
type Scheduler struct {
	cron *cron.Cron
}

// Options configures the scheduled jobs. Nil fields skip their job.
type Options struct {
	SettingsSpec string
	Settings     SettingsRefresher
	DB           *gorm.DB
	Limiter      Sweeper
}

// New schedules the jobs. Nothing runs until Start.
func New(opts Options) (*Scheduler, error) {
	c := cron.New(cron.WithLocation(time.UTC))

	if opts.Settings != nil && opts.SettingsSpec != "" {
		if _, err := c.AddFunc(opts.SettingsSpec, func() { RefreshSettings(opts.Settings) }); err != nil {
			return nil, fmt.Errorf("failed to schedule settings refresh %q: %w", opts.SettingsSpec, err)
		}
	}

	if opts.DB != nil {
		if _, err := c.AddFunc("@every 30s", func() { RecordPoolStats(opts.DB) }); err != nil {
			return nil, fmt.Errorf("failed to schedule pool stats: %w", err)
		}
	}

	if opts.Limiter != nil {
		if _, err := c.AddFunc("@every 5m", opts.Limiter.Sweep); err != nil {
			return nil, fmt.Errorf("failed to schedule limiter sweep: %w", err)
		}
	}

	return &Scheduler{cron: c}, nil
}

// Start runs the scheduler in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("[JOBS] Scheduler started with %d jobs", len(s.cron.Entries()))
}

// Stop stops scheduling and waits for running jobs
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("[JOBS] Scheduler stopped")
}

// RefreshSettings reloads the settings cache once
func RefreshSettings(r SettingsRefresher) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.Refresh(ctx); err != nil {
		log.Printf("[JOBS] Settings refresh failed: %v", err)
	}
}

// RecordPoolStats publishes connection pool gauges
func RecordPoolStats(db *gorm.DB) {
	stats, err := database.GetStats(db)
	if err != nil {
		log.Printf("[JOBS] Pool stats unavailable: %v", err)
		return
	}
	metrics.UpdateDBConnections(stats.InUse, stats.Idle)
}
