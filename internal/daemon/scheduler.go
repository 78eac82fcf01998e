package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/binlog/internal/logfields"
)

// Scheduler wraps gocron scheduler for managing periodic tasks.
type Scheduler struct {
	scheduler gocron.Scheduler
	retention uuid.UUID
}

// NewScheduler creates a new scheduler instance.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// ScheduleRetention runs r every interval, replacing any previously
// scheduled retention job. Overlapping runs are skipped.
func (s *Scheduler) ScheduleRetention(ctx context.Context, interval time.Duration, r *Retention) (string, error) {
	if s.retention != uuid.Nil {
		if err := s.scheduler.RemoveJob(s.retention); err != nil {
			return "", fmt.Errorf("failed to remove retention job: %w", err)
		}
		s.retention = uuid.Nil
	}
	if !r.Enabled() {
		slog.Info("Retention disabled")
		return "", nil
	}

	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := r.Run(ctx); err != nil {
				slog.Error("Scheduled retention failed", logfields.Job("retention"), logfields.Error(err))
			}
		}),
		gocron.WithName("retention"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create retention job: %w", err)
	}
	s.retention = job.ID()
	slog.Info("Scheduled retention",
		logfields.Job(job.ID().String()),
		slog.Duration("interval", interval),
		slog.Int64("max_age_micros", r.maxAgeMicros))
	return job.ID().String(), nil
}

// Jobs lists the names of scheduled jobs.
func (s *Scheduler) Jobs() []string {
	jobs := s.scheduler.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	return names
}
