package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler wraps gocron for periodic smoke runs. A zero interval disables
// scheduling entirely.
type Scheduler struct {
	scheduler gocron.Scheduler
	trigger   chan struct{}
}

// NewScheduler creates a scheduler delivering into its own trigger channel.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, trigger: make(chan struct{}, 1)}, nil
}

// Triggers returns the channel that receives one value per scheduled run.
func (s *Scheduler) Triggers() <-chan struct{} {
	return s.trigger
}

// SchedulePeriodicRun registers the periodic job. Returns the job ID.
func (s *Scheduler) SchedulePeriodicRun(interval time.Duration) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("interval must be > 0")
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.fire),
		gocron.WithName("periodic-smoke-run"),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create periodic run job: %w", err)
	}
	return job.ID().String(), nil
}

// Start begins the scheduler.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

func (s *Scheduler) fire() {
	select {
	case s.trigger <- struct{}{}:
	default:
		// A run is already pending.
	}
}
