package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// maintenanceSchedule runs weekly, early Sunday morning.
const maintenanceSchedule = "0 0 4 * * 0"

// Cron fires automatic analysis runs for every enabled group on a cron
// schedule, plus a weekly database maintenance job. Admission errors from
// individual groups never abort the sweep.
type Cron struct {
	schedule    string
	scheduler   *GroupScheduler
	maintenance func(ctx context.Context) error
	logger      *slog.Logger
	cron        gocron.Scheduler
}

// NewCron builds the cron runner. schedule is a six-field cron expression
// (with seconds), matching gocron's CronJob with seconds enabled.
// maintenance may be nil to skip the maintenance job.
func NewCron(schedule string, scheduler *GroupScheduler, maintenance func(ctx context.Context) error, logger *slog.Logger) (*Cron, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "cron")

	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.Local),
		gocron.WithLogger(&gocronLogger{logger: log}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating gocron scheduler: %w", err)
	}

	return &Cron{
		schedule:    schedule,
		scheduler:   scheduler,
		maintenance: maintenance,
		logger:      log,
		cron:        s,
	}, nil
}

// Start registers the sweep job and starts ticking. ctx bounds the sweeps.
func (c *Cron) Start(ctx context.Context) error {
	_, err := c.cron.NewJob(
		gocron.CronJob(c.schedule, true),
		gocron.NewTask(func() { c.sweep(ctx) }),
		gocron.WithName("daily_group_analysis"),
	)
	if err != nil {
		return fmt.Errorf("scheduling daily analysis job: %w", err)
	}

	if c.maintenance != nil {
		_, err = c.cron.NewJob(
			gocron.CronJob(maintenanceSchedule, true),
			gocron.NewTask(func() {
				if err := c.maintenance(ctx); err != nil {
					c.logger.ErrorContext(ctx, "Database maintenance failed", "error", err)
					return
				}
				c.logger.InfoContext(ctx, "Database maintenance completed")
			}),
			gocron.WithName("sql_maintenance"),
		)
		if err != nil {
			return fmt.Errorf("scheduling maintenance job: %w", err)
		}
	}

	c.cron.Start()
	c.logger.Info("Cron started", "schedule", c.schedule)
	return nil
}

// Stop shuts the cron down, waiting for running sweeps.
func (c *Cron) Stop() error {
	if err := c.cron.Shutdown(); err != nil {
		return fmt.Errorf("shutting down cron: %w", err)
	}
	c.logger.Info("Cron stopped")
	return nil
}

// sweep triggers an automatic run for every enabled group. Groups run
// concurrently; the scheduler's worker pool bounds the actual parallelism.
func (c *Cron) sweep(ctx context.Context) {
	groups, err := c.scheduler.groups.ListEnabledGroups(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to list enabled groups for sweep", "error", err)
		return
	}
	if len(groups) == 0 {
		c.logger.InfoContext(ctx, "No enabled groups, nothing to sweep")
		return
	}

	c.logger.InfoContext(ctx, "Starting daily sweep", "groups", len(groups))

	var wg sync.WaitGroup
	for _, chatID := range groups {
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()
			_, err := c.scheduler.Trigger(ctx, chatID, TriggerAutomatic, 0)
			switch {
			case err == nil:
			case errors.Is(err, ErrAlreadyRunning), errors.Is(err, ErrCoolingDown), errors.Is(err, ErrGroupNotEnabled):
				c.logger.InfoContext(ctx, "Sweep skipped group", "chat_id", chatID, "reason", err)
			default:
				c.logger.ErrorContext(ctx, "Sweep run failed", "chat_id", chatID, "error", err)
			}
		}(chatID)
	}
	wg.Wait()

	c.logger.InfoContext(ctx, "Daily sweep finished")
}

// gocronLogger adapts gocron's logging to slog.
type gocronLogger struct {
	logger *slog.Logger
}

func (l *gocronLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *gocronLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *gocronLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *gocronLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
