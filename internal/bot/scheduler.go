package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/taskbot/internal/bot/tasks"
	"github.com/edgard/taskbot/internal/config"
	applog "github.com/edgard/taskbot/internal/logger"
	"github.com/edgard/taskbot/internal/metrics"
)

// LoopState describes one scheduled loop: either running now or sleeping
// until the next run.
type LoopState struct {
	Running bool
	Until   time.Time
}

func (s LoopState) String() string {
	if s.Running {
		return "running"
	}
	return "sleeping until " + s.Until.Format(time.RFC3339)
}

// Scheduler runs the configured tasks on their cron schedules.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	clock     clockwork.Clock
	metrics   metrics.Recorder

	mu      sync.Mutex
	started bool
	jobs    map[string]gocron.Job
	active  map[string]bool
}

// NewScheduler creates a scheduler whose cron expressions are evaluated in
// loc. clock may be nil for the wall clock.
func NewScheduler(logger *slog.Logger, cfg *config.SchedulerConfig, loc *time.Location, clock clockwork.Clock, rec metrics.Recorder, taskMap map[string]tasks.ScheduledTaskFunc) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.Local
	}
	// Cron schedules carry the location by name.
	if _, err := time.LoadLocation(loc.String()); err != nil {
		return nil, fmt.Errorf("scheduler location %q has no time zone name: %w", loc, err)
	}
	log := logger.With("component", "scheduler")

	s, err := gocron.NewScheduler(
		gocron.WithLocation(loc),
		gocron.WithClock(clock),
		gocron.WithLogger(applog.NewGocronLogger(log)),
		gocron.WithGlobalJobOptions(gocron.WithSingletonMode(gocron.LimitModeReschedule)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    log,
		cfg:       cfg,
		taskMap:   taskMap,
		clock:     clock,
		metrics:   metrics.OrNoOp(rec),
		jobs:      make(map[string]gocron.Job),
		active:    make(map[string]bool),
	}, nil
}

// Start registers every enabled task and starts ticking. Tasks run with ctx,
// so cancelling it interrupts a run in progress.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("scheduler is already running")
	}

	var configured map[string]config.TaskConfig
	if s.cfg != nil {
		configured = s.cfg.Tasks
	}
	if len(configured) == 0 {
		s.logger.WarnContext(ctx, "No scheduler tasks configured")
	}

	for name, taskConfig := range configured {
		if !taskConfig.Enabled {
			s.logger.InfoContext(ctx, "Skipping disabled task", "task_name", name)
			continue
		}
		taskFunc, ok := s.taskMap[name]
		if !ok {
			s.logger.WarnContext(ctx, "Scheduled task configured but not registered, skipping", "task_name", name)
			continue
		}
		if taskConfig.Schedule == "" {
			s.logger.WarnContext(ctx, "Scheduled task enabled but has empty schedule, skipping", "task_name", name)
			continue
		}

		job, err := s.scheduler.NewJob(
			gocron.CronJob(taskConfig.Schedule, true),
			gocron.NewTask(s.run, ctx, name, taskFunc),
			gocron.WithName(name),
		)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to schedule task", "task_name", name, "schedule", taskConfig.Schedule, "error", err)
			continue
		}
		s.jobs[name] = job
		s.logger.InfoContext(ctx, "Scheduled task", "task_name", name, "schedule", taskConfig.Schedule)
	}

	s.scheduler.Start()
	s.started = true
	s.logger.InfoContext(ctx, "Scheduler started", "tasks_scheduled", len(s.jobs))
	return nil
}

func (s *Scheduler) run(ctx context.Context, name string, fn tasks.ScheduledTaskFunc) {
	s.setActive(name, true)
	defer s.setActive(name, false)

	start := s.clock.Now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
			s.logger.ErrorContext(ctx, "Scheduled task panicked", "task_name", name, "panic", r)
		}
		duration := s.clock.Since(start)
		s.metrics.ScheduledTaskRun(name, duration, err)
		if err != nil {
			s.logger.ErrorContext(ctx, "Scheduled task failed", "task_name", name, "error", err, "duration", duration)
			return
		}
		s.logger.InfoContext(ctx, "Finished scheduled task", "task_name", name, "duration", duration)
	}()

	s.logger.InfoContext(ctx, "Running scheduled task", "task_name", name)
	err = fn(ctx)
}

func (s *Scheduler) setActive(name string, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[name] = running
}

// State reports whether the named loop is running or when it runs next. It
// returns false for tasks that were not scheduled.
func (s *Scheduler) State(name string) (LoopState, bool) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	running := s.active[name]
	s.mu.Unlock()

	if !ok {
		return LoopState{}, false
	}
	if running {
		return LoopState{Running: true}, true
	}
	next, err := job.NextRun()
	if err != nil {
		return LoopState{}, true
	}
	return LoopState{Until: next}, true
}

// NextRun returns the next run of the named loop while it is sleeping.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	state, ok := s.State(name)
	if !ok || state.Running || state.Until.IsZero() {
		return time.Time{}, false
	}
	return state.Until, true
}

// Stop shuts the scheduler down and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
		return err
	}
	s.logger.Info("Scheduler stopped")
	return nil
}
