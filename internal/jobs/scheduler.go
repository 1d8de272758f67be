package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

type Scheduler interface {
	RegisterTasks() error
	Run() error
	Shutdown()
}

// Specs are the cron expressions of the periodic jobs, evaluated in the scheduler location.
type Specs struct {
	AutoSchedule string
	Reminder     string
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	specs          Specs
	log            *slog.Logger
}

func NewScheduler(redisOpt asynq.RedisConnOpt, specs Specs, loc *time.Location, log *slog.Logger) Scheduler {
	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: loc}),
		specs:          specs,
		log:            log,
	}
}

func (s *scheduler) RegisterTasks() error {
	entries := []struct {
		spec string
		task *asynq.Task
	}{
		{s.specs.AutoSchedule, NewAutoScheduleTask()},
		{s.specs.Reminder, NewReminderTask()},
	}

	for _, e := range entries {
		if _, err := s.asynqScheduler.Register(e.spec, e.task); err != nil {
			return err
		}
		if s.log != nil {
			s.log.InfoContext(context.Background(), "scheduler: registered task", "task_type", e.task.Type(), "spec", e.spec)
		}
	}

	return nil
}

// Run starts the scheduler in the background; signals are left to the application.
func (s *scheduler) Run() error {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: starting")
	}

	return s.asynqScheduler.Start()
}

func (s *scheduler) Shutdown() {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: shutting down")
	}

	s.asynqScheduler.Shutdown()
}
