// Package scheduler runs the periodic jobs: the clock tick and the week
// refresh.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "timetable/internal/log"
)

type Scheduler struct {
	c *cron.Cron
}

// New creates a stopped scheduler evaluating cron specs in loc.
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	l := cronLogger{}
	return &Scheduler{
		c: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
	}
}

// Every runs fn at a fixed interval.
func (s *Scheduler) Every(name string, d time.Duration, fn func()) error {
	if d <= 0 {
		return fmt.Errorf("scheduler: %s: interval must be positive", name)
	}
	return s.Cron(name, "@every "+d.String(), fn)
}

// Cron runs fn on a standard five-field cron spec (or a descriptor such as
// "@hourly").
func (s *Scheduler) Cron(name, spec string, fn func()) error {
	id, err := s.c.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("scheduler: %s: %w", name, err)
	}
	appLog.Info("job scheduled", "job", name, "spec", spec, "id", int(id))
	return nil
}

// Start launches the scheduler in the background.
func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop prevents new runs and waits for running jobs or ctx, whichever ends
// first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		appLog.Warn("scheduler stop timed out; jobs still running")
	}
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int {
	return len(s.c.Entries())
}

// cronLogger routes cron's own logging through the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
