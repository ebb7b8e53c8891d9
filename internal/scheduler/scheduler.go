// Package scheduler runs the periodic trading jobs: market scans, exit
// checks, and adaptive retunes, all on UTC cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is a scheduled unit of work. Jobs receive a context bounded by their
// schedule so an overrunning cycle cannot pile up behind the next one.
type Job func(ctx context.Context) error

// Scheduler manages the bot's periodic jobs.
type Scheduler struct {
	cron            *cron.Cron
	logger          *logrus.Logger
	mu              sync.RWMutex
	isRunning       bool
	jobIDs          []cron.EntryID
	gracefulTimeout time.Duration
}

// NewScheduler creates a scheduler running in UTC.
func NewScheduler(logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:            cron.New(cron.WithLocation(time.UTC)),
		logger:          logger,
		jobIDs:          make([]cron.EntryID, 0),
		gracefulTimeout: 30 * time.Second,
	}
}

// ScheduleEvery registers a job on a fixed-interval schedule. The job's
// context is capped just under the interval.
func (s *Scheduler) ScheduleEvery(name string, intervalSeconds int, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule %q while scheduler is running", name)
	}
	if intervalSeconds < 5 {
		intervalSeconds = 5
	}

	timeout := time.Duration(intervalSeconds-1) * time.Second
	entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %ds", intervalSeconds), s.wrap(name, timeout, job))
	if err != nil {
		return fmt.Errorf("scheduling %q: %w", name, err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithFields(logrus.Fields{
		"job":              name,
		"interval_seconds": intervalSeconds,
	}).Info("Job scheduled")
	return nil
}

// ScheduleCron registers a job on a cron expression with a fixed timeout.
func (s *Scheduler) ScheduleCron(name, cronExpression string, timeout time.Duration, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule %q while scheduler is running", name)
	}

	entryID, err := s.cron.AddFunc(cronExpression, s.wrap(name, timeout, job))
	if err != nil {
		return fmt.Errorf("scheduling %q: %w", name, err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithFields(logrus.Fields{
		"job":  name,
		"cron": cronExpression,
	}).Info("Job scheduled")
	return nil
}

func (s *Scheduler) wrap(name string, timeout time.Duration, job Job) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		if err := job(ctx); err != nil {
			s.logger.WithFields(logrus.Fields{
				"job":   name,
				"error": err.Error(),
			}).Error("Scheduled job failed")
			return
		}
		s.logger.WithFields(logrus.Fields{
			"job":      name,
			"duration": time.Since(start).String(),
		}).Debug("Scheduled job complete")
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.gracefulTimeout)
	defer cancel()

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out with jobs still running")
	}
	s.isRunning = false
	s.logger.Info("Scheduler stopped")
	return nil
}

// IsRunning returns whether the scheduler is currently running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the earliest next scheduled run time.
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobIDs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			if nextRun.IsZero() || entry.Next.Before(nextRun) {
				nextRun = entry.Next
			}
		}
	}
	return nextRun
}
