package jobs

import (
	"context" // Stop handle

	"github.com/robfig/cron/v3"  // Cron scheduler
	"github.com/sirupsen/logrus" // Logging library
)

// SweepSchedule is when expired refresh tokens are removed
const SweepSchedule = "@hourly"

// Scheduler runs Jobs on cron schedules
type Scheduler struct {
	cron              *cron.Cron
	jobs              *Jobs
	reconcileSchedule string
}

// NewScheduler creates a scheduler; a panicking job is recovered and logged, and
// a run still in progress makes the next tick skip
func NewScheduler(jobs *Jobs, reconcileSchedule string) *Scheduler {
	cronLogger := cron.PrintfLogger(logrus.StandardLogger())
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))
	return &Scheduler{cron: c, jobs: jobs, reconcileSchedule: reconcileSchedule}
}

// Start registers the jobs and starts the cron scheduler
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.reconcileSchedule, s.jobs.ReconcilePending); err != nil {
		return err
	}
	logrus.WithField("schedule", s.reconcileSchedule).Info("Scheduled pending deposit reconciliation")

	if _, err := s.cron.AddFunc(SweepSchedule, s.jobs.SweepRefreshTokens); err != nil {
		return err
	}
	logrus.WithField("schedule", SweepSchedule).Info("Scheduled refresh token sweep")

	s.cron.Start()
	return nil
}

// Stop stops scheduling; the returned context is done once running jobs finish
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
