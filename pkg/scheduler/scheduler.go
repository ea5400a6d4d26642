// Package scheduler runs the background jobs: periodic rescans through the
// orchestrator's single-flight entry point and a recurring security and
// maintenance sweep.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/SecureView-Labs/netsentry/pkg/config"
	"github.com/SecureView-Labs/netsentry/pkg/models"
	"github.com/SecureView-Labs/netsentry/pkg/registry"
	"github.com/SecureView-Labs/netsentry/pkg/scan"
	"github.com/SecureView-Labs/netsentry/pkg/security"
)

// Scheduler owns the cron runner and its jobs.
type Scheduler struct {
	cron     *cron.Cron
	orch     *scan.Orchestrator
	registry *registry.Registry
	monitor  *security.Monitor
	cfg      config.Config
	logger   *logrus.Logger
}

// New builds a scheduler; Start registers and launches the jobs.
func New(orch *scan.Orchestrator, reg *registry.Registry, monitor *security.Monitor, cfg config.Config, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scheduler{
		cron:     cron.New(),
		orch:     orch,
		registry: reg,
		monitor:  monitor,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start registers the configured jobs and starts the cron runner. An empty
// spec disables the corresponding job.
func (s *Scheduler) Start() error {
	if spec := s.cfg.Scheduler.RescanSpec; spec != "" {
		if _, err := s.cron.AddFunc(spec, s.Rescan); err != nil {
			return err
		}
		s.logger.WithField("spec", spec).Info("periodic rescan enabled")
	}
	if spec := s.cfg.Scheduler.SweepSpec; spec != "" {
		if _, err := s.cron.AddFunc(spec, s.Sweep); err != nil {
			return err
		}
		s.logger.WithField("spec", spec).Info("security sweep enabled")
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron runner and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Jobs returns the number of registered cron entries.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Rescan triggers a scan of the configured range. A scan already in flight
// is expected from time to time and only logged.
func (s *Scheduler) Rescan() {
	_, err := s.orch.Start(context.Background(), s.cfg.Scan.Range, models.ScanOptions{
		DeepScan: s.cfg.Scan.DeepScan,
	})
	if errors.Is(err, scan.ErrScanInFlight) {
		s.logger.Debug("periodic rescan skipped: scan already running")
		return
	}
	if err != nil {
		s.logger.Warnf("periodic rescan failed: %v", err)
	}
}

// Sweep re-evaluates the security monitor against the inventory and flags
// overdue maintenance tasks.
func (s *Scheduler) Sweep() {
	devices := s.registry.List()
	raised := s.monitor.Evaluate(devices)
	if len(raised) > 0 {
		s.logger.WithField("events", len(raised)).Info("security sweep raised events")
	}

	overdue := s.registry.OverdueTasks(time.Now())
	for _, task := range overdue {
		s.logger.WithFields(logrus.Fields{
			"task":      task.ID,
			"device":    task.DeviceID,
			"type":      task.Type,
			"scheduled": task.ScheduledDate.Format(time.RFC3339),
		}).Warn("maintenance task overdue")
	}
}
