package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/warehouse/internal/config"
	"github.com/mamadbah2/warehouse/internal/service/accrual"
)

const runTimeout = 2 * time.Minute

// AccrualRunner is the daily storage accrual job.
type AccrualRunner interface {
	Run(ctx context.Context) accrual.Result
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron    *cron.Cron
	accrual AccrualRunner
	cfg     config.AccrualConfig
	logger  *zap.Logger
	startup sync.WaitGroup
}

// NewScheduler creates a new scheduler instance running in the accrual timezone.
func NewScheduler(cfg config.AccrualConfig, job AccrualRunner, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Standard 5-field cron (min, hour, dom, month, dow). Overlapping runs are
	// skipped; the job is idempotent per date anyway.
	c := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &Scheduler{
		cron:    c,
		accrual: job,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start registers the accrual job, runs it once, and starts the cron loop.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("accrual_schedule", s.cfg.CronSchedule))

	if _, err := s.cron.AddFunc(s.cfg.CronSchedule, s.runAccrual); err != nil {
		return err
	}

	// A restart after the cutoff must not wait for the next tick.
	s.startup.Add(1)
	go func() {
		defer s.startup.Done()
		s.runAccrual()
	}()

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs, including the startup
// run, to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
	s.startup.Wait()
}

func (s *Scheduler) runAccrual() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	result := s.accrual.Run(ctx)
	s.logger.Debug("accrual run finished", zap.String("outcome", string(result.Outcome)))
}
