// Package accrual writes the daily storage fee log.
package accrual

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/warehouse/internal/domain/models"
	"github.com/mamadbah2/warehouse/internal/metrics"
	"github.com/mamadbah2/warehouse/internal/repository"
	"github.com/mamadbah2/warehouse/internal/repository/sheets"
)

// Outcome names how a run ended.
type Outcome string

const (
	OutcomeBeforeCutoff  Outcome = "before_cutoff"
	OutcomeAlreadyLogged Outcome = "already_logged"
	OutcomeLogged        Outcome = "logged"
	OutcomeFailed        Outcome = "failed"
)

// Result is the explicit result of one run. Err is set only for OutcomeFailed.
type Result struct {
	Outcome Outcome
	Entry   models.DailyStorageLogEntry
	Err     error
}

// Job computes the per-partition pallet counts and logs them once per day.
type Job struct {
	store      repository.Store
	mirror     sheets.StorageLogMirror
	location   *time.Location
	cutoffHour int
	metrics    *metrics.Recorder
	logger     *zap.Logger
	now        func() time.Time
}

// NewJob builds an accrual job. mirror may be nil.
func NewJob(store repository.Store, mirror sheets.StorageLogMirror, location *time.Location, cutoffHour int, recorder *metrics.Recorder, logger *zap.Logger) *Job {
	if location == nil {
		location = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		store:      store,
		mirror:     mirror,
		location:   location,
		cutoffHour: cutoffHour,
		metrics:    recorder,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one pass. It never returns an error; failures are reported as
// OutcomeFailed and logged as warnings so nothing else is blocked.
func (j *Job) Run(ctx context.Context) Result {
	result := j.run(ctx)
	j.metrics.AccrualRun(string(result.Outcome))

	switch result.Outcome {
	case OutcomeFailed:
		j.logger.Warn("storage accrual skipped", zap.Error(result.Err))
	case OutcomeLogged:
		j.logger.Info("storage accrual logged",
			zap.String("log_date", result.Entry.LogDate),
			zap.Int("total_cost", result.Entry.TotalCost))
	default:
		j.logger.Debug("storage accrual not due", zap.String("outcome", string(result.Outcome)))
	}
	return result
}

func (j *Job) run(ctx context.Context) Result {
	now := j.now().In(j.location)
	if now.Hour() < j.cutoffHour {
		return Result{Outcome: OutcomeBeforeCutoff}
	}

	logDate := now.Format(models.DateLayout)
	logged, err := j.store.HasStorageLog(ctx, logDate)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	if logged {
		return Result{Outcome: OutcomeAlreadyLogged}
	}

	items, err := j.store.ListStock(ctx, "")
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	boxes := models.CountBoxes(items)
	entry := models.NewDailyStorageLogEntry(now, boxes[models.PartitionIP], boxes[models.PartitionOOO])

	if err := j.store.InsertStorageLog(ctx, entry); err != nil {
		if errors.Is(err, models.ErrAlreadyLogged) {
			return Result{Outcome: OutcomeAlreadyLogged}
		}
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	if j.mirror != nil {
		if err := j.mirror.AppendStorageLog(ctx, entry); err != nil {
			j.logger.Warn("failed to mirror storage log", zap.String("log_date", entry.LogDate), zap.Error(err))
		}
	}

	return Result{Outcome: OutcomeLogged, Entry: entry}
}
