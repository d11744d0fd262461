package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mamadbah2/warehouse/internal/config"
	"github.com/mamadbah2/warehouse/internal/service/accrual"
)

type signalRunner chan struct{}

func (s signalRunner) Run(context.Context) accrual.Result {
	s <- struct{}{}
	return accrual.Result{Outcome: accrual.OutcomeBeforeCutoff}
}

func TestStart_RunsOnceImmediately(t *testing.T) {
	runs := make(signalRunner, 1)
	s := NewScheduler(config.AccrualConfig{CronSchedule: "0 23 * * *", Timezone: "Europe/Moscow"}, runs, zap.NewNop())

	require.NoError(t, s.Start())
	defer s.Stop()

	select {
	case <-runs:
	case <-time.After(2 * time.Second):
		t.Fatal("accrual job did not run at startup")
	}
}

func TestStart_RejectsBadSchedule(t *testing.T) {
	s := NewScheduler(config.AccrualConfig{CronSchedule: "every night", Timezone: "UTC"}, make(signalRunner, 1), nil)
	assert.Error(t, s.Start())
}

type gatedRunner struct {
	started chan struct{}
	release chan struct{}
}

func (g gatedRunner) Run(context.Context) accrual.Result {
	close(g.started)
	<-g.release
	return accrual.Result{Outcome: accrual.OutcomeLogged}
}

func TestStop_WaitsForStartupRun(t *testing.T) {
	runner := gatedRunner{started: make(chan struct{}), release: make(chan struct{})}
	s := NewScheduler(config.AccrualConfig{CronSchedule: "0 23 * * *", Timezone: "UTC"}, runner, zap.NewNop())
	require.NoError(t, s.Start())

	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("accrual job did not run at startup")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while the startup run was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the startup run finished")
	}
}
