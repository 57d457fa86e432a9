package schedulersvc

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/trezcool/admissions/core"
)

// Scheduler runs jobs on a fixed period. Runs of the same job may overlap: jobs must be
// safe to run concurrently with themselves.
type Scheduler struct {
	cron   *cron.Cron
	logger core.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(logger core.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Every schedules fn every period, starting one period after Start.
func (s *Scheduler) Every(period time.Duration, name string, fn func(ctx context.Context)) {
	s.cron.Schedule(cron.Every(period), cron.FuncJob(func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error(fmt.Sprintf("schedulersvc: job %s panicked: %v", name, r))
			}
		}()
		fn(s.ctx)
	}))
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels the context of running jobs and waits for them to return, or for ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
