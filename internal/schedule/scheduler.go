package schedule

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/siteinsight/internal/metrics"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	Start(ctx context.Context)
	Stop()
}

// CronScheduler runs jobs on five-field cron specs. A job still running when
// its next tick fires is skipped rather than overlapped.
type CronScheduler struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
	jobs    map[string]func()
	ctx     context.Context
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &CronScheduler{
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]cron.EntryID),
		jobs:    make(map[string]func()),
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", name), zap.String("spec", spec))
	if _, exists := c.entries[name]; exists {
		return fmt.Errorf("job %s already scheduled", name)
	}
	run := c.wrap(job, spec)
	entryID, err := c.cron.AddFunc(spec, run)
	if err != nil {
		logger.Error("schedule job failed", zap.Error(err))
		return err
	}
	c.entries[name] = entryID
	c.jobs[name] = run
	logger.Info("job scheduled")
	return nil
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx = ctx
	c.cron.Start()
}

// RunNow triggers name outside its schedule, sharing the overlap guard.
func (c *CronScheduler) RunNow(name string) error {
	run, ok := c.jobs[name]
	if !ok {
		return fmt.Errorf("job %s not scheduled", name)
	}
	run()
	return nil
}

func (c *CronScheduler) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

func (c *CronScheduler) wrap(job Job, spec string) func() {
	var running atomic.Bool
	return func() {
		if !running.CompareAndSwap(false, true) {
			logutil.GetLogger(context.Background()).With(
				zap.String("job", job.Name()),
				zap.String("spec", spec),
			).Info("job skipped: still running")
			return
		}
		defer running.Store(false)

		ctx := c.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		logger := logutil.GetLogger(ctx).With(
			zap.String("job", job.Name()),
			zap.String("spec", spec),
		)
		start := time.Now()
		logger.Info("job started")
		err := job.Run(ctx)
		elapsed := time.Since(start)
		metrics.JobRunsTotal.WithLabelValues(job.Name(), metrics.Result(err)).Inc()
		if err != nil {
			logger.Error("job finished", zap.Error(err), zap.Duration("duration", elapsed))
			return
		}
		logger.Info("job finished", zap.Duration("duration", elapsed))
	}
}
