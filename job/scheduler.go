package job

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"jobledger/logger"
	"jobledger/model"
)

type jobRunner interface {
	RunAs(ctx context.Context, name, source string) (*model.Execution, error)
}

// Scheduler fires jobs that carry a cron schedule. Overlapping runs of the
// same job are skipped.
type Scheduler struct {
	cron    *cron.Cron
	runner  jobRunner
	entries map[string]cron.EntryID // job -> cron entry
	mu      sync.Mutex
}

func NewScheduler(runner jobRunner) *Scheduler {
	cl := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner:  runner,
		entries: make(map[string]cron.EntryID),
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Logger.Infow("cron: scheduler started", "entries", len(s.cron.Entries()))
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Logger.Info("cron: scheduler stopped")
}

// Sync makes the registered entries match the scheduled jobs in t.
func (s *Scheduler) Sync(t *model.JobTable) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make(map[string]bool)
	for _, j := range t.List() {
		if j.Schedule == "" {
			continue
		}
		active[j.Name] = true

		if id, ok := s.entries[j.Name]; ok {
			s.cron.Remove(id)
			delete(s.entries, j.Name)
		}

		name := j.Name
		id, err := s.cron.AddFunc(j.Schedule, func() { s.execute(name) })
		if err != nil {
			logger.Logger.Errorw("cron: schedule rejected", "job", name, "schedule", j.Schedule, "error", err)
			continue
		}
		s.entries[name] = id
		logger.Logger.Infow("cron: scheduled", "job", name, "schedule", j.Schedule)
	}

	for name, id := range s.entries {
		if !active[name] {
			s.cron.Remove(id)
			delete(s.entries, name)
		}
	}
}

// Entries returns the next run time of every scheduled job. Times are zero
// until the scheduler has started.
func (s *Scheduler) Entries() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

func (s *Scheduler) execute(name string) {
	if _, err := s.runner.RunAs(context.Background(), name, SourceCron); err != nil {
		logger.Logger.Warnw("cron: run failed", "job", name, "error", err)
	}
}

// cronLogger routes robfig/cron's own logging through zap.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Logger.Debugw("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Logger.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
