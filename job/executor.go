package job

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"jobledger/hub"
	"jobledger/ledger"
	"jobledger/logger"
	"jobledger/model"
	"jobledger/runtime"
	"jobledger/saga"
)

// ErrUnknownJob is returned for names missing from the job table.
var ErrUnknownJob = errors.New("unknown job")

// Trigger sources recorded on saga events.
const (
	SourceAPI  = "api"
	SourceCron = "cron"
)

const sideEffectTimeout = 10 * time.Second

// HistoryStore persists execution records.
type HistoryStore interface {
	InsertExecution(ctx context.Context, e *model.Execution) error
}

// OutputArchive keeps captured stdout beyond the response.
type OutputArchive interface {
	PutOutput(ctx context.Context, job, execID string, data []byte) (string, error)
}

// Broadcaster publishes run events to live listeners.
type Broadcaster interface {
	Broadcast(evt hub.Event)
}

// Executor runs jobs from the table and records every attempt in the
// ledger exactly once. History, archive, sagas and events are optional and
// best-effort; their failures are logged and never change the outcome.
type Executor struct {
	Runner runtime.Runner
	Ledger *ledger.Ledger
	Jobs   *model.JobTable

	History HistoryStore
	Archive OutputArchive
	Sagas   saga.Store
	Events  Broadcaster

	DefaultTimeout time.Duration
	Memory         string
	Network        string

	sem *semaphore.Weighted
}

func NewExecutor(runner runtime.Runner, l *ledger.Ledger, jobs *model.JobTable, maxConcurrent int) *Executor {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Executor{
		Runner:         runner,
		Ledger:         l,
		Jobs:           jobs,
		DefaultTimeout: 60 * time.Second,
		sem:            semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Run executes the named job on behalf of an API caller.
func (e *Executor) Run(ctx context.Context, name string) (*model.Execution, error) {
	return e.RunAs(ctx, name, SourceAPI)
}

// RunAs executes the named job and returns its execution record together
// with the runner error, nil on success. An unknown name records nothing.
func (e *Executor) RunAs(ctx context.Context, name, source string) (*model.Execution, error) {
	j, ok := e.Jobs.Get(name)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownJob, "%q", name)
	}

	execution := &model.Execution{
		ID:        uuid.New().String(),
		Job:       j.Name,
		Image:     j.Image,
		Command:   j.Command,
		StartedAt: time.Now(),
	}

	var sg *saga.Saga
	if e.Sagas != nil {
		sg = saga.New(e.Sagas, j.Name, source, "run")
		execution.SagaID = sg.ID
		if err := sg.RunStart(ctx, j.Image); err != nil {
			logger.Logger.Warnw("executor: saga start failed", "job", j.Name, "error", err)
		}
	}
	e.broadcast(hub.EventJobStarted, execution)

	if err := e.sem.Acquire(ctx, 1); err != nil {
		runErr := runtime.NewError(runtime.KindTimeout, j.Image, -1, errors.Wrap(err, "waiting for a free run slot"))
		return e.finish(ctx, execution, nil, runErr, sg)
	}

	timeout := j.TimeoutOr(e.DefaultTimeout)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	res, runErr := e.Runner.Run(runCtx, runtime.RunOpts{
		Image:   j.Image,
		Command: j.Argv(),
		Env:     j.Env,
		Timeout: timeout,
		Memory:  e.Memory,
		Network: e.Network,
	})
	cancel()
	e.sem.Release(1)

	return e.finish(ctx, execution, res, runErr, sg)
}

func (e *Executor) finish(ctx context.Context, execution *model.Execution, res *runtime.RunResult, runErr error, sg *saga.Saga) (*model.Execution, error) {
	finished := time.Now()
	execution.FinishedAt = &finished
	execution.DurationMs = finished.Sub(execution.StartedAt).Milliseconds()

	if res != nil {
		execution.ExitCode = res.ExitCode
		execution.Output = string(res.Stdout)
	}

	if runErr != nil {
		kind := runtime.KindOf(runErr)
		execution.ErrorKind = string(kind)
		execution.Message = runErr.Error()
		execution.Status = model.ExecFailed
		if kind == runtime.KindTimeout {
			execution.Status = model.ExecTimedOut
			execution.ExitCode = -1
		}
	} else {
		execution.Status = model.ExecSucceeded
	}

	seq, err := e.Ledger.Append(execution.Outcome())
	if err != nil {
		logger.Logger.Errorw("executor: ledger append failed", "job", execution.Job, "error", err)
	}
	execution.Sequence = seq

	// Side channels outlive a cancelled request.
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if e.Archive != nil && execution.Output != "" {
		key, err := e.Archive.PutOutput(sideCtx, execution.Job, execution.ID, []byte(execution.Output))
		if err != nil {
			logger.Logger.Warnw("executor: archive output failed", "job", execution.Job, "id", execution.ID, "error", err)
		} else {
			execution.ArchiveKey = key
		}
	}

	if e.History != nil {
		if err := e.History.InsertExecution(sideCtx, execution); err != nil {
			logger.Logger.Warnw("executor: record history failed", "job", execution.Job, "id", execution.ID, "error", err)
		}
	}

	if sg != nil {
		var serr error
		if runErr != nil {
			serr = sg.RunFailed(sideCtx, execution.ErrorKind, runErr)
		} else {
			serr = sg.RunComplete(sideCtx, execution.DurationMs)
		}
		if serr != nil {
			logger.Logger.Warnw("executor: saga finish failed", "job", execution.Job, "error", serr)
		}
	}

	if runErr != nil {
		e.broadcast(hub.EventJobFailed, execution)
		logger.Logger.Infow("executor: run failed",
			"job", execution.Job, "kind", execution.ErrorKind, "seq", seq,
			"durationMs", execution.DurationMs, "error", runErr)
	} else {
		e.broadcast(hub.EventJobCompleted, execution)
		logger.Logger.Infow("executor: run succeeded",
			"job", execution.Job, "seq", seq, "durationMs", execution.DurationMs)
	}

	return execution, runErr
}

func (e *Executor) broadcast(typ string, execution *model.Execution) {
	if e.Events == nil {
		return
	}
	payload := map[string]interface{}{
		"executionId": execution.ID,
		"image":       execution.Image,
	}
	if execution.FinishedAt != nil {
		payload["status"] = string(execution.Status)
		payload["sequence"] = execution.Sequence
		payload["durationMs"] = execution.DurationMs
		if execution.Message != "" {
			payload["message"] = execution.Message
		}
	}
	e.Events.Broadcast(hub.Event{Type: typ, Job: execution.Job, Payload: payload})
}
