package nomad

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	nomadapi "github.com/hashicorp/nomad/api"

	"jobledger/logger"
	"jobledger/runtime"
)

// cluster is the slice of the Nomad API the runner needs.
type cluster interface {
	Healthy() error
	Datacenter() string
	SubmitJob(job *nomadapi.Job) (string, error)
	StopJob(jobID string, purge bool) error
	WaitBatchComplete(ctx context.Context, jobID string) (*nomadapi.AllocationListStub, error)
	ReadLogs(ctx context.Context, allocID, task, stream string) ([]byte, error)
}

// Runner executes containers as Nomad batch jobs and purges each job once
// its allocation finishes.
type Runner struct {
	cluster cluster
}

func NewRunner(c *Client) *Runner {
	return &Runner{cluster: c}
}

func (r *Runner) Name() string { return "nomad" }

func (r *Runner) Ping(ctx context.Context) error {
	if err := r.cluster.Healthy(); err != nil {
		return runtime.NewError(runtime.KindConnection, "", 0, errors.Wrap(err, "nomad agent"))
	}
	return nil
}

func (r *Runner) Run(ctx context.Context, opts runtime.RunOpts) (*runtime.RunResult, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	jobID := "jobledger-" + uuid.New().String()[:8]
	job := TranslateBatch(jobID, r.cluster.Datacenter(), opts)

	start := time.Now()
	if _, err := r.cluster.SubmitJob(job); err != nil {
		return nil, submitError(opts.Image, err)
	}
	defer func() {
		if err := r.cluster.StopJob(jobID, true); err != nil {
			logger.Logger.Warnw("nomad: purge failed", "job", jobID, "error", err)
		}
	}()

	alloc, err := r.cluster.WaitBatchComplete(ctx, jobID)
	if err != nil {
		if ctx.Err() != nil {
			return &runtime.RunResult{ExitCode: -1, Duration: time.Since(start)},
				runtime.Interrupted(ctx, opts.Image, timeout)
		}
		return nil, runtime.NewError(runtime.KindExecution, opts.Image, 0, err)
	}

	stdout, err := r.cluster.ReadLogs(ctx, alloc.ID, TaskName, "stdout")
	if err != nil {
		logger.Logger.Warnw("nomad: read stdout failed", "alloc", alloc.ID, "error", err)
	}
	stderr, err := r.cluster.ReadLogs(ctx, alloc.ID, TaskName, "stderr")
	if err != nil {
		logger.Logger.Warnw("nomad: read stderr failed", "alloc", alloc.ID, "error", err)
	}

	exitCode, msg := taskExit(alloc)
	result := &runtime.RunResult{
		ExitCode: exitCode,
		Stdout:   runtime.Truncate(stdout),
		Stderr:   runtime.Truncate(stderr),
		Duration: time.Since(start),
	}
	if alloc.ClientStatus != nomadapi.AllocClientStatusComplete || exitCode != 0 {
		if msg == "" {
			msg = "allocation " + alloc.ClientStatus
		}
		return result, runtime.NewError(runtime.KindExecution, opts.Image, exitCode, errors.New(msg))
	}
	return result, nil
}

// submitError separates an unreachable agent from a rejected job.
func submitError(image string, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return runtime.NewError(runtime.KindConnection, image, 0, err)
	}
	return runtime.NewError(runtime.KindExecution, image, 0, err)
}

// taskExit reads the exit code and the most telling event message from the
// task state of a terminal allocation.
func taskExit(alloc *nomadapi.AllocationListStub) (int, string) {
	ts, ok := alloc.TaskStates[TaskName]
	if !ok || ts == nil {
		if alloc.ClientStatus == nomadapi.AllocClientStatusComplete {
			return 0, ""
		}
		return 1, alloc.ClientDescription
	}

	code := 0
	if ts.Failed {
		code = 1
	}
	var msg string
	for _, ev := range ts.Events {
		if ev == nil {
			continue
		}
		if v, ok := ev.Details["exit_code"]; ok {
			if n, err := strconv.Atoi(v); err == nil {
				code = n
			}
		}
		if ev.Type == nomadapi.TaskDriverFailure || ev.Type == nomadapi.TaskTerminated || ev.Type == nomadapi.TaskSetupFailure {
			if ev.DisplayMessage != "" {
				msg = ev.DisplayMessage
			}
		}
	}
	if code == 0 && !ts.Failed {
		msg = ""
	}
	return code, msg
}
