package nomad

import (
	"time"

	"github.com/docker/go-units"
	nomadapi "github.com/hashicorp/nomad/api"

	"jobledger/runtime"
)

// TaskName is the single task every translated batch job carries.
const TaskName = "run"

// TranslateBatch converts a single container run into a one-shot Nomad batch
// job using the docker driver. Restarts and rescheduling are disabled so a
// failed container fails the run.
func TranslateBatch(jobID, datacenter string, opts runtime.RunOpts) *nomadapi.Job {
	job := nomadapi.NewBatchJob(jobID, jobID, "global", 50)
	job.Datacenters = []string{datacenter}
	job.Meta = map[string]string{
		"managed_by": "jobledger",
	}

	tg := nomadapi.NewTaskGroup(TaskName, 1)

	attempts := 0
	mode := "fail"
	tg.RestartPolicy = &nomadapi.RestartPolicy{
		Attempts: &attempts,
		Mode:     &mode,
	}
	unlimited := false
	tg.ReschedulePolicy = &nomadapi.ReschedulePolicy{
		Attempts:  &attempts,
		Unlimited: &unlimited,
	}

	task := nomadapi.NewTask(TaskName, "docker")
	task.Config = map[string]interface{}{
		"image":        opts.Image,
		"network_mode": opts.NetworkMode(),
	}
	if len(opts.Command) > 0 {
		task.Config["command"] = opts.Command[0]
		if len(opts.Command) > 1 {
			task.Config["args"] = opts.Command[1:]
		}
	}
	if len(opts.Env) > 0 {
		task.Env = make(map[string]string, len(opts.Env))
		for k, v := range opts.Env {
			task.Env[k] = v
		}
	}

	cpu := 1000
	mem := 512
	if b, err := units.RAMInBytes(opts.MemoryLimit()); err == nil && b > 0 {
		mem = int(b / (1024 * 1024))
	}
	task.Resources = &nomadapi.Resources{
		CPU:      &cpu,
		MemoryMB: &mem,
	}
	killTimeout := 5 * time.Second
	task.KillTimeout = &killTimeout

	tg.Tasks = []*nomadapi.Task{task}
	job.TaskGroups = []*nomadapi.TaskGroup{tg}
	return job
}
