package runtime

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-units"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"jobledger/logger"
)

// engine is the subset of the Docker Engine API the runner drives.
// *client.Client satisfies it.
type engine interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerKill(ctx context.Context, containerID, signal string) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Close() error
}

var _ engine = (*client.Client)(nil)

// DockerRunner runs containers through the Docker Engine API.
type DockerRunner struct {
	strategies []Strategy
	dial       dialFunc
}

func NewDockerRunner(strategies []Strategy) *DockerRunner {
	if len(strategies) == 0 {
		strategies = ParseStrategies(nil, 0)
	}
	return &DockerRunner{strategies: strategies, dial: dialDocker}
}

func (d *DockerRunner) Name() string { return "docker" }

// Ping reports whether any configured strategy reaches an engine.
func (d *DockerRunner) Ping(ctx context.Context) error {
	eng, _, err := connect(ctx, d.dial, d.strategies)
	if err != nil {
		return err
	}
	return eng.Close()
}

func (d *DockerRunner) Run(ctx context.Context, opts RunOpts) (*RunResult, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	eng, strategy, err := connect(ctx, d.dial, d.strategies)
	if err != nil {
		var re *Error
		if errors.As(err, &re) {
			re.Image = opts.Image
		}
		return nil, err
	}
	defer eng.Close()

	id, err := d.create(ctx, eng, opts)
	if err != nil {
		return nil, d.classify(ctx, opts.Image, err)
	}
	defer d.remove(eng, id)

	logger.Logger.Debugw("docker: container created", "id", short(id), "image", opts.Image, "engine", strategy.String())

	if err := eng.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return nil, d.classify(ctx, opts.Image, errors.Wrap(err, "start container"))
	}

	statusCh, errCh := eng.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	var exitCode int
	select {
	case err := <-errCh:
		if ctx.Err() != nil {
			d.kill(eng, id)
			return &RunResult{ExitCode: -1, Duration: time.Since(start)}, Interrupted(ctx, opts.Image, timeout)
		}
		return nil, d.classify(ctx, opts.Image, errors.Wrap(err, "wait for container"))
	case st := <-statusCh:
		exitCode = int(st.StatusCode)
		if st.Error != nil && st.Error.Message != "" {
			return nil, executionError(opts.Image, exitCode, errors.New(st.Error.Message))
		}
	case <-ctx.Done():
		d.kill(eng, id)
		return &RunResult{ExitCode: -1, Duration: time.Since(start)}, Interrupted(ctx, opts.Image, timeout)
	}

	stdout, stderr, err := d.logs(ctx, eng, id)
	result := &RunResult{
		ExitCode: exitCode,
		Stdout:   Truncate(stdout),
		Stderr:   Truncate(stderr),
		Duration: time.Since(start),
	}
	if err != nil {
		return result, d.classify(ctx, opts.Image, err)
	}
	if exitCode != 0 {
		return result, executionError(opts.Image, exitCode, errors.New(lastLine(stderr, "non-zero exit")))
	}
	return result, nil
}

func (d *DockerRunner) create(ctx context.Context, eng engine, opts RunOpts) (string, error) {
	mem, err := units.RAMInBytes(opts.MemoryLimit())
	if err != nil {
		return "", executionError(opts.Image, 0, errors.Wrapf(err, "invalid memory limit %q", opts.MemoryLimit()))
	}
	pids := int64(256)

	cfg := &container.Config{
		Image: opts.Image,
		Cmd:   opts.Command,
		Env:   envList(opts.Env),
	}
	host := &container.HostConfig{
		NetworkMode: container.NetworkMode(opts.NetworkMode()),
		Resources: container.Resources{
			Memory:    mem,
			NanoCPUs:  1e9,
			PidsLimit: &pids,
		},
	}
	name := "jobledger-" + randomSuffix()

	resp, err := eng.ContainerCreate(ctx, cfg, host, nil, nil, name)
	if err == nil {
		return resp.ID, nil
	}
	if !errdefs.IsNotFound(err) {
		return "", errors.Wrap(err, "create container")
	}

	// Image is not present locally; pull it once and retry.
	if err := d.pull(ctx, eng, opts.Image); err != nil {
		return "", err
	}
	resp, err = eng.ContainerCreate(ctx, cfg, host, nil, nil, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return "", executionError(opts.Image, 0, errors.Wrap(err, "no such image"))
		}
		return "", errors.Wrap(err, "create container")
	}
	return resp.ID, nil
}

func (d *DockerRunner) pull(ctx context.Context, eng engine, ref string) error {
	logger.Logger.Infow("docker: pulling image", "image", ref)
	rc, err := eng.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		if ctx.Err() != nil || client.IsErrConnectionFailed(err) {
			return err
		}
		return executionError(ref, 0, errors.Wrap(err, "no such image"))
	}
	defer rc.Close()
	if err := jsonmessage.DisplayJSONMessagesStream(rc, io.Discard, 0, false, nil); err != nil {
		return executionError(ref, 0, errors.Wrap(err, "no such image"))
	}
	return nil
}

func (d *DockerRunner) logs(ctx context.Context, eng engine, id string) ([]byte, []byte, error) {
	rc, err := eng.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, nil, errors.Wrap(err, "read logs")
	}
	defer rc.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, rc); err != nil {
		return stdout.Bytes(), stderr.Bytes(), errors.Wrap(err, "demultiplex logs")
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}

// classify maps an engine error onto the runner taxonomy. Errors that are
// already *Error pass through.
func (d *DockerRunner) classify(ctx context.Context, img string, err error) error {
	var re *Error
	if errors.As(err, &re) {
		if re.Image == "" {
			re.Image = img
		}
		return re
	}
	if ctx.Err() != nil {
		return Interrupted(ctx, img, 0)
	}
	if client.IsErrConnectionFailed(err) {
		return connectionError(err)
	}
	return executionError(img, 0, err)
}

func (d *DockerRunner) kill(eng engine, id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := eng.ContainerKill(ctx, id, "KILL"); err != nil {
		logger.Logger.Warnw("docker: kill failed", "id", short(id), "error", err)
	}
}

func (d *DockerRunner) remove(eng engine, id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := eng.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil && !errdefs.IsNotFound(err) {
		logger.Logger.Warnw("docker: remove failed", "id", short(id), "error", err)
	}
}

func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// lastLine returns the last non-empty line of b, or fallback.
func lastLine(b []byte, fallback string) string {
	lines := bytes.Split(bytes.TrimSpace(b), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if l := bytes.TrimSpace(lines[i]); len(l) > 0 {
			return string(l)
		}
	}
	return fallback
}

func short(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}
