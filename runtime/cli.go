package runtime

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"jobledger/logger"
)

// CLIRunner shells out to the docker binary. It is the fallback for hosts
// where the engine socket is only reachable through the CLI's own context
// configuration.
type CLIRunner struct {
	Binary string
}

func NewCLIRunner() *CLIRunner {
	return &CLIRunner{Binary: "docker"}
}

func (d *CLIRunner) Name() string { return "cli" }

func (d *CLIRunner) Ping(ctx context.Context) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.Binary, "version", "--format", "{{.Server.Version}}")
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return connectionError(errors.Wrap(err, strings.TrimSpace(stderr.String())))
	}
	return nil
}

func (d *CLIRunner) Run(ctx context.Context, opts RunOpts) (*RunResult, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name := fmt.Sprintf("jobledger-%s", randomSuffix())

	args := []string{
		"run", "--rm", "--name", name,
		"--memory=" + opts.MemoryLimit(), "--cpus=1", "--pids-limit=256",
		"--network=" + opts.NetworkMode(),
	}
	for k, v := range opts.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, opts.Image)
	args = append(args, opts.Command...)

	var stdout, stderr bytes.Buffer
	start := time.Now()
	cmd := exec.CommandContext(ctx, d.Binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	result := &RunResult{
		Stdout:   Truncate(stdout.Bytes()),
		Stderr:   Truncate(stderr.Bytes()),
		Duration: time.Since(start),
	}

	if err == nil {
		return result, nil
	}

	if ctx.Err() != nil {
		// The CLI process dies with ctx; the container does not
		if kerr := exec.Command(d.Binary, "kill", name).Run(); kerr != nil {
			logger.Logger.Warnw("docker cli: kill failed", "name", name, "error", kerr)
		}
		result.ExitCode = -1
		return result, Interrupted(ctx, opts.Image, timeout)
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	result.ExitCode = exitCode
	return result, classifyCLI(opts.Image, exitCode, err, stderr.String())
}

// classifyCLI maps `docker run` failures onto the runner taxonomy. Exit
// codes 125-127 are reported by the CLI itself rather than the container.
func classifyCLI(image string, exitCode int, err error, stderr string) *Error {
	msg := lastLine([]byte(stderr), err.Error())

	if errors.Is(err, exec.ErrNotFound) {
		return connectionError(errors.Wrap(err, "docker binary not found"))
	}
	switch {
	case strings.Contains(stderr, "Cannot connect to the Docker daemon"),
		strings.Contains(stderr, "error during connect"):
		return connectionError(errors.New(msg))
	case exitCode == 125 && (strings.Contains(stderr, "pull access denied") ||
		strings.Contains(stderr, "manifest unknown") ||
		strings.Contains(stderr, "not found")):
		return executionError(image, 0, errors.Newf("no such image: %s", msg))
	}
	return executionError(image, exitCode, errors.New(msg))
}

func randomSuffix() string {
	b := make([]byte, 4)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}
