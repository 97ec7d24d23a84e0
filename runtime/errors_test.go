package runtime

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"connection", connectionError(errors.New("refused")), KindConnection},
		{"wrapped execution", errors.Wrap(executionError("alpine", 1, errors.New("boom")), "run"), KindExecution},
		{"timeout", timeoutError("alpine", errors.New("too slow")), KindTimeout},
		{"bare deadline", context.DeadlineExceeded, KindTimeout},
		{"bare cancel", errors.Wrap(context.Canceled, "wait"), KindTimeout},
		{"anything else", errors.New("mystery"), KindExecution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "container engine unreachable: refused", connectionError(errors.New("refused")).Error())
	assert.Equal(t, "alpine exited with status 3: bad", executionError("alpine", 3, errors.New("bad")).Error())
	assert.Equal(t, "dummy: no such image", executionError("dummy", 0, errors.New("no such image")).Error())
	assert.Equal(t, "alpine: execution timed out after 1s", timeoutError("alpine", errors.New("execution timed out after 1s")).Error())
	assert.Equal(t, -1, timeoutError("alpine", errors.New("x")).ExitCode)
}

func TestInterrupted(t *testing.T) {
	expired, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-expired.Done()
	assert.Equal(t, "alpine: execution timed out after 2s", Interrupted(expired, "alpine", 2*time.Second).Error())
	assert.Equal(t, "alpine: execution timed out", Interrupted(expired, "alpine", 0).Error())

	gone, cancelGone := context.WithCancel(context.Background())
	cancelGone()
	e := Interrupted(gone, "alpine", 2*time.Second)
	assert.Equal(t, KindTimeout, e.Kind)
	assert.Equal(t, "alpine: run cancelled by caller", e.Error())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(connectionError(errors.New("refused"))))
	assert.False(t, IsRetryable(executionError("alpine", 1, errors.New("boom"))))
	assert.False(t, IsRetryable(timeoutError("alpine", errors.New("slow"))))
	assert.False(t, IsRetryable(nil))
}

func TestClassifyCLI(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		err      error
		stderr   string
		kind     Kind
		contains string
	}{
		{
			name:     "binary missing",
			err:      exec.ErrNotFound,
			kind:     KindConnection,
			contains: "docker binary not found",
		},
		{
			name:     "daemon down",
			exitCode: 1,
			err:      errors.New("exit status 1"),
			stderr:   "Cannot connect to the Docker daemon at unix:///var/run/docker.sock. Is the docker daemon running?\n",
			kind:     KindConnection,
			contains: "Cannot connect",
		},
		{
			name:     "image missing",
			exitCode: 125,
			err:      errors.New("exit status 125"),
			stderr:   "Unable to find image 'dummy:latest' locally\ndocker: Error response from daemon: pull access denied for dummy, repository does not exist.\n",
			kind:     KindExecution,
			contains: "no such image",
		},
		{
			name:     "container failed",
			exitCode: 2,
			err:      errors.New("exit status 2"),
			stderr:   "sh: nope: not found\n",
			kind:     KindExecution,
			contains: "exited with status 2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := classifyCLI("dummy", tt.exitCode, tt.err, tt.stderr)
			assert.Equal(t, tt.kind, e.Kind)
			assert.True(t, strings.Contains(e.Error(), tt.contains), "got %q", e.Error())
		})
	}
}

func TestTruncateOutput(t *testing.T) {
	small := []byte("hello")
	assert.Equal(t, small, Truncate(small))

	big := make([]byte, maxOutputBytes+10)
	out := Truncate(big)
	assert.True(t, strings.HasSuffix(string(out), "(output truncated at 64KB)"))
	assert.Less(t, len(out), len(big)+64)
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "second", lastLine([]byte("first\nsecond\n\n"), "fallback"))
	assert.Equal(t, "fallback", lastLine(nil, "fallback"))
}
