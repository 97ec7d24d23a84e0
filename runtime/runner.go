package runtime

import (
	"context"
	"time"
)

const maxOutputBytes = 64 * 1024 // 64KB

type RunResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Runner executes one container to completion. Errors returned by Run are
// always *Error so callers can switch on Kind. A non-nil result may
// accompany an error when the container produced output before failing.
type Runner interface {
	Run(ctx context.Context, opts RunOpts) (*RunResult, error)
	Ping(ctx context.Context) error
	Name() string
}

type RunOpts struct {
	Image   string
	Command []string
	Env     map[string]string
	Timeout time.Duration
	Memory  string // e.g. "256m", empty means default (512m)
	Network string // e.g. "host", "bridge", empty means "none"
}

// MemoryLimit is the container memory cap in docker notation.
func (o RunOpts) MemoryLimit() string {
	if o.Memory == "" {
		return "512m"
	}
	return o.Memory
}

func (o RunOpts) NetworkMode() string {
	if o.Network == "" {
		return "none"
	}
	return o.Network
}

// Truncate caps captured output at 64KB.
func Truncate(b []byte) []byte {
	if len(b) <= maxOutputBytes {
		return b
	}
	out := make([]byte, 0, maxOutputBytes+40)
	out = append(out, b[:maxOutputBytes]...)
	return append(out, "\n... (output truncated at 64KB)"...)
}
