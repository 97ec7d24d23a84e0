package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/docker/docker/client"

	"jobledger/logger"
)

// EnvStrategy selects the engine described by DOCKER_HOST and friends.
const EnvStrategy = "env"

// Strategy is one way of reaching a container engine. Strategies are tried
// in order until one answers a ping within its own timeout.
type Strategy struct {
	Host    string // daemon address, or EnvStrategy
	Timeout time.Duration
}

func (s Strategy) String() string {
	if s.Host == EnvStrategy {
		return "environment"
	}
	return s.Host
}

// ParseStrategies turns a host list (e.g. "tcp://127.0.0.1:2375", "env")
// into strategies sharing one ping timeout. Blank entries are skipped and
// an empty list falls back to the environment.
func ParseStrategies(hosts []string, timeout time.Duration) []Strategy {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	var out []Strategy
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		out = append(out, Strategy{Host: h, Timeout: timeout})
	}
	if len(out) == 0 {
		out = append(out, Strategy{Host: EnvStrategy, Timeout: timeout})
	}
	return out
}

type dialFunc func(s Strategy) (engine, error)

func dialDocker(s Strategy) (engine, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if s.Host == EnvStrategy {
		opts = append(opts, client.FromEnv)
	} else {
		opts = append(opts, client.WithHost(s.Host))
	}
	return client.NewClientWithOpts(opts...)
}

// connect walks the strategies and returns the first engine that answers.
func connect(ctx context.Context, dial dialFunc, strategies []Strategy) (engine, Strategy, error) {
	var attempts []string
	for _, s := range strategies {
		if ctx.Err() != nil {
			return nil, Strategy{}, timeoutError("", errors.Wrap(ctx.Err(), "connecting to container engine"))
		}

		eng, err := dial(s)
		if err != nil {
			attempts = append(attempts, fmt.Sprintf("%s: %v", s, err))
			continue
		}

		pingCtx, cancel := context.WithTimeout(ctx, s.Timeout)
		_, err = eng.Ping(pingCtx)
		cancel()
		if err != nil {
			eng.Close()
			attempts = append(attempts, fmt.Sprintf("%s: %v", s, err))
			logger.Logger.Infow("docker: engine unavailable, trying next", "strategy", s.String(), "error", err)
			continue
		}
		return eng, s, nil
	}
	return nil, Strategy{}, connectionError(errors.Newf("no engine answered (%s)", strings.Join(attempts, "; ")))
}
