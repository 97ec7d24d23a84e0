package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"jobledger/config"
	"jobledger/ledger"
	"jobledger/model"
	"jobledger/saga"
)

// Executor runs a job by name. *job.Executor satisfies it.
type Executor interface {
	Run(ctx context.Context, name string) (*model.Execution, error)
}

// History serves the execution audit trail. *store.DB satisfies it.
type History interface {
	ListExecutions(ctx context.Context, job string, limit int) ([]model.Execution, error)
	GetExecution(ctx context.Context, id string) (*model.Execution, error)
}

// Outputs serves archived stdout. *storage.Client satisfies it.
type Outputs interface {
	GetOutput(ctx context.Context, key string) ([]byte, error)
}

// Schedule reports upcoming cron runs. *job.Scheduler satisfies it.
type Schedule interface {
	Entries() map[string]time.Time
}

// Listeners reports connected event-stream clients. *hub.Hub satisfies it.
type Listeners interface {
	Clients() int
}

// Probe checks one dependency for /health.
type Probe func(ctx context.Context) error

// Options carries the optional collaborators. Nil fields disable the
// routes that need them.
type Options struct {
	History   History
	Outputs   Outputs
	Sagas     saga.Store
	Schedule  Schedule
	Listeners Listeners
	Probes    map[string]Probe
	Runtime   string
	Version   string
}

type Handler struct {
	cfg     *config.Config
	exec    Executor
	ledger  *ledger.Ledger
	jobs    *model.JobTable
	opts    Options
	limiter *rate.Limiter
}

func New(cfg *config.Config, exec Executor, l *ledger.Ledger, jobs *model.JobTable, opts Options) *Handler {
	h := &Handler{
		cfg:    cfg,
		exec:   exec,
		ledger: l,
		jobs:   jobs,
		opts:   opts,
	}
	if cfg.RunRate > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(cfg.RunRate), cfg.RunBurst)
	}
	return h
}

// ValidateJobName is middleware that rejects requests with malformed job names.
func ValidateJobName(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "jobName")
		if name != "" && !model.ValidJobName(name) {
			writeError(w, http.StatusBadRequest, "invalid job name")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit rejects runs beyond the configured token bucket with 429.
func (h *Handler) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && !h.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "too many runs, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// queryInt parses a positive integer query parameter. Missing values yield
// def; anything else that is not a positive integer is an error.
func queryInt(r *http.Request, key string, def int) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeText(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	w.Write(body)
}
