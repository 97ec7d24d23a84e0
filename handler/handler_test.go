package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobledger/config"
	"jobledger/job"
	"jobledger/ledger"
	"jobledger/model"
	"jobledger/runtime"
	"jobledger/saga"
	"jobledger/storage"
	"jobledger/store"
)

// stubRunner answers by image: "alpine" succeeds, anything else fails
// with the configured error.
type stubRunner struct {
	stdout string
	err    error
}

func (s *stubRunner) Run(ctx context.Context, opts runtime.RunOpts) (*runtime.RunResult, error) {
	if opts.Image == "alpine" || opts.Image == "hello-world" {
		return &runtime.RunResult{Stdout: []byte(s.stdout)}, nil
	}
	return nil, s.err
}

func (s *stubRunner) Ping(ctx context.Context) error { return nil }
func (s *stubRunner) Name() string                   { return "stub" }

type fakeHistory struct {
	execs map[string]*model.Execution
}

func (f *fakeHistory) ListExecutions(ctx context.Context, jobName string, limit int) ([]model.Execution, error) {
	var out []model.Execution
	for _, e := range f.execs {
		if jobName == "" || e.Job == jobName {
			out = append(out, *e)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeHistory) GetExecution(ctx context.Context, id string) (*model.Execution, error) {
	e, ok := f.execs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return e, nil
}

type fakeOutputs map[string]string

func (f fakeOutputs) GetOutput(ctx context.Context, key string) ([]byte, error) {
	v, ok := f[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return []byte(v), nil
}

type testEnv struct {
	router chi.Router
	ledger *ledger.Ledger
	exec   *job.Executor
}

func newTestEnv(t *testing.T, runErr error, mutate func(*config.Config, *Options)) *testEnv {
	t.Helper()
	cfg := &config.Config{LegacyRoutes: true, RecentErrors: 3}
	opts := Options{Runtime: "stub", Version: "test"}
	if mutate != nil {
		mutate(cfg, &opts)
	}

	l := ledger.New()
	jobs := model.DefaultJobs()
	exec := job.NewExecutor(&stubRunner{stdout: "Mon Jan  1 00:00:00 UTC 2024\n", err: runErr}, l, jobs, 4)

	r := chi.NewRouter()
	New(cfg, exec, l, jobs, opts).Mount(r)
	return &testEnv{router: r, ledger: l, exec: exec}
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func noSuchImage() error {
	return runtime.NewError(runtime.KindExecution, "dummy", 0, errors.New("no such image"))
}

func TestRunJob_Success(t *testing.T) {
	env := newTestEnv(t, noSuchImage(), nil)

	rec := env.get(t, "/run/date")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Mon Jan  1 00:00:00 UTC 2024\n", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Execution-Id"))
	assert.Equal(t, ledger.Summary{Total: 1, Successful: 1}, env.ledger.Summary())
}

func TestRunJob_NoSuchImage(t *testing.T) {
	env := newTestEnv(t, noSuchImage(), nil)

	rec := env.get(t, "/run/fail")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "error", rec.Body.String())

	assert.Equal(t, ledger.Summary{Total: 1, Failed: 1}, env.ledger.Summary())
	assert.Equal(t, []string{"dummy: no such image"}, env.ledger.RecentFailureMessages(3))
}

func TestRunJob_FailureStatusByKind(t *testing.T) {
	tests := []struct {
		kind       runtime.Kind
		want       int
		retryAfter string
	}{
		{runtime.KindConnection, http.StatusServiceUnavailable, "5"},
		{runtime.KindExecution, http.StatusBadGateway, ""},
		{runtime.KindTimeout, http.StatusGatewayTimeout, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			env := newTestEnv(t, runtime.NewError(tt.kind, "dummy", 0, errors.New("boom")), nil)
			rec := env.get(t, "/run/fail")
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "error", rec.Body.String())
			assert.Equal(t, tt.retryAfter, rec.Header().Get("Retry-After"))
		})
	}
}

func TestRunJob_UnknownAndInvalid(t *testing.T) {
	env := newTestEnv(t, noSuchImage(), nil)

	rec := env.get(t, "/run/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.get(t, "/run/Bad_Name")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, 0, env.ledger.Len(), "rejected requests record nothing")
}

func TestLegacyRoutes(t *testing.T) {
	env := newTestEnv(t, noSuchImage(), nil)

	assert.Equal(t, http.StatusOK, env.get(t, "/date").Code)
	assert.Equal(t, http.StatusOK, env.get(t, "/version").Code)
	assert.Equal(t, http.StatusOK, env.get(t, "/hello").Code)
	assert.Equal(t, http.StatusBadGateway, env.get(t, "/fail").Code)
	assert.Equal(t, 4, env.ledger.Len())

	off := newTestEnv(t, noSuchImage(), func(c *config.Config, _ *Options) { c.LegacyRoutes = false })
	assert.Equal(t, http.StatusNotFound, off.get(t, "/date").Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, noSuchImage(), func(c *config.Config, _ *Options) {
		c.RunRate = 0.001
		c.RunBurst = 1
	})

	assert.Equal(t, http.StatusOK, env.get(t, "/run/date").Code)
	rec := env.get(t, "/run/date")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 1, env.ledger.Len())
}

func TestStat(t *testing.T) {
	env := newTestEnv(t, noSuchImage(), nil)

	rec := env.get(t, "/stat")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"total requests":0,"successful":0,"failed":0},[]]`, rec.Body.String())

	env.get(t, "/run/date")
	env.get(t, "/run/fail")

	rec = env.get(t, "/stat")
	var body []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.JSONEq(t, `{"total requests":2,"successful":1,"failed":1}`, string(body[0]))

	var outcomes []model.Outcome
	require.NoError(t, json.Unmarshal(body[1], &outcomes))
	require.Len(t, outcomes, 2)
	assert.Equal(t, model.Outcome{Container: "alpine", Result: model.Success, Sequence: 1}, outcomes[0])
	assert.Equal(t, model.Outcome{Container: "dummy", Result: model.Failure, Msg: "dummy: no such image", Sequence: 2}, outcomes[1])
}

func TestErrors(t *testing.T) {
	env := newTestEnv(t, noSuchImage(), nil)

	rec := env.get(t, "/errors")
	assert.JSONEq(t, `[]`, rec.Body.String())

	for i := 0; i < 5; i++ {
		env.get(t, "/run/fail")
	}

	var msgs []string
	require.NoError(t, json.Unmarshal(env.get(t, "/errors").Body.Bytes(), &msgs))
	assert.Len(t, msgs, 3)

	require.NoError(t, json.Unmarshal(env.get(t, "/errors?n=10").Body.Bytes(), &msgs))
	assert.Len(t, msgs, 5)

	assert.Equal(t, http.StatusBadRequest, env.get(t, "/errors?n=0").Code)
	assert.Equal(t, http.StatusBadRequest, env.get(t, "/errors?n=abc").Code)
}

func TestListJobs(t *testing.T) {
	next := time.Date(2030, 1, 1, 3, 0, 0, 0, time.UTC)
	env := newTestEnv(t, noSuchImage(), func(_ *config.Config, o *Options) {
		o.Schedule = scheduleStub{"hello": next}
	})

	var jobs []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.get(t, "/jobs").Body.Bytes(), &jobs))
	require.Len(t, jobs, 4)
	assert.Equal(t, "date", jobs[0]["name"])
	assert.Equal(t, "alpine", jobs[0]["image"])
	assert.Nil(t, jobs[0]["nextRun"])
	assert.Equal(t, "2030-01-01T03:00:00Z", jobs[2]["nextRun"])
}

type scheduleStub map[string]time.Time

func (s scheduleStub) Entries() map[string]time.Time { return s }

func TestExecutions(t *testing.T) {
	unconfigured := newTestEnv(t, noSuchImage(), nil)
	assert.Equal(t, http.StatusServiceUnavailable, unconfigured.get(t, "/executions").Code)

	history := &fakeHistory{execs: map[string]*model.Execution{
		"e1": {ID: "e1", Job: "date", Status: model.ExecSucceeded},
		"e2": {ID: "e2", Job: "fail", Status: model.ExecFailed},
	}}
	env := newTestEnv(t, noSuchImage(), func(_ *config.Config, o *Options) { o.History = history })

	var execs []model.Execution
	require.NoError(t, json.Unmarshal(env.get(t, "/executions?job=fail").Body.Bytes(), &execs))
	require.Len(t, execs, 1)
	assert.Equal(t, "e2", execs[0].ID)

	assert.Equal(t, http.StatusOK, env.get(t, "/executions/e1").Code)
	assert.Equal(t, http.StatusNotFound, env.get(t, "/executions/missing").Code)
	assert.Equal(t, http.StatusBadRequest, env.get(t, "/executions?limit=-1").Code)
}

func TestOutputs(t *testing.T) {
	env := newTestEnv(t, noSuchImage(), func(_ *config.Config, o *Options) {
		o.Outputs = fakeOutputs{"date/e1.log": "Mon Jan  1\n"}
	})

	rec := env.get(t, "/outputs/date/e1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mon Jan  1\n", rec.Body.String())
	assert.Equal(t, http.StatusNotFound, env.get(t, "/outputs/date/e9").Code)
}

func TestSagaRoutes(t *testing.T) {
	sagas := saga.NewMemoryStore(0)
	env := newTestEnv(t, noSuchImage(), func(_ *config.Config, o *Options) { o.Sagas = sagas })
	env.exec.Sagas = sagas

	rec := env.get(t, "/run/date")
	require.Equal(t, http.StatusOK, rec.Code)

	var recent []saga.Event
	require.NoError(t, json.Unmarshal(env.get(t, "/saga?job=date").Body.Bytes(), &recent))
	require.Len(t, recent, 2)
	assert.Equal(t, "run.complete", recent[0].Action)

	var trail []saga.Event
	require.NoError(t, json.Unmarshal(env.get(t, "/saga/"+recent[0].SagaID).Body.Bytes(), &trail))
	require.Len(t, trail, 2)
	assert.Equal(t, "run.start", trail[0].Action)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, noSuchImage(), func(_ *config.Config, o *Options) {
		o.Probes = map[string]Probe{
			"docker":   func(ctx context.Context) error { return nil },
			"postgres": func(ctx context.Context) error { return errors.New("refused") },
		}
	})

	var body struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	require.NoError(t, json.Unmarshal(env.get(t, "/health").Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, map[string]string{"docker": "up", "postgres": "down"}, body.Services)
}

type fixedListeners int

func (f fixedListeners) Clients() int { return int(f) }

func TestInfo(t *testing.T) {
	env := newTestEnv(t, noSuchImage(), func(_ *config.Config, o *Options) {
		o.Listeners = fixedListeners(2)
	})

	var body struct {
		Version   string   `json:"version"`
		Runtime   string   `json:"runtime"`
		Jobs      []string `json:"jobs"`
		Listeners *int     `json:"listeners"`
	}
	require.NoError(t, json.Unmarshal(env.get(t, "/info").Body.Bytes(), &body))
	assert.Equal(t, "test", body.Version)
	assert.Equal(t, "stub", body.Runtime)
	assert.Equal(t, []string{"date", "fail", "hello", "version"}, body.Jobs)
	require.NotNil(t, body.Listeners)
	assert.Equal(t, 2, *body.Listeners)
}

func TestInfo_NoHub(t *testing.T) {
	env := newTestEnv(t, noSuchImage(), nil)

	var body map[string]any
	require.NoError(t, json.Unmarshal(env.get(t, "/info").Body.Bytes(), &body))
	assert.NotContains(t, body, "listeners")
}
